package homeassistant

type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
}

type Availability struct {
	Topic string `json:"topic"`
}

type ConfigurationItem struct {
	DeviceClass         DeviceClass    `json:"device_class,omitempty"`
	UnitOfMeasurement   Unit           `json:"unit_of_measurement,omitempty"`
	Device              Device         `json:"device"`
	StateClass          string         `json:"state_class,omitempty"`
	UniqueId            string         `json:"unique_id"`
	ObjectId            string         `json:"object_id,omitempty"`
	Name                string         `json:"name"`
	Icon                string         `json:"icon,omitempty"`
	StateTopic          string         `json:"state_topic"`
	ValueTemplate       string         `json:"value_template,omitempty"`
	JsonAttributesTopic string         `json:"json_attributes_topic,omitempty"`
	Availability        []Availability `json:"availability,omitempty"`
	AvailabilityMode    string         `json:"availability_mode,omitempty"`
	Options             []string       `json:"options,omitempty"`

	key string
}

// Key is the per-entry suffix of the discovery topic.
func (c ConfigurationItem) Key() string {
	return c.key
}
