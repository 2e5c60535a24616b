package homeassistant

import (
	"encoding/json"
	"fmt"

	"github.com/notabene00/yandex-weather/internal/weather"

	"github.com/sirupsen/logrus"
)

const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"

	manufacturer = "Yandex"
	model        = "Weather informers"
)

// Publisher is the part of the MQTT client used for discovery.
type Publisher interface {
	Publish(topic string, retained bool, payload []byte) error
}

// Discovery lays out the topics used by the bridge.
type Discovery struct {
	Prefix    string
	BaseTopic string
}

func (d Discovery) StateTopic(entryID string) string {
	return fmt.Sprintf("%s/%s/state", d.BaseTopic, entryID)
}

func (d Discovery) AttributesTopic(entryID string) string {
	return fmt.Sprintf("%s/%s/attributes", d.BaseTopic, entryID)
}

// AvailabilityTopic carries the bridge status, set offline by the MQTT will.
func (d Discovery) AvailabilityTopic() string {
	return d.BaseTopic + "/availability"
}

// EntryAvailabilityTopic is online while the entry is loaded.
func (d Discovery) EntryAvailabilityTopic(entryID string) string {
	return fmt.Sprintf("%s/%s/availability", d.BaseTopic, entryID)
}

func (d Discovery) ConfigTopic(entryID string, item ConfigurationItem) string {
	return fmt.Sprintf("%s/sensor/%s/%s/config", d.Prefix, entryID, item.Key())
}

// Sensors builds the discovery configuration for one weather entity.
func (d Discovery) Sensors(entryID, name string) []ConfigurationItem {
	device := Device{
		Identifiers:  []string{"yandex_weather_" + entryID},
		Name:         name,
		Manufacturer: manufacturer,
		Model:        model,
	}
	stateTopic := d.StateTopic(entryID)
	availability := []Availability{
		{Topic: d.AvailabilityTopic()},
		{Topic: d.EntryAvailabilityTopic(entryID)},
	}

	sensor := func(key, label, template string) ConfigurationItem {
		return ConfigurationItem{
			Device:           device,
			UniqueId:         entryID + "_" + key,
			ObjectId:         "yandex_weather_" + key,
			Name:             name + " " + label,
			StateTopic:       stateTopic,
			ValueTemplate:    template,
			Availability:     availability,
			AvailabilityMode: "all",
			key:              key,
		}
	}

	condition := sensor("condition", "Condition", "{{ value_json.condition }}")
	condition.DeviceClass = Enum
	condition.Options = append(weather.Conditions(), weather.StateUnknown)
	condition.Icon = "mdi:weather-partly-cloudy"
	condition.JsonAttributesTopic = d.AttributesTopic(entryID)

	temperature := sensor("temperature", "Temperature", "{{ value_json.temperature }}")
	temperature.DeviceClass = Temperature
	temperature.UnitOfMeasurement = Celsius
	temperature.StateClass = "measurement"

	feelsLike := sensor("feels_like", "Feels like", "{{ value_json.attributes.feels_like }}")
	feelsLike.DeviceClass = Temperature
	feelsLike.UnitOfMeasurement = Celsius
	feelsLike.StateClass = "measurement"

	humidity := sensor("humidity", "Humidity", "{{ value_json.humidity }}")
	humidity.DeviceClass = Humidity
	humidity.UnitOfMeasurement = Percent
	humidity.StateClass = "measurement"

	pressure := sensor("pressure", "Pressure", "{{ value_json.pressure }}")
	pressure.DeviceClass = AtmosphericPressure
	pressure.UnitOfMeasurement = HPa
	pressure.StateClass = "measurement"

	pressureMM := sensor("pressure_mm", "Pressure mmHg", "{{ value_json.attributes.pressure_mm }}")
	pressureMM.DeviceClass = AtmosphericPressure
	pressureMM.UnitOfMeasurement = MmHg
	pressureMM.StateClass = "measurement"

	windSpeed := sensor("wind_speed", "Wind speed", "{{ value_json.wind_speed }}")
	windSpeed.DeviceClass = WindSpeed
	windSpeed.UnitOfMeasurement = KmH
	windSpeed.StateClass = "measurement"

	windBearing := sensor("wind_bearing", "Wind bearing", "{{ value_json.wind_bearing }}")
	windBearing.Icon = "mdi:compass-outline"

	return []ConfigurationItem{condition, temperature, feelsLike, humidity, pressure, pressureMM, windSpeed, windBearing}
}

func SendConfigurationToHa(client Publisher, d Discovery, config []ConfigurationItem, entryID string, logger *logrus.Logger) error {
	for _, configItem := range config {
		b, err := json.Marshal(configItem)
		if err != nil {
			return fmt.Errorf("failed to marshal discovery config %s: %w", configItem.Key(), err)
		}
		topic := d.ConfigTopic(entryID, configItem)
		if err := client.Publish(topic, true, b); err != nil {
			return fmt.Errorf("failed to publish discovery config to %s: %w", topic, err)
		}
		logger.Debugf("Published discovery config %s", topic)
	}
	return nil
}

// RemoveConfigurationFromHa clears the retained discovery configs, which
// makes Home Assistant drop the sensors.
func RemoveConfigurationFromHa(client Publisher, d Discovery, config []ConfigurationItem, entryID string, logger *logrus.Logger) error {
	for _, configItem := range config {
		topic := d.ConfigTopic(entryID, configItem)
		if err := client.Publish(topic, true, []byte{}); err != nil {
			return fmt.Errorf("failed to clear discovery config %s: %w", topic, err)
		}
		logger.Debugf("Cleared discovery config %s", topic)
	}
	return nil
}
