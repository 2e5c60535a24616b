package homeassistant

import "encoding/json"

type DeviceClass int64

const (
	NoDeviceClass DeviceClass = iota
	Temperature
	Humidity
	AtmosphericPressure
	WindSpeed
	Enum
)

func (s DeviceClass) String() string {
	switch s {
	case NoDeviceClass:
		return ""
	case Temperature:
		return "temperature"
	case Humidity:
		return "humidity"
	case AtmosphericPressure:
		return "atmospheric_pressure"
	case WindSpeed:
		return "wind_speed"
	case Enum:
		return "enum"
	}
	return "unknown"
}

func (s DeviceClass) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
