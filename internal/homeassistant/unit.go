package homeassistant

import "encoding/json"

type Unit int64

const (
	None Unit = iota
	Celsius
	Percent
	HPa
	MmHg
	KmH
	MS
	Mm
)

func (s Unit) String() string {
	switch s {
	case None:
		return ""
	case Celsius:
		return "°C"
	case Percent:
		return "%"
	case HPa:
		return "hPa"
	case MmHg:
		return "mmHg"
	case KmH:
		return "km/h"
	case MS:
		return "m/s"
	case Mm:
		return "mm"
	}
	return "unknown"
}

func (s Unit) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
