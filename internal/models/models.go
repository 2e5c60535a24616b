package models

import (
	"sync"
	"time"
)

// Entry is a persisted integration config entry.
type Entry struct {
	ID        string    `json:"entry_id" yaml:"entry_id"`
	UniqueID  string    `json:"unique_id" yaml:"unique_id"`
	Title     string    `json:"title" yaml:"title"`
	Data      EntryData `json:"data" yaml:"data"`
	Version   int       `json:"version" yaml:"version"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// EntryData holds the user supplied settings. Missing coordinates fall back
// to the home location.
type EntryData struct {
	Name      string   `json:"name" yaml:"name"`
	APIKey    string   `json:"api_key" yaml:"api_key"`
	Latitude  *float64 `json:"latitude,omitempty" yaml:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty" yaml:"longitude,omitempty"`
}

func (d EntryData) Coordinates(homeLatitude, homeLongitude float64) (float64, float64) {
	lat, lon := homeLatitude, homeLongitude
	if d.Latitude != nil {
		lat = *d.Latitude
	}
	if d.Longitude != nil {
		lon = *d.Longitude
	}
	return lat, lon
}

// Fact is the "fact" block of an informers response.
type Fact struct {
	Temp       float64 `json:"temp"`
	FeelsLike  float64 `json:"feels_like"`
	Icon       string  `json:"icon"`
	Condition  string  `json:"condition"`
	WindSpeed  float64 `json:"wind_speed"`
	WindGust   float64 `json:"wind_gust"`
	WindDir    string  `json:"wind_dir"`
	PressureMM int     `json:"pressure_mm"`
	PressurePA int     `json:"pressure_pa"`
	Humidity   int     `json:"humidity"`
	Daytime    string  `json:"daytime"`
	Polar      bool    `json:"polar"`
	Season     string  `json:"season"`
	ObsTime    int64   `json:"obs_time"`
}

// ForecastPart is one day segment of the forecast. The API omits fields per
// part, so numbers are pointers.
type ForecastPart struct {
	PartName   string   `json:"part_name"`
	TempMin    *float64 `json:"temp_min,omitempty"`
	TempMax    *float64 `json:"temp_max,omitempty"`
	TempAvg    *float64 `json:"temp_avg,omitempty"`
	FeelsLike  *float64 `json:"feels_like,omitempty"`
	Icon       string   `json:"icon,omitempty"`
	Condition  string   `json:"condition,omitempty"`
	Daytime    string   `json:"daytime,omitempty"`
	Polar      bool     `json:"polar,omitempty"`
	WindSpeed  *float64 `json:"wind_speed,omitempty"`
	WindGust   *float64 `json:"wind_gust,omitempty"`
	WindDir    string   `json:"wind_dir,omitempty"`
	PressureMM *int     `json:"pressure_mm,omitempty"`
	PressurePA *int     `json:"pressure_pa,omitempty"`
	Humidity   *int     `json:"humidity,omitempty"`
	PrecMM     *float64 `json:"prec_mm,omitempty"`
	PrecPeriod *int     `json:"prec_period,omitempty"`
	PrecProb   *int     `json:"prec_prob,omitempty"`
}

// Forecast is the "forecast" block of an informers response.
type Forecast struct {
	Date     string         `json:"date"`
	DateTS   int64          `json:"date_ts"`
	Week     int            `json:"week"`
	Sunrise  string         `json:"sunrise"`
	Sunset   string         `json:"sunset"`
	MoonCode int            `json:"moon_code"`
	MoonText string         `json:"moon_text"`
	Parts    []ForecastPart `json:"parts"`
}

// Reading is one recorded observation.
type Reading struct {
	ID          int64     `json:"id"`
	EntryID     string    `json:"entry_id"`
	FetchedAt   time.Time `json:"fetched_at"`
	ObservedAt  time.Time `json:"observed_at"`
	Temperature float64   `json:"temperature"`
	FeelsLike   float64   `json:"feels_like"`
	Humidity    int       `json:"humidity"`
	PressureMM  int       `json:"pressure_mm"`
	WindSpeed   float64   `json:"wind_speed"`
	Condition   string    `json:"condition"`
}

func NewReading(entryID string, fact Fact, fetchedAt time.Time) Reading {
	return Reading{
		EntryID:     entryID,
		FetchedAt:   fetchedAt.UTC(),
		ObservedAt:  time.Unix(fact.ObsTime, 0).UTC(),
		Temperature: fact.Temp,
		FeelsLike:   fact.FeelsLike,
		Humidity:    fact.Humidity,
		PressureMM:  fact.PressureMM,
		WindSpeed:   fact.WindSpeed,
		Condition:   fact.Condition,
	}
}

// WeatherData keeps the last successful payload fragments.
type WeatherData struct {
	current   *Fact
	forecast  []ForecastPart
	Timestamp time.Time
	mutex     sync.RWMutex
}

func NewWeatherData() *WeatherData {
	return &WeatherData{}
}

func (wd *WeatherData) Update(current *Fact, forecast []ForecastPart) {
	wd.mutex.Lock()
	defer wd.mutex.Unlock()
	if current != nil {
		c := *current
		current = &c
	}
	wd.current = current
	wd.forecast = append([]ForecastPart(nil), forecast...)
	wd.Timestamp = time.Now()
}

func (wd *WeatherData) Get() (*Fact, []ForecastPart, time.Time) {
	wd.mutex.RLock()
	defer wd.mutex.RUnlock()

	var current *Fact
	if wd.current != nil {
		c := *wd.current
		current = &c
	}
	var forecast []ForecastPart
	if wd.forecast != nil {
		forecast = append(make([]ForecastPart, 0, len(wd.forecast)), wd.forecast...)
	}
	return current, forecast, wd.Timestamp
}
