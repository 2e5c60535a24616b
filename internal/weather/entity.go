package weather

import (
	"context"
	"math"
	"time"

	"github.com/notabene00/yandex-weather/internal/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultName     = "Yandex Weather"
	Attribution     = "Data provided by Yandex.Weather"
	TemperatureUnit = "°C"

	MinTimeBetweenUpdates = 30 * time.Minute

	forecastStep          = 350 * time.Minute
	observationTimeFormat = "15:04 02.01.2006"
)

// Source is the fetch side of an entity.
type Source interface {
	Fetch(ctx context.Context) error
	Current() *models.Fact
	Forecast() []models.ForecastPart
}

type ForecastItem struct {
	Datetime                 time.Time `json:"datetime"`
	Temperature              *float64  `json:"temperature"`
	TempLow                  *float64  `json:"templow"`
	Condition                *string   `json:"condition"`
	PressureMM               *int      `json:"pressure_mm"`
	WeatherIcon              string    `json:"weather_icon"`
	FeelsLike                *float64  `json:"feels_like"`
	WindSpeed                *int      `json:"wind_speed"`
	WindBearing              string    `json:"wind_bearing"`
	Precipitation            *float64  `json:"precipitation"`
	PrecipitationProbability *int      `json:"precipitation_probability"`
	WeatherCondition         string    `json:"weather_condition"`
	Pressure                 *int      `json:"pressure"`
	Humidity                 *int      `json:"humidity"`
	WindSpeedMS              *float64  `json:"wind_speed_ms"`
	PartOfDay                string    `json:"part_of_day"`
}

type Attributes struct {
	FeelsLike        float64 `json:"feels_like"`
	PressureMM       int     `json:"pressure_mm"`
	WindSpeedMS      float64 `json:"wind_speed_ms"`
	WeatherIcon      string  `json:"weather_icon"`
	ObservationTime  string  `json:"observation_time"`
	WeatherCondition string  `json:"weather_condition"`
}

// State is a snapshot of every entity property.
type State struct {
	Name            string         `json:"name"`
	UniqueID        string         `json:"unique_id"`
	Condition       *string        `json:"condition"`
	Temperature     *float64       `json:"temperature"`
	TemperatureUnit string         `json:"temperature_unit"`
	Humidity        *int           `json:"humidity"`
	Pressure        *int           `json:"pressure"`
	WindSpeed       *int           `json:"wind_speed"`
	WindBearing     *string        `json:"wind_bearing"`
	ConditionIcon   *string        `json:"condition_icon"`
	Attribution     string         `json:"attribution"`
	Forecast        []ForecastItem `json:"forecast"`
	Attributes      *Attributes    `json:"attributes"`
}

// Entity adapts a Source to the weather entity properties Home Assistant reads.
type Entity struct {
	name     string
	uniqueID string
	source   Source
	logger   *logrus.Logger

	limiter  *rate.Limiter
	now      func() time.Time
	location *time.Location
}

type Option func(*Entity)

// WithNow overrides the clock used for forecast times.
func WithNow(now func() time.Time) Option {
	return func(e *Entity) { e.now = now }
}

// WithLocation sets the zone used to render the observation time.
func WithLocation(loc *time.Location) Option {
	return func(e *Entity) { e.location = loc }
}

func WithMinTimeBetweenUpdates(d time.Duration) Option {
	return func(e *Entity) { e.limiter = rate.NewLimiter(rate.Every(d), 1) }
}

func NewEntity(name, uniqueID string, source Source, logger *logrus.Logger, opts ...Option) *Entity {
	e := &Entity{
		name:     name,
		uniqueID: uniqueID,
		source:   source,
		logger:   logger,
		limiter:  rate.NewLimiter(rate.Every(MinTimeBetweenUpdates), 1),
		now:      time.Now,
		location: time.Local,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Update fetches new data unless a fetch already ran within the throttle
// window. force skips the throttle. It reports whether a fetch was attempted.
func (e *Entity) Update(ctx context.Context, force bool) (bool, error) {
	if !e.limiter.Allow() && !force {
		e.logger.Debugf("Skipping update of %s: throttled", e.name)
		return false, nil
	}
	return true, e.source.Fetch(ctx)
}

func (e *Entity) Name() string {
	return e.name
}

func (e *Entity) UniqueID() string {
	return e.uniqueID
}

func (e *Entity) Attribution() string {
	return Attribution
}

func (e *Entity) TemperatureUnit() string {
	return TemperatureUnit
}

// Current returns the raw current conditions, nil without data.
func (e *Entity) Current() *models.Fact {
	return e.source.Current()
}

func (e *Entity) Temperature() *float64 {
	if current := e.source.Current(); current != nil {
		return &current.Temp
	}
	return nil
}

func (e *Entity) Humidity() *int {
	if current := e.source.Current(); current != nil {
		return &current.Humidity
	}
	return nil
}

// WindSpeed returns the wind speed in km/h.
func (e *Entity) WindSpeed() *int {
	if current := e.source.Current(); current != nil {
		return kmh(current.WindSpeed)
	}
	return nil
}

func (e *Entity) WindBearing() *string {
	if current := e.source.Current(); current != nil {
		return &current.WindDir
	}
	return nil
}

func (e *Entity) Pressure() *int {
	if current := e.source.Current(); current != nil {
		return &current.PressurePA
	}
	return nil
}

// Condition is StateUnknown without data and nil for an unmapped code.
func (e *Entity) Condition() *string {
	current := e.source.Current()
	if current == nil {
		unknown := StateUnknown
		return &unknown
	}
	return condition(current.Condition)
}

func (e *Entity) ConditionIcon() *string {
	if current := e.source.Current(); current != nil {
		return &current.Icon
	}
	return nil
}

// Forecast returns one item per forecast part, spaced 350 minutes apart
// starting one step from now.
func (e *Entity) Forecast() []ForecastItem {
	parts := e.source.Forecast()
	if len(parts) == 0 {
		return nil
	}

	now := e.now().UTC()
	items := make([]ForecastItem, 0, len(parts))
	for i, part := range parts {
		items = append(items, forecastItem(now.Add(time.Duration(i+1)*forecastStep), part))
	}
	return items
}

func (e *Entity) ExtraStateAttributes() *Attributes {
	current := e.source.Current()
	if current == nil {
		return nil
	}

	return &Attributes{
		FeelsLike:        current.FeelsLike,
		PressureMM:       current.PressureMM,
		WindSpeedMS:      current.WindSpeed,
		WeatherIcon:      current.Icon,
		ObservationTime:  time.Unix(current.ObsTime, 0).In(e.location).Format(observationTimeFormat),
		WeatherCondition: Describe(current.Condition),
	}
}

func (e *Entity) State() State {
	return State{
		Name:            e.Name(),
		UniqueID:        e.UniqueID(),
		Condition:       e.Condition(),
		Temperature:     e.Temperature(),
		TemperatureUnit: e.TemperatureUnit(),
		Humidity:        e.Humidity(),
		Pressure:        e.Pressure(),
		WindSpeed:       e.WindSpeed(),
		WindBearing:     e.WindBearing(),
		ConditionIcon:   e.ConditionIcon(),
		Attribution:     e.Attribution(),
		Forecast:        e.Forecast(),
		Attributes:      e.ExtraStateAttributes(),
	}
}

func forecastItem(at time.Time, part models.ForecastPart) ForecastItem {
	item := ForecastItem{
		Datetime:                 at,
		Temperature:              part.TempMax,
		TempLow:                  part.TempMin,
		Condition:                condition(part.Condition),
		PressureMM:               part.PressureMM,
		WeatherIcon:              part.Icon,
		FeelsLike:                part.FeelsLike,
		WindBearing:              part.WindDir,
		Precipitation:            part.PrecMM,
		PrecipitationProbability: part.PrecProb,
		WeatherCondition:         Describe(part.Condition),
		Pressure:                 part.PressurePA,
		Humidity:                 part.Humidity,
		WindSpeedMS:              part.WindSpeed,
		PartOfDay:                part.PartName,
	}
	if part.WindSpeed != nil {
		item.WindSpeed = kmh(*part.WindSpeed)
	}
	return item
}

func condition(code string) *string {
	if c, ok := ConditionFor(code); ok {
		return &c
	}
	return nil
}

// kmh converts m/s to km/h, rounding half to even.
func kmh(ms float64) *int {
	v := int(math.RoundToEven(ms * 18 / 5))
	return &v
}
