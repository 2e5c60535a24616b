package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryDataCoordinates(t *testing.T) {
	lat := 59.93
	data := EntryData{Latitude: &lat}

	gotLat, gotLon := data.Coordinates(55.75, 37.62)
	assert.Equal(t, 59.93, gotLat)
	assert.Equal(t, 37.62, gotLon)
}

func TestWeatherData(t *testing.T) {
	wd := NewWeatherData()

	current, forecast, ts := wd.Get()
	assert.Nil(t, current)
	assert.Nil(t, forecast)
	assert.True(t, ts.IsZero())

	fact := &Fact{Temp: 3, Condition: "clear"}
	wd.Update(fact, []ForecastPart{{PartName: "night"}})
	fact.Temp = 100

	current, forecast, ts = wd.Get()
	require.NotNil(t, current)
	assert.Equal(t, 3.0, current.Temp)
	require.Len(t, forecast, 1)
	assert.False(t, ts.IsZero())

	current.Temp = -1
	forecast[0].PartName = "changed"
	current, forecast, _ = wd.Get()
	assert.Equal(t, 3.0, current.Temp)
	assert.Equal(t, "night", forecast[0].PartName)

	wd.Update(fact, []ForecastPart{})
	_, forecast, _ = wd.Get()
	assert.Empty(t, forecast)
}

func TestNewReading(t *testing.T) {
	fetched := time.Date(2024, 1, 1, 12, 0, 0, 0, time.FixedZone("MSK", 3*3600))
	reading := NewReading("e1", Fact{Temp: -2, Humidity: 80, Condition: "snow", ObsTime: 1704099600}, fetched)

	assert.Equal(t, "e1", reading.EntryID)
	assert.Equal(t, time.UTC, reading.FetchedAt.Location())
	assert.Equal(t, time.Unix(1704099600, 0).UTC(), reading.ObservedAt)
	assert.Equal(t, -2.0, reading.Temperature)
	assert.Equal(t, "snow", reading.Condition)
}
