package yandex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const informersFixture = `{
  "now": 1700000000,
  "now_dt": "2023-11-14T22:13:20.000Z",
  "info": {"lat": 55.75, "lon": 37.62, "url": "https://yandex.ru/pogoda/"},
  "fact": {
    "temp": -3,
    "feels_like": -8,
    "icon": "ovc",
    "condition": "overcast",
    "wind_speed": 2.5,
    "wind_gust": 6.1,
    "wind_dir": "sw",
    "pressure_mm": 745,
    "pressure_pa": 993,
    "humidity": 86,
    "daytime": "n",
    "polar": false,
    "season": "autumn",
    "obs_time": 1699999200
  },
  "forecast": {
    "date": "2023-11-15",
    "date_ts": 1699995600,
    "week": 46,
    "sunrise": "07:41",
    "sunset": "16:21",
    "moon_code": 9,
    "moon_text": "moon-code-9",
    "parts": [
      {"part_name": "night", "temp_min": -5, "temp_max": -3, "temp_avg": -4, "feels_like": -9,
       "icon": "ovc", "condition": "overcast", "daytime": "n", "polar": false,
       "wind_speed": 2.9, "wind_gust": 7.2, "wind_dir": "sw", "pressure_mm": 746, "pressure_pa": 994,
       "humidity": 88, "prec_mm": 0, "prec_period": 360, "prec_prob": 10},
      {"part_name": "morning", "temp_min": -4, "temp_max": -1, "feels_like": -7,
       "icon": "ovc_-sn", "condition": "light-snow", "daytime": "d",
       "wind_dir": "w", "pressure_mm": 747, "pressure_pa": 995,
       "humidity": 90, "prec_mm": 0.4, "prec_period": 360, "prec_prob": 40}
    ]
  }
}`

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func TestClient_FetchHappyPath(t *testing.T) {
	var gotKey, gotLat, gotLon string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get(APIKeyHeader)
		gotLat = r.URL.Query().Get("lat")
		gotLon = r.URL.Query().Get("lon")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(informersFixture))
	}))
	defer server.Close()

	client := NewClient(Config{
		BaseURL:   server.URL,
		APIKey:    "secret",
		Latitude:  55.75,
		Longitude: 37.62,
	}, testLogger())

	require.NoError(t, client.Fetch(context.Background()))

	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "55.75", gotLat)
	assert.Equal(t, "37.62", gotLon)

	current := client.Current()
	require.NotNil(t, current)
	assert.Equal(t, -3.0, current.Temp)
	assert.Equal(t, "overcast", current.Condition)
	assert.Equal(t, 993, current.PressurePA)
	assert.Equal(t, int64(1699999200), current.ObsTime)

	forecast := client.Forecast()
	require.Len(t, forecast, 2)
	assert.Equal(t, "night", forecast[0].PartName)
	require.NotNil(t, forecast[0].WindSpeed)
	assert.Equal(t, 2.9, *forecast[0].WindSpeed)
	assert.Nil(t, forecast[1].WindSpeed)
	assert.Nil(t, forecast[1].TempAvg)
}

func TestClient_FetchErrorStatusKeepsPreviousData(t *testing.T) {
	var fail atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"status": 403, "message": "Forbidden"}`))
			return
		}
		_, _ = w.Write([]byte(informersFixture))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "k"}, testLogger())
	require.NoError(t, client.Fetch(context.Background()))

	fail.Store(true)
	err := client.Fetch(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "403", apiErr.Status)
	assert.Equal(t, "Forbidden", apiErr.Message)

	require.NotNil(t, client.Current())
	assert.Equal(t, "overcast", client.Current().Condition)
	assert.Len(t, client.Forecast(), 2)
}

func TestClient_FetchStatusKeyWithOKResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "error", "message": "quota exceeded"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, testLogger())
	err := client.Fetch(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "error", apiErr.Status)
	assert.Nil(t, client.Current())
	assert.Nil(t, client.Forecast())
}

func TestClient_FetchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(informersFixture))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Timeout: 20 * time.Millisecond}, testLogger())
	err := client.Fetch(context.Background())

	require.Error(t, err)
	assert.True(t, IsTimeout(err), "expected timeout, got %v", err)
	assert.Nil(t, client.Current())
}

func TestClient_FetchMissingForecastDefaultsToEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"fact": {"temp": 12, "condition": "clear", "wind_speed": 1}}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, testLogger())
	require.NoError(t, client.Fetch(context.Background()))

	require.NotNil(t, client.Current())
	assert.Equal(t, 12.0, client.Current().Temp)
	assert.Empty(t, client.Forecast())
}

func TestClient_FetchInvalidBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, testLogger())
	err := client.Fetch(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestClient_URL(t *testing.T) {
	client := NewClient(Config{Latitude: 59.9386, Longitude: 30.3141}, testLogger())
	assert.Equal(t, DefaultBaseURL+"?lat=59.9386&lon=30.3141", client.URL())

	client = NewClient(Config{BaseURL: "http://localhost/v2/informers?lang=ru_RU", Latitude: 1, Longitude: 2}, testLogger())
	assert.Equal(t, "http://localhost/v2/informers?lang=ru_RU&lat=1&lon=2", client.URL())
}
