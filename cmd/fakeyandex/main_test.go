package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/notabene00/yandex-weather/internal/yandex"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func TestGenerate(t *testing.T) {
	payload := generate(time.Date(2024, 5, 1, 15, 30, 0, 0, time.UTC), 55.75, 37.62)

	assert.NotEmpty(t, payload.Fact.Condition)
	assert.Len(t, payload.Forecast.Parts, 2)
	assert.Equal(t, 55.75, payload.Info["lat"])
	require.NotNil(t, payload.Forecast.Parts[0].TempMax)
	assert.Greater(t, *payload.Forecast.Parts[0].TempMax, *payload.Forecast.Parts[0].TempMin)
}

func TestFakeServerWithClient(t *testing.T) {
	s := &fakeServer{apiKey: "secret", logger: testLogger()}
	server := httptest.NewServer(http.HandlerFunc(s.handleInformers))
	defer server.Close()

	client := yandex.NewClient(yandex.Config{BaseURL: server.URL, APIKey: "secret", Latitude: 1, Longitude: 2}, testLogger())
	require.NoError(t, client.Fetch(context.Background()))
	assert.NotNil(t, client.Current())
	assert.Len(t, client.Forecast(), 2)

	bad := yandex.NewClient(yandex.Config{BaseURL: server.URL, APIKey: "wrong"}, testLogger())
	var apiErr *yandex.APIError
	require.ErrorAs(t, bad.Fetch(context.Background()), &apiErr)
	assert.Equal(t, "403", apiErr.Status)
}

func TestFakeServerFailStatus(t *testing.T) {
	s := &fakeServer{failStatus: http.StatusServiceUnavailable, logger: testLogger()}
	server := httptest.NewServer(http.HandlerFunc(s.handleInformers))
	defer server.Close()

	client := yandex.NewClient(yandex.Config{BaseURL: server.URL}, testLogger())
	var apiErr *yandex.APIError
	require.ErrorAs(t, client.Fetch(context.Background()), &apiErr)
	assert.Equal(t, "Service Unavailable", apiErr.Message)
}
