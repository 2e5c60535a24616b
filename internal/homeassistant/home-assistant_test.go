package homeassistant

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakePublisher struct {
	messages []published
	err      error
}

func (f *fakePublisher) Publish(topic string, retained bool, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, published{topic, retained, payload})
	return nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

var discovery = Discovery{Prefix: "homeassistant", BaseTopic: "yandex_weather"}

func TestEnumsMarshal(t *testing.T) {
	b, err := json.Marshal(AtmosphericPressure)
	require.NoError(t, err)
	assert.Equal(t, `"atmospheric_pressure"`, string(b))

	b, err = json.Marshal(KmH)
	require.NoError(t, err)
	assert.Equal(t, `"km/h"`, string(b))

	assert.Equal(t, "°C", Celsius.String())
	assert.Equal(t, "unknown", Unit(99).String())
	assert.Equal(t, "unknown", DeviceClass(99).String())
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "yandex_weather/abc/state", discovery.StateTopic("abc"))
	assert.Equal(t, "yandex_weather/abc/attributes", discovery.AttributesTopic("abc"))
	assert.Equal(t, "yandex_weather/availability", discovery.AvailabilityTopic())
	assert.Equal(t, "yandex_weather/abc/availability", discovery.EntryAvailabilityTopic("abc"))
}

func TestSensorsPayload(t *testing.T) {
	sensors := discovery.Sensors("abc", "Home")
	require.Len(t, sensors, 8)

	var raw map[string]interface{}
	b, err := json.Marshal(sensors[0])
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &raw))

	assert.Equal(t, "enum", raw["device_class"])
	assert.NotContains(t, raw, "unit_of_measurement")
	assert.Equal(t, "abc_condition", raw["unique_id"])
	assert.Equal(t, "yandex_weather/abc/state", raw["state_topic"])
	assert.Equal(t, "yandex_weather/abc/attributes", raw["json_attributes_topic"])
	assert.Equal(t, "all", raw["availability_mode"])
	assert.Equal(t, []interface{}{
		map[string]interface{}{"topic": "yandex_weather/availability"},
		map[string]interface{}{"topic": "yandex_weather/abc/availability"},
	}, raw["availability"])
	assert.Contains(t, raw["options"], "sunny")
	assert.Contains(t, raw["options"], "unknown")

	b, err = json.Marshal(sensors[1])
	require.NoError(t, err)
	raw = nil
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, "temperature", raw["device_class"])
	assert.Equal(t, "°C", raw["unit_of_measurement"])
	assert.Equal(t, "{{ value_json.temperature }}", raw["value_template"])

	device := raw["device"].(map[string]interface{})
	assert.Equal(t, "Home", device["name"])
	assert.Equal(t, []interface{}{"yandex_weather_abc"}, device["identifiers"])

	b, err = json.Marshal(sensors[7])
	require.NoError(t, err)
	raw = nil
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.NotContains(t, raw, "device_class")
}

func TestSendAndRemoveConfiguration(t *testing.T) {
	publisher := &fakePublisher{}
	sensors := discovery.Sensors("abc", "Home")

	require.NoError(t, SendConfigurationToHa(publisher, discovery, sensors, "abc", testLogger()))
	require.Len(t, publisher.messages, len(sensors))
	assert.Equal(t, "homeassistant/sensor/abc/condition/config", publisher.messages[0].topic)
	assert.True(t, publisher.messages[0].retained)
	assert.NotEmpty(t, publisher.messages[0].payload)

	publisher.messages = nil
	require.NoError(t, RemoveConfigurationFromHa(publisher, discovery, sensors, "abc", testLogger()))
	require.Len(t, publisher.messages, len(sensors))
	for _, m := range publisher.messages {
		assert.True(t, m.retained)
		assert.Empty(t, m.payload)
	}
}

func TestSendConfigurationError(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("not connected")}
	err := SendConfigurationToHa(publisher, discovery, discovery.Sensors("abc", "Home"), "abc", testLogger())
	assert.ErrorContains(t, err, "not connected")
}
