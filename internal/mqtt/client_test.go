package mqtt

import (
	"testing"
	"time"

	"github.com/notabene00/yandex-weather/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func testClient(t *testing.T) *Client {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	cfg := &config.Config{MQTT: config.MQTTConfig{
		Broker:          "tcp://127.0.0.1:1883",
		ClientID:        "test",
		DiscoveryPrefix: "homeassistant",
		BaseTopic:       "yandex_weather",
		StatusTopic:     "homeassistant/status",
	}}
	client, err := NewClient(cfg, logger)
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresBroker(t *testing.T) {
	_, err := NewClient(&config.Config{}, logrus.New())
	assert.Error(t, err)
}

func TestDiscovery(t *testing.T) {
	client := testClient(t)
	assert.Equal(t, "homeassistant", client.Discovery().Prefix)
	assert.Equal(t, "yandex_weather/availability", client.Discovery().AvailabilityTopic())
}

func TestHandleStatusMessage(t *testing.T) {
	client := testClient(t)
	called := make(chan struct{}, 2)
	client.SetCallbacks(func() { called <- struct{}{} })

	client.handleStatusMessage(nil, &fakeMessage{topic: "homeassistant/status", payload: []byte("offline")})
	select {
	case <-called:
		t.Fatal("callback must not run for offline")
	case <-time.After(50 * time.Millisecond):
	}

	client.handleStatusMessage(nil, &fakeMessage{topic: "homeassistant/status", payload: []byte("online\n")})
	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("callback not called for online")
	}
}

func TestHandleStatusMessage_NoCallback(t *testing.T) {
	client := testClient(t)
	assert.NotPanics(t, func() {
		client.handleStatusMessage(nil, &fakeMessage{payload: []byte("online")})
	})
}
