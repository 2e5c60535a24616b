package mqtt

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/notabene00/yandex-weather/internal/config"
	"github.com/notabene00/yandex-weather/internal/homeassistant"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

const publishTimeout = 10 * time.Second

type Client struct {
	client    mqtt.Client
	config    *config.Config
	discovery homeassistant.Discovery
	logger    *logrus.Logger

	mu                   sync.RWMutex
	onHomeAssistantReady func()
}

func NewClient(cfg *config.Config, logger *logrus.Logger) (*Client, error) {
	if cfg.MQTT.Broker == "" {
		return nil, fmt.Errorf("mqtt broker is not configured")
	}

	c := &Client{
		config: cfg,
		discovery: homeassistant.Discovery{
			Prefix:    cfg.MQTT.DiscoveryPrefix,
			BaseTopic: cfg.MQTT.BaseTopic,
		},
		logger: logger,
	}

	mqtt.ERROR = logger.WithField("component", "paho")
	mqtt.CRITICAL = logger.WithField("component", "paho")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTT.Broker)
	opts.SetClientID(cfg.MQTT.ClientID)
	opts.SetUsername(cfg.MQTT.Username)
	opts.SetPassword(cfg.MQTT.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetWill(c.discovery.AvailabilityTopic(), homeassistant.PayloadOffline, 1, true)

	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetOnConnectHandler(c.onConnect)

	c.client = mqtt.NewClient(opts)

	return c, nil
}

func (c *Client) Discovery() homeassistant.Discovery {
	return c.discovery
}

func (c *Client) Connect() error {
	c.logger.Info("Connecting to MQTT broker...")

	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	c.logger.Info("Connected to MQTT broker")
	return nil
}

func (c *Client) Disconnect() {
	c.logger.Info("Disconnecting from MQTT broker...")
	if err := c.Publish(c.discovery.AvailabilityTopic(), true, []byte(homeassistant.PayloadOffline)); err != nil {
		c.logger.Warnf("Failed to publish offline availability: %v", err)
	}
	c.client.Disconnect(250)
}

// Publish sends payload at QoS 1 and waits for the broker to acknowledge it.
func (c *Client) Publish(topic string, retained bool, payload []byte) error {
	token := c.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timed out publishing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// SetCallbacks registers the function run when Home Assistant announces
// itself on the status topic.
func (c *Client) SetCallbacks(onHomeAssistantReady func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onHomeAssistantReady = onHomeAssistantReady
}

func (c *Client) onConnect(client mqtt.Client) {
	c.logger.Info("MQTT connected, subscribing to topics...")

	token := client.Publish(c.discovery.AvailabilityTopic(), 1, true, homeassistant.PayloadOnline)
	if token.Wait() && token.Error() != nil {
		c.logger.Errorf("Failed to publish availability: %v", token.Error())
	}

	if c.config.MQTT.StatusTopic != "" {
		if token := client.Subscribe(c.config.MQTT.StatusTopic, 1, c.handleStatusMessage); token.Wait() && token.Error() != nil {
			c.logger.Errorf("Failed to subscribe to Home Assistant status topic: %v", token.Error())
		} else {
			c.logger.Infof("Subscribed to Home Assistant status topic: %s", c.config.MQTT.StatusTopic)
		}
	}
}

func (c *Client) onConnectionLost(client mqtt.Client, err error) {
	c.logger.Errorf("MQTT connection lost: %v", err)
}

func (c *Client) handleStatusMessage(client mqtt.Client, msg mqtt.Message) {
	payload := strings.TrimSpace(string(msg.Payload()))
	c.logger.Debugf("Received Home Assistant status: %s", payload)

	if payload != homeassistant.PayloadOnline {
		return
	}

	c.mu.RLock()
	callback := c.onHomeAssistantReady
	c.mu.RUnlock()

	if callback != nil {
		c.logger.Info("Home Assistant is online, re-sending discovery")
		go callback()
	}
}
