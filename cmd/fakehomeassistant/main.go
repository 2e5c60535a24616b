package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

const progName = "fakehomeassistant"

// Manual test without a Home Assistant install: announces itself on the
// status topic and prints whatever the bridge publishes.
func main() {
	var broker, discoveryPrefix, baseTopic, statusTopic string
	var watchdogTimeout time.Duration

	flag.StringVar(&broker, "broker", "tcp://localhost:1883", "mqtt broker")
	flag.StringVar(&discoveryPrefix, "discovery-prefix", "homeassistant", "discovery prefix")
	flag.StringVar(&baseTopic, "base-topic", "yandex_weather", "bridge base topic")
	flag.StringVar(&statusTopic, "status-topic", "homeassistant/status", "Home Assistant status topic")
	flag.DurationVar(&watchdogTimeout, "watchdog", 5*time.Minute, "exit when nothing is received for this long")
	flag.Parse()

	logger := logrus.New()

	watchdog := time.AfterFunc(watchdogTimeout, func() {
		logger.Fatalf("%s: nothing received for %s", progName, watchdogTimeout)
	})

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(progName)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		handler := func(client mqtt.Client, msg mqtt.Message) {
			watchdog.Reset(watchdogTimeout)
			if len(msg.Payload()) == 0 {
				logger.Infof("cleared   %s", msg.Topic())
				return
			}
			logger.Infof("received  %s (retained=%v): %s", msg.Topic(), msg.Retained(), msg.Payload())
		}

		for _, topic := range []string{discoveryPrefix + "/sensor/#", baseTopic + "/#"} {
			if token := client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
				logger.Errorf("Failed to subscribe to %s: %v", topic, token.Error())
			}
		}

		token := client.Publish(statusTopic, 1, false, "online")
		if token.Wait() && token.Error() != nil {
			logger.Errorf("Failed to publish birth message: %v", token.Error())
		}
		logger.Infof("%s: announced online on %s", progName, statusTopic)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		logger.Errorf("Cannot connect to MQTT broker %s: %v", broker, token.Error())
		logger.Error("Start one with: docker run -it -p 1883:1883 eclipse-mosquitto:2.0")
		os.Exit(1)
	}
	defer client.Disconnect(250)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	token := client.Publish(statusTopic, 1, false, "offline")
	token.Wait()
}
