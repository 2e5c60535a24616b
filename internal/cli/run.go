package cli

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/notabene00/yandex-weather/internal/api"
	"github.com/notabene00/yandex-weather/internal/homeassistant"
	"github.com/notabene00/yandex-weather/internal/integration"
	"github.com/notabene00/yandex-weather/internal/mqtt"
	"github.com/notabene00/yandex-weather/internal/weather"

	"github.com/spf13/cobra"
)

func runCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bridge: poll every entry and publish to Home Assistant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			return serve(cmd.Context(), a)
		},
	}
}

func serve(parent context.Context, a *app) error {
	logger := a.logger
	cfg := a.config

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var publisher homeassistant.Publisher
	var mqttClient *mqtt.Client
	if cfg.MQTT.Broker != "" {
		client, err := mqtt.NewClient(cfg, logger)
		if err != nil {
			return err
		}
		if err := client.Connect(); err != nil {
			return err
		}
		defer client.Disconnect()
		mqttClient = client
		publisher = client
	} else {
		logger.Warn("No MQTT broker configured, Home Assistant discovery is disabled")
	}

	manager := integration.NewManager(cfg, a.store, publisher, logger)

	var server *api.Server
	if cfg.Server.Enabled {
		server = api.NewServer(cfg, a.flow, manager, a.store, logger)
	}

	manager.SetStateUpdateCallback(func(entryID string, state weather.State) {
		logger.Debugf("State of %s updated", entryID)
		if server != nil {
			server.Hub().Broadcast(entryID, state)
		}
	})

	if mqttClient != nil {
		mqttClient.SetCallbacks(manager.RepublishDiscovery)
	}

	var wg sync.WaitGroup

	if server != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Start(ctx); err != nil {
				logger.Errorf("API server error: %v", err)
				cancel()
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		manager.Start(ctx)
	}()

	logger.Info("All services started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
		logger.Info("Received shutdown signal")
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down...")
	cancel()

	if server != nil {
		server.Stop()
	}

	wg.Wait()
	logger.Info("Shutdown complete")
	return nil
}
