package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Home         HomeConfig    `mapstructure:"home"`
	Server       ServerConfig  `mapstructure:"server"`
	MQTT         MQTTConfig    `mapstructure:"mqtt"`
	Weather      WeatherConfig `mapstructure:"weather"`
	Storage      StorageConfig `mapstructure:"storage"`
	Log          LogConfig     `mapstructure:"log"`
	SyncInterval time.Duration `mapstructure:"sync_interval"`
}

// HomeConfig is the home location used when an entry has no coordinates.
type HomeConfig struct {
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
}

type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Host    string `mapstructure:"host"`
}

type MQTTConfig struct {
	Broker          string `mapstructure:"broker"`
	ClientID        string `mapstructure:"client_id"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	DiscoveryPrefix string `mapstructure:"discovery_prefix"`
	BaseTopic       string `mapstructure:"base_topic"`
	StatusTopic     string `mapstructure:"status_topic"`
}

type WeatherConfig struct {
	BaseURL               string        `mapstructure:"base_url"`
	Timeout               time.Duration `mapstructure:"timeout"`
	MinTimeBetweenUpdates time.Duration `mapstructure:"min_time_between_updates"`
	ScanInterval          time.Duration `mapstructure:"scan_interval"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config.yaml from path, or from . and ./config when path is empty.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "yandex-weather")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.discovery_prefix", "homeassistant")
	v.SetDefault("mqtt.base_topic", "yandex_weather")
	v.SetDefault("mqtt.status_topic", "homeassistant/status")
	v.SetDefault("home.latitude", 0.0)
	v.SetDefault("home.longitude", 0.0)
	v.SetDefault("weather.base_url", "https://api.weather.yandex.ru/v2/informers")
	v.SetDefault("weather.timeout", 5*time.Second)
	v.SetDefault("weather.min_time_between_updates", 30*time.Minute)
	v.SetDefault("weather.scan_interval", 30*time.Second)
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "yandex_weather.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("sync_interval", 10*time.Second)

	v.SetEnvPrefix("YAWEATHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.MQTT.Broker == "" {
		config.MQTT.Broker = os.Getenv("MQTT_BROKER")
	}
	if config.MQTT.Username == "" {
		config.MQTT.Username = os.Getenv("MQTT_USERNAME")
	}
	if config.MQTT.Password == "" {
		config.MQTT.Password = os.Getenv("MQTT_PASSWORD")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if c.Home.Latitude < -90 || c.Home.Latitude > 90 {
		return fmt.Errorf("home.latitude out of range: %v", c.Home.Latitude)
	}
	if c.Home.Longitude < -180 || c.Home.Longitude > 180 {
		return fmt.Errorf("home.longitude out of range: %v", c.Home.Longitude)
	}
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported storage driver: %q", c.Storage.Driver)
	}
	if c.Weather.Timeout <= 0 {
		return fmt.Errorf("weather.timeout must be positive")
	}
	if c.Weather.ScanInterval <= 0 {
		return fmt.Errorf("weather.scan_interval must be positive")
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync_interval must be positive")
	}
	return nil
}

// Address is the HTTP listen address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
