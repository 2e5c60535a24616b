package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/notabene00/yandex-weather/internal/config"
	"github.com/notabene00/yandex-weather/internal/flow"
	"github.com/notabene00/yandex-weather/internal/store"

	"github.com/sirupsen/logrus"
)

const maskValue = "********"

type app struct {
	config *config.Config
	logger *logrus.Logger
	store  *store.SQLStore
	flow   *flow.Flow
}

func loadApp(opts *rootOptions, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	logger, err := newLogger(cfg.Log, stderr)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return nil, err
	}

	return &app{
		config: cfg,
		logger: logger,
		store:  st,
		flow:   flow.New(st, cfg.Home, logger),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warnf("Failed to close store: %v", err)
	}
}

func newLogger(cfg config.LogConfig, out io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	if out == nil {
		out = os.Stderr
	}
	logger.SetOutput(out)

	level := logrus.InfoLevel
	if cfg.Level != "" {
		parsed, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}
	logger.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}
	return logger, nil
}

func mask(value string) string {
	if value == "" {
		return ""
	}
	return maskValue
}
