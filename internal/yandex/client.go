package yandex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/notabene00/yandex-weather/internal/models"

	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL = "https://api.weather.yandex.ru/v2/informers"
	DefaultTimeout = 5 * time.Second

	APIKeyHeader = "X-Yandex-API-Key"
)

// APIError is returned when the response body carries a "status" key.
type APIError struct {
	Status  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %s): %s", e.Status, e.Message)
}

// IsTimeout reports whether err was caused by the request deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

type Config struct {
	BaseURL   string
	APIKey    string
	Latitude  float64
	Longitude float64
	Timeout   time.Duration
}

// Client fetches the informers endpoint for one location and keeps the last
// successful fact and forecast parts.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *logrus.Logger
	data       *models.WeatherData
}

type response struct {
	Status   json.RawMessage  `json:"status"`
	Message  string           `json:"message"`
	Fact     *models.Fact     `json:"fact"`
	Forecast *models.Forecast `json:"forecast"`
}

func NewClient(cfg Config, logger *logrus.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
		data:   models.NewWeatherData(),
	}
}

// URL returns the request URL for the configured coordinates.
func (c *Client) URL() string {
	params := url.Values{}
	params.Add("lat", strconv.FormatFloat(c.config.Latitude, 'f', -1, 64))
	params.Add("lon", strconv.FormatFloat(c.config.Longitude, 'f', -1, 64))

	sep := "?"
	if strings.Contains(c.config.BaseURL, "?") {
		sep = "&"
	}
	return c.config.BaseURL + sep + params.Encode()
}

func (c *Client) Current() *models.Fact {
	current, _, _ := c.data.Get()
	return current
}

func (c *Client) Forecast() []models.ForecastPart {
	_, forecast, _ := c.data.Get()
	return forecast
}

func (c *Client) Data() *models.WeatherData {
	return c.data
}

// Fetch issues one GET and replaces the stored fragments on success. On any
// failure the previous data is kept.
func (c *Client) Fetch(ctx context.Context) error {
	err := c.fetch(ctx)
	if err != nil {
		c.logger.Errorf("Error fetching data from Yandex.Weather: %v", err)
	}
	return err
}

func (c *Client) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(APIKeyHeader, c.config.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var payload response
	if err := json.Unmarshal(body, &payload); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected HTTP status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if len(payload.Status) > 0 && string(payload.Status) != "null" {
		return &APIError{
			Status:  strings.Trim(string(payload.Status), `"`),
			Message: payload.Message,
		}
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
	}

	parts := []models.ForecastPart{}
	if payload.Forecast != nil && payload.Forecast.Parts != nil {
		parts = payload.Forecast.Parts
	}
	c.data.Update(payload.Fact, parts)

	c.logger.Debugf("Current data: %+v", payload.Fact)
	c.logger.Debugf("Forecast data: %+v", parts)
	return nil
}
