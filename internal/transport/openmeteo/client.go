package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/crolopez/enterprise-rag-system/internal/domain"
)

// DefaultBaseURL is the public Open-Meteo API endpoint. It requires no
// API key.
const DefaultBaseURL = "https://api.open-meteo.com"

const forecastPath = "/v1/forecast"

// Requested variable sets, comma-joined per the Open-Meteo query format.
const (
	currentVariables = "temperature_2m,relative_humidity_2m,weather_code,wind_speed_10m"
	dailyVariables   = "weather_code,temperature_2m_max,temperature_2m_min,precipitation_sum"
)

// Client fetches weather forecasts from the Open-Meteo API.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// Config holds the Open-Meteo connection settings.
type Config struct {
	BaseURL string // defaults to DefaultBaseURL
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewClient creates an Open-Meteo client.
func NewClient(cfg *Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		baseURL: base,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger,
	}
}

type forecastResponse struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		Humidity    float64 `json:"relative_humidity_2m"`
		WeatherCode int     `json:"weather_code"`
		WindSpeed   float64 `json:"wind_speed_10m"`
	} `json:"current"`
	Daily struct {
		WeatherCode   []int     `json:"weather_code"`
		MaxTemp       []float64 `json:"temperature_2m_max"`
		MinTemp       []float64 `json:"temperature_2m_min"`
		Precipitation []float64 `json:"precipitation_sum"`
	} `json:"daily"`
}

type errorResponse struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

// Forecast fetches current conditions and the daily outlook for one
// location.
func (c *Client) Forecast(ctx context.Context, query domain.ForecastQuery) (*domain.Forecast, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(query.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(query.Longitude, 'f', -1, 64))
	params.Set("current", currentVariables)
	params.Set("daily", dailyVariables)
	if query.Timezone != "" {
		params.Set("timezone", query.Timezone)
	}
	if query.ForecastDays > 0 {
		params.Set("forecast_days", strconv.Itoa(query.ForecastDays))
	}

	reqURL := c.baseURL + forecastPath + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build forecast request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forecast request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("forecast request returned status %d: %s", resp.StatusCode, extractReason(resp.Body))
	}

	var decoded forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode forecast response: %w", err)
	}

	forecast := &domain.Forecast{
		Current: domain.CurrentWeather{
			Temperature: decoded.Current.Temperature,
			Humidity:    decoded.Current.Humidity,
			WindSpeed:   decoded.Current.WindSpeed,
			WeatherCode: decoded.Current.WeatherCode,
			Conditions:  DescribeWeatherCode(decoded.Current.WeatherCode),
		},
		Daily: domain.DailyWeather{
			MaxTemp:       decoded.Daily.MaxTemp,
			MinTemp:       decoded.Daily.MinTemp,
			Precipitation: decoded.Daily.Precipitation,
		},
	}

	c.logger.Debug("forecast fetched",
		zap.Float64("latitude", query.Latitude),
		zap.Float64("longitude", query.Longitude),
		zap.String("conditions", forecast.Current.Conditions))

	return forecast, nil
}

func extractReason(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return "unreadable error body"
	}
	var decoded errorResponse
	if err := json.Unmarshal(raw, &decoded); err == nil && decoded.Reason != "" {
		return decoded.Reason
	}
	return string(raw)
}
