package indexer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/crolopez/enterprise-rag-system/internal/domain"
)

// Defaults applied when the weather settings omit them.
const (
	defaultForecastDays = 3
	defaultTimezone     = "UTC"
)

// WeatherLocation is one place to fetch forecasts for.
type WeatherLocation struct {
	ID        string  `yaml:"id"`
	Name      string  `yaml:"name"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// WeatherSettings is the settings block of a weather_open_meteo source.
type WeatherSettings struct {
	Locations    []WeatherLocation `yaml:"locations"`
	Timezone     string            `yaml:"timezone"`
	ForecastDays int               `yaml:"forecast_days"`
}

// WeatherHandler keeps one weather document per location fresh in the
// index.
type WeatherHandler struct {
	source   Source
	settings WeatherSettings
	deps     Deps
	logger   *zap.Logger

	now func() time.Time // injectable for tests
}

// NewWeatherHandler builds a weather source handler.
func NewWeatherHandler(src Source, deps Deps) (Handler, error) {
	var settings WeatherSettings
	if !src.Settings.IsZero() {
		if err := src.Settings.Decode(&settings); err != nil {
			return nil, fmt.Errorf("decode weather settings: %w", err)
		}
	}
	if len(settings.Locations) == 0 {
		return nil, fmt.Errorf("weather source %q has no locations", src.ID)
	}
	if deps.Forecaster == nil {
		return nil, fmt.Errorf("weather source %q needs a forecaster", src.ID)
	}
	if settings.Timezone == "" {
		settings.Timezone = defaultTimezone
	}
	if settings.ForecastDays <= 0 {
		settings.ForecastDays = defaultForecastDays
	}

	return &WeatherHandler{
		source:   src,
		settings: settings,
		deps:     deps,
		logger:   deps.Logger.With(zap.String("source", src.ID)),
		now:      time.Now,
	}, nil
}

func (h *WeatherHandler) ID() string { return h.source.ID }

func (h *WeatherHandler) Interval() time.Duration { return h.source.Interval }

// Run fetches a forecast per location and upserts one document each. A
// failing location is logged and skipped so the rest still refresh.
func (h *WeatherHandler) Run(ctx context.Context) error {
	if err := h.deps.Index.EnsureCollection(ctx, h.source.Collection, h.deps.VectorSize); err != nil {
		return fmt.Errorf("ensure collection %q: %w", h.source.Collection, err)
	}

	indexed := 0
	for _, loc := range h.settings.Locations {
		if err := h.indexLocation(ctx, loc); err != nil {
			h.logger.Error("location refresh failed",
				zap.String("location", loc.Name),
				zap.Error(err))
			continue
		}
		indexed++
	}

	h.logger.Info("weather refresh complete",
		zap.Int("indexed", indexed),
		zap.Int("locations", len(h.settings.Locations)))

	if indexed == 0 {
		return fmt.Errorf("all %d locations failed", len(h.settings.Locations))
	}
	return nil
}

func (h *WeatherHandler) indexLocation(ctx context.Context, loc WeatherLocation) error {
	forecast, err := h.deps.Forecaster.Forecast(ctx, domain.ForecastQuery{
		Latitude:     loc.Latitude,
		Longitude:    loc.Longitude,
		Timezone:     h.settings.Timezone,
		ForecastDays: h.settings.ForecastDays,
	})
	if err != nil {
		return fmt.Errorf("fetch forecast: %w", err)
	}

	timestamp := h.now().UTC().Format(time.RFC3339)
	text := renderWeatherDocument(loc.Name, h.source.Collection, h.settings.ForecastDays, forecast, timestamp)

	result, err := h.deps.Embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed document: %w", err)
	}

	locationID := loc.ID
	if locationID == "" {
		locationID = slugify(loc.Name)
	}

	point := domain.Point{
		ID:     domain.PointID(h.source.ID, locationID, timestamp),
		Vector: result.Embedding,
		Payload: map[string]any{
			"source":      h.source.ID,
			"location":    loc.Name,
			"location_id": locationID,
			"latitude":    loc.Latitude,
			"longitude":   loc.Longitude,
			"timestamp":   timestamp,
			// content is what retrieval serves back to the model;
			// document_text mirrors it for consumers of the raw payload.
			"content":       text,
			"document_text": text,
			"current": map[string]any{
				"temperature": forecast.Current.Temperature,
				"humidity":    forecast.Current.Humidity,
				"wind_speed":  forecast.Current.WindSpeed,
				"weather":     forecast.Current.Conditions,
			},
			"forecast": map[string]any{
				"max_temp":      firstOrNil(forecast.Daily.MaxTemp),
				"min_temp":      firstOrNil(forecast.Daily.MinTemp),
				"precipitation": firstOrNil(forecast.Daily.Precipitation),
			},
			"metadata": map[string]any{
				"collection": h.source.Collection,
				"handler":    h.source.Type,
				"type":       "weather",
			},
		},
	}

	return h.deps.Index.Upsert(ctx, h.source.Collection, []domain.Point{point})
}

// renderWeatherDocument produces the indexed document text. Retrieval
// serves this back to the model verbatim.
func renderWeatherDocument(name, collection string, days int, f *domain.Forecast, timestamp string) string {
	var b strings.Builder
	b.WriteString("Weather Information for " + name + "\n\n")
	b.WriteString("Current Weather Conditions:\n")
	b.WriteString("- Location: " + name + "\n")
	b.WriteString("- Temperature: " + formatFloat(f.Current.Temperature) + "°C\n")
	b.WriteString("- Humidity: " + formatFloat(f.Current.Humidity) + "%\n")
	b.WriteString("- Wind Speed: " + formatFloat(f.Current.WindSpeed) + " km/h\n")
	b.WriteString("- Conditions: " + f.Current.Conditions + "\n")
	b.WriteString("- Last Updated: " + timestamp + "\n\n")
	b.WriteString(strconv.Itoa(days) + "-Day Forecast:\n")
	b.WriteString("- Maximum Temperature: " + firstOrNA(f.Daily.MaxTemp) + "°C\n")
	b.WriteString("- Minimum Temperature: " + firstOrNA(f.Daily.MinTemp) + "°C\n")
	b.WriteString("- Precipitation: " + firstOrNA(f.Daily.Precipitation) + " mm\n\n")
	b.WriteString("Data Source: Open-Meteo API\n")
	b.WriteString("Collection: " + collection + "\n")
	return b.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func firstOrNA(values []float64) string {
	if len(values) == 0 {
		return "n/a"
	}
	return formatFloat(values[0])
}

func firstOrNil(values []float64) any {
	if len(values) == 0 {
		return nil
	}
	return values[0]
}

// slugify turns a display name into a stable id fragment.
func slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
