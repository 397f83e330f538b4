package indexer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/crolopez/enterprise-rag-system/internal/domain"
)

// --- Mocks ---

type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) (domain.EmbeddingResult, error)
	texts   []string
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m.texts = append(m.texts, text)
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}}, nil
}

type upsertCall struct {
	collection string
	points     []domain.Point
}

type mockIndex struct {
	ensureErr  error
	upsertErr  error
	ensured    []string
	vectorSize int
	upserts    []upsertCall
}

func (m *mockIndex) EnsureCollection(ctx context.Context, collection string, vectorSize int) error {
	m.ensured = append(m.ensured, collection)
	m.vectorSize = vectorSize
	return m.ensureErr
}

func (m *mockIndex) Upsert(ctx context.Context, collection string, points []domain.Point) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserts = append(m.upserts, upsertCall{collection: collection, points: points})
	return nil
}

type mockForecaster struct {
	forecastFn func(ctx context.Context, q domain.ForecastQuery) (*domain.Forecast, error)
	queries    []domain.ForecastQuery
}

func (m *mockForecaster) Forecast(ctx context.Context, q domain.ForecastQuery) (*domain.Forecast, error) {
	m.queries = append(m.queries, q)
	if m.forecastFn != nil {
		return m.forecastFn(ctx, q)
	}
	return sampleForecast(), nil
}

func sampleForecast() *domain.Forecast {
	return &domain.Forecast{
		Current: domain.CurrentWeather{
			Temperature: 31.4,
			Humidity:    38,
			WindSpeed:   12.3,
			WeatherCode: 0,
			Conditions:  "Clear sky",
		},
		Daily: domain.DailyWeather{
			MaxTemp:       []float64{33.1, 30.5, 27.9},
			MinTemp:       []float64{19.2, 18.4, 17.1},
			Precipitation: []float64{0, 0, 4.2},
		},
	}
}

func settingsNode(t *testing.T, src string) yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatalf("parse settings: %v", err)
	}
	if len(doc.Content) == 0 {
		t.Fatal("settings yaml is empty")
	}
	return *doc.Content[0]
}

func testDeps(embedder *mockEmbedder, index *mockIndex, forecaster *mockForecaster) Deps {
	return Deps{
		Embedder:   embedder,
		Index:      index,
		Forecaster: forecaster,
		VectorSize: 384,
		Logger:     zap.NewNop(),
	}
}

func weatherSource(t *testing.T, settings string) Source {
	t.Helper()
	return Source{
		ID:         "weather-source",
		Type:       TypeWeatherOpenMeteo,
		Collection: "documents",
		Interval:   30 * time.Minute,
		Settings:   settingsNode(t, settings),
	}
}

const madridSettings = `
locations:
  - id: madrid
    name: Madrid
    latitude: 40.4168
    longitude: -3.7038
timezone: Europe/Madrid
forecast_days: 3
`

// --- Tests ---

func TestNewWeatherHandler_DecodesSettings(t *testing.T) {
	h, err := NewWeatherHandler(weatherSource(t, madridSettings), testDeps(&mockEmbedder{}, &mockIndex{}, &mockForecaster{}))
	if err != nil {
		t.Fatalf("NewWeatherHandler() error = %v", err)
	}

	wh := h.(*WeatherHandler)
	if len(wh.settings.Locations) != 1 || wh.settings.Locations[0].Name != "Madrid" {
		t.Errorf("Locations = %+v", wh.settings.Locations)
	}
	if wh.settings.Timezone != "Europe/Madrid" {
		t.Errorf("Timezone = %q", wh.settings.Timezone)
	}
	if wh.settings.ForecastDays != 3 {
		t.Errorf("ForecastDays = %d", wh.settings.ForecastDays)
	}
	if h.ID() != "weather-source" {
		t.Errorf("ID() = %q", h.ID())
	}
	if h.Interval() != 30*time.Minute {
		t.Errorf("Interval() = %v", h.Interval())
	}
}

func TestNewWeatherHandler_AppliesDefaults(t *testing.T) {
	settings := `
locations:
  - name: Madrid
    latitude: 40.4
    longitude: -3.7
`
	h, err := NewWeatherHandler(weatherSource(t, settings), testDeps(&mockEmbedder{}, &mockIndex{}, &mockForecaster{}))
	if err != nil {
		t.Fatalf("NewWeatherHandler() error = %v", err)
	}

	wh := h.(*WeatherHandler)
	if wh.settings.Timezone != "UTC" {
		t.Errorf("Timezone = %q, want UTC", wh.settings.Timezone)
	}
	if wh.settings.ForecastDays != 3 {
		t.Errorf("ForecastDays = %d, want 3", wh.settings.ForecastDays)
	}
}

func TestNewWeatherHandler_RequiresLocations(t *testing.T) {
	_, err := NewWeatherHandler(weatherSource(t, `timezone: UTC`), testDeps(&mockEmbedder{}, &mockIndex{}, &mockForecaster{}))
	if err == nil || !strings.Contains(err.Error(), "no locations") {
		t.Errorf("error = %v, want no locations", err)
	}
}

func TestNewWeatherHandler_RequiresForecaster(t *testing.T) {
	deps := testDeps(&mockEmbedder{}, &mockIndex{}, &mockForecaster{})
	deps.Forecaster = nil
	_, err := NewWeatherHandler(weatherSource(t, madridSettings), deps)
	if err == nil || !strings.Contains(err.Error(), "forecaster") {
		t.Errorf("error = %v, want forecaster requirement", err)
	}
}

func TestNewWeatherHandler_RejectsBadSettings(t *testing.T) {
	_, err := NewWeatherHandler(weatherSource(t, `locations: "not a list"`), testDeps(&mockEmbedder{}, &mockIndex{}, &mockForecaster{}))
	if err == nil || !strings.Contains(err.Error(), "decode weather settings") {
		t.Errorf("error = %v, want decode failure", err)
	}
}

func TestWeatherRun_IndexesEachLocation(t *testing.T) {
	settings := `
locations:
  - id: madrid
    name: Madrid
    latitude: 40.4168
    longitude: -3.7038
  - id: valencia
    name: Valencia
    latitude: 39.4699
    longitude: -0.3763
timezone: Europe/Madrid
forecast_days: 3
`
	embedder := &mockEmbedder{}
	index := &mockIndex{}
	forecaster := &mockForecaster{}

	h, err := NewWeatherHandler(weatherSource(t, settings), testDeps(embedder, index, forecaster))
	if err != nil {
		t.Fatalf("NewWeatherHandler() error = %v", err)
	}
	wh := h.(*WeatherHandler)
	wh.now = func() time.Time { return time.Date(2025, 7, 14, 12, 0, 0, 0, time.UTC) }

	if err := h.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(index.ensured) != 1 || index.ensured[0] != "documents" {
		t.Errorf("ensured = %v, want [documents]", index.ensured)
	}
	if index.vectorSize != 384 {
		t.Errorf("vectorSize = %d, want 384", index.vectorSize)
	}
	if len(forecaster.queries) != 2 {
		t.Fatalf("forecast queries = %d, want 2", len(forecaster.queries))
	}
	if forecaster.queries[0].Timezone != "Europe/Madrid" || forecaster.queries[0].ForecastDays != 3 {
		t.Errorf("query = %+v", forecaster.queries[0])
	}
	if len(index.upserts) != 2 {
		t.Fatalf("upserts = %d, want 2", len(index.upserts))
	}

	point := index.upserts[0].points[0]
	wantID := domain.PointID("weather-source", "madrid", "2025-07-14T12:00:00Z")
	if point.ID != wantID {
		t.Errorf("point ID = %d, want %d", point.ID, wantID)
	}

	content, _ := point.Payload["content"].(string)
	if !strings.Contains(content, "Weather Information for Madrid") {
		t.Errorf("content = %q", content)
	}
	if point.Payload["document_text"] != content {
		t.Error("document_text should mirror content")
	}
	if point.Payload["location"] != "Madrid" || point.Payload["location_id"] != "madrid" {
		t.Errorf("location payload = %v / %v", point.Payload["location"], point.Payload["location_id"])
	}
	current := point.Payload["current"].(map[string]any)
	if current["weather"] != "Clear sky" || current["temperature"] != 31.4 {
		t.Errorf("current = %+v", current)
	}
	forecastPayload := point.Payload["forecast"].(map[string]any)
	if forecastPayload["max_temp"] != 33.1 || forecastPayload["precipitation"] != 0.0 {
		t.Errorf("forecast = %+v", forecastPayload)
	}
	metadata := point.Payload["metadata"].(map[string]any)
	if metadata["type"] != "weather" || metadata["collection"] != "documents" {
		t.Errorf("metadata = %+v", metadata)
	}

	if len(embedder.texts) != 2 || embedder.texts[0] != content {
		t.Error("embedder should receive the rendered document text")
	}
}

func TestWeatherRun_DerivesLocationIDFromName(t *testing.T) {
	settings := `
locations:
  - name: New York
    latitude: 40.7128
    longitude: -74.006
`
	index := &mockIndex{}
	h, err := NewWeatherHandler(weatherSource(t, settings), testDeps(&mockEmbedder{}, index, &mockForecaster{}))
	if err != nil {
		t.Fatalf("NewWeatherHandler() error = %v", err)
	}
	wh := h.(*WeatherHandler)
	wh.now = func() time.Time { return time.Date(2025, 7, 14, 12, 0, 0, 0, time.UTC) }

	if err := h.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	point := index.upserts[0].points[0]
	if point.Payload["location_id"] != "new-york" {
		t.Errorf("location_id = %v, want new-york", point.Payload["location_id"])
	}
	if point.ID != domain.PointID("weather-source", "new-york", "2025-07-14T12:00:00Z") {
		t.Error("point ID should derive from the slugified name")
	}
}

func TestWeatherRun_LocationFailureContinues(t *testing.T) {
	settings := `
locations:
  - id: madrid
    name: Madrid
    latitude: 40.4168
    longitude: -3.7038
  - id: valencia
    name: Valencia
    latitude: 39.4699
    longitude: -0.3763
`
	index := &mockIndex{}
	forecaster := &mockForecaster{
		forecastFn: func(ctx context.Context, q domain.ForecastQuery) (*domain.Forecast, error) {
			if q.Latitude == 40.4168 {
				return nil, errors.New("upstream 500")
			}
			return sampleForecast(), nil
		},
	}

	h, err := NewWeatherHandler(weatherSource(t, settings), testDeps(&mockEmbedder{}, index, forecaster))
	if err != nil {
		t.Fatalf("NewWeatherHandler() error = %v", err)
	}

	if err := h.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v, want nil when one location survives", err)
	}
	if len(index.upserts) != 1 {
		t.Fatalf("upserts = %d, want 1", len(index.upserts))
	}
	if index.upserts[0].points[0].Payload["location"] != "Valencia" {
		t.Error("surviving location should be Valencia")
	}
}

func TestWeatherRun_AllLocationsFailed(t *testing.T) {
	settings := `
locations:
  - name: Madrid
    latitude: 40.4
    longitude: -3.7
  - name: Valencia
    latitude: 39.5
    longitude: -0.4
`
	forecaster := &mockForecaster{
		forecastFn: func(ctx context.Context, q domain.ForecastQuery) (*domain.Forecast, error) {
			return nil, errors.New("upstream 500")
		},
	}
	h, err := NewWeatherHandler(weatherSource(t, settings), testDeps(&mockEmbedder{}, &mockIndex{}, forecaster))
	if err != nil {
		t.Fatalf("NewWeatherHandler() error = %v", err)
	}

	err = h.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "all 2 locations failed") {
		t.Errorf("Run() error = %v, want all locations failed", err)
	}
}

func TestWeatherRun_EnsureCollectionFailure(t *testing.T) {
	index := &mockIndex{ensureErr: errors.New("connection refused")}
	forecaster := &mockForecaster{}
	h, err := NewWeatherHandler(weatherSource(t, madridSettings), testDeps(&mockEmbedder{}, index, forecaster))
	if err != nil {
		t.Fatalf("NewWeatherHandler() error = %v", err)
	}

	if err := h.Run(context.Background()); err == nil {
		t.Fatal("Run() should fail when the collection cannot be ensured")
	}
	if len(forecaster.queries) != 0 {
		t.Error("no forecasts should be fetched when the collection is unavailable")
	}
}

func TestRenderWeatherDocument(t *testing.T) {
	got := renderWeatherDocument("Madrid", "documents", 3, sampleForecast(), "2025-07-14T12:00:00Z")
	want := `Weather Information for Madrid

Current Weather Conditions:
- Location: Madrid
- Temperature: 31.4°C
- Humidity: 38%
- Wind Speed: 12.3 km/h
- Conditions: Clear sky
- Last Updated: 2025-07-14T12:00:00Z

3-Day Forecast:
- Maximum Temperature: 33.1°C
- Minimum Temperature: 19.2°C
- Precipitation: 0 mm

Data Source: Open-Meteo API
Collection: documents
`
	if got != want {
		t.Errorf("renderWeatherDocument() = %q, want %q", got, want)
	}
}

func TestRenderWeatherDocument_EmptyDailyData(t *testing.T) {
	forecast := sampleForecast()
	forecast.Daily = domain.DailyWeather{}

	got := renderWeatherDocument("Madrid", "documents", 3, forecast, "2025-07-14T12:00:00Z")
	if !strings.Contains(got, "- Maximum Temperature: n/a°C") {
		t.Errorf("missing n/a max temp in %q", got)
	}
	if !strings.Contains(got, "- Precipitation: n/a mm") {
		t.Errorf("missing n/a precipitation in %q", got)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Madrid", "madrid"},
		{"New York", "new-york"},
		{"São Paulo", "s-o-paulo"},
		{"  padded  ", "padded"},
		{"A/B testing", "a-b-testing"},
	}
	for _, tt := range tests {
		if got := slugify(tt.in); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
