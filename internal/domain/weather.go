package domain

// ForecastQuery selects the location and horizon for a weather lookup.
type ForecastQuery struct {
	Latitude     float64
	Longitude    float64
	Timezone     string
	ForecastDays int
}

// CurrentWeather is the present-moment block of a forecast.
type CurrentWeather struct {
	Temperature float64
	Humidity    float64
	WindSpeed   float64
	WeatherCode int
	Conditions  string
}

// DailyWeather carries per-day series, index 0 being today.
type DailyWeather struct {
	MaxTemp       []float64
	MinTemp       []float64
	Precipitation []float64
}

// Forecast is a weather snapshot for one location.
type Forecast struct {
	Current CurrentWeather
	Daily   DailyWeather
}
