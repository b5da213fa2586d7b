package weather

import (
	"context"
)

// Provider abstracts a weather data source (e.g. OpenWeatherMap, WeatherAPI, Open-Meteo).
// Connectivity failures are reported as common.ErrProviderUnavailable.
type Provider interface {
	Name() string
	FetchWeather(ctx context.Context, at Coordinate) (Snapshot, error)
}
