package grid

import (
	"context"
	"time"
)

// Provider fetches grid telemetry for one bidding zone over [start, end].
// Empty results are not errors; connectivity failures are reported as
// common.ErrProviderUnavailable.
type Provider interface {
	Name() string
	FetchGeneration(ctx context.Context, start, end time.Time) ([]GenerationPoint, error)
	FetchLoad(ctx context.Context, start, end time.Time) ([]LoadPoint, error)
	FetchDayAheadPrices(ctx context.Context, start, end time.Time) ([]PricePoint, error)
	FetchGenerationForecast(ctx context.Context, start, end time.Time) ([]ForecastValue, error)
	FetchLoadForecast(ctx context.Context, start, end time.Time) ([]ForecastValue, error)
}
