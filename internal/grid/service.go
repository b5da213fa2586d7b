package grid

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/hellas-grid-monitor/internal/cache"
	"github.com/i474232898/hellas-grid-monitor/internal/common"
)

var (
	ErrInvalidRange = errors.New("invalid date range")
	ErrRowNotFound  = errors.New("no snapshot row at requested time")
)

// Series names used in cache keys and source status reports.
const (
	SeriesGeneration         = "generation"
	SeriesLoad               = "load"
	SeriesPrices             = "prices"
	SeriesGenerationForecast = "generation_forecast"
	SeriesLoadForecast       = "load_forecast"
)

// SeriesStatus describes where one input series of a response came from.
type SeriesStatus struct {
	Series      string     `json:"series"`
	FetchedAt   *time.Time `json:"fetchedAt,omitempty"`
	Degraded    bool       `json:"degraded"`
	Unavailable bool       `json:"unavailable"`
	Error       string     `json:"error,omitempty"`
}

// Dashboard is the aggregated view of a date range.
type Dashboard struct {
	Range        DateRange      `json:"range"`
	Snapshot     Snapshot       `json:"snapshot"`
	Metrics      *Metrics       `json:"metrics"`
	LoadExtrema  Extrema        `json:"loadExtrema"`
	PriceExtrema Extrema        `json:"priceExtrema"`
	LatestPrice  *PricePoint    `json:"latestPrice"`
	Sources      []SeriesStatus `json:"sources"`
}

// Forecast is the merged generation and load forecast for today and tomorrow.
type Forecast struct {
	Range   DateRange       `json:"range"`
	Points  []ForecastPoint `json:"points"`
	Sources []SeriesStatus  `json:"sources"`
}

// Service fetches grid series through the freshness cache and derives the
// dashboard views.
type Service struct {
	provider Provider
	cache    *cache.Freshness
	loc      *time.Location
	now      func() time.Time
	logger   *logrus.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock overrides the clock used for default ranges and validation.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the service logger.
func WithLogger(l *logrus.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService creates a Service reporting days in loc.
func NewService(provider Provider, c *cache.Freshness, loc *time.Location, opts ...ServiceOption) *Service {
	s := &Service{
		provider: provider,
		cache:    c,
		loc:      loc,
		now:      time.Now,
		logger:   common.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the grid timezone.
func (s *Service) Location() *time.Location {
	return s.loc
}

// DefaultRange is yesterday through today in the grid timezone.
func (s *Service) DefaultRange() DateRange {
	today := s.today()
	return DateRange{From: today.AddDate(0, 0, -1), To: today}
}

// ValidateRange checks that From is not after To and that neither lies in
// the future.
func (s *Service) ValidateRange(r DateRange) error {
	from, to := s.day(r.From), s.day(r.To)
	today := s.today()
	switch {
	case from.After(to):
		return fmt.Errorf("%w: from %s is after to %s", ErrInvalidRange, from.Format("2006-01-02"), to.Format("2006-01-02"))
	case to.After(today):
		return fmt.Errorf("%w: %s is in the future", ErrInvalidRange, to.Format("2006-01-02"))
	}
	return nil
}

// Dashboard returns the snapshot of r with its latest metrics and extrema.
// Series that cannot be fetched are reported in Sources and contribute
// null columns; an error is returned only when no series is available.
func (s *Service) Dashboard(ctx context.Context, r DateRange) (Dashboard, error) {
	if err := s.ValidateRange(r); err != nil {
		return Dashboard{}, err
	}
	r = DateRange{From: s.day(r.From), To: s.day(r.To)}
	start, end := r.Bounds(s.loc)

	var (
		gen    []GenerationPoint
		load   []LoadPoint
		prices []PricePoint
	)
	statuses, err := s.fetchAll(ctx, []seriesFetch{
		{name: SeriesGeneration, run: func(ctx context.Context) (SeriesStatus, error) {
			res, err := cache.GetOrFetch(ctx, s.cache, s.key(SeriesGeneration, r), func(ctx context.Context) ([]GenerationPoint, error) {
				return s.provider.FetchGeneration(ctx, start, end)
			})
			gen = res.Value
			return statusOf(SeriesGeneration, res.FetchedAt, res.Degraded, res.Cause), err
		}},
		{name: SeriesLoad, run: func(ctx context.Context) (SeriesStatus, error) {
			res, err := cache.GetOrFetch(ctx, s.cache, s.key(SeriesLoad, r), func(ctx context.Context) ([]LoadPoint, error) {
				return s.provider.FetchLoad(ctx, start, end)
			})
			load = res.Value
			return statusOf(SeriesLoad, res.FetchedAt, res.Degraded, res.Cause), err
		}},
		{name: SeriesPrices, run: func(ctx context.Context) (SeriesStatus, error) {
			res, err := cache.GetOrFetch(ctx, s.cache, s.key(SeriesPrices, r), func(ctx context.Context) ([]PricePoint, error) {
				return s.provider.FetchDayAheadPrices(ctx, start, end)
			})
			prices = res.Value
			return statusOf(SeriesPrices, res.FetchedAt, res.Degraded, res.Cause), err
		}},
	})
	if err != nil {
		return Dashboard{Range: r, Sources: statuses}, err
	}

	snap := Aggregate(gen, load, prices)
	d := Dashboard{
		Range:        r,
		Snapshot:     snap,
		LoadExtrema:  LoadExtrema(snap.Loads()),
		PriceExtrema: PriceExtrema(snap.Prices()),
		Sources:      statuses,
	}
	if row, ok := LatestCompleteRow(snap); ok {
		m := ComputeMetrics(row)
		d.Metrics = &m
	}
	if p, ok := LatestPrice(snap); ok {
		d.LatestPrice = &p
	}
	return d, nil
}

// MetricsAt evaluates the row of r at the given instant, for historical
// replay.
func (s *Service) MetricsAt(ctx context.Context, r DateRange, at time.Time) (Metrics, error) {
	d, err := s.Dashboard(ctx, r)
	if err != nil {
		return Metrics{}, err
	}
	row, ok := d.Snapshot.RowAt(at)
	if !ok {
		return Metrics{}, fmt.Errorf("%w: %s", ErrRowNotFound, at.Format(time.RFC3339))
	}
	return ComputeMetrics(row), nil
}

// Forecast returns the day-ahead generation and load forecast for today
// and tomorrow.
func (s *Service) Forecast(ctx context.Context) (Forecast, error) {
	today := s.today()
	r := DateRange{From: today, To: today.AddDate(0, 0, 1)}
	start, end := r.Bounds(s.loc)

	var gen, load []ForecastValue
	statuses, err := s.fetchAll(ctx, []seriesFetch{
		{name: SeriesGenerationForecast, run: func(ctx context.Context) (SeriesStatus, error) {
			res, err := cache.GetOrFetch(ctx, s.cache, s.key(SeriesGenerationForecast, r), func(ctx context.Context) ([]ForecastValue, error) {
				return s.provider.FetchGenerationForecast(ctx, start, end)
			})
			gen = res.Value
			return statusOf(SeriesGenerationForecast, res.FetchedAt, res.Degraded, res.Cause), err
		}},
		{name: SeriesLoadForecast, run: func(ctx context.Context) (SeriesStatus, error) {
			res, err := cache.GetOrFetch(ctx, s.cache, s.key(SeriesLoadForecast, r), func(ctx context.Context) ([]ForecastValue, error) {
				return s.provider.FetchLoadForecast(ctx, start, end)
			})
			load = res.Value
			return statusOf(SeriesLoadForecast, res.FetchedAt, res.Degraded, res.Cause), err
		}},
	})
	if err != nil {
		return Forecast{Range: r, Sources: statuses}, err
	}

	return Forecast{Range: r, Points: MergeForecast(gen, load), Sources: statuses}, nil
}

// Refresh marks every cached series stale. Stale values are kept as the
// fallback for the next fetch.
func (s *Service) Refresh() {
	s.cache.Invalidate()
	s.logger.Info("grid cache invalidated")
}

type seriesFetch struct {
	name string
	run  func(ctx context.Context) (SeriesStatus, error)
}

// fetchAll runs the fetches concurrently. A failing series is marked
// unavailable without affecting the others; the first error is returned
// only when every series failed.
func (s *Service) fetchAll(ctx context.Context, fetches []seriesFetch) ([]SeriesStatus, error) {
	statuses := make([]SeriesStatus, len(fetches))
	errs := make([]error, len(fetches))

	var g errgroup.Group
	for i, f := range fetches {
		i, f := i, f
		g.Go(func() error {
			st, err := f.run(ctx)
			if err != nil {
				s.logger.WithError(err).WithField("series", f.name).Warn("grid series unavailable")
				st = SeriesStatus{Series: f.name, Unavailable: true, Error: err.Error()}
			} else if st.Degraded {
				s.logger.WithField("series", f.name).Warn("serving stale grid series")
			}
			statuses[i] = st
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err == nil {
			return statuses, nil
		}
	}
	if len(errs) > 0 {
		return statuses, errs[0]
	}
	return statuses, nil
}

func statusOf(series string, fetchedAt time.Time, degraded bool, cause error) SeriesStatus {
	st := SeriesStatus{Series: series, Degraded: degraded}
	if !fetchedAt.IsZero() {
		st.FetchedAt = &fetchedAt
	}
	if cause != nil {
		st.Error = cause.Error()
	}
	return st
}

func (s *Service) key(series string, r DateRange) string {
	return cache.Key(series, s.provider.Name(), r.Key())
}

func (s *Service) today() time.Time {
	return s.day(s.now().In(s.loc))
}

// day returns midnight of t's calendar day in the grid timezone.
func (s *Service) day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc)
}
