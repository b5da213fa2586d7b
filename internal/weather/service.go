package weather

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/hellas-grid-monitor/internal/cache"
	"github.com/i474232898/hellas-grid-monitor/internal/common"
	"github.com/i474232898/hellas-grid-monitor/internal/grid"
)

// DefaultConcurrency bounds concurrent per-site weather fetches.
const DefaultConcurrency = 8

// Site is a location whose expected output is evaluated from weather.
type Site struct {
	Name       string
	Source     grid.SourceType
	Coordinate Coordinate
}

// SiteStatus is the evaluated status of one site. Weather is nil when no
// snapshot could be obtained.
type SiteStatus struct {
	Name      string          `json:"name"`
	Source    grid.SourceType `json:"source"`
	Status    Status          `json:"status"`
	Weather   *Snapshot       `json:"weather,omitempty"`
	Summary   string          `json:"summary,omitempty"`
	FetchedAt *time.Time      `json:"fetchedAt,omitempty"`
	Degraded  bool            `json:"degraded"`
	Error     string          `json:"error,omitempty"`
}

// Service fetches weather through the freshness cache and evaluates site
// statuses.
type Service struct {
	provider    Provider
	cache       *cache.Freshness
	logger      *logrus.Logger
	concurrency int
}

// NewService creates a new Service.
func NewService(provider Provider, c *cache.Freshness, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = common.NopLogger()
	}
	return &Service{
		provider:    provider,
		cache:       c,
		logger:      logger,
		concurrency: DefaultConcurrency,
	}
}

// Current returns the cached weather at a coordinate, refreshing it when
// stale.
func (s *Service) Current(ctx context.Context, at Coordinate) (cache.Result[Snapshot], error) {
	key := cache.Key("weather", s.provider.Name(), at.Key())
	return cache.GetOrFetch(ctx, s.cache, key, func(ctx context.Context) (Snapshot, error) {
		return s.provider.FetchWeather(ctx, at)
	})
}

// Statuses evaluates every site concurrently. A failed fetch only affects
// its own site, which reports StatusUnavailable (or N/A for source types
// that are not weather dependent). The result keeps the order of sites.
func (s *Service) Statuses(ctx context.Context, sites []Site) []SiteStatus {
	out := make([]SiteStatus, len(sites))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, site := range sites {
		i, site := i, site
		g.Go(func() error {
			out[i] = s.status(gctx, site)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (s *Service) status(ctx context.Context, site Site) SiteStatus {
	st := SiteStatus{Name: site.Name, Source: site.Source}

	res, err := s.Current(ctx, site.Coordinate)
	if err != nil {
		s.logger.WithError(err).WithField("site", site.Name).Warn("weather unavailable")
		st.Status = Evaluate(site.Source, nil)
		st.Error = err.Error()
		return st
	}

	snap := res.Value
	fetchedAt := res.FetchedAt
	st.Weather = &snap
	st.Summary = snap.Summary()
	st.FetchedAt = &fetchedAt
	st.Degraded = res.Degraded
	st.Status = Evaluate(site.Source, &snap)
	return st
}
