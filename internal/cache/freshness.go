package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/i474232898/hellas-grid-monitor/internal/common"
)

const (
	// DefaultTTL is the freshness window.
	DefaultTTL = 15 * time.Minute

	// DefaultFetchTimeout bounds a single underlying fetch.
	DefaultFetchTimeout = 30 * time.Second
)

// Key builds a cache key from a query kind and its parameters.
func Key(kind string, params ...string) string {
	return kind + "|" + strings.Join(params, "|")
}

type entry struct {
	value     any
	fetchedAt time.Time
	// generation is the invalidation generation the fetch started in.
	generation uint64
}

type outcome struct {
	entry    entry
	degraded bool
	cause    error
}

// Freshness memoizes provider responses for a fixed window. Entries are
// never evicted, only overwritten, so a stale value stays available as a
// fallback when a refresh fails.
type Freshness struct {
	items   *gocache.Cache
	flights singleflight.Group
	// generation is bumped by Invalidate; older entries are not live.
	generation atomic.Uint64

	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
	logger  *logrus.Logger
}

// Option configures a Freshness cache.
type Option func(*Freshness)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(f *Freshness) { f.now = now }
}

// WithFetchTimeout bounds each underlying fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(f *Freshness) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithLogger sets the logger used for fallback warnings.
func WithLogger(l *logrus.Logger) Option {
	return func(f *Freshness) {
		if l != nil {
			f.logger = l
		}
	}
}

// New creates a cache with the given freshness window. A non-positive ttl
// uses DefaultTTL.
func New(ttl time.Duration, opts ...Option) *Freshness {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	f := &Freshness{
		items:   gocache.New(gocache.NoExpiration, 0),
		ttl:     ttl,
		timeout: DefaultFetchTimeout,
		now:     time.Now,
		logger:  common.NopLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type forceRefreshKey struct{}

// ForceRefresh returns a context under which GetOrFetch refetches even a
// live entry. Concurrent callers still share one fetch, and a failed
// refresh still falls back to the stored value.
func ForceRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, forceRefreshKey{}, true)
}

func forced(ctx context.Context) bool {
	v, _ := ctx.Value(forceRefreshKey{}).(bool)
	return v
}

// Result is a cached value with its provenance.
type Result[T any] struct {
	Value     T
	FetchedAt time.Time
	// Degraded is set when Value is a stale entry served because the
	// refresh failed; Cause holds that failure.
	Degraded bool
	Cause    error
}

// GetOrFetch returns the live entry for key, or calls fetch to refresh it.
// Concurrent callers for the same key share one fetch. When fetch fails
// with common.ErrProviderUnavailable and a previous value exists, that
// value is returned marked Degraded instead of the error.
func GetOrFetch[T any](ctx context.Context, f *Freshness, key string, fetch func(ctx context.Context) (T, error)) (Result[T], error) {
	force := forced(ctx)
	if e, ok := f.lookup(key); ok && !force && f.live(e) {
		return resultOf[T](key, outcome{entry: e})
	}

	v, err, _ := f.flights.Do(key, func() (any, error) {
		// Another flight may have stored a fresh value after our first check.
		if e, ok := f.lookup(key); ok && !force && f.live(e) {
			return outcome{entry: e}, nil
		}

		generation := f.generation.Load()

		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
		defer cancel()

		val, err := fetch(fctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				err = common.Unavailable("cache", key, err)
			}
			if prev, ok := f.lookup(key); ok && errors.Is(err, common.ErrProviderUnavailable) {
				f.logger.WithFields(logrus.Fields{
					"key":        key,
					"fetched_at": prev.fetchedAt,
				}).Warnf("refresh failed, serving stale value: %v", err)
				return outcome{entry: prev, degraded: true, cause: err}, nil
			}
			return nil, err
		}

		e := entry{value: val, fetchedAt: f.now(), generation: generation}
		f.items.Set(key, e, gocache.NoExpiration)
		return outcome{entry: e}, nil
	})
	if err != nil {
		return Result[T]{}, err
	}
	return resultOf[T](key, v.(outcome))
}

func resultOf[T any](key string, o outcome) (Result[T], error) {
	val, ok := o.entry.value.(T)
	if !ok {
		return Result[T]{}, fmt.Errorf("cache: key %q holds %T", key, o.entry.value)
	}
	return Result[T]{
		Value:     val,
		FetchedAt: o.entry.fetchedAt,
		Degraded:  o.degraded,
		Cause:     o.cause,
	}, nil
}

// Invalidate marks every stored entry stale, including those of fetches
// still in flight. Values are kept for fallback.
func (f *Freshness) Invalidate() {
	f.generation.Add(1)
}

// Len returns the number of stored entries, stale or not.
func (f *Freshness) Len() int {
	return f.items.ItemCount()
}

// TTL returns the freshness window.
func (f *Freshness) TTL() time.Duration {
	return f.ttl
}

func (f *Freshness) lookup(key string) (entry, bool) {
	v, found := f.items.Get(key)
	if !found {
		return entry{}, false
	}
	e, ok := v.(entry)
	return e, ok
}

func (f *Freshness) live(e entry) bool {
	return e.generation == f.generation.Load() && f.now().Sub(e.fetchedAt) < f.ttl
}
