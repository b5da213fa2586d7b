package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/hellas-grid-monitor/internal/common"
)

// maxBodyBytes caps how much of a provider response is read.
const maxBodyBytes = 32 << 20

// HTTPClientConfig bundles the HTTP client and call limits of a provider.
type HTTPClientConfig struct {
	Client  *http.Client
	Timeout time.Duration
	// Limiter throttles outbound calls; nil means unlimited.
	Limiter *rate.Limiter
	// NoData reports whether a non-2xx response actually means "empty
	// result". Such responses return a nil body and no error.
	NoData func(status int, body []byte) bool
}

var (
	errRateLimited  = errors.New("rate limited")
	errUnauthorized = errors.New("unauthorized")
	errServerError  = errors.New("server error")
	errUnexpected   = errors.New("unexpected status code")
	errCircuitOpen  = errors.New("circuit breaker open")
	errNoHTTPClient = errors.New("http client not configured")
)

func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// doRequest executes one bounded HTTP call through the circuit breaker and
// returns the response body. There are no retries: any failure is reported
// as common.ErrProviderUnavailable and left to the caller's fallback policy.
func doRequest(
	ctx context.Context,
	provider, op string,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func(ctx context.Context) (*http.Request, error),
) ([]byte, error) {
	if cfg.Client == nil {
		return nil, common.Unavailable(provider, op, errNoHTTPClient)
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	if cfg.Limiter != nil {
		if err := cfg.Limiter.Wait(ctx); err != nil {
			return nil, common.Unavailable(provider, op, fmt.Errorf("%w: %v", errRateLimited, err))
		}
	}

	req, err := buildRequest(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s %s: build request: %w", provider, op, err)
	}

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := cfg.Client.Do(req)
		if execErr != nil {
			return nil, execErr
		}
		defer resp.Body.Close()

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if readErr != nil {
			return nil, readErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}
		if cfg.NoData != nil && cfg.NoData(resp.StatusCode, body) {
			return []byte(nil), nil
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, errRateLimited
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, errUnauthorized
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
		default:
			return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
		}
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		return nil, common.Unavailable(provider, op, err)
	}

	body, ok := result.([]byte)
	if !ok {
		return nil, common.Unavailable(provider, op, fmt.Errorf("unexpected result type from circuit breaker"))
	}
	return body, nil
}

// number decodes a JSON number leniently: numbers and numeric strings are
// accepted, anything else leaves Value nil without failing the decode.
type number struct {
	Value *float64
}

func (n *number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		n.Value = &f
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		n.Value = common.ParseFloat(s)
	}
	return nil
}

func decodeJSON(provider, op string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return common.Unavailable(provider, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
