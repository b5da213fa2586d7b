package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/hellas-grid-monitor/internal/weather"
)

// OpenMeteoProvider implements the weather.Provider interface for Open-Meteo.
// It needs no API key.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

var _ weather.Provider = (*OpenMeteoProvider)(nil)

func NewOpenMeteoProvider(client *http.Client, timeout time.Duration) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: "https://api.open-meteo.com/v1/forecast",
		httpCfg: HTTPClientConfig{Client: client, Timeout: timeout},
		circuit: newCircuitBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) FetchWeather(ctx context.Context, at weather.Coordinate) (weather.Snapshot, error) {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(at.Lat, 'f', -1, 64))
		values.Set("longitude", strconv.FormatFloat(at.Lon, 'f', -1, 64))
		values.Set("current", "temperature_2m,wind_speed_10m,cloud_cover,weather_code")
		values.Set("wind_speed_unit", "ms")
		values.Set("timezone", "GMT")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	body, err := doRequest(ctx, p.name, "current weather", p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Snapshot{}, err
	}

	var payload struct {
		Current struct {
			Time        string `json:"time"`
			Temperature number `json:"temperature_2m"`
			WindSpeed   number `json:"wind_speed_10m"`
			CloudCover  number `json:"cloud_cover"`
			WeatherCode number `json:"weather_code"`
		} `json:"current"`
	}
	if err := decodeJSON(p.name, "current weather", body, &payload); err != nil {
		return weather.Snapshot{}, err
	}

	ts, err := time.Parse("2006-01-02T15:04", payload.Current.Time)
	if err != nil {
		ts = time.Now()
	}

	cond := weather.ConditionUnknown
	if code := payload.Current.WeatherCode.Value; code != nil {
		cond = mapOpenMeteoCondition(int(*code))
	}

	return weather.Snapshot{
		Coordinate:    at,
		Provider:      p.name,
		ObservedAt:    ts.UTC(),
		TemperatureC:  payload.Current.Temperature.Value,
		WindSpeedMS:   nonNegative(payload.Current.WindSpeed.Value),
		CloudCoverPct: percent(payload.Current.CloudCover.Value),
		Condition:     cond,
	}, nil
}

// Simplified mapping of WMO weather codes.
func mapOpenMeteoCondition(code int) weather.Condition {
	switch {
	case code == 0:
		return weather.ConditionClear
	case code >= 1 && code <= 3:
		return weather.ConditionCloudy
	case code == 45 || code == 48:
		return weather.ConditionMist
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return weather.ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return weather.ConditionSnow
	case code >= 95:
		return weather.ConditionStorm
	default:
		return weather.ConditionUnknown
	}
}
