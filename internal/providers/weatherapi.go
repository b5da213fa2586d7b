package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/hellas-grid-monitor/internal/common"
	"github.com/i474232898/hellas-grid-monitor/internal/weather"
)

// WeatherAPIProvider implements the weather.Provider interface for WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

var _ weather.Provider = (*WeatherAPIProvider)(nil)

func NewWeatherAPIProvider(client *http.Client, apiKey string, timeout time.Duration) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1/current.json",
		httpCfg: HTTPClientConfig{Client: client, Timeout: timeout},
		circuit: newCircuitBreaker("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

func (p *WeatherAPIProvider) FetchWeather(ctx context.Context, at weather.Coordinate) (weather.Snapshot, error) {
	if p.apiKey == "" {
		return weather.Snapshot{}, fmt.Errorf("%s: %w: api key is not configured", p.name, common.ErrConfiguration)
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		// WeatherAPI accepts "lat,lon" in q.
		values.Set("q", fmt.Sprintf("%f,%f", at.Lat, at.Lon))

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	body, err := doRequest(ctx, p.name, "current weather", p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Snapshot{}, err
	}

	var payload struct {
		Current struct {
			LastUpdatedEpoch number `json:"last_updated_epoch"`
			TempC            number `json:"temp_c"`
			WindKph          number `json:"wind_kph"`
			Cloud            number `json:"cloud"`
			Condition        struct {
				Text string `json:"text"`
			} `json:"condition"`
		} `json:"current"`
	}
	if err := decodeJSON(p.name, "current weather", body, &payload); err != nil {
		return weather.Snapshot{}, err
	}

	ts := time.Now().UTC()
	if epoch := payload.Current.LastUpdatedEpoch.Value; epoch != nil && *epoch > 0 {
		ts = time.Unix(int64(*epoch), 0).UTC()
	}

	var windMS *float64
	if kph := nonNegative(payload.Current.WindKph.Value); kph != nil {
		windMS = common.Float(*kph / 3.6)
	}

	return weather.Snapshot{
		Coordinate:    at,
		Provider:      p.name,
		ObservedAt:    ts,
		TemperatureC:  payload.Current.TempC.Value,
		WindSpeedMS:   windMS,
		CloudCoverPct: percent(payload.Current.Cloud.Value),
		Condition:     mapWeatherAPICondition(payload.Current.Condition.Text),
	}, nil
}

func mapWeatherAPICondition(text string) weather.Condition {
	switch {
	case text == "":
		return weather.ConditionUnknown
	case common.HasAny(text, "thunder", "storm"):
		return weather.ConditionStorm
	case common.HasAny(text, "snow", "sleet", "blizzard"):
		return weather.ConditionSnow
	case common.HasAny(text, "rain", "shower", "drizzle"):
		return weather.ConditionRain
	case common.HasAny(text, "mist", "fog"):
		return weather.ConditionMist
	case common.HasAny(text, "cloud", "overcast"):
		return weather.ConditionCloudy
	case common.HasAny(text, "sunny", "clear"):
		return weather.ConditionClear
	default:
		return weather.ConditionUnknown
	}
}
