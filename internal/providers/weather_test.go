package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/hellas-grid-monitor/internal/common"
	"github.com/i474232898/hellas-grid-monitor/internal/weather"
)

var ptolemaida = weather.Coordinate{Lat: 40.5, Lon: 21.7}

func serve(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenWeather_FetchWeather(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "40.5", q.Get("lat"))
		assert.Equal(t, "21.7", q.Get("lon"))
		assert.Equal(t, "key", q.Get("appid"))
		assert.Equal(t, "metric", q.Get("units"))
		_, _ = w.Write([]byte(`{"dt":1740830400,"main":{"temp":12.4},"wind":{"speed":8},"clouds":{"all":80},"weather":[{"main":"Clouds"}]}`))
	})

	p := NewOpenWeatherProvider(srv.Client(), "key", time.Second)
	p.baseURL = srv.URL

	snap, err := p.FetchWeather(context.Background(), ptolemaida)
	require.NoError(t, err)

	assert.Equal(t, "openweathermap", snap.Provider)
	assert.Equal(t, ptolemaida, snap.Coordinate)
	assert.True(t, snap.ObservedAt.Equal(time.Unix(1740830400, 0)))
	assert.Equal(t, 12.4, *snap.TemperatureC)
	assert.Equal(t, 8.0, *snap.WindSpeedMS)
	assert.Equal(t, 80.0, *snap.CloudCoverPct)
	assert.Equal(t, weather.ConditionCloudy, snap.Condition)
}

func TestOpenWeather_PartialPayloadYieldsNulls(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"main":{"temp":"19.5"},"wind":{"speed":"fast"},"clouds":{}}`))
	})

	p := NewOpenWeatherProvider(srv.Client(), "key", time.Second)
	p.baseURL = srv.URL

	snap, err := p.FetchWeather(context.Background(), ptolemaida)
	require.NoError(t, err)

	assert.Equal(t, 19.5, *snap.TemperatureC)
	assert.Nil(t, snap.WindSpeedMS)
	assert.Nil(t, snap.CloudCoverPct)
	assert.Equal(t, weather.ConditionUnknown, snap.Condition)
	assert.False(t, snap.ObservedAt.IsZero())
}

func TestOpenWeather_Failures(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	p := NewOpenWeatherProvider(srv.Client(), "key", time.Second)
	p.baseURL = srv.URL

	_, err := p.FetchWeather(context.Background(), ptolemaida)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrProviderUnavailable))

	var perr *common.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "openweathermap", perr.Provider)

	_, err = NewOpenWeatherProvider(srv.Client(), "", time.Second).FetchWeather(context.Background(), ptolemaida)
	assert.True(t, errors.Is(err, common.ErrConfiguration))
}

func TestOpenMeteo_FetchWeather(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "ms", q.Get("wind_speed_unit"))
		assert.Contains(t, q.Get("current"), "cloud_cover")
		_, _ = w.Write([]byte(`{"current":{"time":"2025-03-01T12:00","temperature_2m":15.1,"wind_speed_10m":2.9,"cloud_cover":10,"weather_code":0}}`))
	})

	p := NewOpenMeteoProvider(srv.Client(), time.Second)
	p.baseURL = srv.URL

	snap, err := p.FetchWeather(context.Background(), ptolemaida)
	require.NoError(t, err)

	assert.True(t, snap.ObservedAt.Equal(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, 15.1, *snap.TemperatureC)
	assert.Equal(t, 2.9, *snap.WindSpeedMS)
	assert.Equal(t, 10.0, *snap.CloudCoverPct)
	assert.Equal(t, weather.ConditionClear, snap.Condition)
}

func TestWeatherAPI_FetchWeatherConvertsWind(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{"current":{"last_updated_epoch":1740830400,"temp_c":9,"wind_kph":36,"cloud":101,"condition":{"text":"Patchy rain possible"}}}`))
	})

	p := NewWeatherAPIProvider(srv.Client(), "key", time.Second)
	p.baseURL = srv.URL

	snap, err := p.FetchWeather(context.Background(), ptolemaida)
	require.NoError(t, err)

	assert.InDelta(t, 10.0, *snap.WindSpeedMS, 1e-9)
	assert.Nil(t, snap.CloudCoverPct, "out of range cloud cover must be null")
	assert.Equal(t, weather.ConditionRain, snap.Condition)
}

func TestDoRequest_OpenCircuitIsProviderUnavailable(t *testing.T) {
	calls := 0
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})

	p := NewOpenMeteoProvider(srv.Client(), time.Second)
	p.baseURL = srv.URL

	for i := 0; i < 10; i++ {
		_, err := p.FetchWeather(context.Background(), ptolemaida)
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrProviderUnavailable))
	}
	// The breaker trips after more than five consecutive failures.
	assert.Equal(t, 6, calls)
}

func TestNumber_Lenient(t *testing.T) {
	var payload struct {
		A number `json:"a"`
		B number `json:"b"`
		C number `json:"c"`
		D number `json:"d"`
		E number `json:"e"`
		F number `json:"f"`
		G number `json:"g"`
	}
	err := decodeJSON("test", "decode", []byte(`{"a":1.5,"b":"2.5","c":"x","d":null,"e":{"nested":1},"f":"NaN","g":"+Infinity"}`), &payload)
	require.NoError(t, err)

	assert.Equal(t, 1.5, *payload.A.Value)
	assert.Equal(t, 2.5, *payload.B.Value)
	assert.Nil(t, payload.C.Value)
	assert.Nil(t, payload.D.Value)
	assert.Nil(t, payload.E.Value)
	assert.Nil(t, payload.F.Value)
	assert.Nil(t, payload.G.Value)
}
