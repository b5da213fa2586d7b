package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/i474232898/hellas-grid-monitor/internal/common"
)

const (
	ProviderOpenWeather = "openweathermap"
	ProviderOpenMeteo   = "openmeteo"
	ProviderWeatherAPI  = "weatherapi"
)

type AppConfig struct {
	EntsoeToken string `validate:"required"`

	// WeatherProvider selects the weather source for plant statuses.
	WeatherProvider string `validate:"oneof=openweathermap openmeteo weatherapi"`
	OWMToken        string `validate:"required_if=WeatherProvider openweathermap"`
	WeatherAPIKey   string `validate:"required_if=WeatherProvider weatherapi"`

	AreaCode string `validate:"required"`
	Timezone string `validate:"required"`
	Location *time.Location

	// CacheTTL is the freshness window of every cached provider result.
	CacheTTL        time.Duration `validate:"gt=0"`
	HTTPTimeout     time.Duration `validate:"gt=0"`
	// RefreshInterval is the warm-up period; it may not exceed CacheTTL.
	RefreshInterval time.Duration `validate:"gt=0,ltefield=CacheTTL"`

	// EntsoeRatePerMin caps outbound ENTSO-E requests.
	EntsoeRatePerMin int `validate:"gt=0"`

	PlantsFile   string
	ExportPrefix string `validate:"required"`
	LogLevel     string `validate:"oneof=panic fatal error warn warning info debug trace"`
	Port         string `validate:"required,numeric"`
}

// Load reads configuration from the environment, after loading a .env file
// if one exists. It runs before the application logger is configured, so it
// reports through the standard logrus logger.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Info("no .env file loaded")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds and validates the configuration from getenv. Every error
// wraps common.ErrConfiguration.
func FromEnv(getenv func(string) string) (*AppConfig, error) {
	env := lookup(getenv)

	cfg := &AppConfig{
		EntsoeToken:     getenv("ENTSOE_TOKEN"),
		WeatherProvider: env.str("WEATHER_PROVIDER", ProviderOpenWeather),
		OWMToken:        getenv("OWM_TOKEN"),
		WeatherAPIKey:   getenv("WEATHERAPI_KEY"),
		AreaCode:        env.str("GRID_AREA_CODE", "10YGR-HTSO-----Y"),
		Timezone:        env.str("GRID_TIMEZONE", "Europe/Athens"),
		PlantsFile:      getenv("PLANTS_FILE"),
		ExportPrefix:    env.str("EXPORT_PREFIX", "Hellas_Grid"),
		LogLevel:        env.str("LOG_LEVEL", "info"),
		Port:            env.str("PORT", "8080"),
	}

	var err error
	if cfg.CacheTTL, err = env.duration("CACHE_TTL", "15m"); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = env.duration("HTTP_TIMEOUT", "20s"); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = env.duration("REFRESH_INTERVAL", cfg.CacheTTL.String()); err != nil {
		return nil, err
	}
	if cfg.EntsoeRatePerMin, err = env.integer("ENTSOE_RATE_PER_MIN", 300); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfiguration, err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid GRID_TIMEZONE: %v", common.ErrConfiguration, err)
	}
	cfg.Location = loc

	return cfg, nil
}

type lookup func(string) string

func (l lookup) str(key, def string) string {
	if v := l(key); v != "" {
		return v
	}
	return def
}

func (l lookup) duration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(l.str(key, def))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s: %v", common.ErrConfiguration, key, err)
	}
	return d, nil
}

func (l lookup) integer(key string, def int) (int, error) {
	v := l(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s: %v", common.ErrConfiguration, key, err)
	}
	return n, nil
}
