package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	httpapi "github.com/i474232898/hellas-grid-monitor/internal/api/http"
	"github.com/i474232898/hellas-grid-monitor/internal/cache"
	"github.com/i474232898/hellas-grid-monitor/internal/common"
	"github.com/i474232898/hellas-grid-monitor/internal/config"
	"github.com/i474232898/hellas-grid-monitor/internal/grid"
	"github.com/i474232898/hellas-grid-monitor/internal/plants"
	"github.com/i474232898/hellas-grid-monitor/internal/providers"
	"github.com/i474232898/hellas-grid-monitor/internal/scheduler"
	"github.com/i474232898/hellas-grid-monitor/internal/weather"
)

func main() {
	// Load configuration; missing credentials abort startup.
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}

	log := common.NewLogger(cfg.LogLevel)

	registry, err := loadRegistry(cfg.PlantsFile)
	if err != nil {
		log.Fatalf("failed to load plant registry: %v", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// One freshness cache for every provider query.
	freshness := cache.New(cfg.CacheTTL,
		cache.WithFetchTimeout(cfg.HTTPTimeout),
		cache.WithLogger(log),
	)

	entsoe := providers.NewENTSOEProvider(httpClient, providers.ENTSOEOptions{
		Token:    cfg.EntsoeToken,
		AreaCode: cfg.AreaCode,
		Location: cfg.Location,
		Timeout:  cfg.HTTPTimeout,
		Limiter:  rate.NewLimiter(rate.Limit(float64(cfg.EntsoeRatePerMin)/60), 10),
		Logger:   log,
	})
	gridService := grid.NewService(entsoe, freshness, cfg.Location, grid.WithLogger(log))
	weatherService := weather.NewService(newWeatherProvider(cfg, httpClient), freshness, log)

	// Scheduler that keeps the default views warm.
	sched := scheduler.New([]scheduler.Task{
		{Name: "dashboard", Run: func(ctx context.Context) error {
			_, err := gridService.Dashboard(ctx, gridService.DefaultRange())
			return err
		}},
		{Name: "forecast", Run: func(ctx context.Context) error {
			_, err := gridService.Forecast(ctx)
			return err
		}},
		{Name: "plant weather", Run: func(ctx context.Context) error {
			weatherService.Statuses(ctx, registry.Sites())
			return nil
		}},
	}, cfg.RefreshInterval, log)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "hellas-grid-monitor",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          2 * cfg.HTTPTimeout,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":        "ok",
			"service":       "hellas-grid-monitor",
			"cachedEntries": freshness.Len(),
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Grid:         gridService,
		Weather:      weatherService,
		Plants:       registry,
		ExportPrefix: cfg.ExportPrefix,
	})

	// Start server with graceful shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Infof("fiber server stopped: %v", err)
		}
	}()
	log.WithFields(logrus.Fields{
		"port":     cfg.Port,
		"area":     cfg.AreaCode,
		"weather":  cfg.WeatherProvider,
		"plants":   registry.Len(),
		"cacheTTL": cfg.CacheTTL,
	}).Info("hellas grid monitor started")

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Errorf("error during shutdown: %v", err)
	}
}

func loadRegistry(path string) (*plants.Registry, error) {
	if path == "" {
		return plants.Default()
	}
	return plants.LoadFile(path)
}

func newWeatherProvider(cfg *config.AppConfig, client *http.Client) weather.Provider {
	switch cfg.WeatherProvider {
	case config.ProviderOpenMeteo:
		return providers.NewOpenMeteoProvider(client, cfg.HTTPTimeout)
	case config.ProviderWeatherAPI:
		return providers.NewWeatherAPIProvider(client, cfg.WeatherAPIKey, cfg.HTTPTimeout)
	default:
		return providers.NewOpenWeatherProvider(client, cfg.OWMToken, cfg.HTTPTimeout)
	}
}
