package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/kitchencopilot/backend/internal/api/http"
	"github.com/kitchencopilot/backend/internal/config"
	"github.com/kitchencopilot/backend/internal/forecast"
	"github.com/kitchencopilot/backend/internal/insights"
	"github.com/kitchencopilot/backend/internal/model"
	"github.com/kitchencopilot/backend/internal/predict"
	"github.com/kitchencopilot/backend/internal/scheduler"
	"github.com/kitchencopilot/backend/internal/store"
	"github.com/kitchencopilot/backend/internal/weather"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Persistent prediction log; fall back to the in-memory store when the
	// database file cannot be opened.
	var st store.Store
	sqlite, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Printf("WARN: sqlite unavailable (%v), using in-memory store", err)
		st = store.NewMemoryStore()
	} else {
		defer sqlite.Close()
		st = sqlite
	}

	// Model artifact and regressor. A remote model service takes precedence
	// over local inference when configured.
	artifact, err := model.LoadArtifact(cfg.ModelPath)
	if err != nil {
		log.Fatalf("failed to load model artifact: %v", err)
	}
	var regressor model.Regressor
	if cfg.ModelServiceURL != "" {
		regressor = model.NewRemoteRegressor(cfg.ModelServiceURL)
	} else {
		regressor, err = model.NewLinear(artifact)
		if err != nil {
			log.Fatalf("failed to build regressor: %v", err)
		}
	}

	// Weather fetch with resilience (backoff + circuit breaker).
	meteo := weather.NewOpenMeteoClient(httpClient, cfg.Latitude, cfg.Longitude, cfg.Timezone)

	// The store's holiday table doubles as the builder's holiday source.
	builder := forecast.NewBuilder(meteo, st)
	engine := predict.NewEngine(artifact, regressor)

	// Unattended morning forecast.
	if cfg.AutoForecast {
		sched := scheduler.New(builder, engine, st, cfg.AutoForecastDays, cfg.DefaultCapacity)
		if err := sched.Start(); err != nil {
			log.Fatalf("failed to start scheduler: %v", err)
		}
		defer sched.Stop()
	}

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "kitchencopilot",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Builder:       builder,
		Engine:        engine,
		Store:         st,
		Insights:      insights.NewClient(cfg.AnthropicAPIKey),
		WeatherPinger: meteo,
		Tolerance:     cfg.TolerancePct,
	})

	// Start server with graceful shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
