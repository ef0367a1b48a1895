// Package api provides the HTTP API for the licensee manager.
package api

import (
	"github.com/MacJediWizard/licensee-manager/internal/api/handlers"
	"github.com/MacJediWizard/licensee-manager/internal/api/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Config holds configuration for the API router.
type Config struct {
	// RateLimitRequests is the number of requests allowed per period.
	RateLimitRequests int64
	// RateLimitPeriod is the duration string for rate limiting (e.g. "1m", "1h").
	RateLimitPeriod string
	// RateLimitRedis shares limiter counters across replicas (optional).
	RateLimitRedis *redis.Client
	// Gatherer backs the /metrics endpoint. Nil disables it.
	Gatherer prometheus.Gatherer
}

// DefaultConfig returns a Config with sensible defaults for development.
func DefaultConfig() Config {
	return Config{
		RateLimitRequests: 100,
		RateLimitPeriod:   "1m",
	}
}

// Router wraps a Gin engine with configured middleware and routes.
type Router struct {
	Engine *gin.Engine
	logger zerolog.Logger
}

// NewRouter creates a new Router with the given dependencies. cache may be nil.
func NewRouter(
	cfg Config,
	service handlers.LicensingService,
	database handlers.DatabaseHealthChecker,
	cache handlers.CacheHealthChecker,
	logger zerolog.Logger,
) (*Router, error) {
	r := &Router{
		Engine: gin.New(),
		logger: logger.With().Str("component", "router").Logger(),
	}

	r.Engine.Use(gin.Recovery())
	r.Engine.Use(middleware.RequestLogger(logger))

	// Health and metrics stay outside the rate limit so monitors never see 429.
	healthHandler := handlers.NewHealthHandler(database, cache, logger)
	healthHandler.RegisterPublicRoutes(r.Engine)

	if cfg.Gatherer != nil {
		r.Engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	rateLimiter, err := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitPeriod, cfg.RateLimitRedis)
	if err != nil {
		return nil, err
	}

	apiV1 := r.Engine.Group("/api/v1")
	apiV1.Use(rateLimiter)

	licensingHandler := handlers.NewLicensingHandler(service, logger)
	licensingHandler.RegisterRoutes(apiV1)

	r.logger.Info().Msg("API router initialized")
	return r, nil
}
