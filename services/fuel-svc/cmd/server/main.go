package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"fueltracker/gen/openapi"
	"fueltracker/pkg/audit"
	"fueltracker/pkg/cache"
	"fueltracker/pkg/config"
	"fueltracker/pkg/logger"
	"fueltracker/pkg/metrics"
	"fueltracker/pkg/passhash"
	"fueltracker/pkg/ratelimit"
	"fueltracker/pkg/server"
	"fueltracker/pkg/swagger"
	"fueltracker/pkg/telemetry"
	"fueltracker/services/fuel-svc/internal/analysis"
	"fueltracker/services/fuel-svc/internal/generator"
	"fueltracker/services/fuel-svc/internal/handlers"
	"fueltracker/services/fuel-svc/internal/live"
	edgemetrics "fueltracker/services/fuel-svc/internal/metrics"
	"fueltracker/services/fuel-svc/internal/middleware"
	"fueltracker/services/fuel-svc/internal/repository"
	"fueltracker/services/fuel-svc/internal/service"
)

const serviceName = "fuel-svc"

func main() {
	cfg, err := config.LoadWithServiceDefaults(serviceName, 8080)
	if err != nil {
		logger.Init("error")
		logger.Fatal("Failed to load config", "error", err)
	}

	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	logger.Log.Info("Starting Fuel Service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"database", cfg.Database.Driver,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Log.Error("Service stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	if cfg.Metrics.Enabled {
		metrics.InitMetrics(cfg.Metrics.Namespace, "")
		edgemetrics.Init()
	}

	repos, err := repository.NewRepositories(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	repos.StartPurge(ctx, time.Hour)

	if cfg.Metrics.Enabled {
		prometheus.MustRegister(metrics.NewStoreCollector(cfg.Metrics.Namespace, "", string(repos.Driver), repos.Records.Count))
	}

	auditLogger, err := audit.New(audit.FromConfig(cfg.Audit))
	if err != nil {
		_ = repos.Close()
		return err
	}
	audit.SetGlobal(auditLogger)

	statsOpts := []service.StatisticsOption{
		service.WithGoals(analysis.Goals{
			EfficiencyGoal: cfg.Stats.DefaultEfficiencyGoal,
			MonthlyBudget:  float64(cfg.Stats.DefaultMonthlyBudget),
		}),
	}

	var statsCache cache.Cache
	if cfg.Cache.Enabled {
		statsCache, err = cache.New(cache.FromConfig(&cfg.Cache))
		if err != nil {
			logger.Log.Warn("Statistics cache unavailable, computing on every request", "error", err)
		} else {
			statsOpts = append(statsOpts, service.WithCache(statsCache, cfg.Stats.CacheTTL))
		}
	}

	// hub создаётся до сервиса статистики: он же публикует снимки
	var hub *live.Hub
	var stats *service.StatisticsService
	if cfg.Live.Enabled {
		hub = live.NewHub(cfg.Live, func(ctx context.Context, userID string) (analysis.StatisticsData, error) {
			return stats.Statistics(ctx, userID, service.ListOptions{})
		})
		statsOpts = append(statsOpts, service.WithPublisher(hub))
	}
	stats = service.NewStatisticsService(repos.Records, statsOpts...)

	records := service.NewRecordService(repos.Records, stats, auditLogger)
	exchange := service.NewExchangeService(repos.Records, generator.NewRegistry(cfg.Export.PDF), stats, auditLogger, cfg.Import)
	tokens := passhash.NewJWTManager(&passhash.JWTConfig{
		SecretKey:          cfg.Auth.JWTSecret,
		AccessTokenExpiry:  cfg.Auth.AccessTokenTTL,
		RefreshTokenExpiry: cfg.Auth.RefreshTokenTTL,
		Issuer:             cfg.Auth.Issuer,
	})
	auth := service.NewAuthService(repos.Users, repos.Blacklist, tokens, auditLogger)

	mux := http.NewServeMux()
	routes := &handlers.Routes{
		Records:    handlers.NewRecordHandler(records, cfg.HTTP.MaxBodyBytes),
		Statistics: handlers.NewStatisticsHandler(stats),
		Exchange:   handlers.NewExchangeHandler(exchange, cfg.Import.MaxFileBytes),
	}
	if cfg.Auth.Enabled {
		routes.Auth = handlers.NewAuthHandler(auth)
	}
	if hub != nil {
		routes.Live = hub
	}
	routes.Register(mux)

	if cfg.Swagger.Enabled {
		swagger.RegisterRoutes(mux, swagger.FromConfig(cfg), openapi.MustGetSpec())
	}
	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, metrics.Handler())
	}

	limits, err := routeLimits(cfg.RateLimit)
	if err != nil {
		return err
	}

	authCfg := &middleware.AuthConfig{
		DefaultUserID:    cfg.Auth.DefaultUserID,
		PublicRoutes:     middleware.PublicRoutes(),
		QueryTokenRoutes: map[string]bool{handlers.LiveRoute: true},
	}
	if cfg.Auth.Enabled {
		authCfg.Authenticator = auth
	}

	var tracker *metrics.RequestTracker
	if cfg.Metrics.Enabled {
		tracker = metrics.NewRequestTracker(metrics.Get().HTTPRequestsInFlight)
	}

	handler := middleware.Chain(mux,
		middleware.Recovery(),
		middleware.RequestContext(mux),
		middleware.Logging(),
		telemetry.HTTPMiddleware,
		middleware.Metrics(tracker),
		middleware.CORS(cfg.HTTP.CORS),
		middleware.Auth(authCfg),
		middleware.RateLimit(&middleware.RateLimitConfig{
			Limits:        limits,
			ExcludeRoutes: map[string]bool{"GET /health": true, "GET /ready": true, "GET " + cfg.Metrics.Path: true},
		}),
	)

	srv := server.New(cfg, handler)
	mux.HandleFunc("GET /health", srv.HandleHealth)
	mux.HandleFunc("GET /ready", srv.HandleReady)
	srv.AddCheck("store", repos.Ping)

	// закрываются в обратном порядке: сначала клиенты ленты, база последней
	srv.OnShutdown("store", func(context.Context) error { return repos.Close() })
	srv.OnShutdown("audit", func(context.Context) error { return auditLogger.Close() })
	if statsCache != nil {
		srv.OnShutdown("cache", func(context.Context) error { return statsCache.Close() })
	}
	if limits != nil {
		srv.OnShutdown("rate_limit", func(context.Context) error { return limits.Close() })
	}
	if hub != nil {
		srv.OnShutdown("live", func(context.Context) error { return hub.Close() })
	}

	return srv.Run(ctx)
}

// routeLimits общий лимит плюс более строгий на вход и регистрацию
func routeLimits(cfg config.RateLimitConfig) (*ratelimit.RouteLimits, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	fallback, err := ratelimit.New(ratelimit.FromConfig(&cfg))
	if err != nil {
		return nil, err
	}
	limits := ratelimit.NewRouteLimits(fallback)

	strictCfg := ratelimit.FromConfig(&cfg)
	strictCfg.Requests = 10
	strictCfg.Window = time.Minute
	strictCfg.BurstSize = 0
	strict, err := ratelimit.New(strictCfg)
	if err != nil {
		_ = limits.Close()
		return nil, err
	}
	limits.Set("POST /api/v1/auth/login", strict)
	limits.Set("POST /api/v1/auth/register", strict)
	return limits, nil
}
