package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	apihttp "rfxstream/catalogservice/internal/api/http"
	"rfxstream/catalogservice/internal/app"
	"rfxstream/catalogservice/internal/catalog"
	"rfxstream/catalogservice/internal/library"
	"rfxstream/catalogservice/internal/metrics"
	"rfxstream/catalogservice/internal/telemetry"
)

const serviceName = "catalog"

var version = "dev"

func main() {
	if err := app.LoadDotEnv(); err != nil {
		slog.Warn("dotenv load failed", slog.String("error", err.Error()))
	}
	cfg := app.LoadConfig()
	logger := app.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), serviceName, version)
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", serviceName),
		slog.String("version", version),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.Duration("upstreamTimeout", cfg.UpstreamTimeout),
		slog.Int("retryAttempts", cfg.RetryAttempts),
		slog.Int("maxConcurrent", cfg.MaxConcurrent),
		slog.String("sansekaiBaseURL", cfg.SansekaiBaseURL),
		slog.String("sapimuBaseURL", cfg.SapimuBaseURL),
		slog.Bool("hasSapimuToken", cfg.SapimuToken != ""),
		slog.String("catalogFile", cfg.CatalogFile),
		slog.Bool("hasRedis", strings.TrimSpace(cfg.RedisURL) != ""),
		slog.Duration("cacheTTL", cfg.CacheTTL),
		slog.String("libraryPath", cfg.LibraryPath),
	)

	providers, err := app.BuildProviders(cfg)
	if err != nil {
		logger.Error("provider setup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	endpoints, err := catalog.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		logger.Error("endpoint catalog invalid", slog.String("error", err.Error()))
		os.Exit(1)
	}
	catalogService, err := catalog.NewService(providers, cfg.UpstreamTimeout, buildServiceOptions(cfg, endpoints, logger)...)
	if err != nil {
		logger.Error("catalog service setup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	serverOpts := []apihttp.ServerOption{
		apihttp.WithLogger(logger),
		apihttp.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		apihttp.WithProxyTimeout(cfg.PassThroughLimit),
	}
	store, err := library.Open(library.NewFilePersister(nil, cfg.LibraryPath))
	if err != nil {
		logger.Warn("library unavailable, /library routes disabled", slog.String("error", err.Error()))
	} else {
		serverOpts = append(serverOpts, apihttp.WithLibrary(store))
	}

	handler := apihttp.NewServer(catalogService, serverOpts...).Handler()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// list streams stay open until every endpoint settles
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	catalogService.StartBackground(rootCtx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("catalog service started", slog.String("addr", cfg.HTTPAddr))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("catalog service stopped")
}

func buildServiceOptions(cfg app.Config, endpoints *catalog.Catalog, logger *slog.Logger) []catalog.ServiceOption {
	opts := app.ServiceOptions(cfg, endpoints)
	redisURL := strings.TrimSpace(cfg.RedisURL)
	if cfg.CacheDisabled || redisURL == "" {
		return opts
	}
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("invalid redis url, using in-memory cache only", slog.String("error", err.Error()))
		return opts
	}
	redisClient := redis.NewClient(redisOpts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not reachable, using in-memory cache only", slog.String("error", err.Error()))
		return opts
	}
	logger.Info("redis connected", slog.String("addr", redisOpts.Addr))
	return append(opts, catalog.WithRedisCache(catalog.NewRedisCacheBackend(redisClient)))
}
