package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/devhub/internal/auth"
	"github.com/geocoder89/devhub/internal/cache"
	"github.com/geocoder89/devhub/internal/config"
	"github.com/geocoder89/devhub/internal/db"
	"github.com/geocoder89/devhub/internal/github"
	httpx "github.com/geocoder89/devhub/internal/http"
	"github.com/geocoder89/devhub/internal/http/handlers"
	"github.com/geocoder89/devhub/internal/observability"
	"github.com/geocoder89/devhub/internal/repo/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const serviceName = "devhub-api"

func main() {
	// Load the config set up
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	if cfg.OTelEnabled {
		shutdownTracer, err := observability.InitTracer(context.Background(), serviceName, cfg.Env, cfg.OTelEndpoint)
		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}
		defer func() {
			ctx, cancel := config.WithTimeout(5 * time.Second)
			defer cancel()
			_ = shutdownTracer(ctx)
		}()
	}

	if cfg.AutoMigrate {
		if err := db.RunMigrations(cfg.DBURL, cfg.MigrationsDir, log); err != nil {
			log.Error("migrations failed", "err", err)
			os.Exit(1)
		}
	}

	pool, err := db.NewPool(cfg.DBURL, cfg.DBMaxConns)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	prom := observability.NewProm(prometheus.DefaultRegisterer)

	checks := map[string]handlers.Pinger{"postgres": pool.Ping}

	// profile reads are cached in redis when configured, in process otherwise
	var store cache.Store = cache.NewMemoryStore(cfg.ProfilesCacheTTL)
	if cfg.RedisAddr != "" {
		rs := cache.NewRedisStore(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.ProfilesCacheTTL,
		}, prom)
		defer func() { _ = rs.Close() }()

		store = rs
		checks["redis"] = rs.Ping
	}

	tokens, err := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		log.Error("token manager init failed", "err", err)
		os.Exit(1)
	}

	gh := github.NewProtectedClient(
		github.NewClient(github.Config{
			BaseURL: cfg.GitHubAPIBase,
			Token:   cfg.GitHubToken,
			Timeout: cfg.GitHubTimeout,
		}),
		github.BreakerConfig{Timeout: cfg.GitHubTimeout},
		prom,
	)

	jobsRepo := postgres.NewJobsRepo(pool, prom)

	router := httpx.NewRouter(log, httpx.Deps{
		Users:    postgres.NewUsersRepo(pool, prom),
		Profiles: postgres.NewProfilesRepo(pool, prom),
		Accounts: postgres.NewAccountsRepo(pool, prom, jobsRepo),
		Posts:    postgres.NewPostsRepo(pool, prom),
		GitHub:   gh,
		Cache:    store,
		Tokens:   tokens,
		Prom:     prom,
		Metrics:  promhttp.Handler(),
		Checks:   checks,
	}, httpx.Options{
		Env:            cfg.Env,
		ServiceName:    serviceName,
		CORSOrigins:    cfg.CORSOrigins,
		AuthRateLimit:  cfg.AuthRateLimit,
		AuthRateWindow: cfg.AuthRateWindow,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env)

		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")
	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
