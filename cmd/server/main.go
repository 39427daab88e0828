package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "usersapi/docs" // swagger docs

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"usersapi/internal/cache"
	"usersapi/internal/config"
	"usersapi/internal/db"
	"usersapi/internal/handler"
	"usersapi/internal/observability"
	"usersapi/internal/repository"
	"usersapi/internal/router"
	"usersapi/internal/service"
)

// @title Users API
// @version 1.0
// @description CRUD API for users with filterable listing and a read-through cache.
// @host localhost:8080
// @BasePath /
// @schemes http
func main() {
	cfg := config.Load()
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled() {
		shutdownTracer, err := observability.InitTracer(ctx, cfg)
		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracer(sctx)
		}()
	}

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Error("database init failed", "driver", cfg.DBDriver, "err", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close(gormDB) }()

	if cfg.ResetDB {
		log.Warn("RESET_DB=true detected, dropping all tables")
		if err := db.Reset(gormDB); err != nil {
			log.Warn("drop tables failed (may not exist)", "err", err)
		}
	}

	if err := db.Migrate(gormDB); err != nil {
		log.Error("migration failed", "err", err)
		os.Exit(1)
	}

	store, err := cache.NewStore(cache.Options{
		Driver:        cfg.CacheDriver,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPass,
		RedisDB:       cfg.RedisDB,
		Namespace:     cfg.CachePrefix,
		TTL:           cfg.CacheTTL,
	})
	if err != nil {
		log.Error("cache init failed", "driver", cfg.CacheDriver, "err", err)
		os.Exit(1)
	}
	if closer, ok := store.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}
	// An unreachable cache only degrades list latency.
	if p, ok := store.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			log.Warn("cache unreachable, serving from database", "err", err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	// Initialize repositories
	userRepo := repository.NewCachedUserRepository(
		repository.NewUserRepository(gormDB, repository.WithQueryObserver(prom)),
		store,
		repository.CacheConfig{
			TTL:      cfg.CacheTTL,
			Logger:   log,
			Recorder: prom,
		},
	)

	// Initialize services and handlers
	userService := service.NewUserService(userRepo)
	userHandler := handler.NewUserHandler(userService, log)
	healthHandler := handler.NewHealthHandler(map[string]func(ctx context.Context) error{
		"database": func(ctx context.Context) error { return db.Ping(ctx, gormDB) },
	})

	e := echo.New()
	e.HideBanner = true
	router.Register(e, cfg, log, &router.Metrics{Prom: prom, Gatherer: reg}, userHandler, healthHandler)

	log.Info("swagger documentation available", "url", swaggerURL(cfg))

	go func() {
		addr := ":" + cfg.ServerPort
		log.Info("server starting", "addr", addr, "db_driver", cfg.DBDriver, "cache_driver", cfg.CacheDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server start failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}
	log.Info("server stopped")
}

type pinger interface {
	Ping(ctx context.Context) error
}

func swaggerURL(cfg *config.Config) string {
	host := cfg.SwaggerHost
	if host == "" {
		host = "localhost:" + cfg.ServerPort
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return host + "/api-docs"
}
