package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/userhub/internal/application"
	"github.com/geocoder89/userhub/internal/config"
	"github.com/geocoder89/userhub/internal/db"
	"github.com/geocoder89/userhub/internal/domain/user"
	httpx "github.com/geocoder89/userhub/internal/http"
	"github.com/geocoder89/userhub/internal/http/middlewares"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/geocoder89/userhub/internal/redisclient"
	"github.com/geocoder89/userhub/internal/repo/memory"
	"github.com/geocoder89/userhub/internal/repo/postgres"
	"github.com/geocoder89/userhub/internal/security"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// a missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)

	ctx := context.Background()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.ServiceName, cfg.OTLPEndpoint, cfg.Env)
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	// storage
	var (
		store      user.Store
		ping       func(ctx context.Context) error
		closeStore func()
	)

	switch cfg.Storage {
	case "memory":
		log.Warn("using in-memory storage, data is lost on restart")
		store = memory.NewUsersRepo()
		closeStore = func() {}

	default:
		dbCtx, cancel := config.WithTimeout(10 * time.Second)
		pool, err := db.NewPool(dbCtx, cfg.DBURL, db.PoolOptions{
			MaxConns: int32(cfg.DBMaxConns),
			MinConns: int32(cfg.DBMinConns),
		})
		cancel()
		if err != nil {
			log.Error("database connection failed", "err", err)
			os.Exit(1)
		}

		schemaCtx, cancel := config.WithTimeout(10 * time.Second)
		err = db.EnsureSchema(schemaCtx, pool)
		cancel()
		if err != nil {
			log.Error("schema bootstrap failed", "err", err)
			os.Exit(1)
		}

		store = postgres.NewUsersRepo(pool, prom)
		ping = pool.Ping
		closeStore = pool.Close
	}
	defer closeStore()

	svc := application.NewUserService(store, security.NewHasher(cfg.BcryptCost), log, application.WithMetrics(prom))

	seedCtx, cancel := config.WithTimeout(10 * time.Second)
	if err := db.EnsureAdminUser(seedCtx, svc, cfg); err != nil {
		log.Error("admin bootstrap failed", "err", err)
	}
	cancel()

	// rate limiter backend
	var scripter middlewares.Scripter
	if cfg.RedisAddr != "" {
		rc := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rc.Close()

		pingCtx, cancel := config.WithTimeout(2 * time.Second)
		if err := rc.Ping(pingCtx); err != nil {
			log.Warn("redis unreachable, rate limiter will fail open until it recovers", "addr", cfg.RedisAddr, "err", err)
		}
		cancel()

		scripter = rc.Raw()
	}

	global, create := httpx.NewLimiters(cfg, scripter)

	router := httpx.NewRouter(httpx.RouterDeps{
		Log:           log,
		Config:        cfg,
		Users:         svc,
		Ping:          ping,
		Prom:          prom,
		Gatherer:      reg,
		GlobalLimiter: global,
		CreateLimiter: create,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "storage", cfg.Storage, "docs", cfg.PublicURL+"/api/docs")
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

		if err := shutdownTracer(ctx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
