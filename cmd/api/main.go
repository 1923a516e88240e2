package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/vtu_client/internal/config"
	"github.com/congo-pay/vtu_client/internal/gateway"
	"github.com/congo-pay/vtu_client/internal/infra"
	"github.com/congo-pay/vtu_client/internal/logging"
	"github.com/congo-pay/vtu_client/internal/notification"
	"github.com/congo-pay/vtu_client/internal/routes"
	"github.com/congo-pay/vtu_client/internal/server"
	"github.com/congo-pay/vtu_client/internal/session"
	"github.com/congo-pay/vtu_client/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.IsDev())

	ctx := context.Background()

	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	}

	store, err := storage.Open(ctx, cfg, storage.Backends{DB: db, Cache: cache})
	if err != nil {
		logger.Error("open session store", "error", err)
		os.Exit(1)
	}

	gw := gateway.NewClient(gateway.Config{
		BaseURL:         cfg.APIBaseURL,
		Timeout:         cfg.APITimeout,
		RetryMaxElapsed: cfg.RetryMaxElapsed,
	}, logger.With("component", "gateway"))

	opts := []session.Option{
		session.WithLogger(logger.With("component", "session")),
		session.WithNotifier(notification.NewLoggerNotifier(logger)),
		session.WithLockOnResume(cfg.LockOnResume),
	}
	if cfg.DiscardStale {
		opts = append(opts, session.WithStaleResponseDiscard())
	}
	sessions := session.NewManager(store, gw, opts...)
	sessions.Hydrate(ctx)

	srv, err := server.New(routes.Deps{
		Cfg:      cfg,
		DB:       db,
		Cache:    cache,
		Store:    store,
		Sessions: sessions,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
