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

	"github.com/edp1096/dcop/internal/cache"
	"github.com/edp1096/dcop/internal/config"
	"github.com/edp1096/dcop/internal/logger"
	"github.com/edp1096/dcop/internal/metrics"
	"github.com/edp1096/dcop/internal/server"
)

// main wires the solver behind HTTP and keeps the server lifecycle small.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dcop server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	log, err := logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	m := metrics.New()

	var (
		store  cache.Cache = cache.NewMemory(1024)
		health func(context.Context) error
	)
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err := cache.NewRedis(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			return err
		}
		defer rdb.Close()
		store = rdb
		health = rdb.Health
		log.Info("using redis result cache")
	}

	handler := server.New(cfg.Solver, store, cfg.CacheTTL, log, m)
	router := server.NewRouter(handler, m, health)
	srv := server.NewHTTPServer(cfg.Addr, router)

	log.Info("starting dcop server",
		"addr", cfg.Addr,
		"backend", cfg.Solver.Backend.String(),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
