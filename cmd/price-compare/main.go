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

	"github.com/maltedev/store-price-compare/internal/api"
	"github.com/maltedev/store-price-compare/internal/app"
	"github.com/maltedev/store-price-compare/internal/config"
	"github.com/maltedev/store-price-compare/internal/logger"
	"github.com/maltedev/store-price-compare/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Error("failed to release resources", "error", err)
		}
	}()

	application.StartRelay(ctx)
	application.StartConsumer(ctx, cfg.Scheduler.Stores)

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(application.Engine, application.Gateway, scheduler.Options{
			Interval: cfg.Scheduler.Interval,
			Products: cfg.Scheduler.Products,
			Stores:   cfg.Scheduler.Stores,
		}, log)
		if err != nil {
			log.Error("failed to create scheduler", "error", err)
			os.Exit(1)
		}
		if err := sched.Start(ctx); err != nil {
			log.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}
		defer sched.Stop()
	}

	handlers := api.NewHandlers(application.Engine, application.Registry, schedulerController(sched), outboxStats(application), log)

	routerOpts := api.DefaultRouterOptions()
	if cfg.Server.WriteTimeout > 0 {
		routerOpts.RequestTimeout = cfg.Server.WriteTimeout
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(handlers, routerOpts),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	}()

	log.Info("server starting",
		"port", cfg.Server.Port,
		"engine", cfg.Browser.Engine,
		"db_driver", cfg.Database.Driver,
		"workers", cfg.Scraper.Workers,
		"stores", application.Registry.IDs())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

// The handlers treat a nil interface as "disabled"; a typed nil pointer
// would not compare equal to nil.
func schedulerController(s *scheduler.Scheduler) api.SchedulerController {
	if s == nil {
		return nil
	}
	return s
}

func outboxStats(a *app.Application) api.OutboxStats {
	if a.Relay == nil {
		return nil
	}
	return a.Relay
}
