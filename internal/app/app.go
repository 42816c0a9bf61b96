// Package app assembles the scraper pipeline from configuration. Both the
// HTTP server and the one-shot CLI build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/store-price-compare/internal/browser"
	"github.com/maltedev/store-price-compare/internal/config"
	"github.com/maltedev/store-price-compare/internal/consumer"
	"github.com/maltedev/store-price-compare/internal/database"
	"github.com/maltedev/store-price-compare/internal/engine"
	"github.com/maltedev/store-price-compare/internal/events"
	"github.com/maltedev/store-price-compare/internal/history"
	"github.com/maltedev/store-price-compare/internal/orchestrator"
	"github.com/maltedev/store-price-compare/internal/ratelimit"
	"github.com/maltedev/store-price-compare/internal/render"
	"github.com/maltedev/store-price-compare/internal/render/htmldoc"
	"github.com/maltedev/store-price-compare/internal/rodbrowser"
	"github.com/maltedev/store-price-compare/internal/scraper"
	"github.com/maltedev/store-price-compare/internal/storage"
	"github.com/maltedev/store-price-compare/internal/stores"
)

type Application struct {
	Config   *config.Config
	Registry *stores.Registry
	Gateway  history.Gateway
	Engine   *engine.Service
	// Relay is set only for the postgres driver.
	Relay *database.Relay

	redis   *redis.Client
	logger  *slog.Logger
	closers []func() error
}

// New builds the registry, renderer, scraper, orchestrator, gateway and
// engine. Call Close to release the browser and database handles.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Application{Config: cfg, logger: logger}

	registry, err := BuildRegistry(cfg.Scraper.StoresFile)
	if err != nil {
		return nil, err
	}
	a.Registry = registry

	renderer, closeRenderer, err := BuildRenderer(cfg.Browser)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeRenderer)

	if err := a.initRedis(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if err := a.initGateway(ctx); err != nil {
		a.Close()
		return nil, err
	}

	limiter := ratelimit.NewStoreLimiter(cfg.Scraper.RatePerSecond, cfg.Scraper.RateBurst, cfg.Scraper.RateJitter)

	svc := scraper.NewService(registry, renderer, limiter, scraper.Options{
		WaitTimeout:    cfg.Scraper.WaitTimeout,
		ScrollFraction: cfg.Scraper.ScrollFraction,
		ScrollSettle:   cfg.Scraper.ScrollSettle,
		MaxCards:       cfg.Scraper.MaxCards,
		Now:            time.Now,
	}, logger)

	orch := orchestrator.New(svc, orchestrator.Options{
		Workers:      cfg.Scraper.Workers,
		StoreTimeout: cfg.Scraper.StoreTimeout,
	}, logger)

	a.Engine = engine.NewService(orch, a.Gateway, engine.Options{
		PersistOnCompare: cfg.Engine.PersistOnCompare,
	}, logger)

	return a, nil
}

// BuildRegistry returns the built-in store table, extended or overridden by
// the YAML file at path when one is given.
func BuildRegistry(path string) (*stores.Registry, error) {
	registry := stores.NewDefault()
	if path == "" {
		return registry, nil
	}

	extra, err := stores.LoadFile(path)
	if err != nil {
		return nil, err
	}
	merged, err := registry.Merge(extra...)
	if err != nil {
		return nil, fmt.Errorf("failed to merge store table: %w", err)
	}
	return merged, nil
}

// BuildRenderer starts the configured page engine.
func BuildRenderer(cfg config.BrowserConfig) (render.Renderer, func() error, error) {
	switch cfg.Engine {
	case config.EngineHTTP:
		opts := htmldoc.DefaultOptions()
		opts.Timeout = cfg.Timeout
		if cfg.UserAgent != "" {
			opts.UserAgent = cfg.UserAgent
		}
		return htmldoc.New(opts), func() error { return nil }, nil

	case config.EngineRod:
		opts := rodbrowser.DefaultOptions()
		opts.Headless = cfg.Headless
		opts.Timeout = cfg.Timeout
		b, err := rodbrowser.New(opts)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil

	case config.EnginePlaywright:
		opts := browser.DefaultOptions()
		opts.Headless = cfg.Headless
		opts.Timeout = cfg.Timeout
		opts.MaxRetries = cfg.MaxRetries
		opts.Locale = cfg.Locale
		if cfg.UserAgent != "" {
			opts.UserAgent = cfg.UserAgent
		}
		b, err := browser.New(opts)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	}
	return nil, nil, fmt.Errorf("unsupported browser engine: %q", cfg.Engine)
}

func (a *Application) initRedis(ctx context.Context) error {
	if !a.Config.Redis.Enabled {
		return nil
	}

	a.redis = redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	a.closers = append(a.closers, a.redis.Close)

	if err := a.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	return nil
}

func (a *Application) initGateway(ctx context.Context) error {
	cfg := a.Config.Database

	switch cfg.Driver {
	case config.DriverFile:
		fs, err := storage.NewFileStore(cfg.Path)
		if err != nil {
			return err
		}
		a.Gateway = fs

	case config.DriverSQLite:
		gw, err := history.OpenSQLite(cfg.Path, a.logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, gw.Close)
		a.Gateway = gw

	case config.DriverPostgres:
		db, err := database.New(ctx, database.Config{
			Host:     cfg.Host,
			Port:     cfg.Port,
			User:     cfg.User,
			Password: cfg.Password,
			Database: cfg.Name,
			SSLMode:  cfg.SSLMode,
			MaxConns: cfg.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, func() error { db.Close(); return nil })

		outbox := database.NewOutboxRepository(db)
		publisher := events.NewPublisher(outbox, a.logger)
		a.Gateway = history.NewPostgresGateway(db, publisher, a.logger)

		var rc database.RedisClient
		if a.redis != nil {
			rc = a.redis
		}
		a.Relay = database.NewRelay(outbox, rc, a.logger, database.RelayConfig{})

	default:
		return fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}
	return nil
}

// StartRelay forwards outbox events to Redis until ctx is cancelled. It is a
// no-op unless postgres and redis are both enabled.
func (a *Application) StartRelay(ctx context.Context) {
	if a.Relay == nil || a.redis == nil {
		return
	}
	go func() {
		if err := a.Relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("relay stopped with error", "error", err)
		}
	}()
}

// StartConsumer runs comparisons requested on the configured Redis stream
// until ctx is cancelled. It is a no-op unless the consumer is enabled.
func (a *Application) StartConsumer(ctx context.Context, defaultStores []string) {
	if !a.Config.Consumer.Enabled || a.redis == nil {
		return
	}

	c := consumer.New(a.redis, a.Engine, consumer.Config{
		Stream:        a.Config.Consumer.Stream,
		Group:         a.Config.Consumer.Group,
		Consumer:      a.Config.Consumer.Name,
		DefaultStores: defaultStores,
	}, a.logger)

	go func() {
		if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("consumer stopped with error", "error", err)
		}
	}()
}

// Close releases resources in reverse order of acquisition.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
