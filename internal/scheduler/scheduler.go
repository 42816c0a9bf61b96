// Package scheduler re-runs comparisons for every tracked product on a fixed
// interval. At most one cycle runs at a time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/maltedev/store-price-compare/internal/history"
	"github.com/maltedev/store-price-compare/internal/models"
)

type State int32

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type Evaluator interface {
	Evaluate(ctx context.Context, productQuery string, storeIDs []string) (models.ComparisonResult, error)
}

type Options struct {
	Interval time.Duration
	// Products are tracked even before they appear in the history.
	Products []string
	Stores   []string
	Clock    Clock
}

type Status struct {
	State     string                  `json:"state"`
	Interval  string                  `json:"interval"`
	LastRunAt *time.Time              `json:"last_run_at,omitempty"`
	Stores    []string                `json:"stores"`
	Tracked   []models.TrackedProduct `json:"tracked_products"`
}

type Scheduler struct {
	state     atomic.Int32
	evaluator Evaluator
	gateway   history.Gateway
	clock     Clock
	opts      Options
	logger    *slog.Logger

	mu        sync.RWMutex
	lastRunAt *time.Time
	productAt map[string]time.Time

	cron *cron.Cron
}

func New(evaluator Evaluator, gateway history.Gateway, opts Options, logger *slog.Logger) (*Scheduler, error) {
	if len(opts.Stores) == 0 {
		return nil, errors.New("scheduler needs at least one store")
	}
	if opts.Interval <= 0 {
		opts.Interval = 24 * time.Hour
	}
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		evaluator: evaluator,
		gateway:   gateway,
		clock:     opts.Clock,
		opts:      opts,
		logger:    logger.With("component", "scheduler"),
		productAt: make(map[string]time.Time),
	}, nil
}

func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// RunCycle compares and persists every tracked product once. It returns false
// without doing anything when a cycle is already running.
func (s *Scheduler) RunCycle(ctx context.Context) bool {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		s.logger.Warn("previous cycle still running, skipping tick")
		return false
	}
	defer s.state.Store(int32(StateIdle))

	started := s.clock.Now()
	products := s.trackedProducts(ctx)
	s.logger.Info("scheduled cycle started", "products", len(products), "stores", s.opts.Stores)

	persisted := 0
	for _, product := range products {
		if ctx.Err() != nil {
			s.logger.Warn("scheduled cycle cancelled", "error", ctx.Err())
			break
		}
		if s.runProduct(ctx, product) {
			persisted++
		}
	}

	finished := s.clock.Now()
	s.mu.Lock()
	s.lastRunAt = &finished
	s.mu.Unlock()

	s.logger.Info("scheduled cycle finished",
		"products", len(products),
		"persisted", persisted,
		"duration", finished.Sub(started))
	return true
}

// runProduct isolates one product; a failure or panic never stops the cycle.
func (s *Scheduler) runProduct(ctx context.Context, product string) (persisted bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("product update panicked", "product", product, "panic", r)
			persisted = false
		}
		s.mu.Lock()
		s.productAt[product] = s.clock.Now()
		s.mu.Unlock()
	}()

	result, err := s.evaluator.Evaluate(ctx, product, s.opts.Stores)
	if err != nil {
		s.logger.Error("scheduled comparison failed", "product", product, "error", err)
		return false
	}
	if result.ValidOfferCount == 0 || result.Cheapest == nil || result.MostExpensive == nil {
		s.logger.Info("no offers found", "product", product)
		return false
	}

	if err := s.gateway.UpsertComparison(ctx, product, *result.Cheapest, *result.MostExpensive); err != nil {
		s.logger.Error("failed to persist scheduled comparison", "product", product, "error", err)
		return false
	}
	return true
}

// trackedProducts merges the configured products with those already in the
// history. Configured products come first.
func (s *Scheduler) trackedProducts(ctx context.Context) []string {
	seen := make(map[string]struct{})
	var products []string
	add := func(p string) {
		p = strings.TrimSpace(p)
		if p == "" {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		products = append(products, p)
	}

	for _, p := range s.opts.Products {
		add(p)
	}

	stored, err := s.gateway.DistinctTrackedProducts(ctx)
	if err != nil {
		s.logger.Error("failed to load tracked products", "error", err)
	}
	for _, p := range stored {
		add(p)
	}
	return products
}

// Start schedules RunCycle every Interval. The first cycle runs one interval
// after Start.
func (s *Scheduler) Start(ctx context.Context) error {
	adapter := cronLogger{logger: s.logger}
	s.cron = cron.New(cron.WithChain(cron.Recover(adapter)), cron.WithLogger(adapter))

	spec := fmt.Sprintf("@every %s", s.opts.Interval)
	if _, err := s.cron.AddFunc(spec, func() { s.RunCycle(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule update job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "interval", s.opts.Interval)
	return nil
}

// Stop stops the timer and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) Status(ctx context.Context) Status {
	products := s.trackedProducts(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()

	tracked := make([]models.TrackedProduct, 0, len(products))
	for _, p := range products {
		tp := models.TrackedProduct{ProductQuery: p}
		if at, ok := s.productAt[p]; ok {
			at := at
			tp.LastRunAt = &at
		}
		tracked = append(tracked, tp)
	}

	return Status{
		State:     s.State().String(),
		Interval:  s.opts.Interval.String(),
		LastRunAt: s.lastRunAt,
		Stores:    s.opts.Stores,
		Tracked:   tracked,
	}
}

// cronLogger routes cron's logging into slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
