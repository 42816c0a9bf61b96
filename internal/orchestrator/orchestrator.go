// Package orchestrator fans a product query out to several stores and
// collects their offers in request order.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/maltedev/store-price-compare/internal/models"
	"github.com/maltedev/store-price-compare/internal/scraper"
	"github.com/maltedev/store-price-compare/internal/stores"
)

var ErrNoStoresRequested = errors.New("at least one store required")

type Options struct {
	Workers      int
	StoreTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		Workers:      4,
		StoreTimeout: 45 * time.Second,
	}
}

type Orchestrator struct {
	scraper scraper.StoreScraper
	opts    Options
	logger  *slog.Logger
}

func New(s scraper.StoreScraper, opts Options, logger *slog.Logger) *Orchestrator {
	defaults := DefaultOptions()
	if opts.Workers < 1 {
		opts.Workers = defaults.Workers
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaults.StoreTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		scraper: s,
		opts:    opts,
		logger:  logger.With("component", "orchestrator"),
	}
}

type storeResult struct {
	offers []models.NormalizedOffer
	err    error
}

// Orchestrate scrapes every requested store, at most Workers at a time. A
// failing, unknown or slow store contributes no offers; it never fails the
// whole call. A slot is held until the underlying scrape returns, even when
// its result was abandoned on timeout.
func (o *Orchestrator) Orchestrate(ctx context.Context, productQuery string, storeIDs []string) ([]models.NormalizedOffer, error) {
	if len(storeIDs) == 0 {
		return nil, ErrNoStoresRequested
	}

	results := make([][]models.NormalizedOffer, len(storeIDs))

	slots := semaphore.NewWeighted(int64(o.opts.Workers))

	var g errgroup.Group
	for i, storeID := range storeIDs {
		i, storeID := i, storeID
		g.Go(func() error {
			if err := slots.Acquire(ctx, 1); err != nil {
				o.logger.Warn("store scrape skipped", "store", storeID, "error", err)
				return nil
			}
			results[i] = o.scrapeStore(ctx, slots, storeID, productQuery)
			return nil
		})
	}
	_ = g.Wait()

	var all []models.NormalizedOffer
	for _, offers := range results {
		all = append(all, offers...)
	}

	o.logger.Info("scrape finished",
		"query", productQuery,
		"stores", len(storeIDs),
		"offers", len(all))

	return all, nil
}

// scrapeStore runs a single store under its own deadline. If the store does
// not return in time its result is abandoned. The slot is released by the
// scrape goroutine itself.
func (o *Orchestrator) scrapeStore(ctx context.Context, slots *semaphore.Weighted, storeID, productQuery string) []models.NormalizedOffer {
	storeCtx, cancel := context.WithTimeout(ctx, o.opts.StoreTimeout)
	defer cancel()

	done := make(chan storeResult, 1)
	go func() {
		defer slots.Release(1)
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("store scrape panicked", "store", storeID, "panic", r)
				done <- storeResult{}
			}
		}()
		offers, err := o.scraper.Scrape(storeCtx, storeID, productQuery)
		done <- storeResult{offers: offers, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, stores.ErrStoreNotFound) {
				o.logger.Warn("unknown store requested", "store", storeID)
			} else {
				o.logger.Error("store scrape failed", "store", storeID, "error", r.err)
			}
			return nil
		}
		return r.offers
	case <-storeCtx.Done():
		o.logger.Warn("store scrape timed out",
			"store", storeID,
			"timeout", o.opts.StoreTimeout,
			"error", storeCtx.Err())
		return nil
	}
}
