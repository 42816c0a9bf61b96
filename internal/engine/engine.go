// Package engine exposes the price comparison operations used by the HTTP
// API, the CLI and the scheduler.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/maltedev/store-price-compare/internal/aggregate"
	"github.com/maltedev/store-price-compare/internal/history"
	"github.com/maltedev/store-price-compare/internal/models"
	"github.com/maltedev/store-price-compare/internal/orchestrator"
)

var (
	ErrProductNameRequired = errors.New("product name required")
	ErrNoStoresRequested   = orchestrator.ErrNoStoresRequested
	// ErrNoOffersFound is not returned by Compare. Its text is the body the
	// API sends for an empty comparison.
	ErrNoOffersFound = errors.New("No products found")
)

type Orchestrator interface {
	Orchestrate(ctx context.Context, productQuery string, storeIDs []string) ([]models.NormalizedOffer, error)
}

type Options struct {
	// PersistOnCompare stores the extremes of every successful Compare call,
	// which also makes the product tracked by the scheduler.
	PersistOnCompare bool
}

type Service struct {
	orchestrator Orchestrator
	gateway      history.Gateway
	opts         Options
	logger       *slog.Logger
}

// NewService wires the engine. gateway may be nil, in which case nothing is
// persisted and History returns no rows.
func NewService(o Orchestrator, gateway history.Gateway, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		orchestrator: o,
		gateway:      gateway,
		opts:         opts,
		logger:       logger.With("component", "engine"),
	}
}

// Compare scrapes the requested stores and returns the price extremes. An
// empty result is not an error. Persistence failures are logged only.
func (s *Service) Compare(ctx context.Context, productQuery string, storeIDs []string) (models.ComparisonResult, error) {
	result, err := s.Evaluate(ctx, productQuery, storeIDs)
	if err != nil {
		return models.ComparisonResult{}, err
	}

	if s.opts.PersistOnCompare {
		s.Persist(ctx, result)
	}
	return result, nil
}

// Evaluate is Compare without persistence.
func (s *Service) Evaluate(ctx context.Context, productQuery string, storeIDs []string) (models.ComparisonResult, error) {
	query := strings.TrimSpace(productQuery)
	if query == "" {
		return models.ComparisonResult{}, ErrProductNameRequired
	}
	if len(storeIDs) == 0 {
		return models.ComparisonResult{}, ErrNoStoresRequested
	}

	offers, err := s.orchestrator.Orchestrate(ctx, query, storeIDs)
	if err != nil {
		return models.ComparisonResult{}, err
	}

	result := aggregate.Aggregate(query, offers)
	s.logger.Info("comparison finished",
		"query", query,
		"stores", storeIDs,
		"offers", result.ValidOfferCount)
	return result, nil
}

// Persist upserts the extremes of result. It reports whether a row was
// written; failures are logged and swallowed.
func (s *Service) Persist(ctx context.Context, result models.ComparisonResult) bool {
	if s.gateway == nil || result.ValidOfferCount == 0 || result.Cheapest == nil || result.MostExpensive == nil {
		return false
	}

	if err := s.gateway.UpsertComparison(ctx, result.ProductQuery, *result.Cheapest, *result.MostExpensive); err != nil {
		s.logger.Error("failed to persist comparison",
			"query", result.ProductQuery,
			"error", err)
		return false
	}
	return true
}

func (s *Service) History(ctx context.Context) ([]models.HistoryRecord, error) {
	if s.gateway == nil {
		return []models.HistoryRecord{}, nil
	}
	return s.gateway.ListHistory(ctx)
}
