// Package history persists comparison results and answers which products
// have been compared before.
package history

import (
	"context"
	"errors"

	"github.com/maltedev/store-price-compare/internal/models"
)

var ErrPersistence = errors.New("persistence failure")

// Gateway stores the price extremes of a product. Upserts are idempotent on
// (product name, cheapest store, most expensive store).
type Gateway interface {
	UpsertComparison(ctx context.Context, productName string, cheapest, mostExpensive models.NormalizedOffer) error
	ListHistory(ctx context.Context) ([]models.HistoryRecord, error)
	DistinctTrackedProducts(ctx context.Context) ([]string, error)
}
