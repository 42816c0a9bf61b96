package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/maltedev/store-price-compare/internal/database"
	"github.com/maltedev/store-price-compare/internal/events"
	"github.com/maltedev/store-price-compare/internal/models"
)

// PostgresGateway stores comparisons in Postgres and writes a
// PRICE_COMPARISON_UPDATED outbox event in the same transaction.
type PostgresGateway struct {
	db        *database.DB
	publisher *events.Publisher
	now       func() time.Time
	logger    *slog.Logger
}

func NewPostgresGateway(db *database.DB, publisher *events.Publisher, logger *slog.Logger) *PostgresGateway {
	return &PostgresGateway{
		db:        db,
		publisher: publisher,
		now:       time.Now,
		logger:    logger.With("component", "history_postgres"),
	}
}

const upsertComparisonSQL = `
	INSERT INTO price_comparisons (
		product_name, cheapest_name, cheapest_price, cheapest_store,
		most_expensive_name, most_expensive_price, most_expensive_store, recorded_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (product_name, cheapest_store, most_expensive_store) DO UPDATE SET
		cheapest_name = EXCLUDED.cheapest_name,
		cheapest_price = EXCLUDED.cheapest_price,
		most_expensive_name = EXCLUDED.most_expensive_name,
		most_expensive_price = EXCLUDED.most_expensive_price,
		recorded_at = EXCLUDED.recorded_at`

func (g *PostgresGateway) UpsertComparison(ctx context.Context, productName string, cheapest, mostExpensive models.NormalizedOffer) error {
	at := g.now().UTC()

	err := g.db.Transaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertComparisonSQL,
			productName,
			cheapest.ProductName, cheapest.Price.String(), cheapest.StoreID,
			mostExpensive.ProductName, mostExpensive.Price.String(), mostExpensive.StoreID,
			at,
		); err != nil {
			return fmt.Errorf("failed to upsert comparison: %w", err)
		}

		if g.publisher == nil {
			return nil
		}
		payload := events.NewPriceComparisonUpdated(productName, cheapest, mostExpensive, at)
		return g.publisher.PublishPriceComparisonUpdated(ctx, tx, payload)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (g *PostgresGateway) ListHistory(ctx context.Context) ([]models.HistoryRecord, error) {
	rows, err := g.db.Query(ctx, `
		SELECT product_name, cheapest_name, cheapest_price::text, cheapest_store,
			most_expensive_name, most_expensive_price::text, most_expensive_store, recorded_at
		FROM price_comparisons
		ORDER BY recorded_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list history: %v", ErrPersistence, err)
	}
	defer rows.Close()

	var records []models.HistoryRecord
	for rows.Next() {
		var (
			rec                 models.HistoryRecord
			cheapest, expensive string
		)
		if err := rows.Scan(
			&rec.ProductName, &rec.CheapestName, &cheapest, &rec.CheapestStore,
			&rec.MostExpensiveName, &expensive, &rec.MostExpensiveStore, &rec.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("%w: failed to scan history row: %v", ErrPersistence, err)
		}
		if rec.CheapestPrice, err = parseDecimal(cheapest); err != nil {
			return nil, err
		}
		if rec.MostExpensivePrice, err = parseDecimal(expensive); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating rows: %v", ErrPersistence, err)
	}
	return records, nil
}

func (g *PostgresGateway) DistinctTrackedProducts(ctx context.Context) ([]string, error) {
	rows, err := g.db.Query(ctx, `SELECT DISTINCT product_name FROM price_comparisons ORDER BY product_name`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list products: %v", ErrPersistence, err)
	}
	defer rows.Close()

	products, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%w: failed to scan products: %v", ErrPersistence, err)
	}
	return products, nil
}
