package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/maltedev/store-price-compare/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS price_comparisons (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	product_name TEXT NOT NULL,
	cheapest_name TEXT NOT NULL,
	cheapest_price TEXT NOT NULL,
	cheapest_store TEXT NOT NULL,
	most_expensive_name TEXT NOT NULL,
	most_expensive_price TEXT NOT NULL,
	most_expensive_store TEXT NOT NULL,
	recorded_at TEXT NOT NULL,
	UNIQUE (product_name, cheapest_store, most_expensive_store)
);`

// timestamps are stored as fixed-width UTC text so they sort lexically
const sqliteTimeLayout = "2006-01-02 15:04:05.000000000"

// SQLiteGateway is a single-file gateway for local runs.
type SQLiteGateway struct {
	db     *sql.DB
	now    func() time.Time
	logger *slog.Logger
}

func OpenSQLite(path string, logger *slog.Logger) (*SQLiteGateway, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serializes writes
	db.SetMaxOpenConns(1)

	if logger == nil {
		logger = slog.Default()
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteGateway{
		db:     db,
		now:    time.Now,
		logger: logger.With("component", "history_sqlite"),
	}, nil
}

func (g *SQLiteGateway) Close() error {
	return g.db.Close()
}

func (g *SQLiteGateway) UpsertComparison(ctx context.Context, productName string, cheapest, mostExpensive models.NormalizedOffer) error {
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO price_comparisons (
			product_name, cheapest_name, cheapest_price, cheapest_store,
			most_expensive_name, most_expensive_price, most_expensive_store, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(product_name, cheapest_store, most_expensive_store) DO UPDATE SET
			cheapest_name = excluded.cheapest_name,
			cheapest_price = excluded.cheapest_price,
			most_expensive_name = excluded.most_expensive_name,
			most_expensive_price = excluded.most_expensive_price,
			recorded_at = excluded.recorded_at;`,
		productName,
		cheapest.ProductName, cheapest.Price.String(), cheapest.StoreID,
		mostExpensive.ProductName, mostExpensive.Price.String(), mostExpensive.StoreID,
		g.now().UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to upsert comparison: %v", ErrPersistence, err)
	}
	return nil
}

func (g *SQLiteGateway) ListHistory(ctx context.Context) ([]models.HistoryRecord, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT product_name, cheapest_name, cheapest_price, cheapest_store,
			most_expensive_name, most_expensive_price, most_expensive_store, recorded_at
		FROM price_comparisons
		ORDER BY recorded_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list history: %v", ErrPersistence, err)
	}
	defer rows.Close()

	var records []models.HistoryRecord
	for rows.Next() {
		var (
			rec                           models.HistoryRecord
			cheapest, expensive, recorded string
		)
		if err := rows.Scan(
			&rec.ProductName, &rec.CheapestName, &cheapest, &rec.CheapestStore,
			&rec.MostExpensiveName, &expensive, &rec.MostExpensiveStore, &recorded,
		); err != nil {
			return nil, fmt.Errorf("%w: failed to scan history row: %v", ErrPersistence, err)
		}
		if rec.Timestamp, err = time.Parse(sqliteTimeLayout, recorded); err != nil {
			return nil, fmt.Errorf("%w: invalid stored timestamp %q: %v", ErrPersistence, recorded, err)
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

func (g *SQLiteGateway) DistinctTrackedProducts(ctx context.Context) ([]string, error) {
	rows, err := g.db.QueryContext(ctx, `SELECT DISTINCT product_name FROM price_comparisons ORDER BY product_name`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list products: %v", ErrPersistence, err)
	}
	defer rows.Close()

	var products []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: failed to scan product: %v", ErrPersistence, err)
		}
		products = append(products, name)
	}
	return products, rows.Err()
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid stored price %q: %v", ErrPersistence, s, err)
	}
	return d, nil
}
