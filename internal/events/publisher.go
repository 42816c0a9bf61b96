package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/maltedev/store-price-compare/internal/database"
	"github.com/maltedev/store-price-compare/internal/models"
)

type EventType string

const (
	// EventTypePriceComparisonUpdated is written whenever a comparison row is
	// inserted or refreshed.
	EventTypePriceComparisonUpdated EventType = "PRICE_COMPARISON_UPDATED"

	AggregateTypePriceComparison = "price_comparison"
)

type OfferSummary struct {
	Store    string          `json:"store"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	URL      string          `json:"url,omitempty"`
}

type PriceComparisonUpdatedPayload struct {
	EventID       string       `json:"event_id"`
	EventType     string       `json:"event_type"`
	Timestamp     time.Time    `json:"timestamp"`
	ProductName   string       `json:"product_name"`
	Cheapest      OfferSummary `json:"cheapest"`
	MostExpensive OfferSummary `json:"most_expensive"`
	Source        string       `json:"source"`
}

func NewPriceComparisonUpdated(productName string, cheapest, mostExpensive models.NormalizedOffer, at time.Time) *PriceComparisonUpdatedPayload {
	return &PriceComparisonUpdatedPayload{
		ProductName:   productName,
		Timestamp:     at,
		Cheapest:      summarize(cheapest),
		MostExpensive: summarize(mostExpensive),
	}
}

func summarize(o models.NormalizedOffer) OfferSummary {
	return OfferSummary{
		Store:    o.StoreID,
		Name:     o.ProductName,
		Price:    o.Price,
		Currency: o.Currency,
		URL:      o.SourceURL,
	}
}

type OutboxInserter interface {
	InsertWithTx(ctx context.Context, tx pgx.Tx, event *database.OutboxEvent) error
}

// Publisher writes events to the transactional outbox. The relay delivers
// them to Redis afterwards.
type Publisher struct {
	outbox OutboxInserter
	logger *slog.Logger
}

func NewPublisher(outbox OutboxInserter, logger *slog.Logger) *Publisher {
	return &Publisher{
		outbox: outbox,
		logger: logger.With("component", "event_publisher"),
	}
}

// PublishPriceComparisonUpdated must be called inside the transaction that
// writes the comparison row.
func (p *Publisher) PublishPriceComparisonUpdated(ctx context.Context, tx pgx.Tx, payload *PriceComparisonUpdatedPayload) error {
	if payload.EventID == "" {
		payload.EventID = uuid.New().String()
	}
	if payload.EventType == "" {
		payload.EventType = string(EventTypePriceComparisonUpdated)
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now()
	}
	if payload.Source == "" {
		payload.Source = "scraper"
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	event := &database.OutboxEvent{
		AggregateType: AggregateTypePriceComparison,
		AggregateID:   payload.ProductName,
		EventType:     payload.EventType,
		Payload:       data,
		TargetStream:  database.DefaultStream,
	}
	if err := p.outbox.InsertWithTx(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("event written to outbox",
		"event_id", payload.EventID,
		"event_type", payload.EventType,
		"product", payload.ProductName)

	return nil
}
