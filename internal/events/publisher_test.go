package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/store-price-compare/internal/database"
	"github.com/maltedev/store-price-compare/internal/models"
)

type MockOutbox struct {
	mock.Mock
}

func (m *MockOutbox) InsertWithTx(ctx context.Context, tx pgx.Tx, event *database.OutboxEvent) error {
	return m.Called(ctx, tx, event).Error(0)
}

func testPayload() *PriceComparisonUpdatedPayload {
	return NewPriceComparisonUpdated("milk",
		models.NormalizedOffer{StoreID: "migros", ProductName: "Süt", Price: decimal.RequireFromString("24.95"), Currency: "TRY"},
		models.NormalizedOffer{StoreID: "amazon", ProductName: "Organic Süt", Price: decimal.RequireFromString("89.90"), Currency: "TRY"},
		time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
}

func TestPublisher_PublishPriceComparisonUpdated(t *testing.T) {
	ctx := context.Background()

	t.Run("writes outbox event", func(t *testing.T) {
		outbox := new(MockOutbox)
		p := NewPublisher(outbox, slog.Default())

		outbox.On("InsertWithTx", ctx, mock.Anything, mock.MatchedBy(func(e *database.OutboxEvent) bool {
			var payload PriceComparisonUpdatedPayload
			if err := json.Unmarshal(e.Payload, &payload); err != nil {
				return false
			}
			return e.AggregateType == AggregateTypePriceComparison &&
				e.AggregateID == "milk" &&
				e.EventType == string(EventTypePriceComparisonUpdated) &&
				e.TargetStream == database.DefaultStream &&
				payload.Cheapest.Store == "migros" &&
				payload.MostExpensive.Price.Equal(decimal.RequireFromString("89.90"))
		})).Return(nil)

		payload := testPayload()
		require.NoError(t, p.PublishPriceComparisonUpdated(ctx, nil, payload))
		assert.NotEmpty(t, payload.EventID)
		assert.Equal(t, "scraper", payload.Source)
		outbox.AssertExpectations(t)
	})

	t.Run("insert failure", func(t *testing.T) {
		outbox := new(MockOutbox)
		p := NewPublisher(outbox, slog.Default())
		outbox.On("InsertWithTx", ctx, mock.Anything, mock.Anything).Return(errors.New("insert failed"))

		err := p.PublishPriceComparisonUpdated(ctx, nil, testPayload())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "insert failed")
	})
}
