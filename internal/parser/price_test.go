package parser

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/store-price-compare/internal/models"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
		ok       bool
	}{
		{"turkish format", "1.234,56", "1234.56", true},
		{"english format", "1,234.56", "1234.56", true},
		{"integer", "1234", "1234", true},
		{"with currency suffix", "49,90 TL", "49.9", true},
		{"with currency prefix", "₺ 12,50", "12.5", true},
		{"multiple thousands separators", "1.234.567,89", "1234567.89", true},
		{"single separator is decimal", "1.234", "1.234", true},
		{"trailing separator", "12,", "12", true},
		{"leading separator", ",75", "0.75", true},
		{"whitespace inside", " 3 499,00 TL ", "3499", true},
		{"empty", "", "", false},
		{"currency only", "TL", "", false},
		{"separators only", ".,", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParsePrice(tt.raw)
			require.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.True(t, decimal.RequireFromString(tt.expected).Equal(got), "got %s", got)
		})
	}
}

func TestNormalizeOffer(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("valid offer", func(t *testing.T) {
		offer, err := NormalizeOffer(models.RawOffer{
			StoreID:   "migros",
			NameText:  "  Süt 1L ",
			PriceText: "24,95 TL",
			ImageURL:  "https://img.example/milk.png",
			SourceURL: "https://www.migros.com.tr/arama?q=milk",
		}, "", now)
		require.NoError(t, err)
		assert.Equal(t, "Süt 1L", offer.ProductName)
		assert.True(t, decimal.RequireFromString("24.95").Equal(offer.Price))
		assert.Equal(t, models.DefaultCurrency, offer.Currency)
		assert.Equal(t, now, offer.ScrapedAt)
	})

	t.Run("unparsable price", func(t *testing.T) {
		_, err := NormalizeOffer(models.RawOffer{NameText: "x", PriceText: "Tükendi"}, "TRY", now)
		assert.ErrorIs(t, err, ErrUnparsablePrice)
	})

	t.Run("zero price", func(t *testing.T) {
		_, err := NormalizeOffer(models.RawOffer{NameText: "x", PriceText: "0,00"}, "TRY", now)
		assert.ErrorIs(t, err, ErrNonPositivePrice)
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := NormalizeOffer(models.RawOffer{NameText: " ", PriceText: "5"}, "TRY", now)
		assert.ErrorIs(t, err, ErrMissingName)
	})
}
