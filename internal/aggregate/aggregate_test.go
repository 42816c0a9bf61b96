package aggregate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/store-price-compare/internal/models"
)

func offer(store, name, price string) models.NormalizedOffer {
	return models.NormalizedOffer{StoreID: store, ProductName: name, Price: decimal.RequireFromString(price)}
}

func TestAggregate(t *testing.T) {
	t.Run("extremes", func(t *testing.T) {
		offers := []models.NormalizedOffer{
			offer("a", "X", "10"),
			offer("b", "Y", "5"),
			offer("c", "Z", "20"),
		}
		r := Aggregate("milk", offers)
		require.NotNil(t, r.Cheapest)
		require.NotNil(t, r.MostExpensive)
		assert.Equal(t, "Y", r.Cheapest.ProductName)
		assert.Equal(t, "Z", r.MostExpensive.ProductName)
		assert.Equal(t, 3, r.ValidOfferCount)
		assert.Equal(t, offers, r.AllOffers)
	})

	t.Run("ties pick first cheapest and last most expensive", func(t *testing.T) {
		r := Aggregate("milk", []models.NormalizedOffer{
			offer("a", "cheap1", "5"),
			offer("b", "exp1", "9"),
			offer("c", "cheap2", "5"),
			offer("d", "exp2", "9"),
		})
		assert.Equal(t, "cheap1", r.Cheapest.ProductName)
		assert.Equal(t, "exp2", r.MostExpensive.ProductName)
	})

	t.Run("all prices equal", func(t *testing.T) {
		r := Aggregate("milk", []models.NormalizedOffer{
			offer("a", "A", "7"),
			offer("b", "B", "7"),
			offer("c", "C", "7"),
		})
		assert.Equal(t, "A", r.Cheapest.ProductName)
		assert.Equal(t, "C", r.MostExpensive.ProductName)
		assert.True(t, r.Cheapest.Price.Equal(r.MostExpensive.Price))
	})

	t.Run("single offer", func(t *testing.T) {
		r := Aggregate("milk", []models.NormalizedOffer{offer("a", "only", "3")})
		assert.Equal(t, "only", r.Cheapest.ProductName)
		assert.Equal(t, "only", r.MostExpensive.ProductName)
		assert.Equal(t, 1, r.ValidOfferCount)
	})

	t.Run("non-positive prices filtered", func(t *testing.T) {
		r := Aggregate("milk", []models.NormalizedOffer{
			offer("a", "zero", "0"),
			offer("b", "neg", "-4"),
			offer("c", "ok", "12.5"),
		})
		assert.Equal(t, 1, r.ValidOfferCount)
		assert.Len(t, r.AllOffers, 1)
		assert.Equal(t, "ok", r.Cheapest.ProductName)
	})

	t.Run("no offers", func(t *testing.T) {
		r := Aggregate(" milk ", nil)
		assert.Equal(t, "milk", r.ProductQuery)
		assert.Zero(t, r.ValidOfferCount)
		assert.Nil(t, r.Cheapest)
		assert.Nil(t, r.MostExpensive)
		assert.Empty(t, r.AllOffers)
	})

	t.Run("cheapest never above most expensive", func(t *testing.T) {
		r := Aggregate("milk", []models.NormalizedOffer{
			offer("a", "1", "3.10"),
			offer("b", "2", "100"),
			offer("c", "3", "0.99"),
			offer("d", "4", "42"),
		})
		assert.True(t, r.Cheapest.Price.LessThanOrEqual(r.MostExpensive.Price))
		assert.NotEqual(t, r.Cheapest.ProductName, r.MostExpensive.ProductName)
	})
}
