// Package aggregate reduces a list of offers to its price extremes.
package aggregate

import (
	"strings"

	"github.com/maltedev/store-price-compare/internal/models"
)

// Aggregate keeps offers with a positive price and picks the cheapest (first
// occurrence of the minimum) and the most expensive (last occurrence of the
// maximum). When both extremes share a price, the most expensive offer is
// re-resolved among the remaining offers so the two differ whenever possible.
func Aggregate(productQuery string, offers []models.NormalizedOffer) models.ComparisonResult {
	valid := make([]models.NormalizedOffer, 0, len(offers))
	for _, o := range offers {
		if o.Price.IsPositive() {
			valid = append(valid, o)
		}
	}

	result := models.ComparisonResult{
		ProductQuery:    strings.TrimSpace(productQuery),
		AllOffers:       valid,
		ValidOfferCount: len(valid),
	}
	if len(valid) == 0 {
		return result
	}

	minIdx, maxIdx := 0, 0
	for i := 1; i < len(valid); i++ {
		if valid[i].Price.LessThan(valid[minIdx].Price) {
			minIdx = i
		}
		if valid[i].Price.GreaterThanOrEqual(valid[maxIdx].Price) {
			maxIdx = i
		}
	}

	if valid[minIdx].Price.Equal(valid[maxIdx].Price) {
		maxIdx = maxExcluding(valid, minIdx)
	}

	cheapest := valid[minIdx]
	mostExpensive := valid[maxIdx]
	result.Cheapest = &cheapest
	result.MostExpensive = &mostExpensive
	return result
}

// maxExcluding returns the index of the last maximum among all offers except
// skip. It falls back to skip when there is nothing else.
func maxExcluding(offers []models.NormalizedOffer, skip int) int {
	best := -1
	for i := range offers {
		if i == skip {
			continue
		}
		if best == -1 || offers[i].Price.GreaterThanOrEqual(offers[best].Price) {
			best = i
		}
	}
	if best == -1 {
		return skip
	}
	return best
}
