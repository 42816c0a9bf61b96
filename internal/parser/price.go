package parser

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/maltedev/store-price-compare/internal/models"
)

var (
	ErrUnparsablePrice  = errors.New("unparsable price")
	ErrNonPositivePrice = errors.New("price must be positive")
	ErrMissingName      = errors.New("product name is empty")
)

// ParsePrice converts a displayed price ("1.234,56 TL", "$1,234.56") into a
// decimal. Everything except digits and the separators '.' and ',' is
// discarded. The last separator is the decimal point; any earlier separator is
// a thousands separator.
func ParsePrice(raw string) (decimal.Decimal, bool) {
	var b strings.Builder
	hasDigit := false
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
			b.WriteRune(r)
		case r == '.' || r == ',':
			b.WriteRune(r)
		}
	}
	if !hasDigit {
		return decimal.Zero, false
	}

	cleaned := b.String()
	last := strings.LastIndexAny(cleaned, ".,")
	if last >= 0 {
		intPart := strings.NewReplacer(".", "", ",", "").Replace(cleaned[:last])
		fracPart := cleaned[last+1:]
		switch {
		case fracPart == "":
			cleaned = intPart
		case intPart == "":
			cleaned = "0." + fracPart
		default:
			cleaned = intPart + "." + fracPart
		}
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// NormalizeOffer parses the raw price text of an offer and stamps it. Offers
// without a name or without a positive price are rejected.
func NormalizeOffer(raw models.RawOffer, currency string, scrapedAt time.Time) (models.NormalizedOffer, error) {
	name := strings.TrimSpace(raw.NameText)
	if name == "" {
		return models.NormalizedOffer{}, ErrMissingName
	}

	price, ok := ParsePrice(raw.PriceText)
	if !ok {
		return models.NormalizedOffer{}, fmt.Errorf("%w: %q", ErrUnparsablePrice, raw.PriceText)
	}
	if !price.IsPositive() {
		return models.NormalizedOffer{}, fmt.Errorf("%w: %s", ErrNonPositivePrice, price.String())
	}

	if currency == "" {
		currency = models.DefaultCurrency
	}

	return models.NormalizedOffer{
		StoreID:     raw.StoreID,
		ProductName: name,
		Price:       price,
		Currency:    currency,
		ImageURL:    strings.TrimSpace(raw.ImageURL),
		SourceURL:   raw.SourceURL,
		ScrapedAt:   scrapedAt,
	}, nil
}
