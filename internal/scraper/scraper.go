package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/maltedev/store-price-compare/internal/models"
)

var (
	ErrFetchTimeout = errors.New("no product cards appeared before timeout")
	ErrRenderFailed = errors.New("failed to render page")
)

// StoreScraper fetches offers for one store. Only an unknown store id is
// reported as an error; every other failure yields an empty result.
type StoreScraper interface {
	Scrape(ctx context.Context, storeID, productQuery string) ([]models.NormalizedOffer, error)
}

type Options struct {
	// WaitTimeout bounds the wait for any card selector to appear.
	WaitTimeout    time.Duration
	ScrollFraction float64
	// ScrollSettle is how long to wait after scrolling for lazy content.
	ScrollSettle time.Duration
	MaxCards     int
	Now          func() time.Time
}

func DefaultOptions() Options {
	return Options{
		WaitTimeout:    5 * time.Second,
		ScrollFraction: 0.5,
		ScrollSettle:   2 * time.Second,
		MaxCards:       5,
		Now:            time.Now,
	}
}
