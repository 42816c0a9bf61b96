package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/maltedev/store-price-compare/internal/extract"
	"github.com/maltedev/store-price-compare/internal/models"
	"github.com/maltedev/store-price-compare/internal/parser"
	"github.com/maltedev/store-price-compare/internal/ratelimit"
	"github.com/maltedev/store-price-compare/internal/render"
)

// Registry resolves store ids to configurations.
type Registry interface {
	Lookup(storeID string) (models.StoreConfig, error)
}

type Service struct {
	registry  Registry
	renderer  render.Renderer
	extractor *extract.Extractor
	limiter   ratelimit.Limiter
	opts      Options
	logger    *slog.Logger
}

func NewService(registry Registry, renderer render.Renderer, limiter ratelimit.Limiter, opts Options, logger *slog.Logger) *Service {
	defaults := DefaultOptions()
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = defaults.WaitTimeout
	}
	if opts.MaxCards <= 0 {
		opts.MaxCards = defaults.MaxCards
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if limiter == nil {
		limiter = ratelimit.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		registry:  registry,
		renderer:  renderer,
		extractor: extract.New(logger),
		limiter:   limiter,
		opts:      opts,
		logger:    logger.With("component", "store_scraper"),
	}
}

func (s *Service) Scrape(ctx context.Context, storeID, productQuery string) ([]models.NormalizedOffer, error) {
	cfg, err := s.registry.Lookup(storeID)
	if err != nil {
		return nil, err
	}

	offers, err := s.scrape(ctx, cfg, productQuery)
	if err != nil {
		s.logger.Warn("store scrape failed",
			"store", cfg.ID,
			"query", productQuery,
			"error", err)
		return nil, nil
	}

	s.logger.Info("store scraped",
		"store", cfg.ID,
		"query", productQuery,
		"offers", len(offers))
	return offers, nil
}

// scrape runs one renderer session for a store. The session is closed on every
// path and panics from the renderer are turned into errors.
func (s *Service) scrape(ctx context.Context, cfg models.StoreConfig, productQuery string) (offers []models.NormalizedOffer, err error) {
	defer func() {
		if r := recover(); r != nil {
			offers = nil
			err = fmt.Errorf("%w: panic: %v", ErrRenderFailed, r)
		}
	}()

	searchURL := cfg.SearchURL(url.QueryEscape(strings.TrimSpace(productQuery)))

	if err := s.limiter.Wait(ctx, cfg.ID); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	doc, err := s.renderer.Open(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	defer func() {
		if cerr := doc.Close(); cerr != nil {
			s.logger.Debug("failed to close page", "store", cfg.ID, "error", cerr)
		}
	}()

	if _, ok := doc.AwaitAny(ctx, cfg.Selectors.Card, s.opts.WaitTimeout); !ok {
		return nil, fmt.Errorf("%w: %s after %s", ErrFetchTimeout, searchURL, s.opts.WaitTimeout)
	}

	if s.opts.ScrollFraction > 0 {
		if err := doc.Scroll(s.opts.ScrollFraction); err != nil {
			s.logger.Debug("scroll failed", "store", cfg.ID, "error", err)
		}
		// the cards are already present; a cancelled settle only ends the wait early
		_ = sleep(ctx, s.opts.ScrollSettle)
	}

	raw := s.extractor.Extract(doc, cfg, searchURL, s.opts.MaxCards)
	scrapedAt := s.opts.Now()

	offers = make([]models.NormalizedOffer, 0, len(raw))
	for _, r := range raw {
		offer, err := parser.NormalizeOffer(r, cfg.Currency, scrapedAt)
		if err != nil {
			level := slog.LevelDebug
			if errors.Is(err, parser.ErrUnparsablePrice) {
				level = slog.LevelWarn
			}
			s.logger.Log(ctx, level, "dropping offer",
				"store", cfg.ID,
				"name", r.NameText,
				"raw_price", r.PriceText,
				"error", err)
			continue
		}
		offers = append(offers, offer)
	}

	return offers, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
