// Package extract turns a rendered search-results page into raw offers using
// a store's selector chains.
package extract

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/maltedev/store-price-compare/internal/models"
	"github.com/maltedev/store-price-compare/internal/render"
)

const DefaultMaxCards = 5

type Extractor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger.With("component", "extractor")}
}

// Extract reads at most maxCards product cards from doc. Cards missing a name
// or a price are dropped. sourceURL is the page the document was loaded from.
func (e *Extractor) Extract(doc render.Node, cfg models.StoreConfig, sourceURL string, maxCards int) []models.RawOffer {
	if maxCards <= 0 {
		maxCards = DefaultMaxCards
	}

	cards, cardSel, ok := findCards(doc, cfg.Selectors.Card)
	if !ok {
		e.logger.Info("no product cards found", "store", cfg.ID, "selectors", cfg.Selectors.Card)
		return nil
	}
	if len(cards) > maxCards {
		cards = cards[:maxCards]
	}

	offers := make([]models.RawOffer, 0, len(cards))
	for i, card := range cards {
		name, _ := firstMatch(cfg.Selectors.Name, func(sel string) (string, bool) {
			return textOf(card, sel)
		})
		price, _ := firstMatch(cfg.Selectors.Price, func(sel string) (string, bool) {
			return textOf(card, sel)
		})
		if name == "" || price == "" {
			e.logger.Debug("dropping incomplete card",
				"store", cfg.ID,
				"card_selector", cardSel,
				"index", i,
				"has_name", name != "",
				"has_price", price != "")
			continue
		}

		image, _ := firstMatch(cfg.Selectors.Image, func(sel string) (string, bool) {
			return attrOf(card, sel, cfg.ImageAttrs)
		})
		link, _ := firstMatch(cfg.Selectors.Link, func(sel string) (string, bool) {
			return attrOf(card, sel, []string{"href"})
		})

		offers = append(offers, models.RawOffer{
			StoreID:   cfg.ID,
			NameText:  name,
			PriceText: price,
			ImageURL:  resolve(sourceURL, image),
			SourceURL: orDefault(resolve(sourceURL, link), sourceURL),
		})
	}

	return offers
}

// firstMatch walks a selector chain and returns the first non-empty value.
func firstMatch(selectors []string, try func(sel string) (string, bool)) (string, string) {
	for _, sel := range selectors {
		if v, ok := try(sel); ok {
			return v, sel
		}
	}
	return "", ""
}

func findCards(doc render.Node, selectors []string) ([]render.Element, string, bool) {
	for _, sel := range selectors {
		cards, err := doc.FindAll(sel)
		if err == nil && len(cards) > 0 {
			return cards, sel, true
		}
	}
	return nil, "", false
}

func textOf(n render.Node, sel string) (string, bool) {
	el, ok, err := n.FindFirst(sel)
	if err != nil || !ok {
		return "", false
	}
	text, err := el.Text()
	if err != nil {
		return "", false
	}
	text = strings.Join(strings.Fields(text), " ")
	return text, text != ""
}

func attrOf(n render.Node, sel string, attrs []string) (string, bool) {
	el, ok, err := n.FindFirst(sel)
	if err != nil || !ok {
		return "", false
	}
	for _, attr := range attrs {
		v, ok, err := el.Attribute(attr)
		if err == nil && ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// resolve makes ref absolute against base. Unparsable references are returned
// unchanged.
func resolve(base, ref string) string {
	if ref == "" || base == "" {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
