package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DefaultCurrency = "TRY"

// SelectorSet holds ordered fallback chains. The first selector that yields a
// non-empty result wins.
type SelectorSet struct {
	Card  []string `json:"card" yaml:"card"`
	Name  []string `json:"name" yaml:"name"`
	Price []string `json:"price" yaml:"price"`
	Image []string `json:"image,omitempty" yaml:"image,omitempty"`
	Link  []string `json:"link,omitempty" yaml:"link,omitempty"`
}

type StoreConfig struct {
	ID          string      `json:"id" yaml:"id"`
	DisplayName string      `json:"display_name" yaml:"display_name"`
	URLTemplate string      `json:"url_template" yaml:"url_template"`
	Selectors   SelectorSet `json:"selectors" yaml:"selectors"`
	ImageAttrs  []string    `json:"image_attrs,omitempty" yaml:"image_attrs,omitempty"`
	Currency    string      `json:"currency,omitempty" yaml:"currency,omitempty"`
}

// QueryPlaceholder is substituted with the escaped product query.
const QueryPlaceholder = "{query}"

func (s StoreConfig) SearchURL(escapedQuery string) string {
	return strings.ReplaceAll(s.URLTemplate, QueryPlaceholder, escapedQuery)
}

// RawOffer is a card as found on the page, before price parsing.
type RawOffer struct {
	StoreID   string
	NameText  string
	PriceText string
	ImageURL  string
	SourceURL string
}

type NormalizedOffer struct {
	StoreID     string          `json:"store"`
	ProductName string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	ImageURL    string          `json:"image,omitempty"`
	SourceURL   string          `json:"url"`
	ScrapedAt   time.Time       `json:"scraped_at"`
}

type ComparisonResult struct {
	ProductQuery    string            `json:"product_name"`
	Cheapest        *NormalizedOffer  `json:"cheapest_overall"`
	MostExpensive   *NormalizedOffer  `json:"most_expensive_overall"`
	AllOffers       []NormalizedOffer `json:"all_results"`
	ValidOfferCount int               `json:"total_products_found"`
}

type TrackedProduct struct {
	ProductQuery string     `json:"product_name"`
	LastRunAt    *time.Time `json:"last_run_at,omitempty"`
}

// HistoryRecord is one persisted comparison row.
type HistoryRecord struct {
	ProductName        string          `json:"product_name"`
	CheapestName       string          `json:"cheapest_name"`
	CheapestPrice      decimal.Decimal `json:"cheapest_price"`
	CheapestStore      string          `json:"cheapest_store"`
	MostExpensiveName  string          `json:"most_expensive_name"`
	MostExpensivePrice decimal.Decimal `json:"most_expensive_price"`
	MostExpensiveStore string          `json:"most_expensive_store"`
	Timestamp          time.Time       `json:"timestamp"`
}

// NewHistoryRecord builds the row stored for a product's price extremes.
func NewHistoryRecord(productName string, cheapest, mostExpensive NormalizedOffer, at time.Time) HistoryRecord {
	return HistoryRecord{
		ProductName:        productName,
		CheapestName:       cheapest.ProductName,
		CheapestPrice:      cheapest.Price,
		CheapestStore:      cheapest.StoreID,
		MostExpensiveName:  mostExpensive.ProductName,
		MostExpensivePrice: mostExpensive.Price,
		MostExpensiveStore: mostExpensive.StoreID,
		Timestamp:          at,
	}
}
