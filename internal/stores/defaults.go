package stores

import "github.com/maltedev/store-price-compare/internal/models"

// Default returns the built-in store table. Selector chains list the current
// markup first and older layouts after it.
func Default() []models.StoreConfig {
	return []models.StoreConfig{
		{
			ID:          "amazon",
			DisplayName: "Amazon",
			URLTemplate: "https://www.amazon.com.tr/s?k={query}",
			Selectors: models.SelectorSet{
				Card:  []string{".s-result-item", ".s-main-slot .s-result-item"},
				Name:  []string{".a-text-normal", "h2 a span", "h2 span"},
				Price: []string{".a-price .a-offscreen", ".a-price-whole"},
				Image: []string{"img.s-image", "img"},
				Link:  []string{"h2 a", "a.a-link-normal"},
			},
		},
		{
			ID:          "trendyol",
			DisplayName: "Trendyol",
			URLTemplate: "https://www.trendyol.com/sr?q={query}",
			Selectors: models.SelectorSet{
				Card:  []string{".prdct-cntnr-wrppr", ".p-card-wrppr"},
				Name:  []string{".prdct-desc-cntnr-name", ".prdct-desc-cntnr-ttl"},
				Price: []string{".prc-box-dscntd", ".prc-box-sllng"},
				Image: []string{"img.p-card-img", "img"},
				Link:  []string{"a"},
			},
		},
		{
			ID:          "migros",
			DisplayName: "Migros",
			URLTemplate: "https://www.migros.com.tr/arama?q={query}",
			Selectors: models.SelectorSet{
				Card:  []string{".product-cards", ".product-card-wrapper"},
				Name:  []string{".product-name"},
				Price: []string{".price", ".price-tag"},
				Image: []string{"img"},
				Link:  []string{"a.product-name", "a"},
			},
		},
		{
			ID:          "sok",
			DisplayName: "Şok Market",
			URLTemplate: "https://www.sokmarket.com.tr/arama?q={query}",
			Selectors: models.SelectorSet{
				Card:  []string{".category-listing_productListing__etprE"},
				Name:  []string{".CProductCard-module_title__u8bMW"},
				Price: []string{".CPriceBox-module_price__bYk-c"},
				Image: []string{"img"},
				Link:  []string{"a"},
			},
		},
		{
			ID:          "cimri",
			DisplayName: "Cimri",
			URLTemplate: "https://www.cimri.com/market/arama?q={query}",
			Selectors: models.SelectorSet{
				Card:  []string{".Wrapper_productCard__1act7"},
				Name:  []string{".ProductCard_productName__35zi5"},
				Price: []string{".ProductCard_footer__Fc9OL"},
				Image: []string{"img"},
				Link:  []string{"a"},
			},
		},
		{
			ID:          "hepsiburada",
			DisplayName: "Hepsiburada",
			URLTemplate: "https://www.hepsiburada.com/ara?q={query}",
			Selectors: models.SelectorSet{
				Card:  []string{".productListContent-wrapper", "li[class*='productListContent']"},
				Name:  []string{"h3.product-title", "h3"},
				Price: []string{".price-value", "[data-test-id='price-current-price']"},
				Image: []string{"img"},
				Link:  []string{"a"},
			},
		},
		{
			ID:          "carrefoursa",
			DisplayName: "CarrefourSA",
			URLTemplate: "https://www.carrefoursa.com/search/?text={query}",
			Selectors: models.SelectorSet{
				Card:  []string{".pl-grid-cont .item-box", ".product-listing-item"},
				Name:  []string{".item-name"},
				Price: []string{".price-tag", ".item-price"},
				Image: []string{"img"},
				Link:  []string{"a"},
			},
		},
	}
}

// Generic is a best-effort selector set for storefronts without a tuned entry.
func Generic(id, urlTemplate string) models.StoreConfig {
	return models.StoreConfig{
		ID:          id,
		URLTemplate: urlTemplate,
		Selectors: models.SelectorSet{
			Card:  []string{".product-card", ".product-item", ".product"},
			Name:  []string{".product-name", ".title", ".name"},
			Price: []string{".price", ".product-price", ".amount"},
			Image: []string{"img"},
			Link:  []string{"a"},
		},
	}
}
