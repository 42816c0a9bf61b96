package stores

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/store-price-compare/internal/models"
)

func TestRegistry_Lookup(t *testing.T) {
	r := NewDefault()

	t.Run("case insensitive", func(t *testing.T) {
		for _, id := range []string{"amazon", "Amazon", "AMAZON", "  amazon "} {
			cfg, err := r.Lookup(id)
			require.NoError(t, err, id)
			assert.Equal(t, "amazon", cfg.ID)
		}
	})

	t.Run("unknown store", func(t *testing.T) {
		_, err := r.Lookup("nonexistent")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrStoreNotFound)
	})

	t.Run("defaults filled", func(t *testing.T) {
		cfg, err := r.Lookup("migros")
		require.NoError(t, err)
		assert.Equal(t, models.DefaultCurrency, cfg.Currency)
		assert.Equal(t, []string{"src", "data-src"}, cfg.ImageAttrs)
		assert.Equal(t, "https://www.migros.com.tr/arama?q=su", cfg.SearchURL("su"))
	})
}

func TestRegistry_IDs(t *testing.T) {
	r := NewDefault()
	assert.Equal(t, []string{"amazon", "carrefoursa", "cimri", "hepsiburada", "migros", "sok", "trendyol"}, r.IDs())
}

func TestValidate(t *testing.T) {
	valid := Generic("shop", "https://shop.example/search?q={query}")

	tests := []struct {
		name    string
		mutate  func(c *models.StoreConfig)
		wantErr string
	}{
		{"valid", func(c *models.StoreConfig) {}, ""},
		{"missing id", func(c *models.StoreConfig) { c.ID = "" }, "store id is required"},
		{"missing placeholder", func(c *models.StoreConfig) { c.URLTemplate = "https://shop.example/search" }, "must contain"},
		{"relative url", func(c *models.StoreConfig) { c.URLTemplate = "/search?q={query}" }, "absolute url"},
		{"no card selectors", func(c *models.StoreConfig) { c.Selectors.Card = nil }, "card selector"},
		{"blank name selectors", func(c *models.StoreConfig) { c.Selectors.Name = []string{" "} }, "name selector"},
		{"no price selectors", func(c *models.StoreConfig) { c.Selectors.Price = nil }, "price selector"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			cfg.Selectors.Card = append([]string(nil), valid.Selectors.Card...)
			tt.mutate(&cfg)
			err := Validate(normalize(cfg))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNew_DuplicateID(t *testing.T) {
	_, err := New(
		Generic("shop", "https://shop.example/?q={query}"),
		Generic("SHOP", "https://shop.example/?q={query}"),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate store id")
}

func TestLoadFileAndMerge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stores.yaml")
	content := `
stores:
  - id: Migros
    url_template: "https://www.migros.com.tr/search?q={query}"
    selectors:
      card: [".new-card"]
      name: [".new-name"]
      price: [".new-price"]
  - id: a101
    url_template: "https://www.a101.com.tr/arama?k={query}"
    selectors:
      card: [".product-card"]
      name: [".name"]
      price: [".current-price"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	configs, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, configs, 2)

	merged, err := NewDefault().Merge(configs...)
	require.NoError(t, err)
	assert.Equal(t, 8, merged.Len())

	migros, err := merged.Lookup("migros")
	require.NoError(t, err)
	assert.Equal(t, []string{".new-card"}, migros.Selectors.Card)

	_, err = merged.Lookup("A101")
	assert.NoError(t, err)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
