package stores

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/maltedev/store-price-compare/internal/models"
)

var ErrStoreNotFound = errors.New("store not found")

// Registry maps store ids to their scraping configuration. It is built once at
// startup and only read afterwards.
type Registry struct {
	stores map[string]models.StoreConfig
}

func New(configs ...models.StoreConfig) (*Registry, error) {
	r := &Registry{stores: make(map[string]models.StoreConfig, len(configs))}
	for _, cfg := range configs {
		cfg = normalize(cfg)
		if err := Validate(cfg); err != nil {
			return nil, err
		}
		if _, exists := r.stores[cfg.ID]; exists {
			return nil, fmt.Errorf("duplicate store id: %s", cfg.ID)
		}
		r.stores[cfg.ID] = cfg
	}
	return r, nil
}

// NewDefault returns a registry with the built-in store table.
func NewDefault() *Registry {
	r, err := New(Default()...)
	if err != nil {
		panic(fmt.Sprintf("invalid built-in store table: %v", err))
	}
	return r
}

// Lookup is case-insensitive and ignores surrounding whitespace.
func (r *Registry) Lookup(storeID string) (models.StoreConfig, error) {
	cfg, ok := r.stores[normalizeID(storeID)]
	if !ok {
		return models.StoreConfig{}, fmt.Errorf("%w: %q", ErrStoreNotFound, storeID)
	}
	return cfg, nil
}

func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.stores))
	for id := range r.stores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) Len() int {
	return len(r.stores)
}

// Merge returns a new registry where the given configs replace or extend the
// existing entries by id.
func (r *Registry) Merge(configs ...models.StoreConfig) (*Registry, error) {
	merged := make(map[string]models.StoreConfig, len(r.stores)+len(configs))
	for id, cfg := range r.stores {
		merged[id] = cfg
	}
	for _, cfg := range configs {
		cfg = normalize(cfg)
		if err := Validate(cfg); err != nil {
			return nil, err
		}
		merged[cfg.ID] = cfg
	}
	return &Registry{stores: merged}, nil
}

// Validate checks that a store record is usable by the extractor.
func Validate(cfg models.StoreConfig) error {
	if cfg.ID == "" {
		return fmt.Errorf("store id is required")
	}
	if !strings.Contains(cfg.URLTemplate, models.QueryPlaceholder) {
		return fmt.Errorf("store %s: url template must contain %s", cfg.ID, models.QueryPlaceholder)
	}
	u, err := url.Parse(cfg.SearchURL("probe"))
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("store %s: url template is not an absolute url: %s", cfg.ID, cfg.URLTemplate)
	}
	if len(nonEmpty(cfg.Selectors.Card)) == 0 {
		return fmt.Errorf("store %s: at least one card selector is required", cfg.ID)
	}
	if len(nonEmpty(cfg.Selectors.Name)) == 0 {
		return fmt.Errorf("store %s: at least one name selector is required", cfg.ID)
	}
	if len(nonEmpty(cfg.Selectors.Price)) == 0 {
		return fmt.Errorf("store %s: at least one price selector is required", cfg.ID)
	}
	return nil
}

type storeFile struct {
	Stores []models.StoreConfig `yaml:"stores"`
}

// LoadFile reads store records from a YAML file.
func LoadFile(path string) ([]models.StoreConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	var f storeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse store file %s: %w", path, err)
	}
	return f.Stores, nil
}

func normalize(cfg models.StoreConfig) models.StoreConfig {
	cfg.ID = normalizeID(cfg.ID)
	if cfg.DisplayName == "" {
		cfg.DisplayName = cfg.ID
	}
	if cfg.Currency == "" {
		cfg.Currency = models.DefaultCurrency
	}
	if len(cfg.ImageAttrs) == 0 {
		cfg.ImageAttrs = []string{"src", "data-src"}
	}
	cfg.Selectors = models.SelectorSet{
		Card:  nonEmpty(cfg.Selectors.Card),
		Name:  nonEmpty(cfg.Selectors.Name),
		Price: nonEmpty(cfg.Selectors.Price),
		Image: nonEmpty(cfg.Selectors.Image),
		Link:  nonEmpty(cfg.Selectors.Link),
	}
	return cfg
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func nonEmpty(selectors []string) []string {
	out := make([]string, 0, len(selectors))
	for _, s := range selectors {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
