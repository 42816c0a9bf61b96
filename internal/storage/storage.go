// Package storage keeps comparison history in a JSON file. It needs no
// database and suits single-process deployments.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/maltedev/store-price-compare/internal/history"
	"github.com/maltedev/store-price-compare/internal/models"
)

type FileStore struct {
	mu       sync.RWMutex
	records  map[string]*models.HistoryRecord
	filename string
	now      func() time.Time
}

func NewFileStore(filename string) (*FileStore, error) {
	fs := &FileStore{
		records:  make(map[string]*models.HistoryRecord),
		filename: filename,
		now:      time.Now,
	}

	if err := fs.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load %s: %w", filename, err)
	}

	return fs, nil
}

func recordKey(productName, cheapestStore, mostExpensiveStore string) string {
	return productName + "\x00" + cheapestStore + "\x00" + mostExpensiveStore
}

func (fs *FileStore) UpsertComparison(_ context.Context, productName string, cheapest, mostExpensive models.NormalizedOffer) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	rec := models.NewHistoryRecord(productName, cheapest, mostExpensive, fs.now().UTC())
	key := recordKey(productName, cheapest.StoreID, mostExpensive.StoreID)

	prev, existed := fs.records[key]
	fs.records[key] = &rec

	if err := fs.save(); err != nil {
		// memory must not report a row the file does not hold
		if existed {
			fs.records[key] = prev
		} else {
			delete(fs.records, key)
		}
		return fmt.Errorf("%w: %v", history.ErrPersistence, err)
	}
	return nil
}

// ListHistory returns all rows, newest first.
func (fs *FileStore) ListHistory(_ context.Context) ([]models.HistoryRecord, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	out := make([]models.HistoryRecord, 0, len(fs.records))
	for _, rec := range fs.records {
		out = append(out, *rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ProductName < out[j].ProductName
	})
	return out, nil
}

func (fs *FileStore) DistinctTrackedProducts(_ context.Context) ([]string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	seen := make(map[string]struct{})
	var products []string
	for _, rec := range fs.records {
		if _, ok := seen[rec.ProductName]; ok {
			continue
		}
		seen[rec.ProductName] = struct{}{}
		products = append(products, rec.ProductName)
	}
	sort.Strings(products)
	return products, nil
}

func (fs *FileStore) save() error {
	rows := make([]*models.HistoryRecord, 0, len(fs.records))
	for _, rec := range fs.records {
		rows = append(rows, rec)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Timestamp.Before(rows[j].Timestamp) })

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}

	// write then rename so readers never see a partial file
	tmpFile := fs.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpFile, fs.filename)
}

func (fs *FileStore) load() error {
	data, err := os.ReadFile(fs.filename)
	if err != nil {
		return err
	}

	var rows []*models.HistoryRecord
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	for _, rec := range rows {
		fs.records[recordKey(rec.ProductName, rec.CheapestStore, rec.MostExpensiveStore)] = rec
	}
	return nil
}
