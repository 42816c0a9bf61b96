// Package export renders comparison history as CSV.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/maltedev/store-price-compare/internal/models"
)

// utf8BOM lets spreadsheet tools detect the encoding of Turkish product names.
const utf8BOM = "\uFEFF"

const Filename = "product_data.csv"

type row struct {
	ProductName        string `csv:"Product Name"`
	CheapestName       string `csv:"Cheapest Name"`
	CheapestPrice      string `csv:"Cheapest Price"`
	CheapestStore      string `csv:"Cheapest Store"`
	MostExpensiveName  string `csv:"Most Expensive Name"`
	MostExpensivePrice string `csv:"Most Expensive Price"`
	MostExpensiveStore string `csv:"Most Expensive Store"`
	Timestamp          string `csv:"Timestamp"`
}

func toRows(records []models.HistoryRecord) []*row {
	rows := make([]*row, 0, len(records))
	for _, r := range records {
		rows = append(rows, &row{
			ProductName:        r.ProductName,
			CheapestName:       r.CheapestName,
			CheapestPrice:      r.CheapestPrice.String(),
			CheapestStore:      r.CheapestStore,
			MostExpensiveName:  r.MostExpensiveName,
			MostExpensivePrice: r.MostExpensivePrice.String(),
			MostExpensiveStore: r.MostExpensiveStore,
			Timestamp:          r.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	return rows
}

// WriteCSV writes the history with a header row. An empty history still
// produces the header.
func WriteCSV(w io.Writer, records []models.HistoryRecord) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}

	if err := gocsv.Marshal(toRows(records), w); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}
