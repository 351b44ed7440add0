package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"meanrev/internal/domain"
)

// Compile-time interface check.
var _ PriceStore = (*PriceCache)(nil)

// PriceCache implements PriceStore using Parquet files on disk, so repeated
// backtests do not refetch full histories from the market data API.
type PriceCache struct {
	DataDir string
}

// NewPriceCache creates a new PriceCache rooted at the given data directory.
func NewPriceCache(dataDir string) *PriceCache {
	return &PriceCache{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record type (on-disk schema)
// ---------------------------------------------------------------------------

// PriceRecord is the Parquet schema for one cached daily close.
type PriceRecord struct {
	Ticker string  `parquet:"ticker"`
	Date   int64   `parquet:"date,timestamp(millisecond)"` // Unix ms, UTC midnight
	Close  float64 `parquet:"close"`
}

// ---------------------------------------------------------------------------
// PriceStore implementation
// ---------------------------------------------------------------------------

// WriteSeries writes closes to Parquet files organized by ticker and year.
// Each ticker+year combination produces a separate file at:
//
//	<DataDir>/prices/daily/<TICKER>/<YYYY>.parquet
//
// Incoming points are merged with any cached ones, the incoming value
// winning on the same date.
func (c *PriceCache) WriteSeries(ticker string, series domain.PriceSeries) error {
	if len(series) == 0 {
		return nil
	}

	// Group points by year.
	groups := make(map[int][]PriceRecord)
	for _, p := range series {
		year := p.Date.Year()
		groups[year] = append(groups[year], PriceRecord{
			Ticker: strings.ToUpper(ticker),
			Date:   p.Date.UnixMilli(),
			Close:  p.Close,
		})
	}

	for year, records := range groups {
		path := c.seriesPath(ticker, year)

		// Read existing records to merge.
		existing, _ := readParquetFile[PriceRecord](path)
		merged := mergePriceRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing closes for %s/%d: %w", ticker, year, err)
		}
	}
	return nil
}

// ReadSeries reads cached closes for the given ticker and date range. Year
// files that do not exist are skipped, so a cold cache yields an empty
// series rather than an error.
func (c *PriceCache) ReadSeries(ticker string, start, end time.Time) (domain.PriceSeries, error) {
	var points []domain.PricePoint
	for year := start.Year(); year <= end.Year(); year++ {
		path := c.seriesPath(ticker, year)

		records, err := readParquetFile[PriceRecord](path)
		if err != nil {
			// File doesn't exist for this year — skip.
			continue
		}

		for _, r := range records {
			date := time.UnixMilli(r.Date).UTC()
			if (date.Equal(start) || date.After(start)) && (date.Equal(end) || date.Before(end)) {
				points = append(points, domain.PricePoint{Date: date, Close: r.Close})
			}
		}
	}
	return domain.NormalizeSeries(points), nil
}

// ListTickers lists all tickers that have cached price data.
func (c *PriceCache) ListTickers() ([]string, error) {
	dir := filepath.Join(c.DataDir, "prices", "daily")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var tickers []string
	for _, e := range entries {
		if e.IsDir() {
			tickers = append(tickers, e.Name())
		}
	}
	sort.Strings(tickers)
	return tickers, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// seriesPath returns the filesystem path for a cached year of closes.
// Layout: <dataDir>/prices/daily/<TICKER>/<YYYY>.parquet
func (c *PriceCache) seriesPath(ticker string, year int) string {
	return filepath.Join(c.DataDir, "prices", "daily", strings.ToUpper(ticker), fmt.Sprintf("%d.parquet", year))
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergePriceRecords deduplicates records by (ticker, date), preferring new
// records over existing ones. Results are sorted by date.
func mergePriceRecords(existing, incoming []PriceRecord) []PriceRecord {
	type key struct {
		ticker string
		date   int64
	}
	seen := make(map[key]PriceRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Ticker, r.Date}] = r
	}
	for _, r := range incoming {
		seen[key{r.Ticker, r.Date}] = r
	}

	merged := make([]PriceRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Date < merged[j].Date
	})
	return merged
}
