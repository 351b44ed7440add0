// Package metadata loads and validates the company reference table that
// backs ticker eligibility decisions.
package metadata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"meanrev/internal/domain"
)

// requiredColumns are the CSV columns the loader insists on.
var requiredColumns = []string{"ticker", "company_name", "founding_year", "country", "index"}

// Founding years outside [minFoundingYear, current year] are treated as data
// entry errors and their rows dropped.
const minFoundingYear = 1600

// Store holds validated company metadata keyed by upper-case ticker.
type Store struct {
	byTicker map[string]domain.CompanyInfo
	warnings []string
}

// Load reads and validates the company metadata CSV. A missing file or a
// missing required column cannot be recovered from and fails the load;
// individually invalid rows are dropped with a warning instead.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening metadata CSV: %w", err)
	}
	defer f.Close()

	s, err := read(f, time.Now().Year())
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	slog.Info("loaded company metadata",
		"path", path,
		"companies", len(s.byTicker),
		"skipped_rows", len(s.warnings),
	)
	return s, nil
}

func read(r io.Reader, currentYear int) (*Store, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, want := range requiredColumns {
		if _, ok := cols[want]; !ok {
			return nil, fmt.Errorf("missing required column %q", want)
		}
	}

	s := &Store{byTicker: make(map[string]domain.CompanyInfo)}

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.warn("row %d: %v", line, err)
			continue
		}

		ticker := strings.ToUpper(strings.TrimSpace(record[cols["ticker"]]))
		if ticker == "" {
			s.warn("row %d: empty ticker", line)
			continue
		}
		if _, dup := s.byTicker[ticker]; dup {
			s.warn("row %d: duplicate ticker %s, keeping first occurrence", line, ticker)
			continue
		}

		year, err := parseYear(record[cols["founding_year"]])
		if err != nil {
			s.warn("row %d (%s): %v", line, ticker, err)
			continue
		}
		if year < minFoundingYear || year > currentYear {
			s.warn("row %d (%s): founding year %d out of range", line, ticker, year)
			continue
		}

		index := strings.ToUpper(strings.TrimSpace(record[cols["index"]]))
		if !domain.ValidIndex(index) {
			s.warn("row %d (%s): unknown index %q", line, ticker, index)
			continue
		}

		s.byTicker[ticker] = domain.CompanyInfo{
			Ticker:       ticker,
			Name:         strings.TrimSpace(record[cols["company_name"]]),
			FoundingYear: year,
			Country:      strings.TrimSpace(record[cols["country"]]),
			Index:        index,
		}
	}

	return s, nil
}

// parseYear accepts both integer and float-formatted years; reference CSVs
// exported from spreadsheet tools often carry "1877.0".
func parseYear(raw string) (int, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return 0, fmt.Errorf("missing founding year")
	}
	if year, err := strconv.Atoi(v); err == nil {
		return year, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("invalid founding year %q", raw)
	}
	return int(f), nil
}

func (s *Store) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.warnings = append(s.warnings, "metadata: "+msg)
	slog.Warn("skipping metadata row", "reason", msg)
}

// Empty returns a Store with no companies, for callers bootstrapping a
// metadata file from scratch.
func Empty() *Store {
	return &Store{byTicker: make(map[string]domain.CompanyInfo)}
}

// Get returns the metadata for a ticker.
func (s *Store) Get(ticker string) (domain.CompanyInfo, bool) {
	info, ok := s.byTicker[strings.ToUpper(ticker)]
	return info, ok
}

// Select returns metadata for the given tickers, silently omitting unknown
// ones, in lexical ticker order.
func (s *Store) Select(tickers []string) []domain.CompanyInfo {
	var out []domain.CompanyInfo
	for _, t := range tickers {
		if info, ok := s.Get(t); ok {
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// Tickers returns all known tickers in lexical order.
func (s *Store) Tickers() []string {
	out := make([]string, 0, len(s.byTicker))
	for t := range s.byTicker {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of companies loaded.
func (s *Store) Len() int { return len(s.byTicker) }

// Warnings returns the row-level problems encountered during loading.
func (s *Store) Warnings() []string { return s.warnings }
