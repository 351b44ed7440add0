// Package domain defines the shared value types of the backtest: daily price
// series, screening candidates, notional trades, and run results.
package domain

import (
	"sort"
	"time"
)

// ---------------------------------------------------------------------------
// Indices
// ---------------------------------------------------------------------------

// Index identifies a supported equity index universe.
type Index = string

const (
	IndexSP500   Index = "SP500"
	IndexDAX     Index = "DAX"
	IndexFTSE100 Index = "FTSE100"
)

// KnownIndices returns the supported index names in display order.
func KnownIndices() []Index {
	return []Index{IndexSP500, IndexDAX, IndexFTSE100}
}

// ValidIndex reports whether name is a supported index.
func ValidIndex(name string) bool {
	switch name {
	case IndexSP500, IndexDAX, IndexFTSE100:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Price series
// ---------------------------------------------------------------------------

// PricePoint is one daily closing price. Date carries no time-of-day: all
// timestamps are normalized to UTC midnight at the provider boundary so the
// engine compares calendar days only.
type PricePoint struct {
	Date  time.Time
	Close float64
}

// PriceSeries is a ticker's daily closing prices, strictly increasing in
// date with no duplicates. It is immutable once handed to the engine.
type PriceSeries []PricePoint

// TruncateTo returns the prefix of the series with dates on or before date.
// The result shares the underlying array.
func (s PriceSeries) TruncateTo(date time.Time) PriceSeries {
	n := sort.Search(len(s), func(i int) bool {
		return s[i].Date.After(date)
	})
	return s[:n]
}

// Tail returns the last n points, or the whole series if it is shorter.
func (s PriceSeries) Tail(n int) PriceSeries {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// Last returns the final point of the series.
func (s PriceSeries) Last() (PricePoint, bool) {
	if len(s) == 0 {
		return PricePoint{}, false
	}
	return s[len(s)-1], true
}

// PriceOnOrBefore returns the last known closing price on or before date.
// It reports false when the series has no observation in that range, which
// callers treat as "price unavailable" rather than an error.
func (s PriceSeries) PriceOnOrBefore(date time.Time) (float64, bool) {
	t := s.TruncateTo(date)
	if len(t) == 0 {
		return 0, false
	}
	return t[len(t)-1].Close, true
}

// NormalizeSeries sorts points by date and drops duplicate dates, keeping the
// later occurrence. Providers call it once when assembling a series; the
// engine assumes the invariant afterwards.
func NormalizeSeries(points []PricePoint) PriceSeries {
	if len(points) == 0 {
		return nil
	}
	sorted := make([]PricePoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	out := sorted[:0]
	for _, p := range sorted {
		if n := len(out); n > 0 && out[n-1].Date.Equal(p.Date) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return PriceSeries(out)
}

// ---------------------------------------------------------------------------
// Screening
// ---------------------------------------------------------------------------

// WorstWindow is the most negative trailing return found within the recent
// portion of a price series. It is derived per screening date and never
// persisted.
type WorstWindow struct {
	ReturnPct  float64 // signed, negative = loss
	StartDate  time.Time
	StartPrice float64
	EndDate    time.Time
	EndPrice   float64
}

// Candidate is a ticker selected for entry at a screening date. TargetPrice
// is the start of its worst window, the level a recovery exit waits for.
type Candidate struct {
	Ticker      string
	Company     string
	ReturnPct   float64
	EntryPrice  float64
	TargetPrice float64
}

// ---------------------------------------------------------------------------
// Trades
// ---------------------------------------------------------------------------

// Trade is one notional position. The exit fields are written together in a
// single place when the position closes; Closed reports whether they are
// valid. A closed trade is immutable and never reopens.
type Trade struct {
	Ticker      string
	Company     string
	EntryDate   time.Time
	EntryPrice  float64
	Shares      float64
	TargetPrice float64

	Closed      bool
	ExitDate    time.Time
	ExitPrice   float64
	HoldingDays int
	PnL         float64
}

// Win reports whether the trade closed with a strictly positive P&L.
func (t Trade) Win() bool { return t.Closed && t.PnL > 0 }

// Loss reports whether the trade closed with a strictly negative P&L.
// A trade with zero P&L is neither a win nor a loss.
func (t Trade) Loss() bool { return t.Closed && t.PnL < 0 }

// ---------------------------------------------------------------------------
// Companies
// ---------------------------------------------------------------------------

// CompanyInfo is one row of the company metadata table.
type CompanyInfo struct {
	Ticker       string
	Name         string
	FoundingYear int
	Country      string
	Index        Index
}

// Age returns the company age in whole years as of the given year.
func (c CompanyInfo) Age(year int) int {
	return year - c.FoundingYear
}

// ---------------------------------------------------------------------------
// Runs
// ---------------------------------------------------------------------------

// RunParams captures the knobs of one backtest run. RunAt anchors simulated
// "now"; a zero RunAt means the wall clock at engine construction.
type RunParams struct {
	RunAt                  time.Time
	Indices                []string
	LookbackYears          int
	ScreeningFrequencyDays int
	InvestmentPerTrade     float64
	WindowDays             int
	RecentWindow           int
}

// BucketCount is one bar of the holding-period histogram.
type BucketCount struct {
	Label string
	Count int
}

// Result is the output of a completed run: the trade ledger (closed trades
// first, then any still open) and its summary statistics. TotalPnL sums
// closed trades only; open trades contribute zero realized P&L.
type Result struct {
	Trades []Trade

	TotalPnL       float64
	TotalInvested  float64
	TotalTrades    int
	WinningTrades  int
	LosingTrades   int
	StillOpen      int
	AvgHoldingDays float64

	HoldingDistribution []BucketCount

	// Warnings accumulates skipped tickers, rejected candidates, and
	// positions left open for lack of a final price. Never fatal.
	Warnings []string
}

// RunSummary is the headline row of a persisted run, as listed by the
// results store.
type RunSummary struct {
	ID             int64
	RunAt          time.Time
	Indices        []string
	TotalPnL       float64
	TotalInvested  float64
	TotalTrades    int
	WinningTrades  int
	LosingTrades   int
	StillOpen      int
	AvgHoldingDays float64
}
