// Package screen implements the one-shot screening mode: rank every
// eligible company by its worst trailing-window return as of a single date,
// without opening any positions.
package screen

import (
	"log/slog"
	"sort"
	"time"

	"meanrev/internal/backtest"
	"meanrev/internal/domain"
)

// Row is one ranked screening result. TargetPrice is the start of the worst
// window, the level a mean-reversion entry would wait to recover to, and
// UpsidePct is the implied move from the current price to that level.
type Row struct {
	Rank         int
	Ticker       string
	Company      string
	Country      string
	Index        string
	FoundingYear int
	AgeYears     int

	ReturnPct    float64
	WindowStart  time.Time
	WindowEnd    time.Time
	StartPrice   float64
	EndPrice     float64
	CurrentPrice float64
	TargetPrice  float64
	UpsidePct    float64
}

// Output is the complete result of one screening run: the ranked rows plus
// the funnel counts describing how the universe narrowed at each step.
type Output struct {
	ScreenedAt   time.Time
	Indices      []string
	Countries    []string
	MinAgeYears  int
	LookbackDays int

	TotalCandidates    int // tickers fetched from the selected indices
	WithMetadata       int // of those, present in the metadata table
	Screened           int // passed all filters and were evaluated
	ExcludedNoMetadata int
	ExcludedTooYoung   int

	Rows     []Row
	Warnings []string
}

// Screener ranks companies by their worst trailing return.
type Screener struct {
	windowDays int
	log        *slog.Logger
}

func New(windowDays int) *Screener {
	return &Screener{
		windowDays: windowDays,
		log:        slog.Default().With("component", "screener"),
	}
}

// Rank evaluates each company's full history up to asOf and returns every
// company with a computable worst window, most negative first. Unlike the
// backtest selector, the search spans the whole fetched history rather than
// a bounded recent tail, and positive worst windows still rank (at the
// bottom). Ties keep the incoming company order, so callers passing
// companies in lexical ticker order get reproducible ranks.
//
// Companies with no history, or too little of it for a single trailing
// return, are listed in skipped instead of ranked.
func (s *Screener) Rank(histories map[string]domain.PriceSeries, companies []domain.CompanyInfo, asOf time.Time) (rows []Row, skipped []string) {
	year := asOf.Year()

	for _, c := range companies {
		series, ok := histories[c.Ticker]
		if !ok {
			skipped = append(skipped, c.Ticker)
			continue
		}

		truncated := series.TruncateTo(asOf)
		worst, ok := backtest.WorstWindow(truncated, s.windowDays)
		if !ok {
			skipped = append(skipped, c.Ticker)
			continue
		}
		current, ok := truncated.Last()
		if !ok {
			skipped = append(skipped, c.Ticker)
			continue
		}

		row := Row{
			Ticker:       c.Ticker,
			Company:      c.Name,
			Country:      c.Country,
			Index:        c.Index,
			FoundingYear: c.FoundingYear,
			AgeYears:     c.Age(year),
			ReturnPct:    worst.ReturnPct,
			WindowStart:  worst.StartDate,
			WindowEnd:    worst.EndDate,
			StartPrice:   worst.StartPrice,
			EndPrice:     worst.EndPrice,
			CurrentPrice: current.Close,
			TargetPrice:  worst.StartPrice,
		}
		if current.Close > 0 {
			row.UpsidePct = (row.TargetPrice - current.Close) / current.Close * 100
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].ReturnPct < rows[j].ReturnPct
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}

	s.log.Info("ranking complete",
		"date", asOf.Format("2006-01-02"),
		"ranked", len(rows),
		"skipped", len(skipped),
	)
	return rows, skipped
}
