// Package backtest implements the mean-reversion simulation: a screening
// loop over simulated dates that enters the worst recent performer and
// exits when its price recovers to the start of the losing window.
package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"meanrev/internal/domain"
	"meanrev/internal/util"
)

// Engine drives one simulation run. It advances simulated time at the
// screening cadence from the lookback horizon to "now", checks exits before
// entries at every step, and force-closes whatever remains at the end.
// One Engine runs one backtest; it owns its state and is not reusable.
type Engine struct {
	params    domain.RunParams
	histories map[string]domain.PriceSeries
	names     map[string]string
	selector  *Selector
	book      *Book
	log       *slog.Logger
}

// NewEngine creates an Engine over a frozen snapshot of price histories.
// The histories map must not be mutated while the engine runs. A zero
// params.RunAt anchors the simulation at the current wall clock.
func NewEngine(params domain.RunParams, histories map[string]domain.PriceSeries, names map[string]string) *Engine {
	if params.RunAt.IsZero() {
		params.RunAt = time.Now()
	}
	params.RunAt = util.Day(params.RunAt)

	return &Engine{
		params:    params,
		histories: histories,
		names:     names,
		selector:  NewSelector(params.WindowDays, params.RecentWindow),
		book:      NewBook(params.InvestmentPerTrade),
		log:       slog.Default().With("component", "engine"),
	}
}

// Run executes the screening loop and returns the aggregated result. With
// no price data at all it returns a well-formed empty result rather than an
// error. Cancellation is honoured between date steps only; a step never
// suspends mid-computation.
func (e *Engine) Run(ctx context.Context) (*domain.Result, error) {
	if len(e.histories) == 0 {
		e.log.Warn("no price data available, returning empty result")
		result := Aggregate(nil, nil, e.params.InvestmentPerTrade)
		result.Warnings = append(result.Warnings, "no price data available")
		return result, nil
	}

	now := e.params.RunAt
	start := now.AddDate(0, 0, -e.params.LookbackYears*365)
	step := e.params.ScreeningFrequencyDays

	e.log.Info("starting backtest",
		"start", util.FormatDay(start),
		"end", util.FormatDay(now),
		"stepDays", step,
		"tickers", len(e.histories),
	)

	screenings := 0
	for current := start; !current.After(now); current = current.AddDate(0, 0, step) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		screenings++
		e.log.Debug("screening", "n", screenings, "date", util.FormatDay(current))

		// Exits first, so a position cannot close and reopen on the
		// same date.
		e.book.MarkToMarket(e.histories, current)

		if candidate, ok := e.selector.Select(e.histories, e.names, current); ok {
			e.book.Open(candidate, current)
		}
	}

	e.forceClose(now)

	result := Aggregate(e.book.Closed(), e.book.OpenTrades(), e.params.InvestmentPerTrade)
	result.Warnings = append(result.Warnings, e.book.Warnings()...)

	e.log.Info("backtest complete",
		"screenings", screenings,
		"trades", result.TotalTrades,
		"closed", len(e.book.Closed()),
		"stillOpen", result.StillOpen,
		"pnl", result.TotalPnL,
	)
	return result, nil
}

// forceClose closes every remaining open position at its last known price.
// A position with no price at all is left open and warned about, never
// silently dropped.
func (e *Engine) forceClose(now time.Time) {
	for _, trade := range e.book.OpenTrades() {
		series, ok := e.histories[trade.Ticker]
		if !ok {
			e.book.warn(fmt.Sprintf("could not close %s: no current price", trade.Ticker))
			continue
		}
		price, ok := series.PriceOnOrBefore(now)
		if !ok {
			e.book.warn(fmt.Sprintf("could not close %s: no current price", trade.Ticker))
			continue
		}
		e.book.Close(trade.Ticker, price, now)
	}
}
