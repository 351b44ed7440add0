// Package store persists daily price history and completed backtest runs.
package store

import (
	"context"
	"time"

	"meanrev/internal/domain"
)

// PriceStore caches daily closing-price series between runs.
type PriceStore interface {
	// ReadSeries returns the cached series for ticker within [start, end].
	// A ticker with no cached data yields an empty series, not an error.
	ReadSeries(ticker string, start, end time.Time) (domain.PriceSeries, error)

	// WriteSeries merges the series into the cache, deduplicating by date.
	WriteSeries(ticker string, series domain.PriceSeries) error
}

// RunStore persists completed backtest runs and their trade ledgers.
type RunStore interface {
	// SaveRun inserts a completed run with its trades and returns the run id.
	SaveRun(ctx context.Context, params domain.RunParams, result *domain.Result) (int64, error)

	// ListRuns returns the most recent runs, newest first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error)

	// ListTrades returns the trade ledger of a run in its stored order,
	// closed trades first.
	ListTrades(ctx context.Context, runID int64) ([]domain.Trade, error)
}
