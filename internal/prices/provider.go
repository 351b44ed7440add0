// Package prices fetches daily closing-price histories for the backtest
// universe from the Alpaca market-data API, reading through an on-disk
// Parquet cache.
package prices

import (
	"context"
	"time"

	"meanrev/internal/domain"
)

// Provider returns daily closing-price series per ticker.
type Provider interface {
	// Histories returns the daily series for each ticker over [start, end].
	// Tickers with no available data are absent from the map; callers treat
	// absence as "skip and warn", never as a fatal error.
	Histories(ctx context.Context, tickers []string, start, end time.Time) (map[string]domain.PriceSeries, error)
}
