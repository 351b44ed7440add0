package backtest

import (
	"meanrev/internal/domain"
)

// holdingBuckets are the histogram ranges for closed-trade holding periods.
// Buckets are half-open [lo, hi); the last one is unbounded above.
var holdingBuckets = []struct {
	label  string
	lo, hi int
}{
	{"0-7", 0, 7},
	{"7-14", 7, 14},
	{"14-30", 14, 30},
	{"30-60", 30, 60},
	{"60-90", 60, 90},
	{"90-180", 90, 180},
	{"180-365", 180, 365},
	{"365+", 365, -1},
}

// Distribution buckets the holding periods of the closed trades among the
// given trades. Every closed trade lands in exactly one bucket; open trades
// are ignored.
func Distribution(trades []domain.Trade) []domain.BucketCount {
	counts := make([]domain.BucketCount, len(holdingBuckets))
	for i, b := range holdingBuckets {
		counts[i].Label = b.label
	}
	for _, t := range trades {
		if !t.Closed {
			continue
		}
		for i, b := range holdingBuckets {
			if t.HoldingDays >= b.lo && (b.hi < 0 || t.HoldingDays < b.hi) {
				counts[i].Count++
				break
			}
		}
	}
	return counts
}

// Aggregate computes the summary statistics of a finished run. Realized P&L
// sums closed trades only; invested counts every position opened, including
// those still open. A trade closed at exactly zero P&L is neither a win nor
// a loss.
func Aggregate(closed, open []domain.Trade, investment float64) *domain.Result {
	result := &domain.Result{
		Trades:      make([]domain.Trade, 0, len(closed)+len(open)),
		TotalTrades: len(closed) + len(open),
		StillOpen:   len(open),
	}
	result.Trades = append(result.Trades, closed...)
	result.Trades = append(result.Trades, open...)
	result.TotalInvested = investment * float64(result.TotalTrades)

	var holdingSum int
	for _, t := range closed {
		result.TotalPnL += t.PnL
		holdingSum += t.HoldingDays
		switch {
		case t.Win():
			result.WinningTrades++
		case t.Loss():
			result.LosingTrades++
		}
	}
	if len(closed) > 0 {
		result.AvgHoldingDays = float64(holdingSum) / float64(len(closed))
	}
	result.HoldingDistribution = Distribution(closed)
	return result
}
