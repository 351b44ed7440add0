package backtest

import (
	"meanrev/internal/domain"
)

// WorstWindow finds the most negative trailing windowDays-session return in
// the series: for every index i with at least windowDays points before it,
// the return from series[i-windowDays] to series[i], minimized. Ties keep
// the first occurrence in chronological order.
//
// It reports false when the series has fewer than windowDays+1 points, in
// which case no trailing return exists at all.
func WorstWindow(series domain.PriceSeries, windowDays int) (domain.WorstWindow, bool) {
	if windowDays < 1 || len(series) < windowDays+1 {
		return domain.WorstWindow{}, false
	}

	var (
		worst domain.WorstWindow
		found bool
	)
	for i := windowDays; i < len(series); i++ {
		start, end := series[i-windowDays], series[i]
		if start.Close <= 0 {
			continue
		}
		ret := (end.Close - start.Close) / start.Close * 100

		// Strict < keeps the earliest window on ties.
		if !found || ret < worst.ReturnPct {
			worst = domain.WorstWindow{
				ReturnPct:  ret,
				StartDate:  start.Date,
				StartPrice: start.Close,
				EndDate:    end.Date,
				EndPrice:   end.Close,
			}
			found = true
		}
	}
	return worst, found
}
