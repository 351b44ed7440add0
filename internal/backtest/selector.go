package backtest

import (
	"log/slog"
	"sort"
	"time"

	"meanrev/internal/domain"
)

// Selector picks at most one entry candidate per screening date: the ticker
// whose recent worst window is the most negative among all that qualify.
type Selector struct {
	windowDays int // trailing return window, in sessions
	recentN    int // how many recent observations the search is bounded to
	log        *slog.Logger
}

func NewSelector(windowDays, recentN int) *Selector {
	return &Selector{
		windowDays: windowDays,
		recentN:    recentN,
		log:        slog.Default().With("component", "selector"),
	}
}

// Select evaluates every ticker's history up to date and returns the one
// with the most negative recent worst-window return, or false when nothing
// qualifies. Tickers are visited in lexical order and ties keep the first,
// so the choice is reproducible across runs.
//
// A winner whose target (the start price of its worst window) does not
// exceed its current price is rejected: such an entry could never recover
// to a profit and indicates inconsistent input.
func (s *Selector) Select(histories map[string]domain.PriceSeries, names map[string]string, date time.Time) (domain.Candidate, bool) {
	tickers := make([]string, 0, len(histories))
	for ticker := range histories {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	var (
		best  domain.Candidate
		found bool
	)
	for _, ticker := range tickers {
		truncated := histories[ticker].TruncateTo(date)
		if len(truncated) < s.recentN {
			continue
		}

		// Bound the search to recent history so an old crash does not
		// dominate every later screening.
		worst, ok := WorstWindow(truncated.Tail(s.recentN), s.windowDays)
		if !ok || worst.ReturnPct >= 0 {
			continue
		}

		current, ok := truncated.Last()
		if !ok {
			continue
		}

		if !found || worst.ReturnPct < best.ReturnPct {
			name := names[ticker]
			if name == "" {
				name = ticker
			}
			best = domain.Candidate{
				Ticker:      ticker,
				Company:     name,
				ReturnPct:   worst.ReturnPct,
				EntryPrice:  current.Close,
				TargetPrice: worst.StartPrice,
			}
			found = true
		}
	}

	if !found {
		s.log.Debug("no candidates with negative returns", "date", date.Format("2006-01-02"))
		return domain.Candidate{}, false
	}
	if best.TargetPrice <= best.EntryPrice {
		s.log.Warn("candidate rejected: target not above entry",
			"ticker", best.Ticker,
			"target", best.TargetPrice,
			"entry", best.EntryPrice,
		)
		return domain.Candidate{}, false
	}

	s.log.Debug("selected",
		"ticker", best.Ticker,
		"returnPct", best.ReturnPct,
		"entry", best.EntryPrice,
		"target", best.TargetPrice,
	)
	return best, true
}
