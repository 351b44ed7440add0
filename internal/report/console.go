package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"meanrev/internal/domain"
	"meanrev/internal/screen"
	"meanrev/internal/util"
)

const rule = "================================================================================"

// topTrades is how many winners and losers the console summary lists.
const topTrades = 5

// screeningTableRows caps the console screening table; the JSON document
// carries the full ranking.
const screeningTableRows = 15

// Summary prints the human-readable backtest summary.
func Summary(w io.Writer, result *domain.Result) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "BACKTEST SUMMARY")
	fmt.Fprintln(w, rule)

	closed := result.TotalTrades - result.StillOpen

	fmt.Fprintln(w, "\nOverall Performance:")
	fmt.Fprintf(w, "  Total trades: %s\n", FormatInt(result.TotalTrades))
	fmt.Fprintf(w, "  Closed trades: %s\n", FormatInt(closed))
	fmt.Fprintf(w, "  Still open: %s\n", FormatInt(result.StillOpen))
	fmt.Fprintf(w, "  Winning trades: %s\n", FormatInt(result.WinningTrades))
	fmt.Fprintf(w, "  Losing trades: %s\n", FormatInt(result.LosingTrades))
	if closed > 0 {
		fmt.Fprintf(w, "  Win rate: %.1f%%\n", float64(result.WinningTrades)/float64(closed)*100)
	}

	fmt.Fprintf(w, "\n  Total P&L: %s\n", FormatMoney(result.TotalPnL))
	fmt.Fprintf(w, "  Total invested: %s\n", FormatMoney(result.TotalInvested))
	if result.TotalInvested > 0 {
		fmt.Fprintf(w, "  Return: %.2f%%\n", result.TotalPnL/result.TotalInvested*100)
	}
	fmt.Fprintf(w, "\n  Average holding period: %.1f days\n", result.AvgHoldingDays)

	if closed > 0 && len(result.HoldingDistribution) > 0 {
		fmt.Fprintln(w, "\nHolding Period Distribution:")
		for _, b := range result.HoldingDistribution {
			pct := float64(b.Count) / float64(closed) * 100
			fmt.Fprintf(w, "  %-8s days : %3d (%5.1f%%) %s\n", b.Label, b.Count, pct, Bar(pct))
		}
	}

	printTopTrades(w, result.Trades)

	if len(result.Warnings) > 0 {
		fmt.Fprintln(w, "\nWarnings:")
		for _, warning := range result.Warnings {
			fmt.Fprintf(w, "  - %s\n", warning)
		}
	}

	fmt.Fprintln(w, rule)
}

// printTopTrades lists the best and worst closed trades by P&L. The losers
// block only appears once there are enough closed trades to fill it.
func printTopTrades(w io.Writer, trades []domain.Trade) {
	var closed []domain.Trade
	for _, t := range trades {
		if t.Closed {
			closed = append(closed, t)
		}
	}
	if len(closed) == 0 {
		return
	}
	sort.SliceStable(closed, func(i, j int) bool { return closed[i].PnL > closed[j].PnL })

	fmt.Fprintf(w, "\nTop %d Winners:\n", topTrades)
	for i, t := range closed {
		if i >= topTrades {
			break
		}
		printTradeLine(w, i+1, t)
	}

	if len(closed) >= topTrades {
		fmt.Fprintf(w, "\nTop %d Losers:\n", topTrades)
		for i := 0; i < topTrades && i < len(closed); i++ {
			printTradeLine(w, i+1, closed[len(closed)-1-i])
		}
	}
}

func printTradeLine(w io.Writer, rank int, t domain.Trade) {
	pnlPct := 0.0
	if invested := t.EntryPrice * t.Shares; invested > 0 {
		pnlPct = t.PnL / invested * 100
	}
	fmt.Fprintf(w, "  %d. %-6s - %9s (%+6.1f%%) - %3d days - %s to %s\n",
		rank, t.Ticker, FormatMoney(t.PnL), pnlPct, t.HoldingDays,
		util.FormatDay(t.EntryDate), util.FormatDay(t.ExitDate))
}

// ScreeningSummary prints the screening funnel counts and a table of the
// worst-ranked rows.
func ScreeningSummary(w io.Writer, out *screen.Output) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "SCREENING SUMMARY")
	fmt.Fprintln(w, rule)

	fmt.Fprintf(w, "Screening date: %s\n", util.FormatDay(out.ScreenedAt))
	fmt.Fprintf(w, "Indices: %s\n", strings.Join(out.Indices, ", "))
	fmt.Fprintf(w, "Total candidates: %s\n", FormatInt(out.TotalCandidates))
	fmt.Fprintf(w, "Companies with metadata: %s\n", FormatInt(out.WithMetadata))
	fmt.Fprintf(w, "Companies screened: %s\n", FormatInt(out.Screened))
	fmt.Fprintf(w, "Excluded (no metadata): %s\n", FormatInt(out.ExcludedNoMetadata))
	fmt.Fprintf(w, "Excluded (too young): %s\n", FormatInt(out.ExcludedTooYoung))

	if len(out.Warnings) > 0 {
		fmt.Fprintln(w, "\nWarnings:")
		for _, warning := range out.Warnings {
			fmt.Fprintf(w, "  - %s\n", warning)
		}
	}

	if len(out.Rows) > 0 {
		fmt.Fprintf(w, "\nWorst performers (top %d of %d):\n", min(screeningTableRows, len(out.Rows)), len(out.Rows))
		fmt.Fprintf(w, "  %4s  %-8s %-28s %8s %9s %9s %8s\n",
			"Rank", "Ticker", "Company", "Return", "Current", "Target", "Upside")
		for _, r := range out.Rows {
			if r.Rank > screeningTableRows {
				break
			}
			name := r.Company
			if len(name) > 28 {
				name = name[:25] + "..."
			}
			fmt.Fprintf(w, "  %4d  %-8s %-28s %7.2f%% %9.2f %9.2f %7.1f%%\n",
				r.Rank, r.Ticker, name, r.ReturnPct, r.CurrentPrice, r.TargetPrice, r.UpsidePct)
		}
	}

	fmt.Fprintln(w, rule)
}
