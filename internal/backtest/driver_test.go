package backtest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"meanrev/internal/domain"
)

func testParams(runAt time.Time) domain.RunParams {
	return domain.RunParams{
		RunAt:                  runAt,
		Indices:                []string{"SP500"},
		LookbackYears:          1,
		ScreeningFrequencyDays: 7,
		InvestmentPerTrade:     1000,
		WindowDays:             5,
		RecentWindow:           10,
	}
}

type segment struct {
	days  int
	close float64
}

// segmentSeries builds a daily series from consecutive flat segments,
// starting 20 days before start so the earliest screenings already have
// history.
func segmentSeries(start time.Time, segments ...segment) domain.PriceSeries {
	var closes []float64
	for _, seg := range segments {
		for i := 0; i < seg.days; i++ {
			closes = append(closes, seg.close)
		}
	}
	return dailySeries(start.AddDate(0, 0, -20), closes...)
}

func TestRunFullCycle(t *testing.T) {
	runAt := day(2025, 6, 30)
	start := runAt.AddDate(0, 0, -365)

	// Flat at 100, a -10% drop visible at the third screening, a partial
	// recovery, then above target from day 28 on.
	histories := map[string]domain.PriceSeries{
		"AAA": segmentSeries(start,
			segment{29, 100},  // through day +8
			segment{13, 90},   // days +9..+21
			segment{6, 95},    // days +22..+27
			segment{338, 102}, // days +28..+365
		),
	}
	names := map[string]string{"AAA": "Alpha Corp"}

	engine := NewEngine(testParams(runAt), histories, names)
	result, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.TotalTrades != 1 {
		t.Fatalf("TotalTrades = %d, want 1", result.TotalTrades)
	}
	if result.StillOpen != 0 {
		t.Errorf("StillOpen = %d, want 0", result.StillOpen)
	}
	if result.WinningTrades != 1 || result.LosingTrades != 0 {
		t.Errorf("wins/losses = %d/%d, want 1/0", result.WinningTrades, result.LosingTrades)
	}

	trade := result.Trades[0]
	if trade.Company != "Alpha Corp" {
		t.Errorf("Company = %q, want Alpha Corp", trade.Company)
	}
	if !trade.EntryDate.Equal(start.AddDate(0, 0, 14)) {
		t.Errorf("EntryDate = %v, want the third screening (day +14)", trade.EntryDate)
	}
	if trade.EntryPrice != 90 || trade.TargetPrice != 100 {
		t.Errorf("entry/target = %v/%v, want 90/100", trade.EntryPrice, trade.TargetPrice)
	}
	if !trade.ExitDate.Equal(start.AddDate(0, 0, 28)) {
		t.Errorf("ExitDate = %v, want day +28", trade.ExitDate)
	}
	if trade.ExitPrice != 102 {
		t.Errorf("ExitPrice = %v, want 102", trade.ExitPrice)
	}
	if trade.HoldingDays != 14 {
		t.Errorf("HoldingDays = %d, want 14", trade.HoldingDays)
	}

	shares := 1000.0 / 90.0
	wantPnL := shares * (102.0 - 90.0)
	if trade.PnL != wantPnL {
		t.Errorf("PnL = %v, want exactly %v", trade.PnL, wantPnL)
	}
	if result.TotalPnL != wantPnL {
		t.Errorf("TotalPnL = %v, want %v", result.TotalPnL, wantPnL)
	}
	if result.TotalInvested != 1000 {
		t.Errorf("TotalInvested = %v, want 1000", result.TotalInvested)
	}
	if result.AvgHoldingDays != 14 {
		t.Errorf("AvgHoldingDays = %v, want 14", result.AvgHoldingDays)
	}
	for _, b := range result.HoldingDistribution {
		want := 0
		if b.Label == "14-30" {
			want = 1
		}
		if b.Count != want {
			t.Errorf("bucket %s count = %d, want %d", b.Label, b.Count, want)
		}
	}
}

func TestRunForcedCloseAtHorizon(t *testing.T) {
	runAt := day(2025, 6, 30)
	start := runAt.AddDate(0, 0, -365)

	// A drop appearing only in the final days: the position opens at a late
	// screening, never recovers, and is force-closed at the horizon.
	histories := map[string]domain.PriceSeries{
		"AAA": segmentSeries(start,
			segment{376, 100}, // through day +355
			segment{10, 92},   // days +356..+365
		),
	}

	engine := NewEngine(testParams(runAt), histories, nil)
	result, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.TotalTrades != 1 {
		t.Fatalf("TotalTrades = %d, want 1", result.TotalTrades)
	}
	if result.StillOpen != 0 {
		t.Errorf("StillOpen = %d, want 0 (horizon close had a price)", result.StillOpen)
	}

	trade := result.Trades[0]
	if !trade.Closed {
		t.Fatal("trade not closed at horizon")
	}
	if !trade.ExitDate.Equal(runAt) {
		t.Errorf("ExitDate = %v, want the horizon %v", trade.ExitDate, runAt)
	}
	if trade.ExitPrice != 92 {
		t.Errorf("ExitPrice = %v, want last known price 92", trade.ExitPrice)
	}
	// Entered at 92 on day +357, closed at 92 on day +365.
	if trade.HoldingDays != 8 {
		t.Errorf("HoldingDays = %d, want 8", trade.HoldingDays)
	}
	if trade.PnL != 0 {
		t.Errorf("PnL = %v, want 0", trade.PnL)
	}
	// A zero-P&L close is neither a win nor a loss.
	if result.WinningTrades != 0 || result.LosingTrades != 0 {
		t.Errorf("wins/losses = %d/%d, want 0/0", result.WinningTrades, result.LosingTrades)
	}
}

func TestRunEmptyHistories(t *testing.T) {
	engine := NewEngine(testParams(day(2025, 6, 30)), map[string]domain.PriceSeries{}, nil)
	result, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.TotalTrades != 0 || result.StillOpen != 0 || result.TotalPnL != 0 {
		t.Errorf("result = %+v, want all-zero counts", result)
	}
	if len(result.Warnings) == 0 {
		t.Error("empty run produced no warning")
	}
}

func TestRunCancelled(t *testing.T) {
	runAt := day(2025, 6, 30)
	start := runAt.AddDate(0, 0, -365)
	histories := map[string]domain.PriceSeries{
		"AAA": segmentSeries(start, segment{386, 100}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine(testParams(runAt), histories, nil).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run with cancelled context returned %v, want context.Canceled", err)
	}
}

func TestForceCloseLeavesUnquotedOpen(t *testing.T) {
	runAt := day(2025, 6, 30)
	start := runAt.AddDate(0, 0, -365)
	histories := map[string]domain.PriceSeries{
		"AAA": segmentSeries(start, segment{386, 100}),
	}

	engine := NewEngine(testParams(runAt), histories, nil)
	engine.book.Open(domain.Candidate{Ticker: "AAA", EntryPrice: 90, TargetPrice: 200}, start)
	engine.book.Open(domain.Candidate{Ticker: "GHOST", EntryPrice: 90, TargetPrice: 200}, start)

	engine.forceClose(engine.params.RunAt)

	if got := len(engine.book.Closed()); got != 1 {
		t.Fatalf("Closed() returned %d trades, want 1 (AAA only)", got)
	}
	if engine.book.Closed()[0].Ticker != "AAA" {
		t.Errorf("closed %s, want AAA", engine.book.Closed()[0].Ticker)
	}
	if engine.book.OpenCount() != 1 {
		t.Errorf("OpenCount = %d, want 1 (GHOST kept open, not dropped)", engine.book.OpenCount())
	}

	found := false
	for _, w := range engine.book.Warnings() {
		if strings.Contains(w, "GHOST") {
			found = true
		}
	}
	if !found {
		t.Errorf("Warnings = %v, want one naming GHOST", engine.book.Warnings())
	}
}
