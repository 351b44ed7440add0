package backtest

import (
	"strings"
	"testing"

	"meanrev/internal/domain"
)

func TestOpenComputesShares(t *testing.T) {
	book := NewBook(50)
	book.Open(domain.Candidate{
		Ticker:      "AAA",
		Company:     "Alpha Corp",
		EntryPrice:  25,
		TargetPrice: 30,
	}, day(2024, 1, 1))

	if book.OpenCount() != 1 {
		t.Fatalf("OpenCount = %d, want 1", book.OpenCount())
	}
	trade := book.OpenTrades()[0]
	if trade.Shares != 2.0 {
		t.Errorf("Shares = %v, want 2.0 (50 / 25)", trade.Shares)
	}
	if trade.Closed {
		t.Error("new trade reported closed")
	}

	book.Close("AAA", 30, day(2024, 1, 31))

	closed := book.Closed()
	if len(closed) != 1 {
		t.Fatalf("Closed() returned %d trades, want 1", len(closed))
	}
	if closed[0].PnL != 10.0 {
		t.Errorf("PnL = %v, want exactly 10.0 (2 shares x 5)", closed[0].PnL)
	}
	if closed[0].HoldingDays != 30 {
		t.Errorf("HoldingDays = %d, want 30", closed[0].HoldingDays)
	}
	if book.OpenCount() != 0 {
		t.Errorf("OpenCount after close = %d, want 0", book.OpenCount())
	}
}

func TestOpenNoPyramiding(t *testing.T) {
	book := NewBook(100)
	first := domain.Candidate{Ticker: "AAA", EntryPrice: 50, TargetPrice: 60}
	book.Open(first, day(2024, 1, 1))
	book.Open(domain.Candidate{Ticker: "AAA", EntryPrice: 40, TargetPrice: 55}, day(2024, 1, 8))

	if book.OpenCount() != 1 {
		t.Fatalf("OpenCount = %d, want 1 (second open must be a no-op)", book.OpenCount())
	}
	if got := book.OpenTrades()[0].EntryPrice; got != 50 {
		t.Errorf("EntryPrice = %v, want original 50", got)
	}
}

func TestOpenTargetGuard(t *testing.T) {
	cases := []struct {
		name string
		cand domain.Candidate
	}{
		{"target below entry", domain.Candidate{Ticker: "AAA", EntryPrice: 50, TargetPrice: 45}},
		{"target equals entry", domain.Candidate{Ticker: "BBB", EntryPrice: 50, TargetPrice: 50}},
		{"zero entry", domain.Candidate{Ticker: "CCC", EntryPrice: 0, TargetPrice: 10}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			book := NewBook(100)
			book.Open(tc.cand, day(2024, 1, 1))

			if book.OpenCount() != 0 {
				t.Errorf("OpenCount = %d, want 0", book.OpenCount())
			}
			if len(book.Warnings()) != 1 {
				t.Fatalf("Warnings = %v, want one recorded skip", book.Warnings())
			}
			if !strings.Contains(book.Warnings()[0], tc.cand.Ticker) {
				t.Errorf("warning %q does not name the ticker", book.Warnings()[0])
			}
		})
	}
}

func TestCloseIdempotent(t *testing.T) {
	book := NewBook(100)
	book.Open(domain.Candidate{Ticker: "AAA", EntryPrice: 50, TargetPrice: 60}, day(2024, 1, 1))

	book.Close("AAA", 60, day(2024, 1, 15))
	book.Close("AAA", 70, day(2024, 1, 22)) // already closed
	book.Close("ZZZ", 10, day(2024, 1, 22)) // never opened

	if len(book.Closed()) != 1 {
		t.Fatalf("Closed() returned %d trades, want 1", len(book.Closed()))
	}
	if got := book.Closed()[0].ExitPrice; got != 60 {
		t.Errorf("ExitPrice = %v, want 60 from the first close", got)
	}
}

func TestMarkToMarket(t *testing.T) {
	start := day(2024, 1, 1)
	histories := map[string]domain.PriceSeries{
		"HIT":  dailySeries(start, 90, 95, 105),
		"MISS": dailySeries(start, 90, 92, 94),
	}

	book := NewBook(100)
	book.Open(domain.Candidate{Ticker: "HIT", EntryPrice: 90, TargetPrice: 100}, start)
	book.Open(domain.Candidate{Ticker: "MISS", EntryPrice: 90, TargetPrice: 100}, start)
	book.Open(domain.Candidate{Ticker: "NODATA", EntryPrice: 90, TargetPrice: 100}, start)

	book.MarkToMarket(histories, start.AddDate(0, 0, 2))

	if len(book.Closed()) != 1 {
		t.Fatalf("Closed() returned %d trades, want 1", len(book.Closed()))
	}
	closed := book.Closed()[0]
	if closed.Ticker != "HIT" {
		t.Errorf("closed Ticker = %s, want HIT", closed.Ticker)
	}
	// A gap above the target exits at the actual quote, not the target.
	if closed.ExitPrice != 105 {
		t.Errorf("ExitPrice = %v, want 105", closed.ExitPrice)
	}
	if book.OpenCount() != 2 {
		t.Errorf("OpenCount = %d, want 2 (MISS below target, NODATA unquoted)", book.OpenCount())
	}
}

func TestMarkToMarketNearestPrior(t *testing.T) {
	start := day(2024, 1, 5) // Friday
	histories := map[string]domain.PriceSeries{
		"AAA": dailySeries(start, 102),
	}

	book := NewBook(100)
	book.Open(domain.Candidate{Ticker: "AAA", EntryPrice: 90, TargetPrice: 100}, start)

	// Sunday screening: Friday's 102 is the last known price and it is at
	// target, so the exit happens on the screening date.
	sunday := start.AddDate(0, 0, 2)
	book.MarkToMarket(histories, sunday)

	if len(book.Closed()) != 1 {
		t.Fatalf("Closed() returned %d trades, want 1", len(book.Closed()))
	}
	closed := book.Closed()[0]
	if closed.ExitPrice != 102 {
		t.Errorf("ExitPrice = %v, want Friday close 102", closed.ExitPrice)
	}
	if !closed.ExitDate.Equal(sunday) {
		t.Errorf("ExitDate = %v, want the screening date %v", closed.ExitDate, sunday)
	}
	if closed.HoldingDays != 2 {
		t.Errorf("HoldingDays = %d, want 2 calendar days", closed.HoldingDays)
	}
}

func TestPnLSignMatchesPriceMove(t *testing.T) {
	cases := []struct {
		name      string
		exitPrice float64
		wantWin   bool
		wantLoss  bool
	}{
		{"exit above entry", 55, true, false},
		{"exit below entry", 45, false, true},
		{"exit at entry", 50, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			book := NewBook(100)
			book.Open(domain.Candidate{Ticker: "AAA", EntryPrice: 50, TargetPrice: 60}, day(2024, 1, 1))
			book.Close("AAA", tc.exitPrice, day(2024, 1, 15))

			trade := book.Closed()[0]
			if trade.Win() != tc.wantWin {
				t.Errorf("Win() = %v, want %v", trade.Win(), tc.wantWin)
			}
			if trade.Loss() != tc.wantLoss {
				t.Errorf("Loss() = %v, want %v", trade.Loss(), tc.wantLoss)
			}
		})
	}
}
