package prices

import (
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"meanrev/internal/domain"
)

func TestSplitBatches(t *testing.T) {
	tickers := []string{"A", "B", "C", "D", "E"}

	batches := splitBatches(tickers, 2)
	if len(batches) != 3 {
		t.Fatalf("splitBatches(5, 2) returned %d batches, want 3", len(batches))
	}
	if len(batches[0]) != 2 || len(batches[1]) != 2 || len(batches[2]) != 1 {
		t.Errorf("batch sizes = %d/%d/%d, want 2/2/1",
			len(batches[0]), len(batches[1]), len(batches[2]))
	}

	batches = splitBatches(tickers, 10)
	if len(batches) != 1 || len(batches[0]) != 5 {
		t.Errorf("splitBatches(5, 10) = %v, want single batch of 5", batches)
	}

	if batches := splitBatches(nil, 2); len(batches) != 0 {
		t.Errorf("splitBatches(nil) returned %d batches, want 0", len(batches))
	}
}

func TestBarsToSeries(t *testing.T) {
	// Alpaca stamps daily bars at the session start, not midnight. Bars
	// arrive possibly out of order and with a duplicate day.
	bars := []marketdata.Bar{
		{Timestamp: time.Date(2024, 1, 3, 5, 0, 0, 0, time.UTC), Close: 186.0},
		{Timestamp: time.Date(2024, 1, 2, 5, 0, 0, 0, time.UTC), Close: 185.5},
		{Timestamp: time.Date(2024, 1, 3, 5, 0, 0, 0, time.UTC), Close: 186.5},
	}

	got := barsToSeries(bars)
	if len(got) != 2 {
		t.Fatalf("barsToSeries returned %d points, want 2", len(got))
	}
	if !got[0].Date.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first Date = %v, want 2024-01-02 midnight UTC", got[0].Date)
	}
	if got[0].Close != 185.5 {
		t.Errorf("first Close = %v, want 185.5", got[0].Close)
	}
	// Duplicate day keeps the later occurrence.
	if got[1].Close != 186.5 {
		t.Errorf("second Close = %v, want 186.5", got[1].Close)
	}
}

func TestIsFresh(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)

	mkSeries := func(first, last time.Time) domain.PriceSeries {
		return domain.PriceSeries{
			{Date: first, Close: 100},
			{Date: last, Close: 101},
		}
	}

	if isFresh(nil, start, end) {
		t.Error("empty series reported fresh")
	}

	// Last close the Friday before a requested weekend end is fresh.
	fresh := mkSeries(start, end.AddDate(0, 0, -2))
	if !isFresh(fresh, start, end) {
		t.Error("series ending 2 days before end reported stale")
	}

	// Last close 2 weeks old is stale.
	stale := mkSeries(start, end.AddDate(0, 0, -14))
	if isFresh(stale, start, end) {
		t.Error("series ending 14 days before end reported fresh")
	}

	// Series starting well after the requested start needs a full refetch.
	short := mkSeries(start.AddDate(0, 1, 15), end)
	if isFresh(short, start, end) {
		t.Error("series starting 45 days after start reported fresh")
	}
}
