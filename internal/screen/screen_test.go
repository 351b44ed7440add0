package screen

import (
	"testing"
	"time"

	"meanrev/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dailySeries(start time.Time, closes ...float64) domain.PriceSeries {
	series := make(domain.PriceSeries, len(closes))
	for i, c := range closes {
		series[i] = domain.PricePoint{Date: start.AddDate(0, 0, i), Close: c}
	}
	return series
}

func company(ticker string) domain.CompanyInfo {
	return domain.CompanyInfo{
		Ticker:       ticker,
		Name:         ticker + " Inc",
		FoundingYear: 1950,
		Country:      "USA",
		Index:        domain.IndexSP500,
	}
}

func TestRankOrdersMostNegativeFirst(t *testing.T) {
	start := day(2024, 1, 1)
	histories := map[string]domain.PriceSeries{
		"AAA": dailySeries(start, 100, 100, 100, 100, 100, 95, 95, 95, 95, 95),
		"BBB": dailySeries(start, 100, 100, 100, 100, 100, 80, 80, 80, 80, 80),
		"CCC": dailySeries(start, 100, 101, 102, 103, 104, 105, 106, 107, 108, 109),
	}
	companies := []domain.CompanyInfo{company("AAA"), company("BBB"), company("CCC")}

	rows, skipped := New(5).Rank(histories, companies, start.AddDate(0, 0, 9))
	if len(skipped) != 0 {
		t.Fatalf("skipped = %v, want none", skipped)
	}
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}

	if rows[0].Ticker != "BBB" || rows[1].Ticker != "AAA" || rows[2].Ticker != "CCC" {
		t.Fatalf("order = %s, %s, %s, want BBB, AAA, CCC",
			rows[0].Ticker, rows[1].Ticker, rows[2].Ticker)
	}
	for i, row := range rows {
		if row.Rank != i+1 {
			t.Errorf("rows[%d].Rank = %d, want %d", i, row.Rank, i+1)
		}
	}
	if rows[0].ReturnPct != -20.0 {
		t.Errorf("worst ReturnPct = %v, want -20.0", rows[0].ReturnPct)
	}
	// Even the rising CCC ranks; its minimum trailing return is positive.
	if rows[2].ReturnPct <= 0 {
		t.Errorf("CCC ReturnPct = %v, want positive", rows[2].ReturnPct)
	}
}

func TestRankRowFields(t *testing.T) {
	start := day(2024, 1, 1)
	histories := map[string]domain.PriceSeries{
		"AAA": dailySeries(start, 100, 100, 100, 100, 100, 90, 90, 90, 90, 92),
	}
	asOf := start.AddDate(0, 0, 9)

	rows, _ := New(5).Rank(histories, []domain.CompanyInfo{company("AAA")}, asOf)
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	row := rows[0]

	if row.Company != "AAA Inc" || row.Country != "USA" || row.Index != domain.IndexSP500 {
		t.Errorf("metadata fields = %q/%q/%q, want AAA Inc/USA/SP500",
			row.Company, row.Country, row.Index)
	}
	if row.AgeYears != asOf.Year()-1950 {
		t.Errorf("AgeYears = %d, want %d", row.AgeYears, asOf.Year()-1950)
	}
	if row.ReturnPct != -10.0 {
		t.Errorf("ReturnPct = %v, want -10.0", row.ReturnPct)
	}
	if !row.WindowStart.Equal(start) {
		t.Errorf("WindowStart = %v, want %v", row.WindowStart, start)
	}
	if !row.WindowEnd.Equal(start.AddDate(0, 0, 5)) {
		t.Errorf("WindowEnd = %v, want the 90 close", row.WindowEnd)
	}
	if row.StartPrice != 100 || row.EndPrice != 90 {
		t.Errorf("window prices = %v -> %v, want 100 -> 90", row.StartPrice, row.EndPrice)
	}
	if row.CurrentPrice != 92 {
		t.Errorf("CurrentPrice = %v, want last close 92", row.CurrentPrice)
	}
	if row.TargetPrice != 100 {
		t.Errorf("TargetPrice = %v, want window start 100", row.TargetPrice)
	}
	wantUpside := (100.0 - 92.0) / 92.0 * 100
	if row.UpsidePct != wantUpside {
		t.Errorf("UpsidePct = %v, want %v", row.UpsidePct, wantUpside)
	}
}

func TestRankSkipsUnusable(t *testing.T) {
	start := day(2024, 1, 1)
	histories := map[string]domain.PriceSeries{
		"AAA":   dailySeries(start, 100, 100, 100, 100, 100, 90, 90, 90, 90, 90),
		"SHORT": dailySeries(start, 100, 99, 98), // too short for one trailing return
	}
	companies := []domain.CompanyInfo{company("AAA"), company("NODATA"), company("SHORT")}

	rows, skipped := New(5).Rank(histories, companies, start.AddDate(0, 0, 9))
	if len(rows) != 1 || rows[0].Ticker != "AAA" {
		t.Fatalf("rows = %v, want only AAA", rows)
	}
	if len(skipped) != 2 {
		t.Fatalf("skipped = %v, want NODATA and SHORT", skipped)
	}
}

func TestRankTiesKeepCompanyOrder(t *testing.T) {
	start := day(2024, 1, 1)
	drop := []float64{100, 100, 100, 100, 100, 90, 90, 90, 90, 90}
	histories := map[string]domain.PriceSeries{
		"AAA": dailySeries(start, drop...),
		"MMM": dailySeries(start, drop...),
		"ZZZ": dailySeries(start, drop...),
	}
	companies := []domain.CompanyInfo{company("AAA"), company("MMM"), company("ZZZ")}

	rows, _ := New(5).Rank(histories, companies, start.AddDate(0, 0, 9))
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}
	if rows[0].Ticker != "AAA" || rows[1].Ticker != "MMM" || rows[2].Ticker != "ZZZ" {
		t.Errorf("tie order = %s, %s, %s, want stable lexical order",
			rows[0].Ticker, rows[1].Ticker, rows[2].Ticker)
	}
}

func TestRankIgnoresFutureData(t *testing.T) {
	start := day(2024, 1, 1)
	// The crash sits entirely after asOf and must not leak into the ranking.
	histories := map[string]domain.PriceSeries{
		"AAA": dailySeries(start, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 50, 50, 50, 50, 50),
	}

	rows, _ := New(5).Rank(histories, []domain.CompanyInfo{company("AAA")}, start.AddDate(0, 0, 9))
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	if rows[0].ReturnPct != 0 {
		t.Errorf("ReturnPct = %v, want 0 for the flat prefix", rows[0].ReturnPct)
	}
	if rows[0].CurrentPrice != 100 {
		t.Errorf("CurrentPrice = %v, want 100 as of the cutoff", rows[0].CurrentPrice)
	}
}
