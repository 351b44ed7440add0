// Package report renders backtest and screening results as JSON documents
// and console summaries. All rounding of money and percentage values happens
// here; upstream arithmetic is exact.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"meanrev/internal/domain"
	"meanrev/internal/screen"
	"meanrev/internal/util"
)

// ---------------------------------------------------------------------------
// Backtest document
// ---------------------------------------------------------------------------

// Document is the JSON shape of one backtest report.
type Document struct {
	GeneratedAt  string       `json:"generated_at"`
	Parameters   Parameters   `json:"parameters"`
	Summary      SummaryJSON  `json:"summary"`
	Distribution []BucketJSON `json:"holding_days_distribution"`
	Trades       []TradeJSON  `json:"trades"`
	Warnings     []string     `json:"warnings,omitempty"`
}

// Parameters echoes the run configuration so a report is interpretable on
// its own.
type Parameters struct {
	RunAt                  string   `json:"run_at"`
	Indices                []string `json:"indices"`
	LookbackYears          int      `json:"lookback_years"`
	ScreeningFrequencyDays int      `json:"screening_frequency_days"`
	InvestmentPerTrade     float64  `json:"investment_per_trade"`
	WindowDays             int      `json:"window_days"`
	RecentWindow           int      `json:"recent_window"`
}

// SummaryJSON is the headline statistics block.
type SummaryJSON struct {
	TotalTrades    int     `json:"total_trades"`
	ClosedTrades   int     `json:"closed_trades"`
	StillOpen      int     `json:"still_open"`
	WinningTrades  int     `json:"winning_trades"`
	LosingTrades   int     `json:"losing_trades"`
	TotalPnL       float64 `json:"total_pnl"`
	TotalInvested  float64 `json:"total_invested"`
	ReturnPct      float64 `json:"return_pct"`
	AvgHoldingDays float64 `json:"avg_holding_days"`
}

// BucketJSON is one holding-period histogram bar.
type BucketJSON struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

// TradeJSON is one ledger entry. The exit fields are null while a position
// is still open.
type TradeJSON struct {
	Ticker      string   `json:"ticker"`
	Company     string   `json:"company_name"`
	EntryDate   string   `json:"entry_date"`
	EntryPrice  float64  `json:"entry_price"`
	Shares      float64  `json:"shares"`
	TargetPrice float64  `json:"target_price"`
	ExitDate    *string  `json:"exit_date"`
	ExitPrice   *float64 `json:"exit_price"`
	HoldingDays *int     `json:"holding_days"`
	PnL         *float64 `json:"pnl"`
	PnLPct      *float64 `json:"pnl_pct"`
}

// NewDocument converts a finished run into its serializable report form.
func NewDocument(params domain.RunParams, result *domain.Result) *Document {
	doc := &Document{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Parameters: Parameters{
			RunAt:                  util.FormatDay(params.RunAt),
			Indices:                params.Indices,
			LookbackYears:          params.LookbackYears,
			ScreeningFrequencyDays: params.ScreeningFrequencyDays,
			InvestmentPerTrade:     params.InvestmentPerTrade,
			WindowDays:             params.WindowDays,
			RecentWindow:           params.RecentWindow,
		},
		Summary: SummaryJSON{
			TotalTrades:    result.TotalTrades,
			ClosedTrades:   result.TotalTrades - result.StillOpen,
			StillOpen:      result.StillOpen,
			WinningTrades:  result.WinningTrades,
			LosingTrades:   result.LosingTrades,
			TotalPnL:       Round2(result.TotalPnL),
			TotalInvested:  Round2(result.TotalInvested),
			AvgHoldingDays: Round1(result.AvgHoldingDays),
		},
		Warnings: result.Warnings,
	}
	if result.TotalInvested > 0 {
		doc.Summary.ReturnPct = Round2(result.TotalPnL / result.TotalInvested * 100)
	}

	doc.Distribution = make([]BucketJSON, 0, len(result.HoldingDistribution))
	for _, b := range result.HoldingDistribution {
		doc.Distribution = append(doc.Distribution, BucketJSON{Range: b.Label, Count: b.Count})
	}

	doc.Trades = make([]TradeJSON, 0, len(result.Trades))
	for _, t := range result.Trades {
		doc.Trades = append(doc.Trades, newTradeJSON(t))
	}
	return doc
}

func newTradeJSON(t domain.Trade) TradeJSON {
	tj := TradeJSON{
		Ticker:      t.Ticker,
		Company:     t.Company,
		EntryDate:   util.FormatDay(t.EntryDate),
		EntryPrice:  Round2(t.EntryPrice),
		Shares:      Round4(t.Shares),
		TargetPrice: Round2(t.TargetPrice),
	}
	if !t.Closed {
		return tj
	}

	exitDate := util.FormatDay(t.ExitDate)
	exitPrice := Round2(t.ExitPrice)
	holding := t.HoldingDays
	pnl := Round2(t.PnL)
	tj.ExitDate = &exitDate
	tj.ExitPrice = &exitPrice
	tj.HoldingDays = &holding
	tj.PnL = &pnl
	if invested := t.EntryPrice * t.Shares; invested > 0 {
		pct := Round2(t.PnL / invested * 100)
		tj.PnLPct = &pct
	}
	return tj
}

// WriteBacktest writes the backtest report as indented JSON, creating
// parent directories as needed.
func WriteBacktest(path string, params domain.RunParams, result *domain.Result) error {
	return writeJSON(path, NewDocument(params, result))
}

// ---------------------------------------------------------------------------
// Screening document
// ---------------------------------------------------------------------------

// ScreeningDocument is the JSON shape of one screening run.
type ScreeningDocument struct {
	Metadata ScreeningMetadata  `json:"metadata"`
	Results  []ScreeningRowJSON `json:"results"`
	Warnings []string           `json:"warnings"`
}

// ScreeningMetadata records the screening date, the filters applied, and
// the funnel counts.
type ScreeningMetadata struct {
	ScreeningDate         string   `json:"screening_date"`
	Indices               []string `json:"indices"`
	Countries             []string `json:"countries"`
	MinAgeYears           int      `json:"min_age_years"`
	LookbackDays          int      `json:"lookback_days"`
	TotalCandidates       int      `json:"total_candidates"`
	CompaniesWithMetadata int      `json:"companies_with_metadata"`
	CompaniesScreened     int      `json:"companies_screened"`
	ExcludedNoMetadata    int      `json:"excluded_no_metadata"`
	ExcludedTooYoung      int      `json:"excluded_too_young"`
}

// ScreeningRowJSON is one ranked screening result.
type ScreeningRowJSON struct {
	Rank         int     `json:"rank"`
	Ticker       string  `json:"ticker"`
	Company      string  `json:"company_name"`
	Country      string  `json:"country"`
	Index        string  `json:"index"`
	FoundingYear int     `json:"founding_year"`
	AgeYears     int     `json:"company_age_years"`
	ReturnPct    float64 `json:"return_pct"`
	WindowStart  string  `json:"window_start"`
	WindowEnd    string  `json:"window_end"`
	StartPrice   float64 `json:"start_price"`
	EndPrice     float64 `json:"end_price"`
	CurrentPrice float64 `json:"current_price"`
	TargetPrice  float64 `json:"target_price"`
	UpsidePct    float64 `json:"upside_pct"`
}

// NewScreeningDocument converts a screening output into its serializable
// form.
func NewScreeningDocument(out *screen.Output) *ScreeningDocument {
	doc := &ScreeningDocument{
		Metadata: ScreeningMetadata{
			ScreeningDate:         util.FormatDay(out.ScreenedAt),
			Indices:               out.Indices,
			Countries:             out.Countries,
			MinAgeYears:           out.MinAgeYears,
			LookbackDays:          out.LookbackDays,
			TotalCandidates:       out.TotalCandidates,
			CompaniesWithMetadata: out.WithMetadata,
			CompaniesScreened:     out.Screened,
			ExcludedNoMetadata:    out.ExcludedNoMetadata,
			ExcludedTooYoung:      out.ExcludedTooYoung,
		},
		Results:  make([]ScreeningRowJSON, 0, len(out.Rows)),
		Warnings: out.Warnings,
	}
	for _, r := range out.Rows {
		doc.Results = append(doc.Results, ScreeningRowJSON{
			Rank:         r.Rank,
			Ticker:       r.Ticker,
			Company:      r.Company,
			Country:      r.Country,
			Index:        r.Index,
			FoundingYear: r.FoundingYear,
			AgeYears:     r.AgeYears,
			ReturnPct:    Round2(r.ReturnPct),
			WindowStart:  util.FormatDay(r.WindowStart),
			WindowEnd:    util.FormatDay(r.WindowEnd),
			StartPrice:   Round2(r.StartPrice),
			EndPrice:     Round2(r.EndPrice),
			CurrentPrice: Round2(r.CurrentPrice),
			TargetPrice:  Round2(r.TargetPrice),
			UpsidePct:    Round2(r.UpsidePct),
		})
	}
	return doc
}

// WriteScreening writes the screening report as indented JSON.
func WriteScreening(path string, out *screen.Output) error {
	return writeJSON(path, NewScreeningDocument(out))
}

func writeJSON(path string, doc any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report dir: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
