package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"meanrev/internal/domain"
	"meanrev/internal/util"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RunStore = (*ResultStore)(nil)

const resultSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	run_at           TEXT    NOT NULL,
	indices          TEXT    NOT NULL,
	lookback_years   INTEGER NOT NULL,
	frequency_days   INTEGER NOT NULL,
	investment       REAL    NOT NULL,
	window_days      INTEGER NOT NULL,
	recent_window    INTEGER NOT NULL,
	total_pnl        REAL    NOT NULL,
	total_invested   REAL    NOT NULL,
	total_trades     INTEGER NOT NULL,
	winning_trades   INTEGER NOT NULL,
	losing_trades    INTEGER NOT NULL,
	still_open       INTEGER NOT NULL,
	avg_holding_days REAL    NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       INTEGER NOT NULL REFERENCES runs(id),
	ticker       TEXT    NOT NULL,
	company      TEXT    NOT NULL,
	entry_date   TEXT    NOT NULL,
	entry_price  REAL    NOT NULL,
	shares       REAL    NOT NULL,
	target_price REAL    NOT NULL,
	closed       INTEGER NOT NULL,
	exit_date    TEXT,
	exit_price   REAL,
	holding_days INTEGER,
	pnl          REAL
);

CREATE INDEX IF NOT EXISTS idx_trades_run_id ON trades(run_id);
`

// ResultStore implements RunStore backed by a SQLite database. Every
// completed backtest is appended as one runs row plus its trades rows, so
// past runs stay comparable after parameters change.
type ResultStore struct {
	db *sql.DB
}

// NewResultStore opens (or creates) a SQLite database at dbPath, applies the
// schema, and returns a ready-to-use ResultStore.
func NewResultStore(dbPath string) (*ResultStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}
	if _, err := db.Exec(resultSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &ResultStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *ResultStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// RunStore implementation
// ---------------------------------------------------------------------------

// SaveRun inserts the run and its full trade ledger in one transaction and
// returns the new run id.
func (s *ResultStore) SaveRun(ctx context.Context, params domain.RunParams, result *domain.Result) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (run_at, indices, lookback_years, frequency_days, investment,
			window_days, recent_window, total_pnl, total_invested, total_trades,
			winning_trades, losing_trades, still_open, avg_holding_days)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		params.RunAt.UTC().Format(time.RFC3339),
		strings.Join(params.Indices, ","),
		params.LookbackYears,
		params.ScreeningFrequencyDays,
		params.InvestmentPerTrade,
		params.WindowDays,
		params.RecentWindow,
		result.TotalPnL,
		result.TotalInvested,
		result.TotalTrades,
		result.WinningTrades,
		result.LosingTrades,
		result.StillOpen,
		result.AvgHoldingDays,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (run_id, ticker, company, entry_date, entry_price, shares,
			target_price, closed, exit_date, exit_price, holding_days, pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, t := range result.Trades {
		// Open trades leave the exit columns NULL.
		var exitDate, exitPrice, holdingDays, pnl any
		if t.Closed {
			exitDate = util.FormatDay(t.ExitDate)
			exitPrice = t.ExitPrice
			holdingDays = t.HoldingDays
			pnl = t.PnL
		}
		if _, err := stmt.ExecContext(ctx,
			runID, t.Ticker, t.Company, util.FormatDay(t.EntryDate), t.EntryPrice,
			t.Shares, t.TargetPrice, t.Closed, exitDate, exitPrice, holdingDays, pnl,
		); err != nil {
			return 0, fmt.Errorf("inserting trade %s: %w", t.Ticker, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

// ListRuns returns the most recent runs, newest first. A non-positive limit
// defaults to 50.
func (s *ResultStore) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_at, indices, total_pnl, total_invested, total_trades,
			winning_trades, losing_trades, still_open, avg_holding_days
		FROM runs
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.RunSummary
	for rows.Next() {
		var (
			r       domain.RunSummary
			runAt   string
			indices string
		)
		if err := rows.Scan(&r.ID, &runAt, &indices, &r.TotalPnL, &r.TotalInvested,
			&r.TotalTrades, &r.WinningTrades, &r.LosingTrades, &r.StillOpen,
			&r.AvgHoldingDays); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339, runAt); err == nil {
			r.RunAt = ts
		}
		if indices != "" {
			r.Indices = strings.Split(indices, ",")
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListTrades returns the trade ledger of a run in insertion order, which is
// the ledger order of the result: closed trades first, then open ones.
func (s *ResultStore) ListTrades(ctx context.Context, runID int64) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ticker, company, entry_date, entry_price, shares, target_price,
			closed, exit_date, exit_price, holding_days, pnl
		FROM trades
		WHERE run_id = ?
		ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var (
			t           domain.Trade
			entryDate   string
			exitDate    sql.NullString
			exitPrice   sql.NullFloat64
			holdingDays sql.NullInt64
			pnl         sql.NullFloat64
		)
		if err := rows.Scan(&t.Ticker, &t.Company, &entryDate, &t.EntryPrice,
			&t.Shares, &t.TargetPrice, &t.Closed, &exitDate, &exitPrice,
			&holdingDays, &pnl); err != nil {
			return nil, err
		}
		if d, err := util.ParseDay(entryDate); err == nil {
			t.EntryDate = d
		}
		if t.Closed {
			if d, err := util.ParseDay(exitDate.String); err == nil {
				t.ExitDate = d
			}
			t.ExitPrice = exitPrice.Float64
			t.HoldingDays = int(holdingDays.Int64)
			t.PnL = pnl.Float64
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
