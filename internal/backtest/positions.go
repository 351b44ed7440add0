package backtest

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"meanrev/internal/domain"
	"meanrev/internal/util"
)

// Book tracks notional positions through one simulation run: at most one
// open position per ticker plus an append-only ledger of closed trades.
// It is owned by a single Engine and never shared.
type Book struct {
	investment float64
	open       map[string]*domain.Trade
	closed     []domain.Trade
	warnings   []string
	log        *slog.Logger
}

func NewBook(investment float64) *Book {
	return &Book{
		investment: investment,
		open:       make(map[string]*domain.Trade),
		log:        slog.Default().With("component", "book"),
	}
}

// Open creates a position for the candidate, sized as investment divided by
// the entry price. Opening is skipped when the ticker already has an open
// position (no pyramiding) or when the candidate fails the target-above-entry
// check that the selector should already have enforced.
func (b *Book) Open(c domain.Candidate, date time.Time) {
	if _, exists := b.open[c.Ticker]; exists {
		b.log.Debug("position already open", "ticker", c.Ticker)
		return
	}
	if c.EntryPrice <= 0 || c.TargetPrice <= c.EntryPrice {
		b.warn(fmt.Sprintf("not opening %s: target %.2f not above entry %.2f",
			c.Ticker, c.TargetPrice, c.EntryPrice))
		return
	}

	trade := &domain.Trade{
		Ticker:      c.Ticker,
		Company:     c.Company,
		EntryDate:   date,
		EntryPrice:  c.EntryPrice,
		Shares:      b.investment / c.EntryPrice,
		TargetPrice: c.TargetPrice,
	}
	b.open[c.Ticker] = trade

	b.log.Info("opened position",
		"ticker", c.Ticker,
		"date", util.FormatDay(date),
		"entry", c.EntryPrice,
		"target", c.TargetPrice,
		"shares", trade.Shares,
	)
}

// MarkToMarket closes every open position whose last known price on or
// before date has recovered to its target. Positions without any price
// quote by date stay open untouched.
func (b *Book) MarkToMarket(histories map[string]domain.PriceSeries, date time.Time) {
	for _, ticker := range b.openTickers() {
		series, ok := histories[ticker]
		if !ok {
			continue
		}
		price, ok := series.PriceOnOrBefore(date)
		if !ok {
			continue
		}
		if price >= b.open[ticker].TargetPrice {
			b.Close(ticker, price, date)
		}
	}
}

// Close closes the ticker's position at the given price and date and moves
// it to the ledger. Closing a ticker with no open position is a no-op, so
// double closes are harmless.
func (b *Book) Close(ticker string, price float64, date time.Time) {
	trade, ok := b.open[ticker]
	if !ok {
		return
	}

	trade.Closed = true
	trade.ExitDate = date
	trade.ExitPrice = price
	trade.HoldingDays = util.DaysBetween(trade.EntryDate, date)
	// The only place P&L is computed. Exact arithmetic; rounding waits
	// until reporting.
	trade.PnL = trade.Shares * (price - trade.EntryPrice)

	delete(b.open, ticker)
	b.closed = append(b.closed, *trade)

	b.log.Info("closed position",
		"ticker", ticker,
		"date", util.FormatDay(date),
		"exit", price,
		"heldDays", trade.HoldingDays,
		"pnl", trade.PnL,
	)
}

// Closed returns the ledger of closed trades in close order.
func (b *Book) Closed() []domain.Trade {
	return b.closed
}

// OpenTrades returns snapshots of the still-open positions in ticker order.
func (b *Book) OpenTrades() []domain.Trade {
	trades := make([]domain.Trade, 0, len(b.open))
	for _, ticker := range b.openTickers() {
		trades = append(trades, *b.open[ticker])
	}
	return trades
}

// OpenCount returns the number of open positions.
func (b *Book) OpenCount() int {
	return len(b.open)
}

// Warnings returns the accumulated skip messages.
func (b *Book) Warnings() []string {
	return b.warnings
}

func (b *Book) openTickers() []string {
	tickers := make([]string, 0, len(b.open))
	for ticker := range b.open {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers
}

func (b *Book) warn(msg string) {
	b.warnings = append(b.warnings, msg)
	b.log.Warn(msg)
}
