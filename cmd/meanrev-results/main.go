package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"meanrev/internal/config"
	"meanrev/internal/domain"
	"meanrev/internal/report"
	"meanrev/internal/store"
	"meanrev/internal/util"
)

// Styles.
var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	colHeadStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Background(lipgloss.Color("236"))
	gainStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	tickerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	openStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// Messages.
type tradesLoadedMsg struct {
	runID  int64
	trades []domain.Trade
	err    error
}

// Model.
type model struct {
	rs     *store.ResultStore
	runs   []domain.RunSummary
	cursor int

	// Trade view, active when viewing != 0.
	viewing int64
	trades  []domain.Trade
	loading bool

	viewport      viewport.Model
	ready         bool
	width, height int
	logger        *slog.Logger
}

func initialModel(rs *store.ResultStore, runs []domain.RunSummary, logger *slog.Logger) model {
	return model{rs: rs, runs: runs, logger: logger}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) loadTradesCmd(runID int64) tea.Cmd {
	rs := m.rs
	return func() tea.Msg {
		trades, err := rs.ListTrades(context.Background(), runID)
		return tradesLoadedMsg{runID: runID, trades: trades, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.viewing != 0 {
				m.viewing = 0
				m.trades = nil
				m.viewport.SetContent(m.renderContent())
				m.viewport.GotoTop()
			}
			return m, nil
		case "up", "k":
			if m.viewing == 0 && m.cursor > 0 {
				m.cursor--
				m.viewport.SetContent(m.renderContent())
				m.ensureVisible()
				return m, nil
			}
		case "down", "j":
			if m.viewing == 0 && m.cursor < len(m.runs)-1 {
				m.cursor++
				m.viewport.SetContent(m.renderContent())
				m.ensureVisible()
				return m, nil
			}
		case "enter":
			if m.viewing == 0 && len(m.runs) > 0 {
				runID := m.runs[m.cursor].ID
				m.viewing = runID
				m.loading = true
				m.viewport.SetContent(m.renderContent())
				m.viewport.GotoTop()
				return m, m.loadTradesCmd(runID)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := m.height - 2
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
			m.viewport.SetContent(m.renderContent())
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		return m, nil

	case tradesLoadedMsg:
		// A stale load for a run the user already backed out of is dropped.
		if msg.runID != m.viewing {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.logger.Error("loading trades", "runID", msg.runID, "error", msg.err)
			m.viewing = 0
		} else {
			m.trades = msg.trades
		}
		if m.ready {
			m.viewport.SetContent(m.renderContent())
			m.viewport.GotoTop()
		}
		return m, nil
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

// ensureVisible scrolls the viewport so the cursor row is visible. The run
// list has two header lines before the first row.
func (m *model) ensureVisible() {
	line := m.cursor + 2
	yOff := m.viewport.YOffset
	vpH := m.viewport.Height
	if line < yOff {
		m.viewport.SetYOffset(line)
	} else if line >= yOff+vpH {
		m.viewport.SetYOffset(line - vpH + 1)
	}
}

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var headerText string
	if m.viewing != 0 {
		headerText = fmt.Sprintf(" meanrev results — run #%d  (%d trades) ", m.viewing, len(m.trades))
	} else {
		headerText = fmt.Sprintf(" meanrev results — %d runs ", len(m.runs))
	}
	headerBar := headerStyle.Render(padOrTrunc(headerText, m.width))

	footerLeft := " q quit  up/dn select  enter trades  esc back  pgup/dn scroll"
	footerRight := fmt.Sprintf("%.0f%% ", m.viewport.ScrollPercent()*100)
	gap := m.width - len(footerLeft) - len(footerRight)
	if gap < 0 {
		gap = 0
	}
	footerBar := footerStyle.Render(padOrTrunc(footerLeft+strings.Repeat(" ", gap)+footerRight, m.width))

	return headerBar + "\n" + m.viewport.View() + "\n" + footerBar
}

func (m model) renderContent() string {
	if m.viewing != 0 {
		return m.renderTrades()
	}
	return m.renderRuns()
}

func (m model) renderRuns() string {
	var b strings.Builder
	if len(m.runs) == 0 {
		b.WriteString(dimStyle.Render("  (no runs recorded yet — run a backtest first)"))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString("\n")
	b.WriteString(colHeadStyle.Render(fmt.Sprintf(
		"  %4s  %-16s %-14s %6s %6s %6s %5s %10s %9s %8s",
		"ID", "Run at", "Indices", "Trades", "Wins", "Losses", "Open", "P&L", "Return", "AvgHold")))
	b.WriteString("\n")

	for i, r := range m.runs {
		returnPct := 0.0
		if r.TotalInvested > 0 {
			returnPct = r.TotalPnL / r.TotalInvested * 100
		}
		line := fmt.Sprintf(
			"  %4d  %-16s %-14s %6d %6d %6d %5d %10s %8.2f%% %7.1fd",
			r.ID,
			r.RunAt.Format("2006-01-02 15:04"),
			strings.Join(r.Indices, ","),
			r.TotalTrades, r.WinningTrades, r.LosingTrades, r.StillOpen,
			report.FormatMoney(r.TotalPnL), returnPct, r.AvgHoldingDays,
		)
		style := pnlStyle(r.TotalPnL)
		if i == m.cursor {
			style = selectedStyle
		}
		b.WriteString(style.Render(padOrTrunc(line, m.width)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) renderTrades() string {
	var b strings.Builder
	if m.loading {
		b.WriteString(dimStyle.Render("  Loading..."))
		b.WriteString("\n")
		return b.String()
	}
	if len(m.trades) == 0 {
		b.WriteString(dimStyle.Render("  (no trades in this run)"))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString("\n")
	b.WriteString(colHeadStyle.Render(fmt.Sprintf(
		"  %-8s %-26s %-10s %8s %8s %-10s %8s %5s %10s",
		"Ticker", "Company", "Entry", "Price", "Target", "Exit", "Price", "Days", "P&L")))
	b.WriteString("\n")

	for _, t := range m.trades {
		name := t.Company
		if len(name) > 26 {
			name = name[:23] + "..."
		}
		b.WriteString(tickerStyle.Render(fmt.Sprintf("  %-8s", t.Ticker)))
		b.WriteString(fmt.Sprintf(" %-26s %-10s %8.2f %8.2f",
			name, util.FormatDay(t.EntryDate), t.EntryPrice, t.TargetPrice))
		if t.Closed {
			b.WriteString(fmt.Sprintf(" %-10s %8.2f %5d ",
				util.FormatDay(t.ExitDate), t.ExitPrice, t.HoldingDays))
			b.WriteString(pnlStyle(t.PnL).Render(fmt.Sprintf("%10s", report.FormatMoney(t.PnL))))
		} else {
			b.WriteString(openStyle.Render(fmt.Sprintf(" %-10s %8s %5s %10s", "OPEN", "—", "—", "—")))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func pnlStyle(pnl float64) lipgloss.Style {
	switch {
	case pnl > 0:
		return gainStyle
	case pnl < 0:
		return lossStyle
	}
	return lipgloss.NewStyle()
}

// padOrTrunc pads s with spaces to width, or truncates if longer.
func padOrTrunc(s string, width int) string {
	n := len(s)
	if n >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-n)
}

func main() {
	limit := flag.Int("limit", 100, "maximum number of runs to list")
	flag.Parse()

	cfgPath := "config/meanrev.yaml"
	if p := os.Getenv("MEANREV_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	logPath := fmt.Sprintf("/tmp/meanrev-results-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rs, err := store.NewResultStore(cfg.Storage.SQLitePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening results store %s: %v\n", cfg.Storage.SQLitePath, err)
		os.Exit(1)
	}
	defer rs.Close()

	runs, err := rs.ListRuns(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "listing runs: %v\n", err)
		os.Exit(1)
	}
	logger.Info("runs loaded", "count", len(runs), "db", cfg.Storage.SQLitePath)

	p := tea.NewProgram(
		initialModel(rs, runs, logger),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
