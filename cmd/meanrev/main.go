package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"meanrev/internal/backtest"
	"meanrev/internal/config"
	"meanrev/internal/domain"
	"meanrev/internal/metadata"
	"meanrev/internal/prices"
	"meanrev/internal/report"
	"meanrev/internal/screen"
	"meanrev/internal/store"
	"meanrev/internal/universe"
	"meanrev/internal/util"
)

// fetchBufferDays is extra history fetched beyond the lookback horizon so the
// very first screening dates already have a full recent window behind them.
const fetchBufferDays = 30

func main() {
	mode := flag.String("mode", "backtest", "run mode: backtest or screen")
	lookbackDays := flag.Int("screen-lookback-days", 365, "history depth for screen mode, in days")
	runAtFlag := flag.String("run-at", "", "anchor 'now' at this date (YYYY-MM-DD) instead of the latest session")
	flag.Parse()

	cfgPath := "config/meanrev.yaml"
	if p := os.Getenv("MEANREV_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	// Dual logger: stdout + /tmp log file.
	logFileName := fmt.Sprintf("/tmp/meanrev-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()

	w := io.MultiWriter(os.Stdout, logFile)
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel(cfg.Logging.Level)}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("starting meanrev", "mode", *mode, "config", cfgPath, "logFile", logFileName)

	switch *mode {
	case "backtest":
		err = runBacktest(ctx, cfg, *runAtFlag)
	case "screen":
		err = runScreen(ctx, cfg, *lookbackDays, *runAtFlag)
	default:
		err = fmt.Errorf("unknown mode %q (want backtest or screen)", *mode)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", *mode, err)
	}
}

func runBacktest(ctx context.Context, cfg *config.Config, runAtFlag string) error {
	now, err := resolveNow(cfg, runAtFlag)
	if err != nil {
		return err
	}

	companies, warnings, err := loadUniverse(ctx, cfg, now)
	if err != nil {
		return err
	}

	params := domain.RunParams{
		RunAt:                  now,
		Indices:                cfg.Universe.Indices,
		LookbackYears:          cfg.Backtest.LookbackYears,
		ScreeningFrequencyDays: cfg.Backtest.ScreeningFrequencyDays,
		InvestmentPerTrade:     cfg.Backtest.InvestmentPerTrade,
		WindowDays:             cfg.Backtest.WindowDays,
		RecentWindow:           cfg.Backtest.RecentWindow,
	}

	start := now.AddDate(0, 0, -params.LookbackYears*365-fetchBufferDays)
	histories, err := fetchHistories(ctx, cfg, companies, start, now)
	if err != nil {
		return err
	}

	names := make(map[string]string, len(companies))
	for _, c := range companies {
		names[c.Ticker] = c.Name
	}

	engine := backtest.NewEngine(params, histories, names)
	result, err := engine.Run(ctx)
	if err != nil {
		return err
	}
	result.Warnings = append(warnings, result.Warnings...)

	report.Summary(os.Stdout, result)

	reportPath := filepath.Join(cfg.Report.OutputDir,
		fmt.Sprintf("backtest-%s.json", util.FormatDay(now)))
	if err := report.WriteBacktest(reportPath, params, result); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	slog.Info("report written", "path", reportPath)

	// The run record is best effort: a broken results database should not
	// discard a report that is already on disk.
	if rs, err := store.NewResultStore(cfg.Storage.SQLitePath); err != nil {
		slog.Warn("opening results store", "path", cfg.Storage.SQLitePath, "err", err)
	} else {
		defer rs.Close()
		if runID, err := rs.SaveRun(ctx, params, result); err != nil {
			slog.Warn("saving run", "err", err)
		} else {
			slog.Info("run saved", "runID", runID, "db", cfg.Storage.SQLitePath)
		}
	}
	return nil
}

func runScreen(ctx context.Context, cfg *config.Config, lookbackDays int, runAtFlag string) error {
	asOf, err := resolveNow(cfg, runAtFlag)
	if err != nil {
		return err
	}

	out := &screen.Output{
		ScreenedAt:   asOf,
		Indices:      cfg.Universe.Indices,
		Countries:    cfg.Filters.Countries,
		MinAgeYears:  cfg.Filters.MinCompanyAgeYears,
		LookbackDays: lookbackDays,
	}

	tickers, warnings := fetchConstituents(ctx, cfg)
	out.TotalCandidates = len(tickers)
	out.Warnings = warnings

	meta, err := metadata.Load(cfg.Storage.MetadataCSV)
	if err != nil {
		return err
	}
	out.Warnings = append(out.Warnings, meta.Warnings()...)

	companies := meta.Select(tickers)
	out.WithMetadata = len(companies)
	out.ExcludedNoMetadata = out.TotalCandidates - out.WithMetadata

	aged := metadata.FilterByAge(companies, cfg.Filters.MinCompanyAgeYears, asOf)
	out.ExcludedTooYoung = len(companies) - len(aged)
	companies = metadata.FilterByCountry(aged, cfg.Filters.Countries)
	out.Screened = len(companies)

	start := asOf.AddDate(0, 0, -lookbackDays)
	histories, err := fetchHistories(ctx, cfg, companies, start, asOf)
	if err != nil {
		return err
	}

	rows, skipped := screen.New(cfg.Backtest.WindowDays).Rank(histories, companies, asOf)
	out.Rows = rows
	for _, ticker := range skipped {
		out.Warnings = append(out.Warnings, fmt.Sprintf("skipped %s: insufficient price history", ticker))
	}

	report.ScreeningSummary(os.Stdout, out)

	reportPath := filepath.Join(cfg.Report.OutputDir,
		fmt.Sprintf("screening-%s.json", util.FormatDay(asOf)))
	if err := report.WriteScreening(reportPath, out); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	slog.Info("report written", "path", reportPath)
	return nil
}

// resolveNow anchors simulated "now": an explicit -run-at date wins, then the
// latest finished trading session per the Alpaca calendar, then today.
func resolveNow(cfg *config.Config, runAtFlag string) (time.Time, error) {
	if runAtFlag != "" {
		day, err := util.ParseDay(runAtFlag)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid -run-at date %q: %w", runAtFlag, err)
		}
		return day, nil
	}
	session, err := prices.LatestFinishedSession(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL)
	if err != nil {
		slog.Warn("trading calendar unavailable, using today", "err", err)
		return util.Day(time.Now()), nil
	}
	return session, nil
}

// fetchConstituents collects the tickers of every configured index. Failures
// are per index: a failed fetch becomes a warning and the run continues with
// a partial universe.
func fetchConstituents(ctx context.Context, cfg *config.Config) (tickers []string, warnings []string) {
	fetcher := universe.NewFetcher()
	seen := make(map[string]struct{})
	for _, index := range cfg.Universe.Indices {
		constituents, err := fetcher.Constituents(ctx, index)
		if err != nil {
			slog.Warn("fetching constituents", "index", index, "err", err)
			warnings = append(warnings, fmt.Sprintf("could not fetch %s constituents: %v", index, err))
			continue
		}
		for _, t := range constituents {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			tickers = append(tickers, t)
		}
	}
	sort.Strings(tickers)
	return tickers, warnings
}

// loadUniverse resolves the backtest universe: index constituents joined with
// company metadata, narrowed by the configured eligibility filters.
func loadUniverse(ctx context.Context, cfg *config.Config, asOf time.Time) ([]domain.CompanyInfo, []string, error) {
	tickers, warnings := fetchConstituents(ctx, cfg)
	slog.Info("universe fetched", "indices", strings.Join(cfg.Universe.Indices, ","), "tickers", len(tickers))

	meta, err := metadata.Load(cfg.Storage.MetadataCSV)
	if err != nil {
		return nil, nil, err
	}
	warnings = append(warnings, meta.Warnings()...)

	companies := meta.Select(tickers)
	if dropped := len(tickers) - len(companies); dropped > 0 {
		warnings = append(warnings, fmt.Sprintf("%d tickers excluded: no metadata", dropped))
	}
	companies = metadata.FilterByAge(companies, cfg.Filters.MinCompanyAgeYears, asOf)
	companies = metadata.FilterByCountry(companies, cfg.Filters.Countries)

	slog.Info("universe resolved", "companies", len(companies))
	return companies, warnings, nil
}

// fetchHistories pulls daily closes for every company over [start, end]
// through the parquet cache.
func fetchHistories(ctx context.Context, cfg *config.Config, companies []domain.CompanyInfo, start, end time.Time) (map[string]domain.PriceSeries, error) {
	tickers := make([]string, 0, len(companies))
	for _, c := range companies {
		tickers = append(tickers, c.Ticker)
	}

	cache := store.NewPriceCache(cfg.Storage.DataDir)
	provider := prices.NewAlpacaProvider(
		cfg.Alpaca.APIKey,
		cfg.Alpaca.APISecret,
		cfg.Alpaca.DataURL,
		cache,
		cfg.Backtest.BatchSize,
		cfg.Backtest.MaxWorkers,
		cfg.Backtest.RateLimitPerMin,
	)

	histories, err := provider.Histories(ctx, tickers, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetching price histories: %w", err)
	}
	return histories, nil
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
