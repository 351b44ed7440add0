package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"syscall"
	"time"

	"meanrev/internal/config"
	"meanrev/internal/metadata"
	"meanrev/internal/universe"
)

// row is one line of the metadata CSV being assembled. FoundingYear and
// Country stay empty for constituents that still need research.
type row struct {
	Ticker       string
	Name         string
	FoundingYear string
	Country      string
	Index        string
}

func main() {
	out := flag.String("out", "", "output CSV path (default: storage.metadata_csv from config)")
	flag.Parse()

	cfgPath := "config/meanrev.yaml"
	if p := os.Getenv("MEANREV_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logFileName := fmt.Sprintf("/tmp/meanrev-metadata-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()

	w := io.MultiWriter(os.Stdout, logFile)
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	outPath := *out
	if outPath == "" {
		outPath = cfg.Storage.MetadataCSV
	}

	// Curated fields from an existing CSV survive the refresh; a missing
	// file just means every row starts blank.
	existing, err := loadExisting(cfg.Storage.MetadataCSV)
	if err != nil {
		log.Fatalf("failed to load existing metadata: %v", err)
	}

	fetcher := universe.NewFetcher()
	byTicker := make(map[string]row)
	for _, index := range cfg.Universe.Indices {
		tickers, err := fetcher.Constituents(ctx, index)
		if err != nil {
			slog.Warn("fetching constituents", "index", index, "err", err)
			continue
		}
		for _, ticker := range tickers {
			if _, dup := byTicker[ticker]; dup {
				continue
			}
			r := row{Ticker: ticker, Index: index}
			if info, ok := existing.Get(ticker); ok {
				r.Name = info.Name
				r.FoundingYear = strconv.Itoa(info.FoundingYear)
				r.Country = info.Country
				r.Index = info.Index
			}
			byTicker[ticker] = r
		}
	}
	if len(byTicker) == 0 {
		log.Fatalf("no constituents fetched for any configured index")
	}

	rows := make([]row, 0, len(byTicker))
	needResearch := 0
	for _, r := range byTicker {
		if r.FoundingYear == "" {
			needResearch++
		}
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Ticker < rows[j].Ticker })

	if err := writeCSV(outPath, rows); err != nil {
		log.Fatalf("failed to write %s: %v", outPath, err)
	}

	slog.Info("metadata written",
		"path", outPath,
		"companies", len(rows),
		"curated", len(rows)-needResearch,
		"needResearch", needResearch,
	)
	if needResearch > 0 {
		fmt.Printf("\n%d companies need founding_year/country filled in before they can be screened.\n", needResearch)
	}
}

// loadExisting reads the current metadata CSV, tolerating its absence.
func loadExisting(path string) (*metadata.Store, error) {
	s, err := metadata.Load(path)
	if err == nil {
		return s, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("no existing metadata CSV, starting fresh", "path", path)
		return metadata.Empty(), nil
	}
	return nil, err
}

func writeCSV(path string, rows []row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"ticker", "company_name", "founding_year", "country", "index"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write([]string{r.Ticker, r.Name, r.FoundingYear, r.Country, r.Index}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
