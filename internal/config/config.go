// Package config loads the YAML configuration for backtest runs and applies
// environment overrides on top.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"meanrev/internal/domain"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the meanrev tools.
type Config struct {
	Storage  Storage        `yaml:"storage"`
	Universe UniverseConfig `yaml:"universe"`
	Alpaca   Alpaca         `yaml:"alpaca"`
	Backtest BacktestConfig `yaml:"backtest"`
	Filters  FilterConfig   `yaml:"filters"`
	Report   ReportConfig   `yaml:"report"`
	Logging  Logging        `yaml:"logging"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir     string `yaml:"data_dir"`     // parquet price cache root
	SQLitePath  string `yaml:"sqlite_path"`  // results database
	MetadataCSV string `yaml:"metadata_csv"` // company metadata table
}

// UniverseConfig selects the index universes to screen.
type UniverseConfig struct {
	Indices []string `yaml:"indices"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
}

// BacktestConfig holds the simulation parameters.
type BacktestConfig struct {
	LookbackYears          int     `yaml:"lookback_years"`
	ScreeningFrequencyDays int     `yaml:"screening_frequency_days"`
	InvestmentPerTrade     float64 `yaml:"investment_per_trade"`
	WindowDays             int     `yaml:"window_days"`
	RecentWindow           int     `yaml:"recent_window"`
	BatchSize              int     `yaml:"batch_size"`
	MaxWorkers             int     `yaml:"max_workers"`
	RateLimitPerMin        int     `yaml:"rate_limit_per_min"`
}

// FilterConfig restricts the screened universe by company attributes.
// Zero values disable a filter.
type FilterConfig struct {
	MinCompanyAgeYears int      `yaml:"min_company_age_years"`
	Countries          []string `yaml:"countries"`
}

// ReportConfig controls where run reports are written.
type ReportConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Defaults and loading
// ---------------------------------------------------------------------------

// Default returns the built-in configuration: a five-year weekly S&P 500
// backtest with a 1000-per-trade notional.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir:     "./data",
			SQLitePath:  "./data/meanrev.db",
			MetadataCSV: "./data/company_metadata.csv",
		},
		Universe: UniverseConfig{
			Indices: []string{domain.IndexSP500},
		},
		Backtest: BacktestConfig{
			LookbackYears:          5,
			ScreeningFrequencyDays: 7,
			InvestmentPerTrade:     1000.0,
			WindowDays:             5,
			RecentWindow:           10,
			BatchSize:              200,
			MaxWorkers:             4,
			RateLimitPerMin:        200,
		},
		Report: ReportConfig{
			OutputDir: "./reports",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML configuration file at the given path on top of the
// defaults, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadOrDefault behaves like Load, but falls back to the built-in defaults
// (plus environment overrides) when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	cfg = Default()
	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("METADATA_CSV"); v != "" {
		cfg.Storage.MetadataCSV = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (highest priority — canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Validate checks the configuration for errors the run cannot proceed from.
// Callers treat a non-nil error as fatal.
func (c *Config) Validate() error {
	bt := c.Backtest
	if bt.LookbackYears < 1 {
		return fmt.Errorf("backtest.lookback_years must be >= 1, got %d", bt.LookbackYears)
	}
	if bt.ScreeningFrequencyDays < 1 {
		return fmt.Errorf("backtest.screening_frequency_days must be >= 1, got %d", bt.ScreeningFrequencyDays)
	}
	if bt.InvestmentPerTrade <= 0 {
		return fmt.Errorf("backtest.investment_per_trade must be positive, got %v", bt.InvestmentPerTrade)
	}
	if bt.WindowDays < 1 {
		return fmt.Errorf("backtest.window_days must be >= 1, got %d", bt.WindowDays)
	}
	if bt.RecentWindow < bt.WindowDays+1 {
		return fmt.Errorf("backtest.recent_window must be >= window_days+1, got %d", bt.RecentWindow)
	}

	if len(c.Universe.Indices) == 0 {
		return fmt.Errorf("universe.indices must name at least one index")
	}
	for _, idx := range c.Universe.Indices {
		if !domain.ValidIndex(idx) {
			return fmt.Errorf("universe.indices: unknown index %q (known: %v)", idx, domain.KnownIndices())
		}
	}

	if c.Storage.MetadataCSV == "" {
		return fmt.Errorf("storage.metadata_csv must be set")
	}

	return nil
}
