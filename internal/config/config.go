package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Broker struct {
		BaseURL    string  `yaml:"base_url"`
		APIKey     string  `yaml:"api_key"`
		Account    string  `yaml:"account"`
		RatePerSec float64 `yaml:"rate_per_sec"`
	} `yaml:"broker"`
	Universe struct {
		Symbols []string `yaml:"symbols"`
		Workers int      `yaml:"workers"`
	} `yaml:"universe"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Schedule struct {
		ScanCron        string `yaml:"scan_cron"`
		PollIntervalSec int    `yaml:"poll_interval_sec"`
	} `yaml:"schedule"`
	Risk struct {
		MaxRiskPerTradePct float64 `yaml:"max_risk_per_trade_pct"`
		MaxPositions       int     `yaml:"max_positions"`
		InitialStopPct     float64 `yaml:"initial_stop_pct"`
		MinRSRating        float64 `yaml:"min_rs_rating"`
		MinVCPScore        int     `yaml:"min_vcp_score"`
	} `yaml:"risk"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("BROKER_BASE_URL"); v != "" {
		cfg.Broker.BaseURL = v
	}
	if v := os.Getenv("BROKER_API_KEY"); v != "" {
		cfg.Broker.APIKey = v
	}
	if v := os.Getenv("BROKER_ACCOUNT"); v != "" {
		cfg.Broker.Account = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("UNIVERSE_SYMBOLS"); v != "" {
		cfg.Universe.Symbols = splitSymbols(v)
	}
	if v := os.Getenv("CRON_SCAN"); v != "" {
		cfg.Schedule.ScanCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("MAX_POSITIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Risk.MaxPositions = n
		}
	}
	if v := os.Getenv("MAX_RISK_PER_TRADE_PCT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Risk.MaxRiskPerTradePct = f
		}
	}

	// Defaults
	if cfg.Universe.Workers <= 0 {
		cfg.Universe.Workers = 4
	}
	if cfg.Schedule.ScanCron == "" {
		// Weekdays 16:30, after the close.
		cfg.Schedule.ScanCron = "0 30 16 * * 1-5"
	}
	if cfg.Schedule.PollIntervalSec <= 0 {
		cfg.Schedule.PollIntervalSec = 30
	}
	if cfg.Risk.MaxRiskPerTradePct == 0 {
		cfg.Risk.MaxRiskPerTradePct = 2.0
	}
	if cfg.Risk.MaxPositions == 0 {
		cfg.Risk.MaxPositions = 8
	}
	if cfg.Risk.InitialStopPct == 0 {
		cfg.Risk.InitialStopPct = 7.0
	}
	if cfg.Risk.MinRSRating == 0 {
		cfg.Risk.MinRSRating = 70
	}
	if cfg.Risk.MinVCPScore == 0 {
		cfg.Risk.MinVCPScore = 70
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/vcp_sentinel.db"
	}

	return cfg, nil
}

// Validate checks required fields. dryRun relaxes the broker requirement
// since a dry run can work from public data alone.
func (c *Config) Validate(dryRun bool) error {
	if len(c.Universe.Symbols) == 0 {
		return fmt.Errorf("universe.symbols is required")
	}
	if !dryRun && c.Broker.BaseURL == "" {
		return fmt.Errorf("broker.base_url is required outside dry-run mode")
	}
	if c.Risk.MaxRiskPerTradePct <= 0 || c.Risk.MaxRiskPerTradePct > 10 {
		return fmt.Errorf("risk.max_risk_per_trade_pct must be in (0, 10]")
	}
	if c.Risk.InitialStopPct <= 0 || c.Risk.InitialStopPct >= 100 {
		return fmt.Errorf("risk.initial_stop_pct must be in (0, 100)")
	}
	if c.Risk.MaxPositions <= 0 {
		return fmt.Errorf("risk.max_positions must be positive")
	}
	return nil
}

func splitSymbols(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}
