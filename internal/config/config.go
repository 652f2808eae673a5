package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Keywords KeywordsConfig `yaml:"keywords"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Reddit   RedditConfig   `yaml:"reddit"`
	Telegram TelegramConfig `yaml:"telegram"`
	Matcher  MatcherConfig  `yaml:"matcher"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Scan     ScanConfig     `yaml:"scan"`
	Server   ServerConfig   `yaml:"server"`
	Report   ReportConfig   `yaml:"report"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// KeywordsConfig configures the keyword file and per-cycle selection.
type KeywordsConfig struct {
	Path            string `yaml:"path"`
	PrimaryPerRun   int    `yaml:"primary_per_run"`
	SecondaryPerRun int    `yaml:"secondary_per_run"`
	WatchFile       bool   `yaml:"watch_file"`
}

// ScheduleConfig configures scan and command polling intervals.
type ScheduleConfig struct {
	ScanInterval    string `yaml:"scan_interval"`
	CommandInterval string `yaml:"command_interval"`
}

// ParseScanInterval returns the scan interval as time.Duration.
func (s ScheduleConfig) ParseScanInterval() time.Duration {
	d, err := time.ParseDuration(s.ScanInterval)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// ParseCommandInterval returns the command polling interval.
func (s ScheduleConfig) ParseCommandInterval() time.Duration {
	d, err := time.ParseDuration(s.CommandInterval)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// RedditConfig for the Reddit search client. With empty credentials the
// monitor falls back to the public search RSS feed.
type RedditConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	UserAgent    string `yaml:"user_agent"`
}

// TelegramConfig for the alert sink and the remote command channel.
// With empty credentials alerts degrade to log-only output and the
// command poller stays off.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// MatcherConfig configures the match engine.
type MatcherConfig struct {
	// Strategy is "automaton" (single-pass multi-pattern scan, default)
	// or "scan" (per-keyword containment). Both produce identical results.
	Strategy string `yaml:"strategy"`
	// SecondaryScanLimit caps how many secondary-tier terms are checked
	// per text. Tunable throughput guard for very large keyword files.
	SecondaryScanLimit int `yaml:"secondary_scan_limit"`
}

// LedgerConfig configures the seen-post ledger.
type LedgerConfig struct {
	Capacity  int    `yaml:"capacity"`
	Retention string `yaml:"retention"`
}

// ParseRetention returns the dedup retention window.
func (l LedgerConfig) ParseRetention() time.Duration {
	d, err := time.ParseDuration(l.Retention)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// ScanConfig bounds a single scan cycle.
type ScanConfig struct {
	ResultsPerKeyword  int      `yaml:"results_per_keyword"`
	KeywordBudget      string   `yaml:"keyword_budget"`
	ItemTimeout        string   `yaml:"item_timeout"`
	ControlTTL         string   `yaml:"control_ttl"`
	ExcludedSubreddits []string `yaml:"excluded_subreddits"`
}

// ParseKeywordBudget returns the wall-clock budget for one keyword's search.
func (s ScanConfig) ParseKeywordBudget() time.Duration {
	d, err := time.ParseDuration(s.KeywordBudget)
	if err != nil {
		return 45 * time.Second
	}
	return d
}

// ParseItemTimeout returns the per-item processing timeout.
func (s ScanConfig) ParseItemTimeout() time.Duration {
	d, err := time.ParseDuration(s.ItemTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// ParseControlTTL returns the control-state read cache TTL.
func (s ScanConfig) ParseControlTTL() time.Duration {
	d, err := time.ParseDuration(s.ControlTTL)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// ServerConfig configures the HTTP status API.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// ReportConfig configures the daily summary report.
type ReportConfig struct {
	Time string `yaml:"time"` // "HH:MM" local time
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./seoradar.db"},
		Keywords: KeywordsConfig{
			Path:            "crypto_broad-match.csv",
			PrimaryPerRun:   10,
			SecondaryPerRun: 20,
			WatchFile:       true,
		},
		Schedule: ScheduleConfig{
			ScanInterval:    "5m",
			CommandInterval: "10s",
		},
		Reddit: RedditConfig{
			UserAgent: "seoradar/1.0",
		},
		Matcher: MatcherConfig{
			Strategy:           "automaton",
			SecondaryScanLimit: 200,
		},
		Ledger: LedgerConfig{
			Capacity:  10000,
			Retention: "24h",
		},
		Scan: ScanConfig{
			ResultsPerKeyword: 15,
			KeywordBudget:     "45s",
			ItemTimeout:       "10s",
			ControlTTL:        "5s",
			ExcludedSubreddits: []string{
				"cryptocurrencymemes",
				"cryptomoonshots",
				"satoshistreetbets",
				"shitcoinmoonshots",
			},
		},
		Server: ServerConfig{Port: 8080},
		Report: ReportConfig{Time: "09:30"},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SEORADAR_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("KEYWORD_CSV_PATH"); v != "" {
		cfg.Keywords.Path = v
	}
	if v := os.Getenv("REDDIT_CLIENT_ID"); v != "" {
		cfg.Reddit.ClientID = v
	}
	if v := os.Getenv("REDDIT_CLIENT_SECRET"); v != "" {
		cfg.Reddit.ClientSecret = v
	}
	if v := os.Getenv("REDDIT_USER_AGENT"); v != "" {
		cfg.Reddit.UserAgent = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
}
