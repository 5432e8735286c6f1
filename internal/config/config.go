package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"StockTracker/internal/model"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Upstream providers.
const (
	ProviderAPI   = "api"
	ProviderYahoo = "yahoo"
	ProviderMock  = "mock"
)

// Config holds all application configuration.
type Config struct {
	Upstream struct {
		Provider          string        `yaml:"provider"`
		BaseURL           string        `yaml:"base_url"`
		Timeout           time.Duration `yaml:"timeout"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
		Burst             int           `yaml:"burst"`
		RetryBudget       int           `yaml:"retry_budget"`
		RetryDelay        time.Duration `yaml:"retry_delay"`
	} `yaml:"upstream"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
		Headless   bool   `yaml:"headless"`
	} `yaml:"database"`
	Redis struct {
		Addr       string        `yaml:"addr"`
		Password   string        `yaml:"password"`
		HistoryTTL time.Duration `yaml:"history_ttl"`
	} `yaml:"redis"`
	Schedule struct {
		RefreshInterval time.Duration `yaml:"refresh_interval"`
		StatusCron      string        `yaml:"status_cron"`
		StatsCron       string        `yaml:"stats_cron"`
		RefreshOnStart  bool          `yaml:"refresh_on_start"`
	} `yaml:"schedule"`
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Tabs      []model.Tab `yaml:"tabs"`
	ActiveTab string      `yaml:"active_tab"`
	Proxy     string      `yaml:"proxy"`
}

// DefaultPath is read when CONFIG_PATH is unset.
const DefaultPath = "configs/config.yaml"

// Path returns the config file location, honoring CONFIG_PATH.
func Path() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads an optional .env file and the YAML config at path, then applies
// environment variable overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[WARN] load .env: %v", err)
	}

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

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("TRACKER_PROVIDER"); v != "" {
		c.Upstream.Provider = v
	}
	if v := os.Getenv("TRACKER_API_BASE_URL"); v != "" {
		c.Upstream.BaseURL = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("TRACKER_HEADLESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TRACKER_HEADLESS: %w", err)
		}
		c.Database.Headless = b
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		d, err := parseInterval(v)
		if err != nil {
			return fmt.Errorf("REFRESH_INTERVAL: %w", err)
		}
		c.Schedule.RefreshInterval = d
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	return nil
}

// parseInterval accepts a Go duration ("5m") or plain milliseconds ("300000").
func parseInterval(v string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}

func (c *Config) applyDefaults() {
	if c.Upstream.Provider == "" {
		if c.Upstream.BaseURL != "" {
			c.Upstream.Provider = ProviderAPI
		} else {
			c.Upstream.Provider = ProviderYahoo
		}
	}
	c.Upstream.Provider = strings.ToLower(c.Upstream.Provider)
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = 30 * time.Second
	}
	if c.Upstream.RetryBudget == 0 {
		c.Upstream.RetryBudget = 3
	}
	if c.Upstream.RetryDelay == 0 {
		c.Upstream.RetryDelay = time.Second
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/stock_tracker.db"
	}
	if c.Redis.HistoryTTL == 0 {
		c.Redis.HistoryTTL = 24 * time.Hour
	}
	if c.Schedule.RefreshInterval == 0 {
		c.Schedule.RefreshInterval = 5 * time.Minute
	}
	if c.Schedule.StatusCron == "" {
		c.Schedule.StatusCron = "@every 1m"
	}
	if c.Schedule.StatsCron == "" {
		c.Schedule.StatsCron = "@every 1m"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = "127.0.0.1:8080"
	}
	if len(c.Tabs) == 0 {
		c.Tabs = []model.Tab{{ID: "1", Title: "Default View", ViewType: model.ViewMarket, Symbols: []string{}}}
	}
	for i := range c.Tabs {
		if c.Tabs[i].ViewType == "" {
			c.Tabs[i].ViewType = model.ViewCompact
		}
		for j, s := range c.Tabs[i].Symbols {
			c.Tabs[i].Symbols[j] = strings.ToUpper(strings.TrimSpace(s))
		}
	}
	if c.ActiveTab == "" {
		c.ActiveTab = c.Tabs[0].ID
	}
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	switch c.Upstream.Provider {
	case ProviderAPI:
		if c.Upstream.BaseURL == "" {
			return fmt.Errorf("upstream.base_url is required for the api provider")
		}
	case ProviderYahoo, ProviderMock:
	default:
		return fmt.Errorf("unknown upstream.provider %q", c.Upstream.Provider)
	}
	if c.Upstream.RetryBudget < 0 {
		return fmt.Errorf("upstream.retry_budget must not be negative")
	}
	if c.Schedule.RefreshInterval < time.Second {
		return fmt.Errorf("schedule.refresh_interval must be at least 1s")
	}
	seen := make(map[string]bool, len(c.Tabs))
	for _, t := range c.Tabs {
		if t.ID == "" {
			return fmt.Errorf("tab %q has no id", t.Title)
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate tab id %q", t.ID)
		}
		seen[t.ID] = true
		switch t.ViewType {
		case model.ViewCompact, model.ViewDetailed, model.ViewIndividual, model.ViewMarket:
		default:
			return fmt.Errorf("tab %q: unknown view_type %q", t.ID, t.ViewType)
		}
	}
	if !seen[c.ActiveTab] {
		return fmt.Errorf("active_tab %q is not a configured tab", c.ActiveTab)
	}
	return nil
}

// Active returns the active tab.
func (c *Config) Active() model.Tab {
	for _, t := range c.Tabs {
		if t.ID == c.ActiveTab {
			return t
		}
	}
	if len(c.Tabs) > 0 {
		return c.Tabs[0]
	}
	return model.Tab{}
}
