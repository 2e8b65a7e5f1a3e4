// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Duration lets yaml files spell durations as "10s" / "24h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: bad duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	App       AppConfig       `yaml:"app"`
	Scraping  ScrapingConfig  `yaml:"scraping"`
	Backfill  BackfillConfig  `yaml:"backfill"`
	Database  DatabaseConfig  `yaml:"database"`
	Secondary SecondaryConfig `yaml:"secondary"`
	Cron      CronConfig      `yaml:"cron"`
}

type AppConfig struct {
	Name  string `yaml:"name"`
	Env   string `yaml:"env"`
	Debug bool   `yaml:"debug"`
	Port  int    `yaml:"port"`
}

type ScrapingConfig struct {
	UserAgent      string   `yaml:"user_agent"`
	Timeout        Duration `yaml:"timeout"`
	MaxRetries     int      `yaml:"max_retries"`
	RateLimitWait  Duration `yaml:"rate_limit_wait"`
	CacheTTL       Duration `yaml:"cache_ttl"`
	ScrapeDetails  bool     `yaml:"scrape_details"`
	MaxDetailPages int      `yaml:"max_detail_pages"`
}

type BackfillConfig struct {
	Timeout      Duration `yaml:"timeout"`
	Months       int      `yaml:"months"`
	MaxPages     int      `yaml:"max_pages"`
	PageDelay    Duration `yaml:"page_delay"`
	ModelsPerRun int      `yaml:"models_per_run"`
	MinBudget    Duration `yaml:"min_budget"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// SecondaryConfig points at the hosted REST store (PostgREST-style upserts).
type SecondaryConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Table   string `yaml:"table"`
}

type CronConfig struct {
	Secret string   `yaml:"secret"`
	Budget Duration `yaml:"budget"`
}

// Load reads the base config plus the scraping overrides, then applies
// environment variables on top. dir is the configs directory.
func Load(dir string) (*Config, error) {
	cfg := defaults()

	if err := readYAML(filepath.Join(dir, "app.yaml"), cfg); err != nil {
		return nil, err
	}

	// Scraping settings live in their own file so timeouts and budgets can
	// be tuned without touching service config.
	scrapingPath := filepath.Join(dir, "scraping.yaml")
	if data, err := os.ReadFile(scrapingPath); err == nil {
		var overlay struct {
			Scraping ScrapingConfig `yaml:"scraping"`
			Backfill BackfillConfig `yaml:"backfill"`
		}
		overlay.Scraping = cfg.Scraping
		overlay.Backfill = cfg.Backfill
		if err := yaml.Unmarshal(data, &overlay); err != nil {
			return nil, fmt.Errorf("parse %s: %w", scrapingPath, err)
		}
		cfg.Scraping = overlay.Scraping
		cfg.Backfill = overlay.Backfill
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg.applyEnv()
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		App: AppConfig{Name: "lotlens", Env: "development", Port: 8080},
		Scraping: ScrapingConfig{
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
				"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			Timeout:        Duration(10 * time.Second),
			MaxRetries:     3,
			RateLimitWait:  Duration(60 * time.Second),
			CacheTTL:       Duration(24 * time.Hour),
			ScrapeDetails:  true,
			MaxDetailPages: 10,
		},
		Backfill: BackfillConfig{
			Timeout:      Duration(30 * time.Second),
			Months:       12,
			MaxPages:     10,
			PageDelay:    Duration(2 * time.Second),
			ModelsPerRun: 3,
			MinBudget:    Duration(90 * time.Second),
		},
		Secondary: SecondaryConfig{Table: "listings"},
		Cron:      CronConfig{Budget: Duration(5 * time.Minute)},
	}
}

func readYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("SECONDARY_BASE_URL"); v != "" {
		c.Secondary.BaseURL = v
	}
	if v := os.Getenv("SECONDARY_API_KEY"); v != "" {
		c.Secondary.APIKey = v
	}
	if v := os.Getenv("CRON_SECRET"); v != "" {
		c.Cron.Secret = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.App.Port = p
		}
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		c.App.Env = v
	}
}

// Validate checks the settings the API server cannot run without. Missing
// credentials are fatal, unlike everything downstream of a started run.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("config: DATABASE_URL is required")
	}
	if c.Cron.Secret == "" {
		return fmt.Errorf("config: CRON_SECRET is required")
	}
	if c.Backfill.ModelsPerRun <= 0 {
		return fmt.Errorf("config: backfill.models_per_run must be positive")
	}
	if c.Scraping.Timeout <= 0 || c.Backfill.Timeout <= 0 {
		return fmt.Errorf("config: timeouts must be positive")
	}
	return nil
}
