package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultMaxPages    = 50
	defaultNavTimeout  = 60 * time.Second
	defaultSettleState = "networkidle"
	defaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

type Config struct {
	Browser   BrowserConfig
	Postgres  PostgresConfig
	S3        S3Config
	Scheduler SchedulerConfig
	DBPath    string
	LogPath   string
	LogMaxMB  int
	MaxPages  int
	SitesDir  string
	Sites     map[string]*SiteConfig
}

type BrowserConfig struct {
	Headless    bool
	UserAgent   string
	NavTimeout  time.Duration
	SettleState string
	ProxyURL    string
}

type PostgresConfig struct {
	DBURL string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

// SiteConfig describes one development to track.
type SiteConfig struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	LandingURL string `yaml:"landing_url"`
	ListingURL string `yaml:"listing_url"` // {id} is replaced by the development id
	BaseURL    string `yaml:"base_url"`
	MaxPages   int    `yaml:"max_pages"`
}

// CrawlConfig is the immutable set of parameters for one run.
type CrawlConfig struct {
	SiteID      string
	LandingURL  string
	DisplayName string
	ListingURL  string
	BaseURL     string
	NavTimeout  time.Duration
	MaxPages    int
	SettleState string
	Headless    bool
	UserAgent   string
	ProxyURL    string
}

// Crawl derives the run parameters for this site from the global config.
func (s *SiteConfig) Crawl(cfg *Config) CrawlConfig {
	maxPages := cfg.MaxPages
	if s.MaxPages > 0 {
		maxPages = s.MaxPages
	}
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	return CrawlConfig{
		SiteID:      s.ID,
		LandingURL:  s.LandingURL,
		DisplayName: s.Name,
		ListingURL:  s.ListingURL,
		BaseURL:     s.BaseURL,
		NavTimeout:  cfg.Browser.NavTimeout,
		MaxPages:    maxPages,
		SettleState: cfg.Browser.SettleState,
		Headless:    cfg.Browser.Headless,
		UserAgent:   cfg.Browser.UserAgent,
		ProxyURL:    cfg.Browser.ProxyURL,
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Browser: BrowserConfig{
			Headless:    getEnv("HEADLESS", "true") != "false",
			UserAgent:   getEnv("USER_AGENT", defaultUserAgent),
			NavTimeout:  time.Duration(getEnvInt("NAV_TIMEOUT_MS", int(defaultNavTimeout.Milliseconds()))) * time.Millisecond,
			SettleState: getEnv("SETTLE_STATE", defaultSettleState),
			ProxyURL:    os.Getenv("PROXY_URL"),
		},
		Postgres: PostgresConfig{
			DBURL: os.Getenv("DATABASE_URL"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			Prefix:          getEnv("S3_PREFIX", "results"),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCRAPE_CRON"),
		},
		DBPath:   getEnv("DB_PATH", "scraper.db"),
		LogPath:  getEnv("LOG_PATH", "parser.log"),
		LogMaxMB: getEnvInt("LOG_MAX_MB", 2),
		MaxPages: getEnvInt("MAX_PAGES", defaultMaxPages),
		SitesDir: getEnv("SITES_DIR", "config/sites"),
		Sites:    make(map[string]*SiteConfig),
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadSiteConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadSiteConfigs() error {
	entries, err := os.ReadDir(c.SitesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(c.SitesDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var site SiteConfig
		if err := yaml.Unmarshal(data, &site); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := site.validate(); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		c.Sites[site.ID] = &site
	}

	return nil
}

func (s *SiteConfig) validate() error {
	switch {
	case s.ID == "":
		return fmt.Errorf("site id is required")
	case s.LandingURL == "":
		return fmt.Errorf("site %s: landing_url is required", s.ID)
	case s.ListingURL == "":
		return fmt.Errorf("site %s: listing_url is required", s.ID)
	}
	return nil
}

// SiteIDs returns configured site ids in a stable order.
func (c *Config) SiteIDs() []string {
	ids := make([]string, 0, len(c.Sites))
	for id := range c.Sites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
