package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Logging     LoggingConfig   `toml:"logging"`
	Storage     StorageConfig   `toml:"storage"`
	Scraper     ScraperConfig   `toml:"scraper"`
	Crawler     CrawlerConfig   `toml:"crawler"`
	Clone       CloneConfig     `toml:"clone"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	Retention   RetentionConfig `toml:"retention"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration for job snapshot persistence
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// ScraperConfig contains headless-browser scraping configuration
type ScraperConfig struct {
	UserAgent          string        `toml:"user_agent"`           // User agent string for page loads
	MaxInstances       int           `toml:"max_instances"`        // Browser pool size
	Headless           bool          `toml:"headless"`             // Run Chrome headless
	ViewportWidth      int           `toml:"viewport_width"`       // Render viewport width
	ViewportHeight     int           `toml:"viewport_height"`      // Render viewport height
	JavaScriptWaitTime time.Duration `toml:"javascript_wait_time"` // Time to wait for JavaScript to render
	RequestTimeout     time.Duration `toml:"request_timeout"`      // Per-page navigation timeout
}

// CrawlerConfig contains page-discovery configuration
type CrawlerConfig struct {
	MaxPages     int           `toml:"max_pages"`     // Default cap on discovered pages
	RequestDelay time.Duration `toml:"request_delay"` // Minimum delay between page loads on the target site
}

// CloneConfig contains pipeline defaults for clone jobs
type CloneConfig struct {
	DefaultModel    string        `toml:"default_model"`    // Model alias used when a request omits one
	ScrapeWorkers   int           `toml:"scrape_workers"`   // Bounded concurrency for per-page scraping
	GenerateTimeout time.Duration `toml:"generate_timeout"` // Per-page generation timeout
	ScrapeTimeout   time.Duration `toml:"scrape_timeout"`   // Per-page scrape timeout
	DiscoverTimeout time.Duration `toml:"discover_timeout"` // Site discovery timeout
	AssetTimeout    time.Duration `toml:"asset_timeout"`    // Per-page asset embedding timeout
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	FastModel string `toml:"fast_model"`
	MaxTokens int    `toml:"max_tokens"`
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float32 `toml:"temperature"`
}

// RetentionConfig controls the optional terminal-job eviction sweep.
// Disabled by default: completed and failed jobs live for the process lifetime.
type RetentionConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule for the sweep
	TTL      string `toml:"ttl"`      // Age after which terminal jobs are evicted, e.g. "24h"
}

// NewDefaultConfig returns the configuration defaults applied before any file or env override
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/imitor",
				ResetOnStartup: false,
			},
		},
		Scraper: ScraperConfig{
			UserAgent:          "Imitor-Scraper/1.0",
			MaxInstances:       3,
			Headless:           true,
			ViewportWidth:      1920,
			ViewportHeight:     1080,
			JavaScriptWaitTime: 3 * time.Second,
			RequestTimeout:     45 * time.Second,
		},
		Crawler: CrawlerConfig{
			MaxPages:     20,
			RequestDelay: 500 * time.Millisecond,
		},
		Clone: CloneConfig{
			DefaultModel:    "agentic",
			ScrapeWorkers:   3,
			GenerateTimeout: 3 * time.Minute,
			ScrapeTimeout:   60 * time.Second,
			DiscoverTimeout: 2 * time.Minute,
			AssetTimeout:    2 * time.Minute,
		},
		Gemini: GeminiConfig{
			Model:     "gemini-2.0-flash-exp",
			FastModel: "gemini-2.0-flash-exp",
			MaxTokens: 8192,
		},
		Claude: ClaudeConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 8192,
		},
		Retention: RetentionConfig{
			Enabled:  false,
			Schedule: "@every 1h",
			TTL:      "24h",
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files; environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("IMITOR_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("IMITOR_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("IMITOR_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Logging configuration
	if level := os.Getenv("IMITOR_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("IMITOR_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Storage configuration
	if badgerPath := os.Getenv("IMITOR_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// API keys
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}
	if key := os.Getenv("GOOGLE_AI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && config.Gemini.APIKey == "" {
		config.Gemini.APIKey = key
	}

	// Scraper configuration
	if userAgent := os.Getenv("IMITOR_SCRAPER_USER_AGENT"); userAgent != "" {
		config.Scraper.UserAgent = userAgent
	}
	if workers := os.Getenv("IMITOR_SCRAPE_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil && w > 0 {
			config.Clone.ScrapeWorkers = w
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// IsProduction returns true when running with the production environment setting
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}
