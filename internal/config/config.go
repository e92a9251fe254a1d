// Package config loads and validates archiver configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all archiver configuration knobs loaded via Viper.
type Config struct {
	Site     SiteConfig     `mapstructure:"site"`
	Paths    PathsConfig    `mapstructure:"paths"`
	Scrape   ScrapeConfig   `mapstructure:"scrape"`
	Download DownloadConfig `mapstructure:"download"`
	Clean    CleanConfig    `mapstructure:"clean"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Render   RenderConfig   `mapstructure:"render"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SiteConfig points at the E-Library host.
type SiteConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	Collection int    `mapstructure:"collection"`
}

// PathsConfig holds the three local roots of the archive.
type PathsConfig struct {
	Detailed  string `mapstructure:"detailed"`
	Downloads string `mapstructure:"downloads"`
	Cleaned   string `mapstructure:"cleaned"`
}

// ScrapeConfig governs the index and detail stage.
type ScrapeConfig struct {
	Workers  int `mapstructure:"workers"`
	FromYear int `mapstructure:"from_year"`
}

// DownloadConfig governs the PDF acquisition stage.
type DownloadConfig struct {
	Workers int `mapstructure:"workers"`
}

// CleanConfig governs the sanitize stage.
type CleanConfig struct {
	Workers    int      `mapstructure:"workers"`
	Watermarks []string `mapstructure:"watermarks"`
}

// HTTPConfig configures the HTML fetcher.
type HTTPConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// RenderConfig selects and tunes the URL-to-PDF renderer.
type RenderConfig struct {
	Engine           string        `mapstructure:"engine"`
	BinaryPath       string        `mapstructure:"binary_path"`
	JavaScriptDelay  time.Duration `mapstructure:"javascript_delay"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxParallel      int           `mapstructure:"max_parallel"`
	DisableSandboxed bool          `mapstructure:"no_sandbox"`
}

// StorageConfig selects where cleaned documents are written.
type StorageConfig struct {
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// CatalogConfig enables the optional Postgres case catalog.
type CatalogConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// MetricsConfig controls the optional metrics listener.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Render engines.
const (
	EngineChromedp    = "chromedp"
	EngineWkhtmltopdf = "wkhtmltopdf"
)

// Storage providers.
const (
	ProviderLocal = "local"
	ProviderGCS   = "gcs"
)

// DefaultWatermarks are the E-Library strings stamped on every rendered page.
var DefaultWatermarks = []string{
	"Source: Supreme Court E-Library",
	"This page was dynamically generated",
	"by the E-Library Content Management System (E-LibCMS)",
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ARCHIVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.base_url", "https://elibrary.judiciary.gov.ph")
	v.SetDefault("site.collection", 28)
	v.SetDefault("paths.detailed", "jurisprudence_detailed")
	v.SetDefault("paths.downloads", "jurisprudence_downloads")
	v.SetDefault("paths.cleaned", "jurisprudence_cleaned")
	v.SetDefault("scrape.workers", 10)
	v.SetDefault("scrape.from_year", 1900)
	v.SetDefault("download.workers", 4)
	v.SetDefault("clean.workers", 6)
	v.SetDefault("clean.watermarks", DefaultWatermarks)
	v.SetDefault("http.timeout", "10s")
	v.SetDefault("http.user_agent", "jurisprudence-archiver/1.0 (+https://github.com/JakeFAU/jurisprudence-archiver)")
	v.SetDefault("http.requests_per_second", 4.0)
	v.SetDefault("render.engine", EngineChromedp)
	v.SetDefault("render.binary_path", "wkhtmltopdf")
	v.SetDefault("render.javascript_delay", "2s")
	v.SetDefault("render.timeout", "60s")
	v.SetDefault("render.max_parallel", 4)
	v.SetDefault("render.no_sandbox", false)
	v.SetDefault("storage.provider", ProviderLocal)
	v.SetDefault("catalog.table", "cases")
	v.SetDefault("catalog.max_conns", 4)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url must be set")
	}
	if c.Site.Collection <= 0 {
		return fmt.Errorf("site.collection must be > 0")
	}
	if c.Paths.Detailed == "" || c.Paths.Downloads == "" || c.Paths.Cleaned == "" {
		return fmt.Errorf("paths.detailed, paths.downloads and paths.cleaned must be set")
	}
	if c.Scrape.Workers <= 0 {
		return fmt.Errorf("scrape.workers must be > 0")
	}
	if c.Scrape.FromYear < 1900 {
		return fmt.Errorf("scrape.from_year must be >= 1900")
	}
	if c.Download.Workers <= 0 {
		return fmt.Errorf("download.workers must be > 0")
	}
	if c.Clean.Workers <= 0 || c.Clean.Workers > 16 {
		return fmt.Errorf("clean.workers must be between 1 and 16")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("http.requests_per_second must be >= 0")
	}
	switch c.Render.Engine {
	case EngineChromedp:
	case EngineWkhtmltopdf:
		if c.Render.BinaryPath == "" {
			return fmt.Errorf("render.binary_path must be set for the wkhtmltopdf engine")
		}
	default:
		return fmt.Errorf("unknown render.engine %q", c.Render.Engine)
	}
	if c.Render.JavaScriptDelay < 0 {
		return fmt.Errorf("render.javascript_delay must be >= 0")
	}
	if c.Render.Timeout <= c.Render.JavaScriptDelay {
		return fmt.Errorf("render.timeout must exceed render.javascript_delay")
	}
	switch c.Storage.Provider {
	case ProviderLocal:
	case ProviderGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set when storage.provider is gcs")
		}
	default:
		return fmt.Errorf("unknown storage.provider %q", c.Storage.Provider)
	}
	if c.PubSub.Topic != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic is set")
	}
	return nil
}

// WatermarkPhrases returns the configured phrases, falling back to the defaults.
func (c CleanConfig) WatermarkPhrases() []string {
	if len(c.Watermarks) == 0 {
		return append([]string(nil), DefaultWatermarks...)
	}
	return append([]string(nil), c.Watermarks...)
}
