package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/atlas/internal/logging"
	"github.com/starford/atlas/internal/search"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Charts ChartsConfig      `yaml:"charts"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Search SearchConfig      `yaml:"search"`
	Feed   FeedConfig        `yaml:"feed"`
	Auth   AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Charts.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Search.Validate(); err != nil {
		return err
	}
	if err := c.Feed.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level    `yaml:"log_level"`
	LogFile  LogFileConfig `yaml:"log_file"`
	HTTP     HTTPConfig    `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := c.LogFile.Validate(); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// Logging returns the logger settings.
func (c *ApplicationConfig) Logging() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = c.LogLevel.String()
	lc.FilePath = c.LogFile.Path
	if c.LogFile.MaxSizeMB > 0 {
		lc.MaxSizeMB = c.LogFile.MaxSizeMB
	}
	if c.LogFile.MaxBackups > 0 {
		lc.MaxBackups = c.LogFile.MaxBackups
	}
	if c.LogFile.MaxAgeDays > 0 {
		lc.MaxAgeDays = c.LogFile.MaxAgeDays
	}
	return lc
}

// LogFileConfig enables a rotating log file. An empty Path logs to stdout.
type LogFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Validate validates the log file configuration.
func (c *LogFileConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxSizeMB, validation.Min(0)),
		validation.Field(&c.MaxBackups, validation.Min(0)),
		validation.Field(&c.MaxAgeDays, validation.Min(0)),
	)
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// ChartsConfig holds the path to the charts root directory.
type ChartsConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the charts configuration.
func (c *ChartsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SearchConfig holds search widget configuration.
//
// Layout is "split" (separate name and body fields) or "combined" (one
// field filtering bodies). SiteURL is the site the terminal widget and the
// search command fetch the dataset from; MaxDatasetMB caps the size of that
// download.
type SearchConfig struct {
	Layout       string `yaml:"layout"`
	SVGCacheSize int    `yaml:"svg_cache_size"`
	SiteURL      string `yaml:"site_url"`
	MaxDatasetMB int    `yaml:"max_dataset_mb"`
}

// Validate validates the search configuration.
func (c *SearchConfig) Validate() error {
	if c.Layout == "" {
		c.Layout = search.LayoutSplit.String()
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Layout, validation.In(search.LayoutSplit.String(), search.LayoutCombined.String())),
		validation.Field(&c.SVGCacheSize, validation.Min(0)),
		validation.Field(&c.MaxDatasetMB, validation.Min(0)),
	)
}

// MaxDatasetBytes returns the dataset download cap, or 0 for the default.
func (c *SearchConfig) MaxDatasetBytes() int64 {
	return int64(c.MaxDatasetMB) << 20
}

// FeedConfig holds the Atom feed settings. BaseURL makes entry links
// absolute; when empty they are resolved against the requesting host.
type FeedConfig struct {
	Title   string `yaml:"title"`
	BaseURL string `yaml:"base_url"`
}

// Validate validates the feed configuration.
func (c *FeedConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, is.URL),
	)
}

// ParsedLayout returns the configured layout.
func (c *SearchConfig) ParsedLayout() search.Layout {
	l, err := search.ParseLayout(c.Layout)
	if err != nil {
		return search.LayoutSplit
	}
	return l
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced on writes:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Charts: ChartsConfig{
			Path: "./charts",
		},
		SQLite: SQLiteConfig{
			Path: "./atlas.db",
		},
		Search: SearchConfig{
			Layout:       search.LayoutSplit.String(),
			SVGCacheSize: 256,
			SiteURL:      "http://localhost:8080",
			MaxDatasetMB: 32,
		},
		Feed: FeedConfig{
			Title: "Atlas",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
