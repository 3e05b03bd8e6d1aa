package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Matching MatchingConfig `yaml:"matching"`
	Catalogs CatalogsConfig `yaml:"catalogs"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// MatchingConfig holds the reconciliation engine settings.
type MatchingConfig struct {
	// Threshold is the minimum score a candidate must strictly exceed to
	// be stored as a match.
	Threshold float64 `yaml:"threshold"`
	// DeadlineMs bounds one item-platform reconciliation, in milliseconds.
	DeadlineMs int `yaml:"deadline_ms"`
	// AlbumSearchSample is how many leading tracks feed the per-track
	// album search.
	AlbumSearchSample int `yaml:"album_search_sample"`
	// TrackSearchSample is how many leading tracks feed the track-driven
	// album discovery.
	TrackSearchSample int `yaml:"track_search_sample"`
}

// CatalogsConfig holds per-platform connector settings.
type CatalogsConfig struct {
	Deezer  CatalogConfig `yaml:"deezer"`
	Spotify CatalogConfig `yaml:"spotify"`
	Discogs CatalogConfig `yaml:"discogs"`
}

// CatalogConfig holds one platform's pacing and credential settings.
// Credentials a platform does not use are ignored: Deezer needs none,
// Spotify uses ClientID/ClientSecret, Discogs uses Key/Secret.
type CatalogConfig struct {
	PageSize       int     `yaml:"page_size"`
	RetryLimit     int     `yaml:"retry_limit"`
	RetryBackoffMs int     `yaml:"retry_backoff_ms"`
	RatePerSec     float64 `yaml:"rate_per_sec"`
	ClientID       string  `yaml:"client_id"`
	ClientSecret   string  `yaml:"client_secret"`
	Key            string  `yaml:"key"`
	Secret         string  `yaml:"secret"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "/data/crossmatch.db",
		},
		Matching: MatchingConfig{
			Threshold:         74,
			DeadlineMs:        30000,
			AlbumSearchSample: 8,
			TrackSearchSample: 15,
		},
		Catalogs: CatalogsConfig{
			Deezer:  CatalogConfig{PageSize: 100, RetryLimit: 10, RetryBackoffMs: 1500, RatePerSec: 5},
			Spotify: CatalogConfig{PageSize: 50, RetryLimit: 8, RetryBackoffMs: 1500, RatePerSec: 5},
			Discogs: CatalogConfig{PageSize: 100, RetryLimit: 8, RetryBackoffMs: 1800, RatePerSec: 1},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("CM_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("CM_MATCH_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Matching.Threshold = f
		}
	}
	if v := os.Getenv("CM_MATCH_DEADLINE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Matching.DeadlineMs = n
		}
	}
	if v := os.Getenv("CM_SPOTIFY_CLIENT_ID"); v != "" {
		c.Catalogs.Spotify.ClientID = v
	}
	if v := os.Getenv("CM_SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Catalogs.Spotify.ClientSecret = v
	}
	if v := os.Getenv("CM_DISCOGS_KEY"); v != "" {
		c.Catalogs.Discogs.Key = v
	}
	if v := os.Getenv("CM_DISCOGS_SECRET"); v != "" {
		c.Catalogs.Discogs.Secret = v
	}
	if v := os.Getenv("CM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CM_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("CM_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
}

func (c *Config) validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Matching.Threshold < 0 {
		return fmt.Errorf("invalid matching threshold: %v", c.Matching.Threshold)
	}
	if c.Matching.DeadlineMs < 1 {
		return fmt.Errorf("invalid matching deadline: %dms", c.Matching.DeadlineMs)
	}
	if c.Matching.AlbumSearchSample < 1 || c.Matching.TrackSearchSample < 1 {
		return fmt.Errorf("search samples must be positive")
	}
	for _, cc := range []struct {
		name string
		cfg  CatalogConfig
	}{
		{"deezer", c.Catalogs.Deezer},
		{"spotify", c.Catalogs.Spotify},
		{"discogs", c.Catalogs.Discogs},
	} {
		if cc.cfg.PageSize < 1 {
			return fmt.Errorf("%s page size must be positive", cc.name)
		}
		if cc.cfg.RetryLimit < 1 {
			return fmt.Errorf("%s retry limit must be positive", cc.name)
		}
	}
	return nil
}
