// Package config loads the docsvaultd server's file-based configuration
// using a Config{...} + defaults() + LoadConfigFile shape. Per-request
// options (ScrapeOptions, SearchOptions) are plain structs populated by
// callers, not by this package — environment-variable parsing is an
// explicit external collaborator concern.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every setting docsvaultd needs at startup.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Scrape   ScrapeDefaults `yaml:"scrape"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StoreConfig controls where the Document Store's SQLite file lives.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// EmbedderConfig selects and configures the embedding client. Selector is
// the "provider:model" string named in §6, whose model part names the
// model; Endpoint/Dimension/BatchSize/Timeout are the concrete values the
// embedder package's Config needs alongside it.
type EmbedderConfig struct {
	Selector  string        `yaml:"selector"`
	Endpoint  string        `yaml:"endpoint"`
	Dimension int           `yaml:"dimension"`
	BatchSize int           `yaml:"batch_size"`
	Timeout   time.Duration `yaml:"timeout"`
}

// ScrapeDefaults holds the scrape section of the file. Concurrency bounds
// the Pipeline Manager's own concurrency; MaxPages, MaxDepth and
// MaxConcurrency are loaded and defaulted but are not applied to submitted
// jobs, whose unset ScrapeOptions fields take scrape.Options' own defaults.
type ScrapeDefaults struct {
	Concurrency    int `yaml:"concurrency"`
	MaxPages       int `yaml:"max_pages"`
	MaxDepth       int `yaml:"max_depth"`
	MaxConcurrency int `yaml:"max_concurrency"`
}

func (c *Config) defaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8085"
	}
	if c.Store.Path == "" {
		c.Store.Path = "docsvault.db"
	}
	if c.Embedder.Dimension <= 0 {
		c.Embedder.Dimension = 768
	}
	if c.Embedder.BatchSize <= 0 {
		c.Embedder.BatchSize = 32
	}
	if c.Embedder.Timeout <= 0 {
		c.Embedder.Timeout = 30 * time.Second
	}
	if c.Scrape.Concurrency <= 0 {
		c.Scrape.Concurrency = 3
	}
	if c.Scrape.MaxPages <= 0 {
		c.Scrape.MaxPages = 1000
	}
	if c.Scrape.MaxDepth <= 0 {
		c.Scrape.MaxDepth = 3
	}
	if c.Scrape.MaxConcurrency <= 0 {
		c.Scrape.MaxConcurrency = 3
	}
}

// Default returns a Config with every field set to its built-in default,
// for callers that run without a config file on disk.
func Default() *Config {
	cfg := &Config{}
	cfg.defaults()
	return cfg
}

// LoadConfigFile reads and parses a YAML config file, applying defaults
// to anything left unset.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.defaults()
	return cfg, nil
}

// ParseEmbedderSelector splits a "provider:model" string (§6) into its
// two parts. A selector without a colon is treated as the model name with
// an empty provider (the provider then plays no role beyond documentation
// — the embedder client itself is transport-agnostic).
func ParseEmbedderSelector(selector string) (provider, model string) {
	provider, model, ok := strings.Cut(selector, ":")
	if !ok {
		return "", selector
	}
	return provider, model
}
