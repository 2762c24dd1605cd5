// Package config provides YAML-based configuration for catena.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so existing workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. CATENA_CONFIG environment variable
//  3. ~/.catena/config.yaml
//  4. ./catena.yaml
//
// If no file is found the system runs entirely from env vars.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Embedding configures the embedding backend.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Qdrant configures the Qdrant point store connection.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Chunking configures resource chunking.
	Chunking ChunkingConfig `yaml:"chunking"`

	// Cache configures the block embedding cache.
	Cache CacheConfig `yaml:"cache"`

	// Records configures the flat hierarchy record store.
	Records RecordsConfig `yaml:"records"`

	// Graph configures the doublet graph store.
	Graph GraphConfig `yaml:"graph"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`
}

// EmbeddingConfig holds embedding backend settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (ollama, openai, azure).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
	// RequestsPerSecond rate-limits backend calls. Zero means unlimited.
	RequestsPerSecond float32 `yaml:"requests_per_second"`
}

// QdrantConfig holds Qdrant point store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// Collection is the Qdrant collection name.
	Collection string `yaml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// ChunkingConfig holds resource chunking settings.
type ChunkingConfig struct {
	// MaxBlockSize is the soft bound on a block's size in characters.
	MaxBlockSize int `yaml:"max_block_size"`
}

// CacheConfig holds block embedding cache settings.
type CacheConfig struct {
	// TTLSeconds is how long a cached block embedding stays live.
	TTLSeconds int `yaml:"ttl_seconds"`
	// RefreshAhead serves stale entries while refreshing in the background.
	RefreshAhead bool `yaml:"refresh_ahead"`
}

// RecordsConfig holds flat hierarchy record store settings.
type RecordsConfig struct {
	// DBPath is the SQLite database path. Set to "disabled" to disable.
	DBPath string `yaml:"db_path"`
}

// GraphConfig holds doublet graph store settings.
type GraphConfig struct {
	// Path is the memory-mapped edge file path. Set to "disabled" to disable.
	Path string `yaml:"path"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"EMBEDDING_RPS", func(c *Config) string { return float32Str(c.Embedding.RequestsPerSecond) }},
	{"QDRANT_HOST", func(c *Config) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Qdrant.TLS) }},
	{"CATENA_MAX_BLOCK_SIZE", func(c *Config) string { return intStr(c.Chunking.MaxBlockSize) }},
	{"CATENA_CACHE_TTL", func(c *Config) string { return intStr(c.Cache.TTLSeconds) }},
	{"CATENA_CACHE_REFRESH_AHEAD", func(c *Config) string { return boolStr(c.Cache.RefreshAhead) }},
	{"CATENA_RECORDS_DB", func(c *Config) string { return c.Records.DBPath }},
	{"CATENA_GRAPH_PATH", func(c *Config) string { return c.Graph.Path }},
	{"CATENA_LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"CATENA_LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("CATENA_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".catena", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("catena.yaml"); err == nil {
		return "catena.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
