package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
embedding:
  provider: ollama
  model: nomic-embed-text
  requests_per_second: 2.5
qdrant:
  host: qdrant.internal
  port: 6334
  collection: my-docs
chunking:
  max_block_size: 1500
cache:
  ttl_seconds: 300
  refresh_ahead: true
records:
  db_path: /var/lib/catena/hierarchy.db
graph:
  path: /var/lib/catena/edges.dbl
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Clear env vars that the YAML should set.
	envKeys := []string{
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_RPS",
		"QDRANT_HOST", "QDRANT_PORT", "QDRANT_COLLECTION",
		"CATENA_MAX_BLOCK_SIZE", "CATENA_CACHE_TTL", "CATENA_CACHE_REFRESH_AHEAD",
		"CATENA_RECORDS_DB", "CATENA_GRAPH_PATH",
		"CATENA_LOG_LEVEL", "CATENA_LOG_FORMAT",
	}
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	log := slog.Default()
	loaded, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	checks := map[string]string{
		"EMBEDDING_PROVIDER":         "ollama",
		"EMBEDDING_MODEL":            "nomic-embed-text",
		"EMBEDDING_RPS":              "2.5",
		"QDRANT_HOST":                "qdrant.internal",
		"QDRANT_PORT":                "6334",
		"QDRANT_COLLECTION":          "my-docs",
		"CATENA_MAX_BLOCK_SIZE":      "1500",
		"CATENA_CACHE_TTL":           "300",
		"CATENA_CACHE_REFRESH_AHEAD": "true",
		"CATENA_RECORDS_DB":          "/var/lib/catena/hierarchy.db",
		"CATENA_GRAPH_PATH":          "/var/lib/catena/edges.dbl",
		"CATENA_LOG_LEVEL":           "debug",
		"CATENA_LOG_FORMAT":          "text",
	}
	for k, want := range checks {
		got := os.Getenv(k)
		if got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
embedding:
  provider: ollama
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Set env var BEFORE loading — it should NOT be overwritten.
	t.Setenv("EMBEDDING_PROVIDER", "azure")

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("EMBEDDING_PROVIDER"); got != "azure" {
		t.Errorf("EMBEDDING_PROVIDER: expected env override %q, got %q", "azure", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestFloat32Str(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{2.5, "2.5"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := float32Str(tt.in); got != tt.want {
			t.Errorf("float32Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
