package commands

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/catena-ai/catena-go/internal/doublet"
	"github.com/catena-ai/catena-go/internal/store"
)

// getEnvOrDefault returns the env var value or fallback when unset/empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as int, or fallback when unset or
// unparseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// defaultGraphPath returns the default path for the doublet edge file.
// The parent directory is created on demand.
func defaultGraphPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".catena")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "edges.dbl"), nil
}

// openRecordStore opens the flat hierarchy record store configured via
// CATENA_RECORDS_DB. Returns (nil, nil) when persistence is disabled.
func openRecordStore() (store.RecordStore, error) {
	path := os.Getenv("CATENA_RECORDS_DB")
	if path == "disabled" {
		return nil, nil
	}
	if path == "" {
		var err error
		path, err = store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	return store.Open(path)
}

// openGraphStore opens the doublet graph store configured via
// CATENA_GRAPH_PATH. Returns (nil, nil) when persistence is disabled.
func openGraphStore() (*doublet.HierarchyStore, error) {
	path := os.Getenv("CATENA_GRAPH_PATH")
	if path == "disabled" {
		return nil, nil
	}
	if path == "" {
		var err error
		path, err = defaultGraphPath()
		if err != nil {
			return nil, err
		}
	}
	region, err := doublet.OpenMmapRegion(path)
	if err != nil {
		return nil, err
	}
	edges, err := doublet.Open(region)
	if err != nil {
		region.Close()
		return nil, err
	}
	return doublet.NewHierarchyStore(edges)
}

// cacheTTL resolves the block embedding cache TTL from CATENA_CACHE_TTL
// (seconds).
func cacheTTL() time.Duration {
	if secs := getEnvInt("CATENA_CACHE_TTL", 0); secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
