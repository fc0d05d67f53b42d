package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/ibeckermayer/deepfeed/internal/config"
)

// Kind names a subdirectory of the cache.
type Kind string

const (
	KindLLM       Kind = "llm"
	KindSnapshots Kind = "snapshots"
	KindExports   Kind = "exports"
)

// Cache writes timestamped files under a root directory, one subdirectory
// per Kind. Names sort chronologically.
type Cache struct {
	Dir string
}

// DefaultCache is rooted at the platform cache directory.
func DefaultCache() (*Cache, error) {
	dir, err := config.CacheDir()
	if err != nil {
		return nil, err
	}
	return &Cache{Dir: dir}, nil
}

// KindDir returns the directory for k.
func (c *Cache) KindDir(k Kind) string {
	return filepath.Join(c.Dir, string(k))
}

// generateFilename creates a timestamped filename with the given extension.
// Nanoseconds keep exchanges from the same second apart.
func generateFilename(ext string) string {
	return time.Now().UTC().Format("2006-01-02T15-04-05.000000000") + ext
}

// SaveJSON writes v to a new file under k and returns its path.
func SaveJSON[T any](c *Cache, k Kind, v T) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s output: %w", k, err)
	}
	return c.SaveBytes(k, data, ".json")
}

// SaveBytes writes data to a new file under k and returns its path.
func (c *Cache) SaveBytes(k Kind, data []byte, ext string) (string, error) {
	dir := c.KindDir(k)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s cache dir: %w", k, err)
	}

	path := filepath.Join(dir, generateFilename(ext))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s output: %w", k, err)
	}
	return path, nil
}

// LatestFile returns the path to the most recent file under k.
func (c *Cache) LatestFile(k Kind) (string, error) {
	dir := c.KindDir(k)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no cached %s output", k)
		}
		return "", err
	}

	// os.ReadDir sorts by name, which is chronological for our timestamps
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no cached %s output", k)
	}
	return filepath.Join(dir, files[len(files)-1]), nil
}

// LoadJSON loads JSON data from a specific file path.
func LoadJSON[T any](path string) (T, error) {
	var data T

	raw, err := os.ReadFile(path)
	if err != nil {
		return data, fmt.Errorf("failed to read cached output: %w", err)
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("failed to unmarshal cached output: %w", err)
	}
	return data, nil
}

// LoadLatestJSON loads the most recent JSON file under k along with its path.
func LoadLatestJSON[T any](c *Cache, k Kind) (T, string, error) {
	var zero T

	path, err := c.LatestFile(k)
	if err != nil {
		return zero, "", err
	}
	data, err := LoadJSON[T](path)
	if err != nil {
		return zero, "", err
	}
	return data, path, nil
}
