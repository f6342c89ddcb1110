// internal/cache/cache.go
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DiskCache deduplicates fetches across runs. The entire cache record is the
// existence of a file at {dir}/{id}: no metadata, no TTL, no checksum
// verification on read. Concurrent runs against the same directory are not
// supported; one pipeline instance per cache directory at a time.
type DiskCache struct {
	logger *zap.Logger
}

// New creates a disk cache.
func New(logger *zap.Logger) *DiskCache {
	return &DiskCache{logger: logger}
}

// Path returns the deterministic cache location for an identifier. The
// identifier is flattened so a hostile value cannot escape the directory.
func (c *DiskCache) Path(dir, id string) string {
	id = strings.ReplaceAll(id, string(os.PathSeparator), "_")
	return filepath.Join(dir, filepath.Base(id))
}

// Has reports whether the identifier is already cached in dir. This check
// must happen before any network fetch for the same identifier+directory.
func (c *DiskCache) Has(dir, id string) bool {
	info, err := os.Stat(c.Path(dir, id))
	return err == nil && !info.IsDir()
}

// Read returns the cached payload verbatim.
func (c *DiskCache) Read(dir, id string) ([]byte, error) {
	data, err := os.ReadFile(c.Path(dir, id))
	if err != nil {
		return nil, fmt.Errorf("cache: reading %s: %w", id, err)
	}
	return data, nil
}

// Write persists a payload, unless the entry already exists. Cached files are
// written once and never overwritten.
func (c *DiskCache) Write(dir, id string, data []byte) error {
	if c.Has(dir, id) {
		c.logger.Debug("cache entry already exists, not overwritten",
			zap.String("id", id), zap.String("dir", dir))
		return nil
	}
	if err := os.WriteFile(c.Path(dir, id), data, 0600); err != nil {
		return fmt.Errorf("cache: writing %s: %w", id, err)
	}
	return nil
}

// Create opens a new entry for streaming writes (sample downloads). The
// caller owns the handle and must remove it on a failed write so a partial
// file is not mistaken for a cache hit on the next run.
func (c *DiskCache) Create(dir, id string) (*os.File, error) {
	f, err := os.OpenFile(c.Path(dir, id), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("cache: creating %s: %w", id, err)
	}
	return f, nil
}

// Remove deletes an entry. Used to discard partially written downloads.
func (c *DiskCache) Remove(dir, id string) error {
	return os.Remove(c.Path(dir, id))
}
