package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// cacheRetentionPeriod is how long stale cache files are kept before the startup sweep removes them.
	cacheRetentionPeriod = 24 * time.Hour
	// cacheDirPerms is the permission for cache directories.
	cacheDirPerms = 0o700
	// cacheFilePerms is the permission for cache files.
	cacheFilePerms = 0o600
)

// diskEntry represents a cache entry on disk.
type diskEntry struct {
	CachedAt time.Time       `json:"cached_at"`
	Key      string          `json:"key"`
	Value    json.RawMessage `json:"value"`
}

// DiskCache provides two-tier caching: in-memory + disk persistence.
// Values read back from disk are returned as json.RawMessage.
type DiskCache struct {
	*Cache // Embedded in-memory cache

	cacheDir string
	enabled  bool
}

// HitType indicates where a cache value was found.
type HitType string

// Cache hit types.
const (
	HitMemory HitType = "memory"
	HitDisk   HitType = "disk"
	Miss      HitType = "miss"
)

// NewDiskCache creates a new cache with disk persistence.
// If cacheDir is empty, falls back to memory-only cache.
func NewDiskCache(ttl time.Duration, cacheDir string, opts ...Option) (*DiskCache, error) {
	dc := &DiskCache{
		Cache:    New(ttl, opts...),
		cacheDir: cacheDir,
		enabled:  cacheDir != "",
	}

	if dc.enabled {
		cleanPath := filepath.Clean(cacheDir)
		if !filepath.IsAbs(cleanPath) {
			return nil, errors.New("cache directory must be absolute path")
		}

		if err := os.MkdirAll(cleanPath, cacheDirPerms); err != nil {
			slog.Warn("Failed to create cache directory, falling back to memory-only", "component", "cache", "error", err, "path", cleanPath)
			dc.enabled = false
		} else {
			dc.cacheDir = cleanPath
			go dc.cleanOldCaches()
		}
	}

	return dc, nil
}

// Get retrieves a value from cache (memory first, then disk).
func (c *DiskCache) Get(key string) (any, bool) {
	value, hit := c.Lookup(key)
	return value, hit != Miss
}

// Lookup retrieves a value from cache and indicates where it was found.
func (c *DiskCache) Lookup(key string) (any, HitType) {
	if value, found := c.Cache.Get(key); found {
		return value, HitMemory
	}

	if !c.enabled {
		return nil, Miss
	}

	var entry diskEntry
	if !c.loadFromDisk(key, &entry) {
		return nil, Miss
	}

	if c.now().Sub(entry.CachedAt) >= c.ttl {
		slog.Debug("Disk cache entry expired", "component", "cache", "key", key, "cached_at", entry.CachedAt)
		c.removeFromDisk(key)
		return nil, Miss
	}

	slog.Debug("Disk cache hit", "component", "cache", "key", key, "cached_at", entry.CachedAt)

	// Restore to memory with the original timestamp so the TTL is not extended.
	c.Cache.set(key, entry.Value, entry.CachedAt)

	return entry.Value, HitDisk
}

// Set stores a value in both memory and disk cache.
func (c *DiskCache) Set(key string, value any) {
	now := c.now()
	c.Cache.set(key, value, now)

	if !c.enabled {
		return
	}

	valueJSON, err := json.Marshal(value)
	if err != nil {
		slog.Debug("Failed to marshal value for disk cache", "component", "cache", "key", key, "error", err)
		return
	}

	entry := diskEntry{
		Key:      key,
		Value:    valueJSON,
		CachedAt: now,
	}

	if err := c.saveToDisk(key, entry); err != nil {
		slog.Debug("Failed to save to disk cache", "component", "cache", "key", key, "error", err)
	}
}

// Delete removes an entry from memory and disk.
func (c *DiskCache) Delete(key string) {
	c.Cache.Delete(key)
	if c.enabled {
		c.removeFromDisk(key)
	}
}

// Clear removes matching entries from memory and disk.
// Entries present in both tiers are counted once.
func (c *DiskCache) Clear(pattern string) int {
	if !c.enabled {
		return c.Cache.Clear(pattern)
	}

	diskOnly := 0
	files, err := os.ReadDir(c.cacheDir)
	if err != nil {
		slog.Warn("Failed to read cache directory", "component", "cache", "error", err)
	}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		path := filepath.Join(c.cacheDir, f.Name())
		var entry diskEntry
		decoded := decodeFile(path, &entry)
		if pattern != "" && (!decoded || !strings.Contains(entry.Key, pattern)) {
			continue
		}
		if err := os.Remove(path); err != nil {
			if !os.IsNotExist(err) {
				slog.Debug("Failed to remove disk cache file", "component", "cache", "error", err, "path", path)
			}
			continue
		}
		if decoded && !c.Cache.has(entry.Key) {
			diskOnly++
		}
	}

	return c.Cache.Clear(pattern) + diskOnly
}

// fileName generates a SHA256 hash of the key for the filename.
func (*DiskCache) fileName(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:]) + ".json"
}

// loadFromDisk loads a cache entry from disk.
func (c *DiskCache) loadFromDisk(key string, v *diskEntry) bool {
	path := filepath.Join(c.cacheDir, c.fileName(key))
	if !decodeFile(path, v) {
		return false
	}
	// Hash collisions are not expected, but a mismatched key is treated as a miss.
	return v.Key == key
}

func decodeFile(path string, v any) bool {
	file, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Debug("Failed to open disk cache file", "component", "cache", "error", err, "path", path)
		}
		return false
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Debug("Failed to close disk cache file", "component", "cache", "error", err, "path", path)
		}
	}()

	if err := json.NewDecoder(file).Decode(v); err != nil {
		slog.Debug("Failed to decode disk cache file", "component", "cache", "error", err, "path", path)
		return false
	}
	return true
}

// saveToDisk saves a cache entry to disk atomically.
func (c *DiskCache) saveToDisk(key string, v any) error {
	path := filepath.Join(c.cacheDir, c.fileName(key))
	tmpPath := path + ".tmp"

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, cacheFilePerms)
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}

	if err := json.NewEncoder(file).Encode(v); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encoding cache data: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing cache file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming cache file: %w", err)
	}

	return nil
}

// removeFromDisk removes a cache entry from disk.
func (c *DiskCache) removeFromDisk(key string) {
	path := filepath.Join(c.cacheDir, c.fileName(key))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Debug("Failed to remove disk cache file", "component", "cache", "error", err, "path", path)
	}
}

// cleanOldCaches removes cache files untouched for longer than the retention period.
// It runs once, at startup.
func (c *DiskCache) cleanOldCaches() {
	entries, err := os.ReadDir(c.cacheDir)
	if err != nil {
		slog.Error("Failed to read cache directory", "component", "cache", "error", err)
		return
	}

	cutoff := time.Now().Add(-cacheRetentionPeriod)
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			path := filepath.Join(c.cacheDir, entry.Name())
			if err := os.Remove(path); err != nil {
				slog.Debug("Failed to remove old cache file", "component", "cache", "path", path, "error", err)
			} else {
				removed++
			}
		}
	}

	if removed > 0 {
		slog.Info("Cleaned old cache files", "component", "cache", "removed", removed)
	}
}
