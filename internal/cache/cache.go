// Package cache implements a file-backed key/value store with per-entry TTL.
// Each key is persisted as one JSON document under a configured directory.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/logging"
)

// Entry is the on-disk form of one cached value.
type Entry struct {
	Key      string        `json:"key"`
	Value    string        `json:"value"`
	StoredAt time.Time     `json:"stored_at"`
	TTL      time.Duration `json:"ttl"`
}

// Expired reports whether the entry is stale at now.
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.StoredAt.Add(e.TTL))
}

var errCorruptEntry = errors.New("corrupt cache entry")

const (
	fileExt      = ".json"
	maxPrefixLen = 64
	lockStripes  = 64
)

// FileCache stores entries as JSON files. It is safe for concurrent use:
// operations on the same key are serialized, distinct keys proceed in parallel.
type FileCache struct {
	dir   string
	now   func() time.Time
	locks [lockStripes]sync.Mutex
}

// Option configures a FileCache.
type Option func(*FileCache)

// WithClock overrides the wall clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *FileCache) { c.now = now }
}

// New creates a FileCache rooted at dir, creating the directory if needed.
func New(dir string, opts ...Option) (*FileCache, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	c := &FileCache{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string { return c.dir }

// Get returns the value stored under key. Missing, expired, unreadable or
// malformed entries are all reported as a miss; problems are logged only.
func (c *FileCache) Get(key string) (string, bool) {
	mu := c.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	path := c.pathFor(key)
	entry, err := readEntry(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.Get(logging.CategoryCache).Warn("cache read failed for %q (%s): %v", key, path, err)
		}
		return "", false
	}
	if entry.Key != key {
		logging.Get(logging.CategoryCache).Warn("cache file %s holds key %q, wanted %q", path, entry.Key, key)
		return "", false
	}
	if entry.Expired(c.now()) {
		logging.CacheDebug("cache entry expired for %q (stored %s, ttl %s)", key, entry.StoredAt.Format(time.RFC3339), entry.TTL)
		return "", false
	}

	logging.CacheDebug("cache hit for %q", key)
	return entry.Value, true
}

// Set stores value under key for ttl, replacing any previous entry. The file
// is written to a temporary name and renamed so readers never see a partial write.
func (c *FileCache) Set(key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %s", ttl)
	}
	mu := c.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	entry := Entry{Key: key, Value: value, StoredAt: c.now(), TTL: ttl}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	path := c.pathFor(key)
	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to save cache file %s: %w", path, err)
	}

	logging.CacheDebug("cached %q (%d bytes, ttl %s)", key, len(value), ttl)
	return nil
}

// Stats summarizes the files in the cache directory.
type Stats struct {
	Live    int
	Expired int
	Corrupt int
	Bytes   int64
}

// Stats scans the cache directory. Expired entries are counted, not removed.
func (c *FileCache) Stats() (Stats, error) {
	var s Stats
	files, err := os.ReadDir(c.dir)
	if err != nil {
		return s, fmt.Errorf("failed to read cache directory: %w", err)
	}
	now := c.now()
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), fileExt) {
			continue
		}
		path := filepath.Join(c.dir, f.Name())
		if info, err := f.Info(); err == nil {
			s.Bytes += info.Size()
		}
		entry, err := readEntry(path)
		switch {
		case err != nil:
			s.Corrupt++
		case entry.Expired(now):
			s.Expired++
		default:
			s.Live++
		}
	}
	return s, nil
}

func readEntry(path string) (Entry, error) {
	var entry Entry
	data, err := os.ReadFile(path)
	if err != nil {
		return entry, err
	}
	if err := json.Unmarshal(data, &entry); err != nil {
		return entry, fmt.Errorf("%w: %v", errCorruptEntry, err)
	}
	if entry.Key == "" || entry.StoredAt.IsZero() || entry.TTL <= 0 {
		return entry, fmt.Errorf("%w: missing key, timestamp or ttl", errCorruptEntry)
	}
	return entry, nil
}

func (c *FileCache) pathFor(key string) string {
	return filepath.Join(c.dir, FileName(key))
}

func (c *FileCache) lockFor(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &c.locks[h.Sum32()%lockStripes]
}

// FileName maps a logical key to a stable, path-safe file name: a readable
// sanitized prefix plus a hash of the full key.
func FileName(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		if b.Len() >= maxPrefixLen {
			break
		}
	}
	return b.String() + "-" + hashKey(key) + fileExt
}

// hashKey creates a short stable digest of a key.
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:16]
}
