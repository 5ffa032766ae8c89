package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// Common cache errors
var (
	ErrCacheMiss      = errors.New("cache miss")
	ErrUnknownBackend = errors.New("unknown cache backend")
)

// Cache defines the interface for all cache implementations
type Cache interface {
	// Get retrieves a value from the cache
	Get(key string, value interface{}) error

	// Set stores a value in the cache with an optional TTL
	Set(key string, value interface{}, ttl time.Duration) error

	// Delete removes a value from the cache
	Delete(key string) error

	// Close cleans up the cache resources
	Close() error
}

// Entry represents a cached entry with metadata
type Entry struct {
	Data      json.RawMessage `json:"data"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// IsExpired checks if the cache entry has expired
func (e *Entry) IsExpired() bool {
	if e.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*e.ExpiresAt)
}

func newEntry(value interface{}, ttl time.Duration) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}

	entry := Entry{
		Data:      data,
		CreatedAt: time.Now(),
	}
	if ttl > 0 {
		expiresAt := time.Now().Add(ttl)
		entry.ExpiresAt = &expiresAt
	}

	entryData, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	return entryData, nil
}

// decodeEntry unpacks raw entry bytes into value. expired is true when the
// entry is stale, in which case value is untouched.
func decodeEntry(raw []byte, value interface{}) (expired bool, err error) {
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}
	if entry.IsExpired() {
		return true, nil
	}
	if err := json.Unmarshal(entry.Data, value); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached data: %w", err)
	}
	return false, nil
}

// CacheKeyBuilder helps build consistent cache keys
type CacheKeyBuilder struct {
	prefix string
}

func NewCacheKeyBuilder(prefix string) *CacheKeyBuilder {
	return &CacheKeyBuilder{prefix: prefix}
}

func (b *CacheKeyBuilder) PRBundleKey(owner, repo string, prNumber int) string {
	return b.buildKey("pr_bundle", owner, repo, prNumber)
}

func (b *CacheKeyBuilder) PRsListKey(owner, repo string, startDate, endDate time.Time) string {
	start := startDate.Format("2006-01-02")
	end := endDate.Format("2006-01-02")
	return b.buildKey("prs_list", owner, repo, start, end)
}

func (b *CacheKeyBuilder) buildKey(parts ...interface{}) string {
	key := b.prefix
	for _, part := range parts {
		key += ":" + toString(part)
	}
	return key
}

func toString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return fmt.Sprintf("%d", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// New opens the cache backend named by backend ("file", "bolt" or "none")
// rooted at dir. A file cache with no dir goes to the OS cache directory.
func New(backend, dir string) (Cache, error) {
	switch backend {
	case "file":
		if dir == "" {
			return NewFileCache("impact")
		}
		return NewFileCacheWithDir(dir)
	case "bolt":
		return NewBoltCache(filepath.Join(dir, "impact.db"))
	case "none", "":
		return NoopCache{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// NoopCache never stores anything.
type NoopCache struct{}

func (NoopCache) Get(string, interface{}) error { return ErrCacheMiss }
func (NoopCache) Set(string, interface{}, time.Duration) error { return nil }
func (NoopCache) Delete(string) error { return nil }
func (NoopCache) Close() error { return nil }
