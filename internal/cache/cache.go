// Package cache keeps generated documents on disk, keyed by a hash of the
// page source and the generation options, so unchanged pages are not
// compiled again.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var logger = slog.Default().With("component", "cache")

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	logger = l.With("component", "cache")
}

const indexVersion = "1"

// Cache is a directory of generated documents plus a JSON index.
type Cache struct {
	mu       sync.RWMutex
	dir      string
	index    *Index
	maxSize  int64
	maxAge   time.Duration
	strategy EvictionStrategy
	stats    Stats
	stopCh   chan struct{}
	stopOnce sync.Once
}

// Index tracks all cached entries
type Index struct {
	Version string            `json:"version"`
	Entries map[string]*Entry `json:"entries"`
	Updated time.Time         `json:"updated"`
}

// Entry is one cached document.
type Entry struct {
	Key         string    `json:"key"`
	Hash        string    `json:"hash"`
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	Created     time.Time `json:"created"`
	LastAccess  time.Time `json:"last_access"`
	AccessCount int       `json:"access_count"`
	// Page is the source page name the document was generated from.
	Page string `json:"page,omitempty"`
	// Dependencies are the files the document was derived from.
	Dependencies []string `json:"dependencies,omitempty"`
}

// Stats are cache counters.
type Stats struct {
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Evictions  int64 `json:"evictions"`
	TotalSize  int64 `json:"total_size"`
	EntryCount int   `json:"entry_count"`
}

// EvictionStrategy defines how entries are removed when the cache is full.
type EvictionStrategy int

const (
	// LRU removes least recently used entries
	LRU EvictionStrategy = iota
	// LFU removes least frequently used entries
	LFU
	// FIFO removes oldest entries first
	FIFO
)

// ParseStrategy maps a configuration name to a strategy.
func ParseStrategy(s string) (EvictionStrategy, error) {
	switch strings.ToLower(s) {
	case "", "lru":
		return LRU, nil
	case "lfu":
		return LFU, nil
	case "fifo":
		return FIFO, nil
	}
	return LRU, fmt.Errorf("cache: unknown eviction strategy %q", s)
}

// Config holds cache configuration
type Config struct {
	Dir      string           // Cache directory (default: $HOME/.cache/lowcode)
	MaxSize  int64            // Maximum total size in bytes; 0 means unbounded
	MaxAge   time.Duration    // Maximum entry age; 0 means entries never expire
	Strategy EvictionStrategy // Eviction strategy (default: LRU)
}

// DefaultConfig returns the default cache configuration
func DefaultConfig() Config {
	homeDir, _ := os.UserHomeDir()
	return Config{
		Dir:      filepath.Join(homeDir, ".cache", "lowcode"),
		MaxSize:  64 << 20,
		MaxAge:   7 * 24 * time.Hour,
		Strategy: LRU,
	}
}

func newIndex() *Index {
	return &Index{Version: indexVersion, Entries: map[string]*Entry{}, Updated: time.Now()}
}

// New opens or creates the cache directory. A missing or unreadable index
// starts the cache empty.
func New(config Config) (*Cache, error) {
	if config.Dir == "" {
		config.Dir = DefaultConfig().Dir
	}
	if err := os.MkdirAll(filepath.Join(config.Dir, "documents"), 0o755); err != nil {
		return nil, fmt.Errorf("cache: create directory: %w", err)
	}

	c := &Cache{
		dir:      config.Dir,
		maxSize:  config.MaxSize,
		maxAge:   config.MaxAge,
		strategy: config.Strategy,
		stopCh:   make(chan struct{}),
		index:    newIndex(),
	}
	if err := c.loadIndex(); err != nil && !os.IsNotExist(err) {
		logger.Warn("discarding unreadable cache index", "dir", config.Dir, "error", err)
		c.index = newIndex()
	}

	go c.cleanup(time.Hour)
	return c, nil
}

// Key derives a cache key from the inputs of a generation run.
func Key(inputs ...string) string {
	h := sha256.New()
	for _, input := range inputs {
		h.Write([]byte(input))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached document for key.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.index.Entries[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	if c.isExpired(entry) {
		c.dropLocked(key, entry)
		c.stats.Misses++
		return nil, false
	}
	data, err := os.ReadFile(entry.Path)
	if err != nil {
		c.dropLocked(key, entry)
		c.stats.Misses++
		return nil, false
	}

	entry.LastAccess = time.Now()
	entry.AccessCount++
	c.stats.Hits++
	return data, true
}

// Put stores a document generated from page, derived from deps.
func (c *Cache) Put(key, page string, data []byte, deps ...string) error {
	hash := hashBytes(data)
	size := int64(len(data))

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.index.Entries[key]; ok && existing.Hash == hash {
		return nil
	}
	if old, ok := c.index.Entries[key]; ok {
		c.dropLocked(key, old)
	}
	c.ensureSpace(size)

	path := filepath.Join(c.dir, "documents", sanitizeKey(page)+"_"+hashBytes([]byte(key))[:16]+".vue")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cache: write %s: %w", path, err)
	}

	now := time.Now()
	c.index.Entries[key] = &Entry{
		Key:          key,
		Hash:         hash,
		Path:         path,
		Size:         size,
		Created:      now,
		LastAccess:   now,
		Page:         page,
		Dependencies: deps,
	}
	c.index.Updated = now
	c.stats.TotalSize += size
	c.stats.EntryCount = len(c.index.Entries)
	return c.saveIndexLocked()
}

// Delete removes an entry.
func (c *Cache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.index.Entries[key]
	if !ok {
		return nil
	}
	c.dropLocked(key, entry)
	return c.saveIndexLocked()
}

// InvalidateByDependency removes every entry derived from dep, or from a
// file under dep when dep is a directory. It returns the number removed.
func (c *Cache) InvalidateByDependency(dep string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key, entry := range c.index.Entries {
		for _, d := range entry.Dependencies {
			if d == dep || strings.HasPrefix(d, strings.TrimSuffix(dep, string(filepath.Separator))+string(filepath.Separator)) {
				c.dropLocked(key, entry)
				count++
				break
			}
		}
	}
	if count > 0 {
		if err := c.saveIndexLocked(); err != nil {
			logger.Warn("saving cache index", "error", err)
		}
	}
	return count
}

// Entries returns a copy of the index entries.
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, 0, len(c.index.Entries))
	for _, e := range c.index.Entries {
		out = append(out, *e)
	}
	return out
}

// Clear removes all cached entries
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	docs := filepath.Join(c.dir, "documents")
	if err := os.RemoveAll(docs); err != nil {
		return fmt.Errorf("cache: clear: %w", err)
	}
	if err := os.MkdirAll(docs, 0o755); err != nil {
		return fmt.Errorf("cache: clear: %w", err)
	}
	c.index = newIndex()
	c.stats = Stats{}
	return c.saveIndexLocked()
}

// GetStats returns cache statistics
func (c *Cache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Close stops the cleanup goroutine and saves the index
func (c *Cache) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.saveIndexLocked()
}

func (c *Cache) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(c.dir, "index.json"))
	if err != nil {
		return err
	}
	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return err
	}
	if index.Version != indexVersion || index.Entries == nil {
		return fmt.Errorf("index version %q", index.Version)
	}
	c.index = &index
	for _, e := range index.Entries {
		c.stats.TotalSize += e.Size
	}
	c.stats.EntryCount = len(index.Entries)
	return nil
}

// saveIndexLocked writes the index. Caller must hold at least a read lock.
func (c *Cache) saveIndexLocked() error {
	data, err := json.MarshalIndent(c.index, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.dir, "index.json"), data, 0o644)
}

func (c *Cache) isExpired(entry *Entry) bool {
	if c.maxAge <= 0 {
		return false
	}
	return time.Since(entry.Created) > c.maxAge
}

// dropLocked removes an entry and its file. Caller must hold the write lock.
func (c *Cache) dropLocked(key string, entry *Entry) {
	if err := os.Remove(entry.Path); err != nil && !os.IsNotExist(err) {
		logger.Warn("removing cached document", "path", entry.Path, "error", err)
	}
	delete(c.index.Entries, key)
	c.stats.TotalSize -= entry.Size
	c.stats.EntryCount = len(c.index.Entries)
	c.index.Updated = time.Now()
}

// ensureSpace evicts entries until needed more bytes fit. Caller must hold
// the write lock.
func (c *Cache) ensureSpace(needed int64) {
	if c.maxSize <= 0 {
		return
	}
	for c.stats.TotalSize+needed > c.maxSize && len(c.index.Entries) > 0 {
		var (
			victimKey string
			victim    *Entry
		)
		for key, e := range c.index.Entries {
			if victim == nil || c.evictsBefore(e, victim) {
				victimKey, victim = key, e
			}
		}
		c.dropLocked(victimKey, victim)
		c.stats.Evictions++
	}
}

func (c *Cache) evictsBefore(a, b *Entry) bool {
	switch c.strategy {
	case LFU:
		if a.AccessCount != b.AccessCount {
			return a.AccessCount < b.AccessCount
		}
		return a.LastAccess.Before(b.LastAccess)
	case FIFO:
		return a.Created.Before(b.Created)
	}
	return a.LastAccess.Before(b.LastAccess)
}

func (c *Cache) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			for key, entry := range c.index.Entries {
				if c.isExpired(entry) {
					c.dropLocked(key, entry)
				}
			}
			if err := c.saveIndexLocked(); err != nil {
				logger.Warn("saving cache index", "error", err)
			}
			c.mu.Unlock()
		case <-c.stopCh:
			return
		}
	}
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

var keyReplacer = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_", " ", "_",
)

func sanitizeKey(key string) string {
	if key == "" {
		key = "page"
	}
	sanitized := keyReplacer.Replace(key)
	if len(sanitized) > 64 {
		sanitized = sanitized[:64]
	}
	return sanitized
}
