package lookupcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"projector/internal/logging"
)

// Payload carries the enrichment fields cached for a hit.
type Payload struct {
	Director  string `json:"director,omitempty"`
	Plot      string `json:"plot,omitempty"`
	BoxOffice string `json:"box_office,omitempty"`
	Year      int    `json:"year,omitempty"`
	IMDbID    string `json:"imdb_id,omitempty"`
}

// Entry maps a lookup key to a resolution. Found=false is an explicit
// not-found marker that suppresses future external calls for the key.
type Entry struct {
	Key      string    `json:"key"`
	Found    bool      `json:"found"`
	Payload  *Payload  `json:"payload,omitempty"`
	CachedAt time.Time `json:"cached_at"`
}

// Cache provides access to the persistent lookup cache. Entries live in
// memory and are flushed to disk periodically and at shutdown.
type Cache struct {
	path       string
	flushEvery int
	logger     *slog.Logger

	mu         sync.RWMutex
	entries    map[string]Entry
	sinceFlush int
	dirty      bool
}

// New creates a cache backed by the given file. A missing file is a cold
// start; an unreadable or corrupt file is treated as empty with a warning,
// never as a fatal condition.
func New(path string, flushEvery int, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "lookupcache")
	if flushEvery <= 0 {
		flushEvery = 100
	}

	c := &Cache{
		path:       path,
		flushEvery: flushEvery,
		logger:     logger,
		entries:    make(map[string]Entry),
	}

	if path == "" {
		return c
	}

	if err := c.load(); err != nil {
		logger.Warn("failed to load lookup cache",
			logging.String(logging.FieldEventType, "lookupcache_load_failed"),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "cache will start empty"),
			logging.String(logging.FieldImpact, "previously resolved titles will be looked up again"))
	}

	return c
}

// Lookup returns the entry for the given key if present.
func (c *Cache) Lookup(key string) (Entry, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Entry{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, found := c.entries[key]
	return entry, found
}

// Store adds or refreshes an entry. The write goes to memory immediately and
// to disk once flushEvery new entries have accumulated.
func (c *Cache) Store(entry Entry) error {
	entry.Key = strings.TrimSpace(entry.Key)
	if entry.Key == "" {
		return errors.New("lookup key cannot be empty")
	}
	if entry.CachedAt.IsZero() {
		entry.CachedAt = time.Now().UTC()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[entry.Key] = entry
	c.dirty = true
	c.sinceFlush++
	if c.sinceFlush < c.flushEvery {
		return nil
	}
	return c.flushLocked()
}

// Flush persists any pending entries to disk.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Entries returns all entries sorted by CachedAt descending (newest first).
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CachedAt.After(entries[j].CachedAt)
	})
	return entries
}

// Clear removes all entries and persists the empty cache.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]Entry)
	c.dirty = true
	return c.flushLocked()
}

func (c *Cache) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil // cold start
		}
		return fmt.Errorf("read cache file: %w", err)
	}

	if len(data) == 0 {
		return nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse cache file: %w", err)
	}

	c.entries = make(map[string]Entry, len(entries))
	for _, entry := range entries {
		if strings.TrimSpace(entry.Key) != "" {
			c.entries[entry.Key] = entry
		}
	}

	c.logger.Debug("loaded lookup cache",
		logging.Int("entry_count", len(c.entries)),
		logging.String("path", c.path))

	return nil
}

// flushLocked writes the cache to disk atomically. Callers must hold mu.
func (c *Cache) flushLocked() error {
	if c.path == "" || !c.dirty {
		return nil
	}

	entries := make([]Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CachedAt.After(entries[j].CachedAt)
	})

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	c.dirty = false
	c.sinceFlush = 0
	return nil
}
