package query

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Current schema version - increment when diskEntry format changes
const diskCacheSchemaVersion uint16 = 1

// DiskCache stores query results by fingerprint. A nil *DiskCache is a
// valid, always-empty cache.
// Thread-safe for concurrent access.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

type diskEntry struct {
	_msgpack struct{} `msgpack:",as_array"`

	Schema      uint16
	Query       string
	Fingerprint Fingerprint
	Value       msgpack.RawMessage
}

// OpenDiskCache opens the cache under $XDG_CACHE_HOME/<app> (or
// ~/.cache/<app>).
func OpenDiskCache(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return NewDiskCache(filepath.Join(base, app))
}

// NewDiskCache opens a cache rooted at dir, creating it if needed.
func NewDiskCache(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

// Dir returns the cache root.
func (c *DiskCache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

func (c *DiskCache) pathFor(query string, key Fingerprint) string {
	return filepath.Join(c.dir, "queries", query, key.String()+".mp")
}

// Has reports whether an entry exists without decoding it.
func (c *DiskCache) Has(query string, key Fingerprint) bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, err := os.Stat(c.pathFor(query, key))
	return err == nil
}

// Put serializes value and writes it atomically.
func (c *DiskCache) Put(query string, key Fingerprint, value any) error {
	if c == nil {
		return nil
	}
	raw, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s result: %w", query, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(query, key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	renamed := false
	defer func() {
		if !renamed {
			_ = os.Remove(f.Name()) //nolint:errcheck // leftover temp file
		}
	}()

	err = msgpack.NewEncoder(f).Encode(&diskEntry{
		Schema:      diskCacheSchemaVersion,
		Query:       query,
		Fingerprint: key,
		Value:       raw,
	})
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	if err := os.Rename(f.Name(), p); err != nil {
		return err
	}
	renamed = true
	return nil
}

// Get reads the entry for key into out. Entries written by another schema
// version or for another query read as misses.
func (c *DiskCache) Get(query string, key Fingerprint, out any) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(query, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer func() {
		_ = f.Close() //nolint:errcheck // read-only
	}()

	var ent diskEntry
	if err := msgpack.NewDecoder(f).Decode(&ent); err != nil {
		return false, fmt.Errorf("decode %s cache entry: %w", query, err)
	}
	if ent.Schema != diskCacheSchemaVersion || ent.Query != query || ent.Fingerprint != key {
		return false, nil
	}
	if err := msgpack.Unmarshal(ent.Value, out); err != nil {
		return false, fmt.Errorf("decode %s result: %w", query, err)
	}
	return true, nil
}

// DropAll invalidates the cache, useful after format changes.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	return os.RemoveAll(old)
}
