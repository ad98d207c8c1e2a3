// package cache persists fetched result sets as TTL-bounded JSON files.
//
// Caching is a performance optimization, never a correctness dependency:
// reads fail soft to a miss and write failures are logged and swallowed.
package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const fileSuffix = "_cache.json"

// envelope is the on-disk payload shape. Unknown fields are ignored on
// decode so older cache files survive schema additions.
type envelope struct {
	CachedAt time.Time       `json:"cached_at"`
	Items    json.RawMessage `json:"items"`
}

// Store reads and writes named cache slots under a single directory with one
// TTL. Concurrent processes sharing the directory may race on a slot; writes
// are idempotent overwrites so the race is harmless.
type Store struct {
	dir string
	ttl time.Duration
	log *log.Logger
	now func() time.Time
}

// NewStore creates a Store rooted at dir. Entries older than ttl read as misses.
func NewStore(dir string, ttl time.Duration, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(os.Stderr)
	}
	return &Store{dir: dir, ttl: ttl, now: time.Now, log: logger}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+fileSuffix)
}

// Read loads the named slot into items. Returns false on a miss: absent
// entry, expired entry, or an undecodable file.
func (s *Store) Read(name string, items any) bool {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return false
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.log.Debug("discarding malformed cache entry", "name", name, "err", err)
		return false
	}
	if env.CachedAt.IsZero() || s.now().Sub(env.CachedAt) > s.ttl {
		return false
	}
	if err := json.Unmarshal(env.Items, items); err != nil {
		s.log.Debug("discarding undecodable cache payload", "name", name, "err", err)
		return false
	}
	return true
}

// Write stores items under the named slot with the current UTC timestamp.
// Failures are non-fatal.
func (s *Store) Write(name string, items any) {
	payload, err := json.Marshal(items)
	if err != nil {
		s.log.Debug("cache write skipped", "name", name, "err", err)
		return
	}
	env := envelope{CachedAt: s.now().UTC(), Items: payload}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		s.log.Debug("cache write skipped", "name", name, "err", err)
		return
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		s.log.Debug("cache write failed", "name", name, "err", err)
		return
	}
	if err := os.WriteFile(s.path(name), data, 0644); err != nil {
		s.log.Debug("cache write failed", "name", name, "err", err)
	}
}

// Invalidate deletes the named slot. Absent entries are a no-op.
func (s *Store) Invalidate(name string) {
	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		s.log.Debug("cache invalidation failed", "name", name, "err", err)
	}
}

// CleanExpired removes every slot whose TTL has elapsed and returns the
// number of files deleted.
func (s *Store) CleanExpired() int {
	removed := 0
	for _, path := range s.files() {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var env envelope
		expired := json.Unmarshal(data, &env) != nil ||
			env.CachedAt.IsZero() ||
			s.now().Sub(env.CachedAt) > s.ttl
		if expired && os.Remove(path) == nil {
			removed++
		}
	}
	return removed
}

// Purge removes every slot regardless of age and returns the number deleted.
func (s *Store) Purge() int {
	removed := 0
	for _, path := range s.files() {
		if os.Remove(path) == nil {
			removed++
		}
	}
	return removed
}

func (s *Store) files() []string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}
	var paths []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), fileSuffix) {
			paths = append(paths, filepath.Join(s.dir, entry.Name()))
		}
	}
	return paths
}

// MarketplaceKey builds the slot name for a marketplace lookup: the id kind
// plus a short hash of the selector parts (format, country, currency, limits).
// The details flag is not part of the key, so base and details
// entries pair up as <key> and <key>_details.
func MarketplaceKey(kind string, id int, parts ...string) string {
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("marketplace_%s_%d_%s", kind, id, hex.EncodeToString(sum[:4]))
}

// DetailsKey returns the details-layer slot name for a base marketplace key.
func DetailsKey(base string) string {
	return base + "_details"
}
