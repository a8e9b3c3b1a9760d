// Package cache provides a file-backed response cache for external
// generative calls. Each entry is one JSON file under the cache directory,
// keyed by a digest of the request, so repeated runs over the same book skip
// every call that already succeeded.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"
)

const keyLen = 16

// Store is a file-backed cache. A disabled Store always misses and never
// writes, which keeps call sites unconditional.
type Store struct {
	dir      string
	disabled bool
	logger   *slog.Logger
	group    singleflight.Group
}

// Config holds cache settings.
type Config struct {
	Dir      string
	Disabled bool
	Logger   *slog.Logger
}

// New creates a Store. The directory is created on first write.
func New(cfg Config) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		dir:      cfg.Dir,
		disabled: cfg.Disabled,
		logger:   logger.With("component", "cache"),
	}
}

// Key builds a deterministic cache key from the request parts. The digest is
// truncated to 16 hex characters, matching the on-disk filename.
func Key(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(h[:])[:keyLen]
}

// Do returns the cached value for key, or invokes fn and caches its result.
// Concurrent calls for the same key share one fn invocation. Failures are
// never cached. The second return reports whether the value came from disk.
func (s *Store) Do(ctx context.Context, key string, fn func(ctx context.Context) ([]byte, error)) ([]byte, bool, error) {
	if s.disabled {
		data, err := fn(ctx)
		return data, false, err
	}

	if data, err := os.ReadFile(s.path(key)); err == nil {
		s.logger.Debug("cache hit", "key", key)
		return data, true, nil
	}

	type result struct {
		data   []byte
		cached bool
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		// A concurrent caller may have written the entry while this one
		// was queued.
		if data, err := os.ReadFile(s.path(key)); err == nil {
			return result{data: data, cached: true}, nil
		}

		data, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		if werr := s.write(key, data); werr != nil {
			s.logger.Warn("cache write failed", "key", key, "error", werr)
		}
		return result{data: data}, nil
	})
	if err != nil {
		return nil, false, err
	}

	r := v.(result)
	return r.data, r.cached, nil
}

// Stats describes the cache contents.
type Stats struct {
	Dir     string `json:"dir"`
	Entries int    `json:"entries"`
	Bytes   int64  `json:"bytes"`
}

// Stats reports entry count and total size. A missing directory counts as
// empty.
func (s *Store) Stats() (Stats, error) {
	st := Stats{Dir: s.dir}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return st, fmt.Errorf("read cache dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		st.Entries++
		st.Bytes += info.Size()
	}
	return st, nil
}

// Clear removes all cache entries and returns how many were deleted.
func (s *Store) Clear() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read cache dir: %w", err)
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			return removed, fmt.Errorf("remove %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *Store) write(key string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(key))
}
