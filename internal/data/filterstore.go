package data

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"AvailGate/internal/bloom"
	"AvailGate/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
)

// FilterStore owns the serving process's handle filter: it loads the
// snapshot written by the offline builder at startup, answers
// membership queries, and swaps in a fresh filter when a rebuild
// completes. The current filter is held behind an atomic pointer so
// lookups never block on a rebuild.
type FilterStore struct {
	path    string
	current atomic.Pointer[bloom.Filter]
	logger  *log.Helper
}

// NewFilterStore creates the store and loads the snapshot if one
// exists. A missing snapshot is not fatal: the filtered lookup path
// reports FILTER_NOT_LOADED until a build installs one.
func NewFilterStore(c *conf.Filter, logger log.Logger) *FilterStore {
	s := &FilterStore{
		path:   c.SnapshotPath,
		logger: log.NewHelper(logger),
	}

	f, err := loadSnapshot(s.path)
	switch {
	case err == nil:
		meta := f.Meta()
		s.current.Store(f)
		s.logger.Infow("handle filter loaded",
			"path", s.path,
			"keys", meta.Keys,
			"bits", meta.Bits,
			"hashes", meta.Hashes,
			"target_rate", meta.TargetRate,
			"created_at", meta.CreatedAt)
	case os.IsNotExist(err):
		s.logger.Warnw("no filter snapshot found, filtered lookups disabled until a build runs",
			"path", s.path)
	default:
		s.logger.Errorw("failed to load filter snapshot, filtered lookups disabled",
			"path", s.path,
			"error", err)
	}

	return s
}

// MayContain answers the membership query against the current filter.
func (s *FilterStore) MayContain(handle string) (bool, error) {
	f := s.current.Load()
	if f == nil {
		return false, bloom.ErrFilterNotLoaded
	}
	return f.MayContain(handle), nil
}

// Add records a newly registered handle in the in-memory filter so
// lookups see it before the next full rebuild. A no-op when no filter
// is loaded; the persisted snapshot is never updated incrementally.
func (s *FilterStore) Add(handle string) {
	if f := s.current.Load(); f != nil {
		f.Add(handle)
	}
}

// Meta returns the current filter's provenance, if one is loaded.
func (s *FilterStore) Meta() (bloom.Meta, bool) {
	f := s.current.Load()
	if f == nil {
		return bloom.Meta{}, false
	}
	return f.Meta(), true
}

// Install persists the filter's snapshot and swaps it in as the
// serving filter. The snapshot file is replaced atomically
// (write-temp-then-rename) so a crash mid-write never leaves a
// truncated snapshot behind.
func (s *FilterStore) Install(f *bloom.Filter) error {
	data, err := json.Marshal(f.Snapshot())
	if err != nil {
		return fmt.Errorf("filterstore: failed to marshal snapshot: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("filterstore: failed to create snapshot dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("filterstore: failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("filterstore: failed to replace snapshot: %w", err)
	}

	s.current.Store(f)

	meta := f.Meta()
	s.logger.Infow("handle filter installed",
		"path", s.path,
		"keys", meta.Keys,
		"bits", meta.Bits,
		"hashes", meta.Hashes)

	return nil
}

// loadSnapshot reads and validates a snapshot file.
func loadSnapshot(path string) (*bloom.Filter, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var snap bloom.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", bloom.ErrInvalidSnapshot, err)
	}

	return bloom.FromSnapshot(&snap)
}
