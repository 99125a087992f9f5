package biz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"AvailGate/internal/bloom"
	"AvailGate/internal/data"
	"AvailGate/internal/model"

	"gorm.io/gorm"
)

// fakeRepo is an in-memory HandleRepo.
type fakeRepo struct {
	mu      sync.Mutex
	rows    []data.Handle
	nextID  int64
	byName  map[string]bool
	failing error

	existsCalls int
	insertCalls int
}

func newFakeRepo(handles ...string) *fakeRepo {
	r := &fakeRepo{byName: make(map[string]bool)}
	for _, h := range handles {
		r.nextID++
		r.rows = append(r.rows, data.Handle{ID: r.nextID, Handle: h})
		r.byName[h] = true
	}
	return r
}

func (r *fakeRepo) Exists(_ context.Context, handle string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.existsCalls++
	if r.failing != nil {
		return false, r.failing
	}
	return r.byName[handle], nil
}

func (r *fakeRepo) Insert(_ context.Context, handle string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertCalls++
	if r.failing != nil {
		return r.failing
	}
	if r.byName[handle] {
		return gorm.ErrDuplicatedKey
	}
	r.nextID++
	r.rows = append(r.rows, data.Handle{ID: r.nextID, Handle: handle})
	r.byName[handle] = true
	return nil
}

func (r *fakeRepo) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing != nil {
		return 0, r.failing
	}
	return int64(len(r.rows)), nil
}

func (r *fakeRepo) PageHandles(_ context.Context, afterID int64, limit int) ([]data.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing != nil {
		return nil, r.failing
	}
	var page []data.Handle
	for _, row := range r.rows {
		if row.ID > afterID {
			page = append(page, row)
			if len(page) == limit {
				break
			}
		}
	}
	return page, nil
}

func (r *fakeRepo) setFailing(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failing = err
}

// fakeCache is an in-memory LookupCache.
type fakeCache struct {
	mu          sync.Mutex
	entries     map[string]bool
	getErr      error
	setErr      error
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]bool)}
}

func (c *fakeCache) GetExists(_ context.Context, handle string) (bool, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return false, false, c.getErr
	}
	v, ok := c.entries[handle]
	return v, ok, nil
}

func (c *fakeCache) SetExists(_ context.Context, handle string, exists bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[handle] = exists
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, handle string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, handle)
	c.invalidated = append(c.invalidated, handle)
	return nil
}

// fakeFilter is an exact-membership FilterIndex with a controllable
// false positive set.
type fakeFilter struct {
	mu             sync.Mutex
	loaded         bool
	members        map[string]bool
	falsePositives map[string]bool
	added          []string
}

func newFakeFilter(members ...string) *fakeFilter {
	f := &fakeFilter{
		loaded:         true,
		members:        make(map[string]bool),
		falsePositives: make(map[string]bool),
	}
	for _, m := range members {
		f.members[m] = true
	}
	return f
}

func (f *fakeFilter) MayContain(handle string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded {
		return false, bloom.ErrFilterNotLoaded
	}
	return f.members[handle] || f.falsePositives[handle], nil
}

func (f *fakeFilter) Add(handle string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[handle] = true
	f.added = append(f.added, handle)
}

func (f *fakeFilter) Meta() (bloom.Meta, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded {
		return bloom.Meta{}, false
	}
	return bloom.Meta{Keys: int64(len(f.members)), CreatedAt: time.Unix(1700000000, 0)}, true
}

func (f *fakeFilter) Install(nf *bloom.Filter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded = true
	return nil
}

// fakeBuffer is an in-memory EventSink and EventSource.
type fakeBuffer struct {
	mu         sync.Mutex
	events     []model.BufferedEvent
	nextID     int
	enqueueErr error
	readErr    error
	ackErr     error
}

func newFakeBuffer() *fakeBuffer { return &fakeBuffer{} }

func (b *fakeBuffer) Enqueue(_ context.Context, handle string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.enqueueErr != nil {
		return "", b.enqueueErr
	}
	b.nextID++
	id := fmt.Sprintf("%d-0", b.nextID)
	b.events = append(b.events, model.BufferedEvent{ID: id, Handle: handle, EnqueuedAt: time.Now()})
	return id, nil
}

func (b *fakeBuffer) ReadBatch(_ context.Context, limit int) ([]model.BufferedEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readErr != nil {
		return nil, b.readErr
	}
	n := limit
	if n > len(b.events) {
		n = len(b.events)
	}
	out := make([]model.BufferedEvent, n)
	copy(out, b.events[:n])
	return out, nil
}

func (b *fakeBuffer) Ack(_ context.Context, ids ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ackErr != nil {
		return b.ackErr
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := b.events[:0]
	for _, ev := range b.events {
		if !drop[ev.ID] {
			kept = append(kept, ev)
		}
	}
	b.events = kept
	return nil
}

func (b *fakeBuffer) Pending(context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.events)), nil
}
