package biz

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"AvailGate/internal/bloom"
	"AvailGate/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// installCapture records the filter a rebuild installs.
type installCapture struct {
	mu        sync.Mutex
	installed *bloom.Filter
}

func (c *installCapture) MayContain(handle string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.installed == nil {
		return false, bloom.ErrFilterNotLoaded
	}
	return c.installed.MayContain(handle), nil
}

func (c *installCapture) Add(handle string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.installed != nil {
		c.installed.Add(handle)
	}
}

func (c *installCapture) Meta() (bloom.Meta, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.installed == nil {
		return bloom.Meta{}, false
	}
	return c.installed.Meta(), true
}

func (c *installCapture) Install(f *bloom.Filter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.installed = f
	return nil
}

func TestRebuildScansEveryPage(t *testing.T) {
	handles := make([]string, 250)
	for i := range handles {
		handles[i] = fmt.Sprintf("user-%03d", i)
	}
	repo := newFakeRepo(handles...)
	sink := &installCapture{}

	task := NewRebuildTask(&conf.Filter{PageSize: 100, FalsePositiveRate: 0.01},
		repo, sink, log.DefaultLogger)

	meta, err := task.Rebuild(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(250), meta.Keys)
	assert.Equal(t, 0.01, meta.TargetRate)
	require.NotNil(t, sink.installed)

	// No false negatives: every scanned handle answers positive.
	for _, h := range handles {
		may, err := sink.MayContain(h)
		require.NoError(t, err)
		assert.True(t, may, h)
	}
}

func TestRebuildPropagatesStoreFailure(t *testing.T) {
	repo := newFakeRepo("alice")
	repo.setFailing(errStoreDown)
	sink := &installCapture{}

	task := NewRebuildTask(&conf.Filter{PageSize: 100, FalsePositiveRate: 0.01},
		repo, sink, log.DefaultLogger)

	_, err := task.Rebuild(context.Background())
	assert.ErrorIs(t, err, errStoreDown)
	assert.Nil(t, sink.installed)
}

func TestRebuildOnEmptyStore(t *testing.T) {
	task := NewRebuildTask(&conf.Filter{PageSize: 100, FalsePositiveRate: 0.01},
		newFakeRepo(), &installCapture{}, log.DefaultLogger)

	meta, err := task.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Zero(t, meta.Keys)
}
