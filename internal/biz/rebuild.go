package biz

import (
	"context"
	"sync"
	"time"

	"AvailGate/internal/bloom"
	"AvailGate/internal/conf"
	"AvailGate/internal/data"

	"github.com/go-kratos/kratos/v2/log"
)

// RebuildTask rebuilds the handle filter from a full scan of the
// authoritative store and installs the result. Rebuild-from-scratch is
// the only supported refresh path for the persisted snapshot; the
// in-memory Add done on registration is just a stopgap between
// rebuilds.
type RebuildTask struct {
	repo     HandleRepo
	filter   FilterIndex
	pageSize int
	rate     float64
	logger   *log.Helper

	// mu serializes rebuilds: a cron run and an operator-triggered run
	// must not scan concurrently.
	mu sync.Mutex
}

// NewRebuildTask creates the rebuild task.
func NewRebuildTask(c *conf.Filter, repo HandleRepo, filter FilterIndex, logger log.Logger) *RebuildTask {
	return &RebuildTask{
		repo:     repo,
		filter:   filter,
		pageSize: c.PageSize,
		rate:     c.FalsePositiveRate,
		logger:   log.NewHelper(logger),
	}
}

// repoPager adapts HandleRepo pagination to the filter builder.
type repoPager struct {
	repo     HandleRepo
	pageSize int
	afterID  int64
}

func (p *repoPager) NextPage(ctx context.Context) ([]string, error) {
	page, err := p.repo.PageHandles(ctx, p.afterID, p.pageSize)
	if err != nil {
		return nil, err
	}
	if len(page) == 0 {
		return nil, nil
	}
	p.afterID = page[len(page)-1].ID

	keys := make([]string, len(page))
	for i, h := range page {
		keys[i] = h.Handle
	}
	return keys, nil
}

// Rebuild scans every handle, builds a fresh filter at the configured
// target rate, and swaps it in.
func (t *RebuildTask) Rebuild(ctx context.Context) (bloom.Meta, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := time.Now()

	count, err := t.repo.Count(ctx)
	if err != nil {
		return bloom.Meta{}, err
	}

	f, err := bloom.Build(ctx, &repoPager{repo: t.repo, pageSize: t.pageSize}, count, t.rate)
	if err != nil {
		return bloom.Meta{}, err
	}

	if err := t.filter.Install(f); err != nil {
		return bloom.Meta{}, err
	}

	meta := f.Meta()
	t.logger.Infow("handle filter rebuilt",
		"keys", meta.Keys,
		"bits", meta.Bits,
		"hashes", meta.Hashes,
		"target_rate", meta.TargetRate,
		"duration", time.Since(start))

	return meta, nil
}

// interface conformance checks for the data layer bindings.
var (
	_ HandleRepo  = (*data.HandleRepo)(nil)
	_ LookupCache = (*data.LookupCache)(nil)
	_ EventSink   = (*data.EventBuffer)(nil)
	_ EventSource = (*data.EventBuffer)(nil)
	_ FilterIndex = (*data.FilterStore)(nil)
)
