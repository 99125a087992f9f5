package bloom

import (
	"context"
	"fmt"
	"time"
)

// KeyPager supplies the full authoritative key set one page at a time,
// e.g. paginated from the handles table. NextPage returns an empty page
// once the source is exhausted.
type KeyPager interface {
	NextPage(ctx context.Context) ([]string, error)
}

// slicePager pages over an in-memory key list.
type slicePager struct {
	keys []string
	off  int
	page int
}

func (p *slicePager) NextPage(context.Context) ([]string, error) {
	if p.off >= len(p.keys) {
		return nil, nil
	}
	end := p.off + p.page
	if end > len(p.keys) {
		end = len(p.keys)
	}
	out := p.keys[p.off:end]
	p.off = end
	return out, nil
}

// Build constructs a filter by inserting every key the pager yields.
//
// expectedKeys sizes the bit array up front; the final key count is
// recorded on the filter before it can be persisted, so a stale
// estimate shows up in the snapshot metadata rather than silently
// skewing monitoring. An empty key set yields a valid always-false
// filter.
//
// Building is deterministic: the same ordered key sequence and the same
// rate always produce the same bit array.
func Build(ctx context.Context, keys KeyPager, expectedKeys int64, falsePositiveRate float64) (*Filter, error) {
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		return nil, fmt.Errorf("bloom: false positive rate must be in (0, 1), got %v", falsePositiveRate)
	}

	m, k := OptimalParams(expectedKeys, falsePositiveRate)
	f := newFilter(m, k, 0, falsePositiveRate, time.Now().UTC())

	var inserted int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := keys.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("bloom: key source failed after %d keys: %w", inserted, err)
		}
		if len(page) == 0 {
			break
		}
		for _, key := range page {
			f.Add(key)
			inserted++
		}
	}

	// Finalize the real count; Add bumped the drift counter, which only
	// tracks post-build inserts.
	f.n = inserted
	f.added.Store(0)

	return f, nil
}

// BuildFromKeys builds a filter from an in-memory key list, sizing for
// exactly len(keys).
func BuildFromKeys(ctx context.Context, keys []string, falsePositiveRate float64) (*Filter, error) {
	return Build(ctx, &slicePager{keys: keys, page: 1024}, int64(len(keys)), falsePositiveRate)
}
