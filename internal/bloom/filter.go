// Package bloom implements the handle membership filter: a fixed-size
// bit-array Bloom filter with no false negatives and a tunable false
// positive rate.
//
// The filter is built once from a full scan of the authoritative store
// (see Build) and served read-only. Queries cost O(k) word reads and no
// I/O. Bits are held in atomic words so the serving process may keep
// newly registered handles visible between full rebuilds without
// synchronizing readers.
package bloom

import (
	"errors"
	"math"
	"math/bits"
	"sync/atomic"
	"time"

	"github.com/zeebo/xxh3"
)

const (
	// ln2 is the natural logarithm of 2.
	ln2 = 0.6931471805599453
	// ln2Squared is ln(2)^2.
	ln2Squared = 0.4804530139182014

	// probeSeed seeds the second digest used for double hashing.
	probeSeed uint64 = 0x9e3779b97f4a7c15
)

// ErrFilterNotLoaded is returned when a membership query is attempted
// before a filter has been built or loaded. It is not retryable without
// operator intervention (build or restore a snapshot).
var ErrFilterNotLoaded = errors.New("bloom: filter not loaded")

// Meta carries build provenance for monitoring and rebuild triggering.
type Meta struct {
	Bits           uint64    `json:"bits"`
	Hashes         uint32    `json:"hashes"`
	Keys           int64     `json:"keys"`
	TargetRate     float64   `json:"target_rate"`
	CreatedAt      time.Time `json:"created_at"`
	AddedSinceLoad int64     `json:"added_since_load"`
}

// Filter is a Bloom filter over string keys.
//
// MayContain is safe for unlimited concurrent callers. Add is safe to
// call concurrently with MayContain; bits are set with atomic OR.
type Filter struct {
	words []atomic.Uint64
	m     uint64 // bit-array length
	k     uint32 // hash rounds per key
	n     int64  // keys inserted at build time
	p     float64
	createdAt time.Time
	added     atomic.Int64 // keys added after build/load
}

// OptimalParams derives the bit-array length m and hash-round count k
// from the expected key count and the target false positive rate using
// the standard sizing formulas:
//
//	m = ceil(-(n * ln p) / ln(2)^2)
//	k = round((m / n) * ln 2), clamped to at least 1
func OptimalParams(expectedKeys int64, falsePositiveRate float64) (m uint64, k uint32) {
	n := expectedKeys
	if n < 1 {
		n = 1
	}

	m = uint64(math.Ceil(-(float64(n) * math.Log(falsePositiveRate)) / ln2Squared))
	if m < 64 {
		m = 64
	}

	kf := math.Round(float64(m) / float64(n) * ln2)
	if kf < 1 {
		kf = 1
	}
	k = uint32(kf)

	return m, k
}

// newFilter allocates an empty filter with explicit parameters.
func newFilter(m uint64, k uint32, n int64, p float64, createdAt time.Time) *Filter {
	if m == 0 {
		m = 64
	}
	if k == 0 {
		k = 1
	}
	return &Filter{
		words:     make([]atomic.Uint64, (m+63)/64),
		m:         m,
		k:         k,
		n:         n,
		p:         p,
		createdAt: createdAt,
	}
}

// probes computes the base digests for a key. The k bit positions are
// derived by double hashing: position(i) = (h1 + i*h2) mod m. h2 is
// forced odd so the probe sequence never collapses.
func probes(key string) (h1, h2 uint64) {
	h1 = xxh3.HashString(key)
	h2 = xxh3.HashStringSeed(key, probeSeed) | 1
	return h1, h2
}

// Add inserts a key. It is used during builds and, in the serving
// process, to keep handles registered after the last rebuild visible
// until the next full rebuild replaces the filter.
func (f *Filter) Add(key string) {
	h1, h2 := probes(key)
	for i := uint32(0); i < f.k; i++ {
		pos := (h1 + uint64(i)*h2) % f.m
		f.words[pos/64].Or(1 << (pos % 64))
	}
	f.added.Add(1)
}

// MayContain reports whether the key may be in the set the filter was
// built from. False means the key is definitely absent; true means it
// is present with probability at least 1-p given correct sizing.
func (f *Filter) MayContain(key string) bool {
	h1, h2 := probes(key)
	for i := uint32(0); i < f.k; i++ {
		pos := (h1 + uint64(i)*h2) % f.m
		if f.words[pos/64].Load()&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

// Meta returns the filter's build provenance.
func (f *Filter) Meta() Meta {
	return Meta{
		Bits:           f.m,
		Hashes:         f.k,
		Keys:           f.n,
		TargetRate:     f.p,
		CreatedAt:      f.createdAt,
		AddedSinceLoad: f.added.Load(),
	}
}

// EstimatedFillRatio reports the proportion of bits currently set.
func (f *Filter) EstimatedFillRatio() float64 {
	var set uint64
	for i := range f.words {
		set += uint64(bits.OnesCount64(f.words[i].Load()))
	}
	return float64(set) / float64(f.m)
}

// EstimatedFalsePositiveRate estimates the current false positive rate
// from the fill parameters: (1 - e^(-kn/m))^k. Keys added after the
// build are included, so the estimate rises above the target rate as
// the filter drifts from its snapshot.
func (f *Filter) EstimatedFalsePositiveRate() float64 {
	n := float64(f.n + f.added.Load())
	if n == 0 {
		return 0
	}
	kf := float64(f.k)
	return math.Pow(1-math.Exp(-kf*n/float64(f.m)), kf)
}
