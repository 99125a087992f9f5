package bloom

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Snapshot is the persisted filter format. It is a plain JSON record so
// the offline builder, the serving process, and operator tooling can
// all read it: bit words are packed little-endian and base64-encoded by
// encoding/json, created_at is ISO-8601.
type Snapshot struct {
	M         uint64  `json:"m"`
	K         uint32  `json:"k"`
	Bits      []byte  `json:"bits"`
	N         int64   `json:"n"`
	P         float64 `json:"p"`
	CreatedAt string  `json:"created_at"`
}

var (
	// ErrInvalidSnapshot is returned when a persisted filter is
	// malformed or corrupted.
	ErrInvalidSnapshot = errors.New("bloom: invalid snapshot")

	// maxBits bounds snapshot sizes so a corrupted header cannot drive
	// a huge allocation. 1<<36 bits is 8 GiB of filter.
	maxBits = uint64(1) << 36
)

// Snapshot serializes the filter for reload without re-scanning the
// authoritative store.
func (f *Filter) Snapshot() *Snapshot {
	packed := make([]byte, len(f.words)*8)
	for i := range f.words {
		binary.LittleEndian.PutUint64(packed[i*8:], f.words[i].Load())
	}
	return &Snapshot{
		M:         f.m,
		K:         f.k,
		Bits:      packed,
		N:         f.n,
		P:         f.p,
		CreatedAt: f.createdAt.UTC().Format(time.RFC3339),
	}
}

// FromSnapshot validates a persisted snapshot and reconstructs the
// filter.
func FromSnapshot(s *Snapshot) (*Filter, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil snapshot", ErrInvalidSnapshot)
	}
	if s.M == 0 {
		return nil, fmt.Errorf("%w: m cannot be zero", ErrInvalidSnapshot)
	}
	if s.M > maxBits {
		return nil, fmt.Errorf("%w: m too large (%d)", ErrInvalidSnapshot, s.M)
	}
	if s.K == 0 {
		return nil, fmt.Errorf("%w: k cannot be zero", ErrInvalidSnapshot)
	}
	if s.N < 0 {
		return nil, fmt.Errorf("%w: negative key count %d", ErrInvalidSnapshot, s.N)
	}
	if s.P <= 0 || s.P >= 1 {
		return nil, fmt.Errorf("%w: false positive rate %v out of range", ErrInvalidSnapshot, s.P)
	}

	words := (s.M + 63) / 64
	if uint64(len(s.Bits)) != words*8 {
		return nil, fmt.Errorf("%w: bit array length mismatch (got %d bytes, expected %d)",
			ErrInvalidSnapshot, len(s.Bits), words*8)
	}

	createdAt, err := time.Parse(time.RFC3339, s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: bad created_at %q: %v", ErrInvalidSnapshot, s.CreatedAt, err)
	}

	f := newFilter(s.M, s.K, s.N, s.P, createdAt)
	for i := range f.words {
		f.words[i].Store(binary.LittleEndian.Uint64(s.Bits[i*8:]))
	}

	return f, nil
}
