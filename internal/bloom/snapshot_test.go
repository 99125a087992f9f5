package bloom

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	keys := buildKeys(5000)
	f, err := BuildFromKeys(context.Background(), keys, 0.01)
	require.NoError(t, err)

	raw, err := json.Marshal(f.Snapshot())
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))

	restored, err := FromSnapshot(&snap)
	require.NoError(t, err)

	assert.Equal(t, f.Meta().Bits, restored.Meta().Bits)
	assert.Equal(t, f.Meta().Hashes, restored.Meta().Hashes)
	assert.Equal(t, f.Meta().Keys, restored.Meta().Keys)

	// The restored filter answers exactly like the original.
	for _, key := range keys {
		require.True(t, restored.MayContain(key), key)
	}
	for i := 0; i < 1000; i++ {
		probe := fmt.Sprintf("probe-%05d", i)
		assert.Equal(t, f.MayContain(probe), restored.MayContain(probe), probe)
	}
}

func TestSnapshotJSONShape(t *testing.T) {
	f, err := BuildFromKeys(context.Background(), []string{"alice"}, 0.01)
	require.NoError(t, err)

	raw, err := json.Marshal(f.Snapshot())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, field := range []string{"m", "k", "bits", "n", "p", "created_at"} {
		assert.Contains(t, decoded, field)
	}
}

func TestFromSnapshotRejectsCorruption(t *testing.T) {
	f, err := BuildFromKeys(context.Background(), []string{"alice"}, 0.01)
	require.NoError(t, err)
	good := f.Snapshot()

	cases := []struct {
		name   string
		mutate func(*Snapshot)
	}{
		{"nil snapshot", nil},
		{"zero m", func(s *Snapshot) { s.M = 0 }},
		{"huge m", func(s *Snapshot) { s.M = maxBits + 1 }},
		{"zero k", func(s *Snapshot) { s.K = 0 }},
		{"negative n", func(s *Snapshot) { s.N = -1 }},
		{"rate zero", func(s *Snapshot) { s.P = 0 }},
		{"rate one", func(s *Snapshot) { s.P = 1 }},
		{"truncated bits", func(s *Snapshot) { s.Bits = s.Bits[:len(s.Bits)-8] }},
		{"oversized bits", func(s *Snapshot) { s.Bits = append(s.Bits, 0, 0, 0, 0, 0, 0, 0, 0) }},
		{"bad timestamp", func(s *Snapshot) { s.CreatedAt = "yesterday" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.mutate == nil {
				_, err := FromSnapshot(nil)
				assert.ErrorIs(t, err, ErrInvalidSnapshot)
				return
			}
			snap := *good
			snap.Bits = append([]byte(nil), good.Bits...)
			tc.mutate(&snap)
			_, err := FromSnapshot(&snap)
			assert.ErrorIs(t, err, ErrInvalidSnapshot)
		})
	}
}
