package biz

import (
	"context"
	"strings"
	"testing"

	"AvailGate/internal/bloom"
	"AvailGate/internal/metrics"
	"AvailGate/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLookupFixture(repo *fakeRepo, cache *fakeCache, filter *fakeFilter) (*LookupUsecase, *metrics.Metrics) {
	m := metrics.New()
	return NewLookupUsecase(repo, cache, filter, m, log.DefaultLogger), m
}

func TestValidateHandle(t *testing.T) {
	valid := []string{"alice", "bob_42", "a", "x.y-z", strings.Repeat("a", 64)}
	for _, h := range valid {
		assert.NoError(t, ValidateHandle(h), h)
	}

	invalid := []string{"", "Alice", "has space", "emoji☃", strings.Repeat("a", 65), "semi;colon"}
	for _, h := range invalid {
		assert.ErrorIs(t, ValidateHandle(h), ErrInvalidHandle, h)
	}
}

func TestCheckRejectsInvalidHandle(t *testing.T) {
	uc, _ := newLookupFixture(newFakeRepo(), newFakeCache(), newFakeFilter())

	_, err := uc.Check(context.Background(), "Not Valid", model.PathFiltered)
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestCheckRejectsUnknownPath(t *testing.T) {
	uc, _ := newLookupFixture(newFakeRepo(), newFakeCache(), newFakeFilter())

	_, err := uc.Check(context.Background(), "alice", "telepathy")
	assert.Error(t, err)
}

func TestFilteredNegativeSkipsAuthoritativeStore(t *testing.T) {
	repo := newFakeRepo("alice")
	uc, m := newLookupFixture(repo, newFakeCache(), newFakeFilter("alice"))

	res, err := uc.Check(context.Background(), "bob", model.PathFiltered)
	require.NoError(t, err)

	assert.False(t, res.MayExist)
	assert.False(t, res.Exists)
	assert.False(t, res.AuthoritativeQueried)
	assert.False(t, res.FalsePositive)
	assert.Equal(t, 0, repo.existsCalls)

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.FilterNegatives)
	assert.Equal(t, int64(1), snap.Lookups[model.PathFiltered])
	assert.Zero(t, snap.AuthoritativeQueries[model.PathFiltered])
}

func TestFilteredPositiveVerifiedAgainstStore(t *testing.T) {
	repo := newFakeRepo("alice")
	uc, m := newLookupFixture(repo, newFakeCache(), newFakeFilter("alice"))

	res, err := uc.Check(context.Background(), "alice", model.PathFiltered)
	require.NoError(t, err)

	assert.True(t, res.MayExist)
	assert.True(t, res.Exists)
	assert.True(t, res.AuthoritativeQueried)
	assert.False(t, res.FalsePositive)
	assert.Equal(t, 1, repo.existsCalls)

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.TruePositives)
	assert.Zero(t, snap.FalsePositives)
}

func TestFilteredFalsePositiveResolvedCorrectly(t *testing.T) {
	repo := newFakeRepo("alice")
	filter := newFakeFilter("alice")
	filter.falsePositives["ghost"] = true
	uc, m := newLookupFixture(repo, newFakeCache(), filter)

	res, err := uc.Check(context.Background(), "ghost", model.PathFiltered)
	require.NoError(t, err)

	// The filter lied, the store corrects it: the caller still gets the
	// right answer, at the cost of one authoritative query.
	assert.True(t, res.MayExist)
	assert.False(t, res.Exists)
	assert.True(t, res.AuthoritativeQueried)
	assert.True(t, res.FalsePositive)

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.FalsePositives)
	assert.Zero(t, snap.TruePositives)
	assert.Equal(t, 1.0, snap.ObservedFPRate)
}

func TestFilteredFailsWhenFilterNotLoaded(t *testing.T) {
	filter := newFakeFilter()
	filter.loaded = false
	uc, _ := newLookupFixture(newFakeRepo(), newFakeCache(), filter)

	_, err := uc.Check(context.Background(), "alice", model.PathFiltered)
	assert.ErrorIs(t, err, bloom.ErrFilterNotLoaded)
}

func TestEmptyPathDefaultsToFiltered(t *testing.T) {
	uc, m := newLookupFixture(newFakeRepo(), newFakeCache(), newFakeFilter())

	res, err := uc.Check(context.Background(), "bob", "")
	require.NoError(t, err)
	assert.Equal(t, model.PathFiltered, res.Path)
	assert.Equal(t, int64(1), m.Snapshot().Lookups[model.PathFiltered])
}

func TestDirectPathAlwaysQueriesStore(t *testing.T) {
	repo := newFakeRepo("alice")
	uc, m := newLookupFixture(repo, newFakeCache(), newFakeFilter())

	res, err := uc.Check(context.Background(), "alice", model.PathDirect)
	require.NoError(t, err)
	assert.True(t, res.Exists)
	assert.True(t, res.AuthoritativeQueried)

	res, err = uc.Check(context.Background(), "bob", model.PathDirect)
	require.NoError(t, err)
	assert.False(t, res.Exists)
	assert.True(t, res.AuthoritativeQueried)

	assert.Equal(t, 2, repo.existsCalls)
	assert.Equal(t, int64(2), m.Snapshot().AuthoritativeQueries[model.PathDirect])
}

func TestCachedPathMissThenHit(t *testing.T) {
	repo := newFakeRepo("alice")
	uc, _ := newLookupFixture(repo, newFakeCache(), newFakeFilter())

	res, err := uc.Check(context.Background(), "alice", model.PathCached)
	require.NoError(t, err)
	assert.True(t, res.Exists)
	assert.True(t, res.AuthoritativeQueried)
	assert.Equal(t, 1, repo.existsCalls)

	// Second check is served from the cache.
	res, err = uc.Check(context.Background(), "alice", model.PathCached)
	require.NoError(t, err)
	assert.True(t, res.Exists)
	assert.False(t, res.AuthoritativeQueried)
	assert.Equal(t, 1, repo.existsCalls)
}

func TestCachedPathCachesNegativeAnswers(t *testing.T) {
	repo := newFakeRepo()
	uc, _ := newLookupFixture(repo, newFakeCache(), newFakeFilter())

	for i := 0; i < 3; i++ {
		res, err := uc.Check(context.Background(), "bob", model.PathCached)
		require.NoError(t, err)
		assert.False(t, res.Exists)
	}
	assert.Equal(t, 1, repo.existsCalls)
}

func TestCachedPathDegradesToStoreOnCacheError(t *testing.T) {
	repo := newFakeRepo("alice")
	cache := newFakeCache()
	cache.getErr = assert.AnError
	uc, _ := newLookupFixture(repo, cache, newFakeFilter())

	res, err := uc.Check(context.Background(), "alice", model.PathCached)
	require.NoError(t, err)
	assert.True(t, res.Exists)
	assert.True(t, res.AuthoritativeQueried)
}

func TestFilteredPropagatesStoreFailure(t *testing.T) {
	repo := newFakeRepo("alice")
	repo.setFailing(assert.AnError)
	uc, _ := newLookupFixture(repo, newFakeCache(), newFakeFilter("alice"))

	_, err := uc.Check(context.Background(), "alice", model.PathFiltered)
	assert.ErrorIs(t, err, assert.AnError)
}
