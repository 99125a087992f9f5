package biz

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"AvailGate/internal/metrics"
	"AvailGate/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// ErrInvalidHandle is returned for handles outside the allowed shape:
// 1-64 characters of lowercase letters, digits, '_', '-' or '.'.
var ErrInvalidHandle = errors.New("invalid handle")

var handlePattern = regexp.MustCompile(`^[a-z0-9_.-]{1,64}$`)

// ValidateHandle checks the handle shape shared by lookups and
// registrations.
func ValidateHandle(handle string) error {
	if !handlePattern.MatchString(handle) {
		return fmt.Errorf("%w: %q", ErrInvalidHandle, handle)
	}
	return nil
}

// LookupUsecase implements the three availability lookup paths the
// benchmark compares: direct PostgreSQL, Redis-cached, and
// Bloom-filtered with authoritative fallback.
type LookupUsecase struct {
	repo    HandleRepo
	cache   LookupCache
	filter  FilterIndex
	metrics *metrics.Metrics
	logger  *log.Helper
}

// NewLookupUsecase creates the lookup use case.
func NewLookupUsecase(repo HandleRepo, cache LookupCache, filter FilterIndex, m *metrics.Metrics, logger log.Logger) *LookupUsecase {
	return &LookupUsecase{
		repo:    repo,
		cache:   cache,
		filter:  filter,
		metrics: m,
		logger:  log.NewHelper(logger),
	}
}

// Check dispatches to the requested lookup path. An empty path selects
// the filtered one.
func (uc *LookupUsecase) Check(ctx context.Context, handle, path string) (*model.LookupResult, error) {
	if err := ValidateHandle(handle); err != nil {
		return nil, err
	}

	switch path {
	case "", model.PathFiltered:
		return uc.checkFiltered(ctx, handle)
	case model.PathDirect:
		return uc.checkDirect(ctx, handle)
	case model.PathCached:
		return uc.checkCached(ctx, handle)
	default:
		return nil, fmt.Errorf("unknown lookup path %q", path)
	}
}

// checkFiltered is the composite lookup protocol: the filter is a
// pre-filter, never the system of record. A negative answer means the
// handle is definitely absent and costs no I/O; a positive answer is
// always re-verified against the authoritative store, so the price of
// a false positive is exactly one extra query, never a wrong answer.
func (uc *LookupUsecase) checkFiltered(ctx context.Context, handle string) (*model.LookupResult, error) {
	uc.metrics.IncLookup(model.PathFiltered)

	may, err := uc.filter.MayContain(handle)
	if err != nil {
		return nil, err
	}

	res := &model.LookupResult{
		Handle:   handle,
		MayExist: may,
		Path:     model.PathFiltered,
	}

	if !may {
		uc.metrics.IncFilterNegative()
		return res, nil
	}

	exists, err := uc.repo.Exists(ctx, handle)
	if err != nil {
		return nil, err
	}
	uc.metrics.IncAuthoritativeQuery(model.PathFiltered)

	res.AuthoritativeQueried = true
	res.Exists = exists
	if exists {
		uc.metrics.IncTruePositive()
	} else {
		res.FalsePositive = true
		uc.metrics.IncFalsePositive()
		uc.logger.Debugw("filter false positive", "handle", handle)
	}

	return res, nil
}

// checkDirect queries the authoritative store for every lookup.
func (uc *LookupUsecase) checkDirect(ctx context.Context, handle string) (*model.LookupResult, error) {
	uc.metrics.IncLookup(model.PathDirect)

	exists, err := uc.repo.Exists(ctx, handle)
	if err != nil {
		return nil, err
	}
	uc.metrics.IncAuthoritativeQuery(model.PathDirect)

	return &model.LookupResult{
		Handle:               handle,
		Exists:               exists,
		MayExist:             exists,
		AuthoritativeQueried: true,
		Path:                 model.PathDirect,
	}, nil
}

// checkCached consults the LRU/Redis cache first and falls back to the
// authoritative store on a miss, writing the answer back. Cache errors
// degrade to the direct path rather than failing the lookup.
func (uc *LookupUsecase) checkCached(ctx context.Context, handle string) (*model.LookupResult, error) {
	uc.metrics.IncLookup(model.PathCached)

	exists, found, err := uc.cache.GetExists(ctx, handle)
	if err != nil {
		uc.logger.Warnw("lookup cache read failed, falling back to store", "handle", handle, "error", err)
		found = false
	}

	res := &model.LookupResult{
		Handle: handle,
		Path:   model.PathCached,
	}

	if found {
		res.Exists = exists
		res.MayExist = exists
		return res, nil
	}

	exists, err = uc.repo.Exists(ctx, handle)
	if err != nil {
		return nil, err
	}
	uc.metrics.IncAuthoritativeQuery(model.PathCached)

	if err := uc.cache.SetExists(ctx, handle, exists); err != nil {
		uc.logger.Warnw("lookup cache write-back failed", "handle", handle, "error", err)
	}

	res.Exists = exists
	res.MayExist = exists
	res.AuthoritativeQueried = true
	return res, nil
}
