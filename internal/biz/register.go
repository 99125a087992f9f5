package biz

import (
	"context"
	"errors"
	"fmt"

	"AvailGate/internal/metrics"
	"AvailGate/internal/model"
	pkgerrors "AvailGate/pkg/errors"

	"github.com/go-kratos/kratos/v2/log"
)

// ErrHandleTaken is returned when the handle is already registered.
var ErrHandleTaken = errors.New("handle already taken")

// RegisterUsecase implements the two write path strategies the
// benchmark compares: a synchronous authoritative-store insert guarded
// by the circuit breaker, and an event-buffered insert.
type RegisterUsecase struct {
	repo    HandleRepo
	breaker *CircuitBreaker
	sink    EventSink
	filter  FilterIndex
	cache   LookupCache
	metrics *metrics.Metrics
	logger  *log.Helper
}

// NewRegisterUsecase creates the registration use case.
func NewRegisterUsecase(repo HandleRepo, breaker *CircuitBreaker, sink EventSink, filter FilterIndex, cache LookupCache, m *metrics.Metrics, logger log.Logger) *RegisterUsecase {
	return &RegisterUsecase{
		repo:    repo,
		breaker: breaker,
		sink:    sink,
		filter:  filter,
		cache:   cache,
		metrics: m,
		logger:  log.NewHelper(logger),
	}
}

// Register registers a handle using the given write mode. An empty mode
// selects the synchronous path.
func (uc *RegisterUsecase) Register(ctx context.Context, handle, mode string) (*model.RegisterResult, error) {
	if err := ValidateHandle(handle); err != nil {
		return nil, err
	}

	switch mode {
	case "", model.WriteModeSync:
		return uc.registerSync(ctx, handle)
	case model.WriteModeBuffered:
		return uc.registerBuffered(ctx, handle)
	default:
		return nil, fmt.Errorf("unknown write mode %q", mode)
	}
}

// registerSync inserts through the circuit breaker. A breaker rejection
// is not a failure of the registration: the write is diverted to the
// event buffer and acknowledged as buffered.
func (uc *RegisterUsecase) registerSync(ctx context.Context, handle string) (*model.RegisterResult, error) {
	var taken bool
	err := uc.breaker.Execute(ctx, func(ctx context.Context) error {
		err := uc.repo.Insert(ctx, handle)
		if pkgerrors.IsDuplicateKey(err) {
			// The store answered: the dependency is healthy, the
			// handle just isn't free. Don't count it against the
			// breaker.
			taken = true
			return nil
		}
		return err
	})

	switch {
	case err == nil && taken:
		uc.metrics.IncWrite(metrics.WriteConflict)
		return nil, ErrHandleTaken

	case err == nil:
		uc.recordInsert(ctx, handle)
		uc.metrics.IncWrite(metrics.WriteSynced)
		return &model.RegisterResult{Handle: handle, Created: true}, nil

	case IsCircuitOpen(err):
		id, enqErr := uc.sink.Enqueue(ctx, handle)
		if enqErr != nil {
			uc.metrics.IncWrite(metrics.WriteFailed)
			uc.logger.Errorw("circuit open and event buffer unavailable, write lost to caller",
				"handle", handle, "error", enqErr)
			return nil, err
		}
		uc.metrics.IncWrite(metrics.WriteDiverted)
		uc.logger.Infow("circuit open, write diverted to event buffer",
			"handle", handle, "event_id", id)
		return &model.RegisterResult{Handle: handle, Buffered: true, EventID: id}, nil

	default:
		uc.metrics.IncWrite(metrics.WriteFailed)
		return nil, err
	}
}

// registerBuffered always enqueues; persistence happens when the drain
// worker replays the event.
func (uc *RegisterUsecase) registerBuffered(ctx context.Context, handle string) (*model.RegisterResult, error) {
	id, err := uc.sink.Enqueue(ctx, handle)
	if err != nil {
		uc.metrics.IncWrite(metrics.WriteFailed)
		return nil, err
	}
	uc.metrics.IncWrite(metrics.WriteBuffered)
	return &model.RegisterResult{Handle: handle, Buffered: true, EventID: id}, nil
}

// recordInsert keeps the read paths coherent with a fresh insert: the
// in-memory filter learns the handle (until the next full rebuild
// persists it) and the stale cached answer is dropped.
func (uc *RegisterUsecase) recordInsert(ctx context.Context, handle string) {
	uc.filter.Add(handle)
	if err := uc.cache.Invalidate(ctx, handle); err != nil {
		uc.logger.Warnw("failed to invalidate lookup cache", "handle", handle, "error", err)
	}
}
