// Package biz contains business logic layer implementations.
// This layer holds the availability core: the circuit breaker, the
// composite lookup protocol, and the write path strategies.
package biz

import (
	"context"

	"AvailGate/internal/bloom"
	"AvailGate/internal/data"
	"AvailGate/internal/model"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewCircuitBreaker,
	NewLookupUsecase,
	NewRegisterUsecase,
	NewDrainWorker,
	NewRebuildTask,
	// Bind data layer implementations to biz layer interfaces
	wire.Bind(new(HandleRepo), new(*data.HandleRepo)),
	wire.Bind(new(LookupCache), new(*data.LookupCache)),
	wire.Bind(new(EventSink), new(*data.EventBuffer)),
	wire.Bind(new(EventSource), new(*data.EventBuffer)),
	wire.Bind(new(FilterIndex), new(*data.FilterStore)),
)

// HandleRepo is the authoritative store for handles.
type HandleRepo interface {
	Exists(ctx context.Context, handle string) (bool, error)
	Insert(ctx context.Context, handle string) error
	Count(ctx context.Context) (int64, error)
	PageHandles(ctx context.Context, afterID int64, limit int) ([]data.Handle, error)
}

// LookupCache caches existence answers for the cached lookup path.
type LookupCache interface {
	GetExists(ctx context.Context, handle string) (exists bool, found bool, err error)
	SetExists(ctx context.Context, handle string, exists bool) error
	Invalidate(ctx context.Context, handle string) error
}

// EventSink accepts buffered writes.
type EventSink interface {
	Enqueue(ctx context.Context, handle string) (string, error)
	Pending(ctx context.Context) (int64, error)
}

// EventSource yields buffered writes for draining into the
// authoritative store.
type EventSource interface {
	ReadBatch(ctx context.Context, limit int) ([]model.BufferedEvent, error)
	Ack(ctx context.Context, ids ...string) error
}

// FilterIndex is the serving process's handle membership filter.
type FilterIndex interface {
	MayContain(handle string) (bool, error)
	Add(handle string)
	Meta() (bloom.Meta, bool)
	Install(f *bloom.Filter) error
}
