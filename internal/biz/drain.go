package biz

import (
	"context"
	"time"

	"AvailGate/internal/conf"
	"AvailGate/internal/metrics"
	pkgerrors "AvailGate/pkg/errors"

	"github.com/go-kratos/kratos/v2/log"
)

// DrainWorker replays buffered writes into the authoritative store in
// the background. It goes through the same circuit breaker as the
// synchronous path, so a broken store pauses draining instead of
// hammering it, and events are acknowledged only after they have been
// persisted (or turned out to be duplicates).
//
// It implements the Kratos transport.Server interface so its lifecycle
// is tied to the application's.
type DrainWorker struct {
	source   EventSource
	repo     HandleRepo
	breaker  *CircuitBreaker
	filter   FilterIndex
	cache    LookupCache
	metrics  *metrics.Metrics
	logger   *log.Helper
	interval time.Duration
	batch    int

	cancel context.CancelFunc
}

// NewDrainWorker creates the drain worker.
func NewDrainWorker(c *conf.Data, source EventSource, repo HandleRepo, breaker *CircuitBreaker, filter FilterIndex, cache LookupCache, m *metrics.Metrics, logger log.Logger) *DrainWorker {
	interval := time.Second
	batch := 100
	if c != nil && c.Events != nil {
		if c.Events.DrainInterval > 0 {
			interval = c.Events.DrainInterval
		}
		if c.Events.DrainBatch > 0 {
			batch = c.Events.DrainBatch
		}
	}
	return &DrainWorker{
		source:   source,
		repo:     repo,
		breaker:  breaker,
		filter:   filter,
		cache:    cache,
		metrics:  m,
		logger:   log.NewHelper(logger),
		interval: interval,
		batch:    batch,
	}
}

// Start runs the drain loop until the application stops.
func (w *DrainWorker) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)

	w.logger.Infow("event drain worker started",
		"interval", w.interval,
		"batch", w.batch)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("event drain worker stopped")
			return nil
		case <-ticker.C:
			w.drainOnce(ctx)
		}
	}
}

// Stop terminates the drain loop.
func (w *DrainWorker) Stop(context.Context) error {
	if w.cancel != nil {
		w.cancel()
	}
	return nil
}

// drainOnce replays one batch. It stops at the first infrastructure
// failure, leaving the remaining events (and the failed one) in the
// buffer for the next tick.
func (w *DrainWorker) drainOnce(ctx context.Context) {
	// No point reading a batch the breaker will reject wholesale.
	if w.breaker.State() == StateOpen {
		return
	}

	events, err := w.source.ReadBatch(ctx, w.batch)
	if err != nil {
		w.logger.Warnw("failed to read buffered events", "error", err)
		return
	}
	if len(events) == 0 {
		return
	}

	drained := make([]string, 0, len(events))
	for _, ev := range events {
		var duplicate bool
		err := w.breaker.Execute(ctx, func(ctx context.Context) error {
			err := w.repo.Insert(ctx, ev.Handle)
			if pkgerrors.IsDuplicateKey(err) {
				duplicate = true
				return nil
			}
			return err
		})
		if err != nil {
			if IsCircuitOpen(err) {
				w.logger.Infow("circuit opened during drain, pausing", "pending_from", ev.ID)
			} else {
				w.logger.Warnw("failed to drain buffered event", "event_id", ev.ID, "error", err)
			}
			break
		}

		drained = append(drained, ev.ID)
		if duplicate {
			w.logger.Debugw("buffered event was a duplicate", "event_id", ev.ID, "handle", ev.Handle)
			continue
		}

		w.filter.Add(ev.Handle)
		if err := w.cache.Invalidate(ctx, ev.Handle); err != nil {
			w.logger.Warnw("failed to invalidate lookup cache after drain", "handle", ev.Handle, "error", err)
		}
		w.metrics.IncWrite(metrics.WriteDrained)
	}

	if len(drained) > 0 {
		if err := w.source.Ack(ctx, drained...); err != nil {
			// Events stay in the stream; the next tick will replay them
			// and hit the duplicate path.
			w.logger.Warnw("failed to ack drained events", "count", len(drained), "error", err)
			return
		}
		w.logger.Debugw("drained buffered events", "count", len(drained))
	}
}
