package service

import (
	"context"
	"time"

	"AvailGate/internal/biz"
	"AvailGate/internal/data"
	"AvailGate/internal/metrics"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// OpsService serves the operator endpoints: counters, breaker state and
// manual filter rebuilds.
type OpsService struct {
	metrics *metrics.Metrics
	breaker *biz.CircuitBreaker
	rebuild *biz.RebuildTask
	filter  biz.FilterIndex
	sink    biz.EventSink
	data    *data.Data
	logger  *log.Helper
}

// NewOpsService creates the ops service.
func NewOpsService(m *metrics.Metrics, breaker *biz.CircuitBreaker, rebuild *biz.RebuildTask, filter biz.FilterIndex, sink biz.EventSink, d *data.Data, logger log.Logger) *OpsService {
	return &OpsService{
		metrics: m,
		breaker: breaker,
		rebuild: rebuild,
		filter:  filter,
		sink:    sink,
		data:    d,
		logger:  log.NewHelper(logger),
	}
}

// filterStatus is the filter section of the stats response.
type filterStatus struct {
	Loaded     bool    `json:"loaded"`
	Keys       int64   `json:"keys,omitempty"`
	Bits       uint64  `json:"bits,omitempty"`
	Hashes     uint32  `json:"hashes,omitempty"`
	TargetRate float64 `json:"target_rate,omitempty"`
	CreatedAt  string  `json:"created_at,omitempty"`
}

// breakerStatus is the breaker section of the stats response.
type breakerStatus struct {
	State        string `json:"state"`
	StateCode    int32  `json:"state_code"`
	RetryAfterMS int64  `json:"retry_after_ms"`
}

func (s *OpsService) breakerStatus() breakerStatus {
	return breakerStatus{
		State:        s.breaker.State().String(),
		StateCode:    s.breaker.StateCode(),
		RetryAfterMS: s.breaker.RetryAfter().Milliseconds(),
	}
}

// statsResponse is GET /v1/ops/stats.
type statsResponse struct {
	Counters       metrics.Snapshot `json:"counters"`
	Breaker        breakerStatus    `json:"breaker"`
	Filter         filterStatus     `json:"filter"`
	PendingEvents  int64            `json:"pending_events"`
	RedisAvailable bool             `json:"redis_available"`
}

// Stats handles GET /v1/ops/stats.
func (s *OpsService) Stats(ctx khttp.Context) error {
	h := ctx.Middleware(func(ctx context.Context, _ interface{}) (interface{}, error) {
		res := &statsResponse{
			Counters:       s.metrics.Snapshot(),
			Breaker:        s.breakerStatus(),
			RedisAvailable: s.data.RedisAvailable(ctx),
		}

		if meta, ok := s.filter.Meta(); ok {
			res.Filter = filterStatus{
				Loaded:     true,
				Keys:       meta.Keys,
				Bits:       meta.Bits,
				Hashes:     meta.Hashes,
				TargetRate: meta.TargetRate,
				CreatedAt:  meta.CreatedAt.Format(time.RFC3339),
			}
		}

		if pending, err := s.sink.Pending(ctx); err == nil {
			res.PendingEvents = pending
		} else {
			s.logger.Warnw("failed to read pending event count", "error", err)
		}

		return res, nil
	})

	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

// BreakerState handles GET /v1/ops/breaker.
func (s *OpsService) BreakerState(ctx khttp.Context) error {
	h := ctx.Middleware(func(context.Context, interface{}) (interface{}, error) {
		return s.breakerStatus(), nil
	})

	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

// rebuildResponse is POST /v1/ops/filter/rebuild.
type rebuildResponse struct {
	Keys       int64   `json:"keys"`
	Bits       uint64  `json:"bits"`
	Hashes     uint32  `json:"hashes"`
	TargetRate float64 `json:"target_rate"`
	CreatedAt  string  `json:"created_at"`
}

// RebuildFilter handles POST /v1/ops/filter/rebuild. The rebuild runs
// synchronously; concurrent requests queue on the task's lock.
func (s *OpsService) RebuildFilter(ctx khttp.Context) error {
	h := ctx.Middleware(func(ctx context.Context, _ interface{}) (interface{}, error) {
		meta, err := s.rebuild.Rebuild(ctx)
		if err != nil {
			s.logger.Errorw("filter rebuild failed", "error", err)
			return nil, errors.New(500, "REBUILD_FAILED", err.Error())
		}
		return &rebuildResponse{
			Keys:       meta.Keys,
			Bits:       meta.Bits,
			Hashes:     meta.Hashes,
			TargetRate: meta.TargetRate,
			CreatedAt:  meta.CreatedAt.Format(time.RFC3339),
		}, nil
	})

	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}
