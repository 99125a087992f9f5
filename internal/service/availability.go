// Package service exposes the availability core over HTTP. Handlers
// are registered by hand on the Kratos router; request/response shapes
// live in internal/model.
package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"

	"AvailGate/internal/biz"
	"AvailGate/internal/bloom"
	"AvailGate/internal/data"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// AvailabilityService serves the lookup and registration endpoints.
type AvailabilityService struct {
	lookup   *biz.LookupUsecase
	register *biz.RegisterUsecase
	logger   *log.Helper
}

// NewAvailabilityService creates the availability service.
func NewAvailabilityService(lookup *biz.LookupUsecase, register *biz.RegisterUsecase, logger log.Logger) *AvailabilityService {
	return &AvailabilityService{
		lookup:   lookup,
		register: register,
		logger:   log.NewHelper(logger),
	}
}

// CheckHandle handles GET /v1/availability/{handle}?path=filtered|direct|cached.
func (s *AvailabilityService) CheckHandle(ctx khttp.Context) error {
	handle := ctx.Vars().Get("handle")
	path := ctx.Query().Get("path")

	h := ctx.Middleware(func(ctx context.Context, _ interface{}) (interface{}, error) {
		res, err := s.lookup.Check(ctx, handle, path)
		if err != nil {
			return nil, toAPIError(err)
		}
		return res, nil
	})

	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

// registerRequest is the POST /v1/handles body.
type registerRequest struct {
	Handle string `json:"handle"`
	Mode   string `json:"mode"`
}

// RegisterHandle handles POST /v1/handles.
func (s *AvailabilityService) RegisterHandle(ctx khttp.Context) error {
	var req registerRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.New(400, "INVALID_REQUEST", fmt.Sprintf("malformed request body: %v", err))
	}

	h := ctx.Middleware(func(ctx context.Context, _ interface{}) (interface{}, error) {
		res, err := s.register.Register(ctx, req.Handle, req.Mode)
		if err != nil {
			return nil, toAPIError(err)
		}
		return res, nil
	})

	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

// toAPIError maps core errors to the HTTP error surface. A breaker
// rejection is deliberately distinct from a downstream failure so
// monitoring can separate "dependency slow" from "dependency
// circuit-broken".
func toAPIError(err error) error {
	var coe *biz.CircuitOpenError
	switch {
	case stderrors.Is(err, biz.ErrInvalidHandle):
		return errors.New(400, "INVALID_HANDLE", err.Error())
	case stderrors.Is(err, biz.ErrHandleTaken):
		return errors.New(409, "HANDLE_TAKEN", err.Error())
	case stderrors.Is(err, bloom.ErrFilterNotLoaded):
		return errors.New(503, "FILTER_NOT_LOADED", "handle filter not loaded; run a filter build")
	case stderrors.Is(err, data.ErrEventBufferUnavailable):
		return errors.New(503, "EVENT_BUFFER_UNAVAILABLE", err.Error())
	case stderrors.As(err, &coe):
		return errors.New(503, "CIRCUIT_OPEN", err.Error()).
			WithMetadata(map[string]string{
				"retry_after_ms": strconv.FormatInt(coe.RetryAfter.Milliseconds(), 10),
			})
	default:
		return errors.New(500, "INTERNAL", err.Error())
	}
}
