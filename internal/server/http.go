// Package server assembles the HTTP transport.
package server

import (
	"AvailGate/internal/conf"
	"AvailGate/internal/server/middleware"
	"AvailGate/internal/service"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/wire"
)

// ProviderSet is server providers.
var ProviderSet = wire.NewSet(NewHTTPServer)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(c *conf.Server, availability *service.AvailabilityService, ops *service.OpsService, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			middleware.Logging(logger),
		),
	}
	if c.Http.Network != "" {
		opts = append(opts, http.Network(c.Http.Network))
	}
	if c.Http.Addr != "" {
		opts = append(opts, http.Address(c.Http.Addr))
	}
	if c.Http.Timeout > 0 {
		opts = append(opts, http.Timeout(c.Http.Timeout))
	}
	srv := http.NewServer(opts...)

	r := srv.Route("/v1")
	r.GET("/availability/{handle}", availability.CheckHandle)
	r.POST("/handles", availability.RegisterHandle)
	r.GET("/ops/stats", ops.Stats)
	r.GET("/ops/breaker", ops.BreakerState)
	r.POST("/ops/filter/rebuild", ops.RebuildFilter)

	return srv
}
