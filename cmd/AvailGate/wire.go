//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"AvailGate/internal/biz"
	"AvailGate/internal/conf"
	"AvailGate/internal/data"
	"AvailGate/internal/metrics"
	"AvailGate/internal/server"
	"AvailGate/internal/service"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp init kratos application.
func wireApp(*conf.Server, *conf.Data, *conf.Breaker, *conf.Filter, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(
		metrics.New,
		data.ProviderSet,
		biz.ProviderSet,
		service.ProviderSet,
		server.ProviderSet,
		NewRebuildCron,
		newApp,
	))
}
