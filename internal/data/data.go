package data

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewData,
	NewPostgresClient,
	NewRedisClient,
	NewHandleRepo,
	NewLookupCache,
	NewEventBuffer,
	NewFilterStore,
)

// Data contains the shared data layer dependencies.
type Data struct {
	redisClient *redis.Client
}

// NewData creates a new Data instance. Redis being unavailable does not
// prevent startup: the cached lookup path and the event buffer degrade,
// the direct and filtered paths keep working.
func NewData(logger log.Logger, rdb *redis.Client) (*Data, func(), error) {
	helper := log.NewHelper(logger)

	if rdb == nil {
		helper.Warn("Redis client is nil, cached lookups and buffered writes will be unavailable")
	}

	d := &Data{
		redisClient: rdb,
	}

	cleanup := func() {
		helper.Info("closing the data resources")
		// Client shutdown is handled by NewRedisClient's cleanup function.
	}

	return d, cleanup, nil
}

// RedisAvailable reports whether Redis currently answers a ping, for
// the ops stats endpoint.
func (d *Data) RedisAvailable(ctx context.Context) bool {
	if d.redisClient == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return d.redisClient.Ping(ctx).Err() == nil
}
