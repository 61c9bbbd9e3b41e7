package redis

import (
	"github.com/mirkobrombin/go-warp/v1/syncbus"
	warpbus "github.com/mirkobrombin/go-warp/v1/syncbus/redis"
	redis "github.com/redis/go-redis/v9"
)

// Bus is a go-warp invalidation bus on the Redis server described by a Config.
// It owns its connection, separate from any Store.
type Bus struct {
	*warpbus.RedisBus
	client *redis.Client
}

// NewBus connects a bus tagging its events with region.
func NewBus(cfg Config, region string) *Bus {
	c := newClient(cfg)
	return &Bus{
		RedisBus: warpbus.NewRedisBus(warpbus.RedisBusOptions{Client: c, Region: region}),
		client:   c,
	}
}

// Close stops the bus and drops its connection.
func (b *Bus) Close() error {
	err := b.RedisBus.Close()
	if cerr := b.client.Close(); err == nil {
		err = cerr
	}
	return err
}

var _ syncbus.Bus = (*Bus)(nil)
