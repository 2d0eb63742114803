package connection

import (
	"context"

	"github.com/go-redis/redis"
	logger "github.com/sirupsen/logrus"

	"github.com/ZJRui/redisbind"
)

// Factory hands out connections. Implementations own the underlying client
// lifecycle; connections returned from GetConnection are cheap wrappers and
// closing one never closes the client.
type Factory interface {
	GetConnection(ctx context.Context) *Conn
	Close() error
}

// ShardKeyProvider derives the shard routing key from the calling context.
type ShardKeyProvider func(ctx context.Context) string

// ClientFactory is a Factory over a single client.
type ClientFactory struct {
	client *redis.Client
}

func NewClientFactory(client *redis.Client) *ClientFactory {
	return &ClientFactory{client: client}
}

// NewClientFactoryFromSettings dials according to environment-driven
// settings.
func NewClientFactoryFromSettings(s Settings) *ClientFactory {
	logger.Warnf("connecting to redis on %s with pool size %d", s.Addr, s.PoolSize)
	client := redis.NewClient(&redis.Options{
		Addr:         s.Addr,
		Password:     s.Password,
		DB:           s.DB,
		PoolSize:     s.PoolSize,
		DialTimeout:  s.DialTimeout,
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
	})
	return &ClientFactory{client: client}
}

func (f *ClientFactory) GetConnection(_ context.Context) *Conn {
	return newConn(f.client)
}

func (f *ClientFactory) Close() error {
	logger.Debug("closing redis client")
	return f.client.Close()
}

// Client exposes the wrapped client for callers that need raw access, e.g.
// tests flushing the database.
func (f *ClientFactory) Client() *redis.Client {
	return f.client
}

// ShardedFactory routes connections over several factories using a crc32
// hash-slot ring keyed by the context's shard key.
type ShardedFactory struct {
	factories        []Factory
	hashSlot         []uint32
	maxSlot          uint32
	shardKeyProvider ShardKeyProvider
}

func NewShardedFactory(factories []Factory, maxSlot uint32, shardKeyProvider ShardKeyProvider) *ShardedFactory {
	return &ShardedFactory{
		factories:        factories,
		hashSlot:         redisbind.GetHashSlotRange(len(factories), maxSlot),
		maxSlot:          maxSlot,
		shardKeyProvider: shardKeyProvider,
	}
}

func (f *ShardedFactory) GetConnection(ctx context.Context) *Conn {
	shardKey := f.shardKeyProvider(ctx)
	index := redisbind.GetIndexByHash(f.hashSlot, []byte(shardKey), f.maxSlot)
	return f.factories[index].GetConnection(ctx)
}

func (f *ShardedFactory) Close() error {
	var firstErr error
	for _, sub := range f.factories {
		if err := sub.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
