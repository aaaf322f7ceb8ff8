package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Store.Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Store caches response bodies by URL.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, body []byte) error
	Delete(ctx context.Context, key string) error
}

// Memory is an in-process Store backed by a Layer.
type Memory struct {
	layer *Layer[[]byte]
}

// NewMemory creates an in-memory store.
func NewMemory(cfg Config) *Memory {
	return &Memory{layer: NewLayer[[]byte](cfg)}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.layer.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	return v, nil
}

// Set implements Store.
func (m *Memory) Set(_ context.Context, key string, body []byte) error {
	m.layer.Set(key, body)
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.layer.Delete(key)
	return nil
}

// Stats exposes the underlying layer counters.
func (m *Memory) Stats() Stats { return m.layer.Stats() }

// RedisClient is the subset of go-redis client methods used by Redis.
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// RedisConfig configures the Redis store.
type RedisConfig struct {
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// Redis is a Store shared between processes through a Redis server.
type Redis struct {
	cfg    RedisConfig
	client RedisClient
}

// DialRedis connects to Redis and verifies the connection with PING.
func DialRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: redis %s: ping: %w", cfg.Address, err)
	}
	return NewRedis(cfg, client), nil
}

// NewRedis wraps an existing client.
func NewRedis(cfg RedisConfig, client RedisClient) *Redis {
	if cfg.Prefix == "" {
		cfg.Prefix = "marketplace:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().DefaultTTL
	}
	return &Redis{cfg: cfg, client: client}
}

// Get implements Store.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, r.cfg.Prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache: redis get: %w", err)
	}
	return b, nil
}

// Set implements Store.
func (r *Redis) Set(ctx context.Context, key string, body []byte) error {
	if err := r.client.Set(ctx, r.cfg.Prefix+key, body, r.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}
	return nil
}

// Delete implements Store.
func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.cfg.Prefix+key).Err()
}

// Close releases the client connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
