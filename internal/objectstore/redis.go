package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/loqalabs/loqa-speech/internal/speech"
)

// DefaultRedisPrefix namespaces speech objects inside a shared Redis.
const DefaultRedisPrefix = "loqa:speech:"

// Redis keeps audio as plain string values. Objects never expire.
type Redis struct {
	client *redis.Client
	prefix string
}

// OpenRedis connects to url and verifies the connection.
func OpenRedis(ctx context.Context, url string, log *slog.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("speech object store ready", slog.String("driver", "redis"), slog.String("addr", opts.Addr))
	return &Redis{client: client, prefix: DefaultRedisPrefix}, nil
}

// Put implements speech.ObjectStore.
func (r *Redis) Put(ctx context.Context, name string, data []byte) error {
	if err := r.client.Set(ctx, r.prefix+name, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", name, err)
	}
	return nil
}

// Get implements speech.ObjectStore.
func (r *Redis) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.prefix+name).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis get %s: %w", name, speech.ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", name, err)
	}
	return data, nil
}

// Delete implements speech.ObjectStore.
func (r *Redis) Delete(ctx context.Context, name string) error {
	if err := r.client.Del(ctx, r.prefix+name).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", name, err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
