package chatlog

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBuffer keeps records in a Redis list. Push is RPUSH, Len is LLEN and
// Drain runs LRANGE 0 -1 and DEL inside MULTI/EXEC.
type RedisBuffer struct {
	rdb redis.UniversalClient
	key string
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// NewRedisBuffer connects to Redis and verifies the connection with PING.
func NewRedisBuffer(ctx context.Context, opts RedisOptions) (*RedisBuffer, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisBufferFromClient(rdb, opts.Key), nil
}

func NewRedisBufferFromClient(rdb redis.UniversalClient, key string) *RedisBuffer {
	if key == "" {
		key = "chat_logs_buffer"
	}
	return &RedisBuffer{rdb: rdb, key: key}
}

func (b *RedisBuffer) Push(ctx context.Context, payload []byte) error {
	if err := b.rdb.RPush(ctx, b.key, payload).Err(); err != nil {
		return fmt.Errorf("%w: rpush %s: %v", ErrBufferUnavailable, b.key, err)
	}
	return nil
}

func (b *RedisBuffer) Len(ctx context.Context) (int64, error) {
	n, err := b.rdb.LLen(ctx, b.key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: llen %s: %v", ErrBufferUnavailable, b.key, err)
	}
	return n, nil
}

func (b *RedisBuffer) Drain(ctx context.Context) ([][]byte, error) {
	var lrange *redis.StringSliceCmd
	_, err := b.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		lrange = pipe.LRange(ctx, b.key, 0, -1)
		pipe.Del(ctx, b.key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: drain %s: %v", ErrBufferUnavailable, b.key, err)
	}

	vals := lrange.Val()
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out, nil
}

func (b *RedisBuffer) Close() error {
	return b.rdb.Close()
}
