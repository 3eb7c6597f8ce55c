// Package cache keeps read-side snapshots in Redis. A miss is never an error;
// callers fall back to the database.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// ViewCache stores JSON encoded values of one type. A zero ttl keeps keys
// until they are deleted.
type ViewCache[T any] struct {
	client goredis.Cmdable
	ttl    time.Duration
	prefix string
	logger logrus.FieldLogger
}

func NewViewCache[T any](client goredis.Cmdable, prefix string, ttl time.Duration, logger logrus.FieldLogger) *ViewCache[T] {
	return &ViewCache[T]{client: client, ttl: ttl, prefix: prefix, logger: logger}
}

func (c *ViewCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var value T
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			c.logger.WithError(err).WithField("key", c.prefix+key).Warn("cache read failed")
		}
		return value, false
	}
	if err := json.Unmarshal(data, &value); err != nil {
		c.logger.WithError(err).WithField("key", c.prefix+key).Warn("cache entry undecodable")
		return value, false
	}
	return value, true
}

func (c *ViewCache[T]) Set(ctx context.Context, key string, value T) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.WithError(err).WithField("key", c.prefix+key).Warn("cache marshal failed")
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", c.prefix+key).Warn("cache write failed")
	}
}

func (c *ViewCache[T]) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		c.logger.WithError(err).WithField("key", c.prefix+key).Warn("cache delete failed")
	}
}

// Noop is used when no Redis address is configured.
type Noop[T any] struct{}

func (Noop[T]) Get(context.Context, string) (T, bool) {
	var zero T
	return zero, false
}

func (Noop[T]) Set(context.Context, string, T) {}

func (Noop[T]) Delete(context.Context, string) {}
