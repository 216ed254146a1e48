// Package cache keeps successful AI projections in Redis so identical inputs
// do not reach the model twice within the TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Skufu/DiabetView/internal/projection"
)

const keyPrefix = "diabetview:projection:"

type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Get reports a miss as (zero, false, nil).
func (r *Redis) Get(ctx context.Context, key string) (projection.SimulationResult, bool, error) {
	raw, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return projection.SimulationResult{}, false, nil
	}
	if err != nil {
		return projection.SimulationResult{}, false, fmt.Errorf("get cached projection: %w", err)
	}

	var result projection.SimulationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return projection.SimulationResult{}, false, fmt.Errorf("decode cached projection: %w", err)
	}
	return result, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, result projection.SimulationResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode projection: %w", err)
	}
	if err := r.client.Set(ctx, keyPrefix+key, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("set cached projection: %w", err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
