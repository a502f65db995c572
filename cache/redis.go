// SPDX-License-Identifier: GPL-3.0-only

// Package cache keeps lookup results in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"whoistel/commons"
	"whoistel/lookup"
)

const (
	keyPrefix  = "whoistel:lookup:"
	DefaultTTL = 24 * time.Hour
)

// OpenRedisFromEnv returns nil when REDIS_HOST is unset, so caching stays optional.
func OpenRedisFromEnv() *redis.Client {
	host := commons.GetEnv("REDIS_HOST")
	if host == "" {
		return nil
	}
	addr := host + ":" + commons.GetEnv("REDIS_PORT", "6379")
	db := commons.GetEnvInt("REDIS_DB", 0)
	if db < 0 {
		db = 0
	}
	commons.Logger.Debugf("Connecting to Redis at %s (db %d)", addr, db)
	return redis.NewClient(&redis.Options{Addr: addr, Password: commons.GetEnv("REDIS_PASS"), DB: db})
}

// LookupCache implements lookup.Cache on a Redis client.
type LookupCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLookupCache(client *redis.Client, ttl time.Duration) *LookupCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &LookupCache{client: client, ttl: ttl}
}

func (c *LookupCache) Get(ctx context.Context, key string) (lookup.Result, bool, error) {
	var result lookup.Result
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return result, false, nil
	}
	if err != nil {
		return result, false, err
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, false, fmt.Errorf("decode cached result %s: %w", key, err)
	}
	return result, true, nil
}

func (c *LookupCache) Set(ctx context.Context, key string, r lookup.Result) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+key, raw, c.ttl).Err()
}
