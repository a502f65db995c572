// SPDX-License-Identifier: GPL-3.0-only

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whoistel/lookup"
	"whoistel/models"
)

func newTestCache(t *testing.T) (*LookupCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewLookupCache(client, time.Minute), mr
}

func TestLookupCacheMissThenHit(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "v1:0612345678")
	require.NoError(t, err)
	assert.False(t, ok)

	want := lookup.Result{
		Number:       "0612345678",
		Found:        true,
		Kind:         lookup.NonGeographic,
		Prefix:       "0612",
		OperatorCode: "OP1",
		Operator:     &lookup.Operator{Code: "OP1", Name: "Operator One", Known: true},
	}
	require.NoError(t, c.Set(ctx, "v1:0612345678", want))
	assert.True(t, mr.Exists(keyPrefix+"v1:0612345678"))
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"v1:0612345678"))

	got, ok, err := c.Get(ctx, "v1:0612345678")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "v1:0612345678")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestServiceWithRedisCache(t *testing.T) {
	c, _ := newTestCache(t)
	tables := lookup.NewMemoryTables().
		AddNonGeographic("0612", "OP1").
		AddOperator(models.Operator{Code: "OP1", Name: "Operator One"})
	tables.Revision = "v1"
	svc := lookup.NewService(tables, lookup.WithCache(c))
	ctx := context.Background()

	first, err := svc.Lookup(ctx, "0612345678")
	require.NoError(t, err)
	probes := tables.Probes()

	second, err := svc.Lookup(ctx, "06 12 34 56 78")
	require.NoError(t, err)
	assert.Equal(t, probes, tables.Probes(), "second lookup must be served from Redis")
	assert.Equal(t, first, second)
}

func TestCacheFailureDoesNotFailLookup(t *testing.T) {
	c, mr := newTestCache(t)
	tables := lookup.NewMemoryTables().AddNonGeographic("0612", "OP1")
	tables.Revision = "v1"
	svc := lookup.NewService(tables, lookup.WithCache(c))
	mr.Close()

	result, err := svc.Lookup(context.Background(), "0612345678")
	require.NoError(t, err)
	assert.True(t, result.Found)
}

func TestOpenRedisFromEnvDisabled(t *testing.T) {
	t.Setenv("REDIS_HOST", "")
	assert.Nil(t, OpenRedisFromEnv())
}
