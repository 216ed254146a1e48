package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/DiabetView/internal/projection"
)

func setupTestRedis(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *Redis) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(Config{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedis(client, ttl)
}

func sampleResult() projection.SimulationResult {
	return projection.SimulationResult{
		Current:        projection.HealthMetrics{CVDRisk10Year: 46, LifeExpectancy: 60, KidneyHealth: 69.4, VisionHealth: 61, HeartHealth: 63.28, NerveHealth: 68.8, VascularHealth: 65, Explanation: "now"},
		Counterfactual: projection.HealthMetrics{CVDRisk10Year: 18, LifeExpectancy: 78, KidneyHealth: 88, VisionHealth: 70, HeartHealth: 85.6, NerveHealth: 76, VascularHealth: 75, Explanation: "later"},
	}
}

func TestRedis_Miss(t *testing.T) {
	_, r := setupTestRedis(t, time.Minute)

	_, ok, err := r.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_RoundTripWithTTL(t *testing.T) {
	mr, r := setupTestRedis(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "abc", sampleResult()))
	assert.True(t, mr.Exists(keyPrefix+"abc"))
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"abc"))

	got, ok, err := r.Get(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleResult(), got)

	mr.FastForward(2 * time.Minute)
	_, ok, err = r.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_CorruptEntry(t *testing.T) {
	mr, r := setupTestRedis(t, time.Minute)
	require.NoError(t, mr.Set(keyPrefix+"bad", "{not json"))

	_, ok, err := r.Get(context.Background(), "bad")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRedis_PingAndUnavailable(t *testing.T) {
	mr, r := setupTestRedis(t, time.Minute)
	require.NoError(t, r.Ping(context.Background()))

	mr.Close()
	assert.Error(t, r.Ping(context.Background()))
	_, _, err := r.Get(context.Background(), "abc")
	assert.Error(t, err)
}
