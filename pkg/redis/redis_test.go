package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/clusterarb/pkg/config"
)

func TestNewClient_Disabled(t *testing.T) {
	client, err := New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	require.NoError(t, err)
	assert.False(t, client.Enabled())
	assert.ErrorIs(t, client.Ping(context.Background()), ErrDisabled)
	assert.NoError(t, client.Close())
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(Disabled(), "test")

	// When Redis is disabled, all requests should be allowed
	d, err := limiter.Allow(context.Background(), YahooRateLimit)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, YahooRateLimit.Limit, d.Remaining)
	assert.Zero(t, d.RetryAfter)
	assert.NoError(t, limiter.Wait(context.Background(), HKEXRateLimit))
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(Disabled(), "test")
	ctx := context.Background()

	// When Redis is disabled, cache operations should be no-ops
	require.NoError(t, cache.Set(ctx, "key", map[string]int{"a": 1}, TTLShort))

	var result map[string]int
	found, err := cache.Get(ctx, "key", &result)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, cache.Delete(ctx, "key"))
}

func TestCacheKeys(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"InstrumentsKey", InstrumentsKey("SSE"), "instruments:SSE"},
		{"BarsKey", BarsKey("600000.SH", "2024-01-01", "2024-06-30"), "bars:600000.SH:2024-01-01:2024-06-30"},
		{"AnalyticsKey", AnalyticsKey("backtest", "ab12", "2024-01-01", "2024-06-30"), "analytics:backtest:ab12:2024-01-01:2024-06-30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}

	cache := NewCache(Disabled(), "arb")
	assert.Equal(t, "arb:cache:instruments:SSE", cache.fullKey(InstrumentsKey("SSE")))
}
