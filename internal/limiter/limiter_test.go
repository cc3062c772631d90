package limiter

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T, cfg Config) *Limiter {
	t.Helper()
	l, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(l.Close)
	return l
}

func TestDisabledAllowsEverything(t *testing.T) {
	l := newLimiter(t, Config{Enabled: false, RequestsPerSecond: 1, Burst: 1})
	assert.False(t, l.Enabled())
	for range 100 {
		require.NoError(t, l.Allow(context.Background(), "client"))
	}
}

func TestBurstThenLimited(t *testing.T) {
	l := newLimiter(t, Config{Enabled: true, RequestsPerSecond: 0.001, Burst: 3})
	ctx := context.Background()

	for i := range 3 {
		if err := l.Allow(ctx, "alice"); err != nil {
			t.Fatalf("request %d: Allow() error = %v", i, err)
		}
	}
	err := l.Allow(ctx, "alice")
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("Allow() error = %v, want ErrRateLimited", err)
	}

	// Other clients have their own bucket.
	assert.NoError(t, l.Allow(ctx, "bob"))
}

func TestEmptyClientIsNotLimited(t *testing.T) {
	l := newLimiter(t, Config{Enabled: true, RequestsPerSecond: 0.001, Burst: 1})
	for range 5 {
		assert.NoError(t, l.Allow(context.Background(), ""))
	}
}

func TestDefaults(t *testing.T) {
	l := newLimiter(t, Config{Enabled: true, RequestsPerSecond: 10})
	assert.Equal(t, 20, l.burst)
	assert.Equal(t, time.Minute, l.window)
	assert.Equal(t, "widget-gateway:rate:", l.prefix)
	assert.Equal(t, defaultIdleTTL, l.idleTTL)

	l = newLimiter(t, Config{Enabled: true})
	assert.Equal(t, 1, l.burst)
	assert.Equal(t, 0, l.windowLimit)
	// Zero rate means no local limit beyond the burst refill.
	for range 10 {
		assert.NoError(t, l.Allow(context.Background(), "c"))
	}
}

func TestWindowLimitMatchesLocalBudget(t *testing.T) {
	tests := []struct {
		name   string
		rps    float64
		burst  int
		window time.Duration
		want   int
	}{
		{"defaults", 10, 20, time.Minute, 620},
		{"fractional rate", 0.5, 1, 10 * time.Second, 6},
		{"rounds refill up", 0.1, 2, 15 * time.Second, 4},
		{"unlimited rate", 0, 5, time.Minute, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLimiter(t, Config{Enabled: true, RequestsPerSecond: tt.rps, Burst: tt.burst, Window: tt.window})
			assert.Equal(t, tt.want, l.windowLimit)
		})
	}
}

func TestIdleClientsExpire(t *testing.T) {
	l := newLimiter(t, Config{Enabled: true, RequestsPerSecond: 0.001, Burst: 1, IdleTTL: 100 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, l.Allow(ctx, "alice"))
	require.ErrorIs(t, l.Allow(ctx, "alice"), ErrRateLimited)

	time.Sleep(300 * time.Millisecond)

	// The idle bucket was dropped, so alice starts over with a fresh one.
	assert.NoError(t, l.Allow(ctx, "alice"))
}

func TestManyClientsStayBounded(t *testing.T) {
	l := newLimiter(t, Config{Enabled: true, RequestsPerSecond: 1, Burst: 1, MaxClients: 10})
	ctx := context.Background()

	for i := range 1000 {
		require.NoError(t, l.Allow(ctx, fmt.Sprintf("addr:10.0.%d.%d", i/256, i%256)))
	}
	l.buckets.Wait()

	kept := 0
	for i := range 1000 {
		if _, ok := l.buckets.Get(fmt.Sprintf("addr:10.0.%d.%d", i/256, i%256)); ok {
			kept++
		}
	}
	assert.LessOrEqual(t, kept, 10)
}

func TestRedisUnavailableReturnsError(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	l := newLimiter(t, Config{Enabled: true, RequestsPerSecond: 100, Burst: 10, Redis: rdb})
	err := l.Allow(context.Background(), "alice")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRateLimited))
}
