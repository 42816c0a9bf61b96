package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLimiter_PerStoreBuckets(t *testing.T) {
	l := NewStoreLimiter(1, 1, 0)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "amazon"))
	require.NoError(t, l.Wait(ctx, "migros"))
	require.NoError(t, l.Wait(ctx, "trendyol"))
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	assert.Same(t, l.limiter("Amazon"), l.limiter("amazon"))
}

func TestStoreLimiter_RespectsContext(t *testing.T) {
	l := NewStoreLimiter(0.1, 1, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, l.Wait(ctx, "amazon"))
	assert.Error(t, l.Wait(ctx, "amazon"))
}

func TestStoreLimiter_Unlimited(t *testing.T) {
	l := NewStoreLimiter(0, 0, 0)
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(context.Background(), "amazon"))
	}
}

func TestNoop(t *testing.T) {
	assert.NoError(t, Noop{}.Wait(context.Background(), "x"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, Noop{}.Wait(ctx, "x"))
}
