package rate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clocked(cfg Config) (*Limiter, *time.Time) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	lim := New(cfg)
	lim.last = now
	lim.now = func() time.Time { return now }
	return lim, &now
}

func TestLimiter_AllowUpToBurst(t *testing.T) {
	lim, _ := clocked(Config{RequestsPerSecond: 10, Burst: 5})

	allowed := 0
	for i := 0; i < 10; i++ {
		if lim.Allow() {
			allowed++
		}
	}
	assert.Equal(t, 5, allowed)
}

func TestLimiter_Refill(t *testing.T) {
	lim, now := clocked(Config{RequestsPerSecond: 10, Burst: 2})
	for lim.Allow() {
	}

	*now = now.Add(100 * time.Millisecond)
	assert.True(t, lim.Allow(), "one token refills after 100ms at 10 rps")
	assert.False(t, lim.Allow())
}

func TestLimiter_BurstCap(t *testing.T) {
	lim, now := clocked(Config{RequestsPerSecond: 100, Burst: 3})
	*now = now.Add(time.Hour)

	allowed := 0
	for lim.Allow() {
		allowed++
	}
	assert.Equal(t, 3, allowed)
}

func TestLimiter_ReserveReportsDelay(t *testing.T) {
	lim, _ := clocked(Config{RequestsPerSecond: 4, Burst: 1})
	require.True(t, lim.Allow())

	delay, ok := lim.reserve()
	assert.False(t, ok)
	assert.Equal(t, 250*time.Millisecond, delay)
}

func TestLimiter_DisabledWhenRateZero(t *testing.T) {
	lim := New(Config{})
	for i := 0; i < 1000; i++ {
		require.True(t, lim.Allow())
	}
}

func TestLimiter_WaitHonorsContext(t *testing.T) {
	lim := New(Config{RequestsPerSecond: 0.001, Burst: 1})
	require.True(t, lim.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, lim.Wait(ctx), context.DeadlineExceeded)
}

func TestLimiter_WaitReturnsAfterRefill(t *testing.T) {
	lim := New(Config{RequestsPerSecond: 200, Burst: 1})
	require.True(t, lim.Allow())

	start := time.Now()
	require.NoError(t, lim.Wait(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestManager_PerKeyIsolation(t *testing.T) {
	m := NewManager(Config{RequestsPerSecond: 1, Burst: 1})

	assert.True(t, m.GetLimiter("ingest-a").Allow())
	assert.False(t, m.GetLimiter("ingest-a").Allow())
	assert.True(t, m.GetLimiter("ingest-b").Allow(), "other key has its own bucket")
	assert.Same(t, m.GetLimiter("ingest-a"), m.GetLimiter("ingest-a"))
}

func TestManager_Override(t *testing.T) {
	m := NewManager(Config{RequestsPerSecond: 1, Burst: 1})
	before := m.GetLimiter("splunkd")

	m.Override("splunkd", Config{RequestsPerSecond: 1, Burst: 3})
	after := m.GetLimiter("splunkd")

	assert.NotSame(t, before, after)
	allowed := 0
	for after.Allow() {
		allowed++
	}
	assert.Equal(t, 3, allowed)
}

func TestManager_ConcurrentGetLimiter(t *testing.T) {
	m := NewManager(Config{RequestsPerSecond: 10, Burst: 10})
	var wg sync.WaitGroup
	got := make([]*Limiter, 32)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = m.GetLimiter("k")
		}(i)
	}
	wg.Wait()
	for _, lim := range got {
		assert.Same(t, got[0], lim)
	}
}
