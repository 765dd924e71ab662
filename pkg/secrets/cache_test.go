package secrets

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newClockedCache(ttl time.Duration) (*Cache[string], *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewCache[string](ttl)
	c.now = clock.Now
	return c, clock
}

func TestCache_PutAndGet(t *testing.T) {
	c, _ := newClockedCache(time.Minute)

	_, ok := c.Get("forwarder")
	assert.False(t, ok, "expected miss on empty cache")

	c.Put("forwarder", "tok-1")
	v, ok := c.Get("forwarder")
	require.True(t, ok)
	assert.Equal(t, "tok-1", v)
}

func TestCache_Expiration(t *testing.T) {
	c, clock := newClockedCache(time.Minute)
	c.Put("forwarder", "tok-1")

	clock.Advance(59 * time.Second)
	_, ok := c.Get("forwarder")
	assert.True(t, ok)

	clock.Advance(2 * time.Second)
	_, ok = c.Get("forwarder")
	assert.False(t, ok, "expected expired entry")
}

func TestCache_ZeroTTLNeverExpires(t *testing.T) {
	c, clock := newClockedCache(0)
	c.Put("forwarder", "tok-1")

	clock.Advance(24 * time.Hour)
	_, ok := c.Get("forwarder")
	assert.True(t, ok)
}

func TestCache_Bust(t *testing.T) {
	c, _ := newClockedCache(time.Minute)
	c.Put("a", "1")
	c.Put("b", "2")

	c.Bust("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
}

func TestCache_GetOrLoad(t *testing.T) {
	c, _ := newClockedCache(time.Minute)
	calls := 0
	load := func(context.Context) (string, error) {
		calls++
		return "loaded", nil
	}

	v, hit, err := c.GetOrLoad(context.Background(), "k", load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "loaded", v)

	v, hit, err = c.GetOrLoad(context.Background(), "k", load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "loaded", v)
	assert.Equal(t, 1, calls)
}

func TestCache_GetOrLoadErrorNotCached(t *testing.T) {
	c, _ := newClockedCache(time.Minute)
	boom := errors.New("vault down")

	_, _, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCache_BustDuringLoadDiscardsResult(t *testing.T) {
	c, _ := newClockedCache(time.Minute)
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan string)
	go func() {
		v, _, _ := c.GetOrLoad(context.Background(), "k", func(context.Context) (string, error) {
			close(started)
			<-release
			return "old", nil
		})
		done <- v
	}()

	<-started
	c.Bust("k")
	close(release)
	assert.Equal(t, "old", <-done, "the caller still gets what it loaded")

	_, ok := c.Get("k")
	assert.False(t, ok, "a load that raced a bust must not be cached")

	v, hit, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (string, error) {
		return "new", nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "new", v)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := NewCache[string](time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Put("k", "v")
			_, _ = c.Get("k")
			_, _, _ = c.GetOrLoad(context.Background(), "k", func(context.Context) (string, error) { return "v", nil })
			c.Bust("k")
		}()
	}
	wg.Wait()
}
