package oauthkit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newStubFlow() Flow {
	return (&stubClient{name: Name("stub")}).NewFlow()
}

func TestPendingStore_AddRemove(t *testing.T) {
	clock := &fakeClock{t: now}
	s := NewPendingStore(WithClock(clock.Now))
	assert.Equal(t, DefaultPendingTTL, s.TTL())

	flow := newStubFlow()
	p, err := s.Add("k1", flow, "caller")
	require.NoError(t, err)
	assert.NotEmpty(t, p.AttemptID)
	assert.NotEqual(t, "k1", p.AttemptID)
	assert.Equal(t, now, p.CreatedAt)
	assert.Equal(t, Name("stub"), p.Client().Name())

	_, err = s.Add("k1", flow, nil)
	assert.ErrorIs(t, err, ErrAuthorization, "duplicate key")
	_, err = s.Add("", flow, nil)
	assert.ErrorIs(t, err, ErrAuthorization, "empty key")

	got, err := s.Remove("k1")
	require.NoError(t, err)
	assert.Same(t, p, got)
	assert.Equal(t, "caller", got.CallerState)

	_, err = s.Remove("k1")
	assert.ErrorIs(t, err, ErrUnknownOrExpiredRequest, "entries are consumed")
}

func TestPendingStore_Expiry(t *testing.T) {
	clock := &fakeClock{t: now}
	s := NewPendingStore(WithClock(clock.Now))

	_, err := s.Add("old", newStubFlow(), nil)
	require.NoError(t, err)

	clock.Advance(20 * time.Minute)
	_, err = s.Add("fresh", newStubFlow(), nil)
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = s.Remove("old")
	assert.ErrorIs(t, err, ErrUnknownOrExpiredRequest, "older than 20 minutes")

	_, err = s.Remove("fresh")
	assert.NoError(t, err)
}

func TestPendingStore_Sweep(t *testing.T) {
	clock := &fakeClock{t: now}
	s := NewPendingStore(WithClock(clock.Now), WithTTL(time.Minute))

	for _, k := range []string{"a", "b", "c"} {
		_, err := s.Add(k, newStubFlow(), nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, s.Sweep())
	clock.Advance(2 * time.Minute)
	assert.Equal(t, 3, s.Len())

	_, err := s.Add("d", newStubFlow(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len(), "insert evicts expired entries")

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 0, s.Len())
}

func TestPendingStore_Start(t *testing.T) {
	clock := &fakeClock{t: now}
	s := NewPendingStore(WithClock(clock.Now), WithTTL(time.Minute), WithSweepInterval(5*time.Millisecond))
	_, err := s.Add("a", newStubFlow(), nil)
	require.NoError(t, err)

	s.Start(t.Context())
	defer s.Stop()
	clock.Advance(2 * time.Minute)

	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()
}

func TestPendingStore_Concurrent(t *testing.T) {
	s := NewPendingStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := NewState()
			_, err := s.Add(key, newStubFlow(), nil)
			assert.NoError(t, err)
			_, err = s.Remove(key)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, s.Len())
}
