package listing

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCache_Expiry(t *testing.T) {
	clock := newFakeClock()
	c := NewCache(clock.Now)
	require.False(t, c.HasExpired())

	clock.Advance(TTL)
	require.False(t, c.HasExpired(), "expiry is strict")

	clock.Advance(time.Second)
	require.True(t, c.HasExpired())

	c.Reset()
	require.False(t, c.HasExpired())

	clock.Advance(TTL + time.Second)
	c.StampNow()
	require.False(t, c.HasExpired())
}

func TestCache_ResetStampsInitiation(t *testing.T) {
	clock := newFakeClock()
	c := NewCache(clock.Now)
	c.Reset()

	// A refresh that takes longer than the TTL looks expired before it is
	// stamped at completion.
	clock.Advance(TTL + time.Second)
	require.True(t, c.HasExpired())
}

func TestCache_SnapshotPreservesOrderAndAge(t *testing.T) {
	clock := newFakeClock()
	c := NewCache(clock.Now)
	c.Reset()
	for _, name := range []string{"#c", "#a", "#b"} {
		c.Append(NewEntry(name, "", 1))
	}
	c.StampNow()
	clock.Advance(90 * time.Second)

	snap := c.Snapshot()
	require.Len(t, snap.Entries, 3)
	require.Equal(t, "#c", snap.Entries[0].Name)
	require.Equal(t, "#a", snap.Entries[1].Name)
	require.Equal(t, "#b", snap.Entries[2].Name)
	require.Equal(t, 90*time.Second, snap.Age)

	// Later appends and resets do not leak into an earlier snapshot.
	c.Append(NewEntry("#d", "", 1))
	c.Reset()
	require.Len(t, snap.Entries, 3)
	require.Zero(t, c.Len())
}

func TestCache_Invalidate(t *testing.T) {
	c := NewCache(newFakeClock().Now)
	c.Append(NewEntry("#a", "", 1))
	c.Invalidate()
	require.Zero(t, c.Len())
	require.True(t, c.HasExpired())
}
