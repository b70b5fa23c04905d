package cooldown

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTracker() (*Tracker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewTrackerWithClock(clock.Now), clock
}

func TestIsOnCooldown_Expiry(t *testing.T) {
	tracker, clock := newTestTracker()

	assert.False(t, tracker.IsOnCooldown("bob", Trigger, 10*time.Second), "Expected no cooldown before any action")

	tracker.Record("bob", Trigger)
	assert.True(t, tracker.IsOnCooldown("bob", Trigger, 10*time.Second))

	clock.Advance(9 * time.Second)
	assert.True(t, tracker.IsOnCooldown("bob", Trigger, 10*time.Second))

	clock.Advance(1 * time.Second)
	assert.False(t, tracker.IsOnCooldown("bob", Trigger, 10*time.Second), "Expected cooldown to expire after 10s")
}

func TestIsOnCooldown_CategoriesAreIndependent(t *testing.T) {
	tracker, _ := newTestTracker()

	tracker.Record("bob", Rejoin)
	assert.True(t, tracker.IsOnCooldown("bob", Rejoin, 30*time.Second))
	assert.False(t, tracker.IsOnCooldown("bob", Trigger, 30*time.Second))
	assert.False(t, tracker.IsOnCooldown("alice", Rejoin, 30*time.Second))
}

func TestIsOnCooldown_UsesNewestEntry(t *testing.T) {
	tracker, clock := newTestTracker()

	tracker.Record("bob", Trigger)
	clock.Advance(8 * time.Second)
	tracker.Record("bob", Trigger)
	clock.Advance(5 * time.Second)

	assert.True(t, tracker.IsOnCooldown("bob", Trigger, 10*time.Second))
}

func TestRecord_BoundedHistory(t *testing.T) {
	tracker, _ := newTestTracker()

	for i := 0; i < 40; i++ {
		tracker.Record(fmt.Sprintf("player%d", i), Rejoin)
	}
	assert.Equal(t, Capacity, tracker.Len(Rejoin))

	// The 8 oldest players were evicted and are no longer on cooldown.
	for i := 0; i < 8; i++ {
		assert.False(t, tracker.IsOnCooldown(fmt.Sprintf("player%d", i), Rejoin, time.Hour), "player%d", i)
	}
	for i := 8; i < 40; i++ {
		assert.True(t, tracker.IsOnCooldown(fmt.Sprintf("player%d", i), Rejoin, time.Hour), "player%d", i)
	}
}

func TestRecord_NewestFirst(t *testing.T) {
	tracker, _ := newTestTracker()

	tracker.Record("a", Trigger)
	tracker.Record("b", Trigger)
	tracker.Record("c", Trigger)

	list := tracker.history[Trigger]
	assert.Equal(t, []string{"c", "b", "a"}, []string{list[0].name, list[1].name, list[2].name})
}
