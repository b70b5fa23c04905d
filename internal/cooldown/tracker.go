// Package cooldown keeps a short, bounded history of recent player actions.
package cooldown

import "time"

// Category separates independent cooldown histories.
type Category string

const (
	Rejoin  Category = "rejoin"
	Trigger Category = "trigger"
)

// Capacity is the number of entries kept per category. Older entries are dropped even if
// their cooldown has not expired yet.
const Capacity = 32

type entry struct {
	name string
	at   time.Time
}

// Tracker records per-player actions, newest first. It is not safe for concurrent use;
// the engine calls it from a single goroutine.
type Tracker struct {
	now     func() time.Time
	history map[Category][]entry
}

// NewTracker creates a Tracker using the wall clock.
func NewTracker() *Tracker {
	return NewTrackerWithClock(time.Now)
}

// NewTrackerWithClock creates a Tracker reading time from now.
func NewTrackerWithClock(now func() time.Time) *Tracker {
	return &Tracker{
		now:     now,
		history: make(map[Category][]entry, 2),
	}
}

// IsOnCooldown reports whether the player's most recent action in category happened
// less than cooldown ago.
func (t *Tracker) IsOnCooldown(name string, category Category, cooldown time.Duration) bool {
	for _, e := range t.history[category] {
		if e.name == name {
			return e.at.Add(cooldown).After(t.now())
		}
	}
	return false
}

// Record stores an action for the player at the current time.
func (t *Tracker) Record(name string, category Category) {
	list := t.history[category]
	if len(list) < Capacity {
		list = append(list, entry{})
	}
	copy(list[1:], list)
	list[0] = entry{name: name, at: t.now()}
	t.history[category] = list
}

// Len returns the number of entries held for category.
func (t *Tracker) Len(category Category) int {
	return len(t.history[category])
}
