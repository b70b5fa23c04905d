package host

import (
	"testing"

	"rgehrsitz/messagebot/internal/rules"

	"github.com/stretchr/testify/assert"
)

func TestSubscribers(t *testing.T) {
	var subs Subscribers
	var a, b []Event

	unsubA := subs.Subscribe(func(ev Event) { a = append(a, ev) })
	subs.Subscribe(func(ev Event) { b = append(b, ev) })
	assert.Equal(t, 2, subs.Len())

	join := Event{Kind: Join, Player: rules.Player{Name: "bob"}}
	subs.Publish(join)

	unsubA()
	unsubA()
	assert.Equal(t, 1, subs.Len())

	subs.Publish(Event{Kind: Leave, Player: rules.Player{Name: "bob"}})

	assert.Equal(t, []Event{join}, a)
	assert.Len(t, b, 2)
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "join", Join.String())
	assert.Equal(t, "leave", Leave.String())
	assert.Equal(t, "message", Message.String())
	assert.Equal(t, "unknown", EventKind(0).String())
}
