package dispatch

import (
	"context"
	"testing"
	"time"

	"rgehrsitz/messagebot/internal/host"
	"rgehrsitz/messagebot/internal/rules"
	"rgehrsitz/messagebot/internal/rulestore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startEngine(t *testing.T, f *fixture, world *fakeWorld) (*Engine, func()) {
	t.Helper()
	e := New(world, f.sender, f.store, WithActivationDelay(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	require.Eventually(t, func() bool { return world.Len() == 1 }, time.Second, 5*time.Millisecond, "Expected engine to subscribe")

	stop := func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("Engine did not stop")
		}
	}
	return e, stop
}

func TestEngine_ActivationDropsEarlyEvents(t *testing.T) {
	f := newFixture()
	f.set(rulestore.KeyJoin, `[{"message":"welcome","joins_low":0,"joins_high":9999,"group":"all","not_group":"nobody"}]`)
	world := &fakeWorld{}
	e, stop := startEngine(t, f, world)
	defer stop()

	assert.False(t, e.Armed())
	world.Publish(host.Event{Kind: host.Join, Player: rules.Player{Name: "early"}})
	require.Eventually(t, e.Armed, time.Second, 5*time.Millisecond, "Expected engine to arm after the first event")
	assert.Empty(t, f.sender.Sent(), "Expected the arming event to be dropped")

	world.Publish(host.Event{Kind: host.Join, Player: rules.Player{Name: "bob"}})
	require.Eventually(t, func() bool { return len(f.sender.Sent()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, sentMessage{"welcome", "bob"}, f.sender.Sent()[0])
}

func TestEngine_DispatchesTriggers(t *testing.T) {
	f := newFixture()
	f.set(rulestore.KeyTrigger, twoHiRules)
	f.set(rulestore.KeyMaxResponses, `1`)
	world := &fakeWorld{}
	e, stop := startEngine(t, f, world)
	defer stop()

	world.Publish(host.Event{Kind: host.Message, Player: rules.Player{Name: "bob"}, Text: "boot"})
	require.Eventually(t, e.Armed, time.Second, 5*time.Millisecond)

	world.Publish(host.Event{Kind: host.Message, Player: rules.Player{Name: "bob"}, Text: "hi there"})
	require.Eventually(t, func() bool { return len(f.sender.Sent()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "hey", f.sender.Sent()[0].Message)
}

func TestEngine_Announcements(t *testing.T) {
	f := newFixture()
	f.set(rulestore.KeyAnnouncement, `[{"message":"A"},{"message":"B"}]`)
	f.set(rulestore.KeyAnnouncementDelay, `0.0005`)
	world := &fakeWorld{}
	world.SetOnline(rules.Player{Name: "bob"})
	e, stop := startEngine(t, f, world)
	defer stop()

	world.Publish(host.Event{Kind: host.Join, Player: rules.Player{Name: "bob"}})
	require.Eventually(t, e.Armed, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(f.sender.Sent()) >= 2 }, 2*time.Second, 5*time.Millisecond)

	sent := f.sender.Sent()
	assert.Equal(t, sentMessage{"A", ""}, sent[0])
	assert.Equal(t, sentMessage{"B", ""}, sent[1])
}

func TestEngine_StopUnsubscribes(t *testing.T) {
	f := newFixture()
	world := &fakeWorld{}
	_, stop := startEngine(t, f, world)

	stop()
	assert.Equal(t, 0, world.Len(), "Expected engine to remove its listener")
}

func TestEngine_DispatchBypassesActivation(t *testing.T) {
	f := newFixture()
	f.set(rulestore.KeyLeave, `[{"message":"bye","joins_low":0,"joins_high":9999,"group":"all","not_group":"nobody"}]`)
	e := New(&fakeWorld{}, f.sender, f.store)

	e.Dispatch(context.Background(), host.Event{Kind: host.Leave, Player: rules.Player{Name: "bob"}})
	assert.Equal(t, []sentMessage{{"bye", "bob"}}, f.sender.Sent())
}
