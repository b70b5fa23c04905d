package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"rgehrsitz/messagebot/internal/cooldown"
	"rgehrsitz/messagebot/internal/host"
	"rgehrsitz/messagebot/internal/rules"
	"rgehrsitz/messagebot/internal/rulestore"
	"rgehrsitz/messagebot/internal/storage"
)

type sentMessage struct {
	Message string
	Target  string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	fail bool
}

func (s *fakeSender) Send(_ context.Context, message string, opts host.SendOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("host unavailable")
	}
	s.sent = append(s.sent, sentMessage{Message: message, Target: opts.Target})
	return nil
}

func (s *fakeSender) Sent() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

type fakeWorld struct {
	host.Subscribers

	mu     sync.Mutex
	online []rules.Player
}

func (w *fakeWorld) OnlinePlayers(context.Context) ([]rules.Player, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]rules.Player(nil), w.online...), nil
}

func (w *fakeWorld) SetOnline(players ...rules.Player) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.online = players
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
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

type fixture struct {
	kv     *storage.MemoryStore
	store  *rulestore.Store
	sender *fakeSender
	clock  *fakeClock
	deps   Deps
}

func newFixture() *fixture {
	kv := storage.NewMemoryStore()
	f := &fixture{
		kv:     kv,
		store:  rulestore.New(kv),
		sender: &fakeSender{},
		clock:  newFakeClock(),
	}
	f.deps = Deps{
		Rules:     f.store,
		Cooldowns: cooldown.NewTrackerWithClock(f.clock.Now),
		Sender:    f.sender,
	}
	return f
}

func (f *fixture) set(key, value string) {
	if err := f.kv.Set(context.Background(), key, []byte(value)); err != nil {
		panic(err)
	}
}
