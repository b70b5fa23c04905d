// Package host defines the contracts between the dispatch engine and the bot runtime
// that connects it to a game or chat server.
package host

import (
	"context"
	"sync"

	"rgehrsitz/messagebot/internal/rules"
)

// EventKind identifies what happened in the world.
type EventKind int

const (
	Join EventKind = iota + 1
	Leave
	Message
)

func (k EventKind) String() string {
	switch k {
	case Join:
		return "join"
	case Leave:
		return "leave"
	case Message:
		return "message"
	default:
		return "unknown"
	}
}

// ServerName is the player name the host uses for its own system messages.
const ServerName = "SERVER"

// Event is delivered to subscribers for every join, leave and chat line.
type Event struct {
	Kind   EventKind
	Player rules.Player
	// Text is the chat line for Message events.
	Text string
}

// SendOptions addresses an outbound message. An empty Target broadcasts.
type SendOptions struct {
	Target string
}

// Sender delivers messages to players.
type Sender interface {
	Send(ctx context.Context, message string, opts SendOptions) error
}

// Roster lists the players currently online.
type Roster interface {
	OnlinePlayers(ctx context.Context) ([]rules.Player, error)
}

// World is the event source. Subscribe registers fn for every future event until the
// returned function is called.
type World interface {
	Roster
	Subscribe(fn func(Event)) (unsubscribe func())
}

// Subscribers is a set of event callbacks. Adapters embed it to implement
// World.Subscribe.
type Subscribers struct {
	mu   sync.RWMutex
	next int
	fns  map[int]func(Event)
}

// Subscribe adds fn and returns a function removing it. Calling the returned function
// more than once is harmless.
func (s *Subscribers) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(Event))
	}
	id := s.next
	s.next++
	s.fns[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.fns, id)
		s.mu.Unlock()
	}
}

// Publish calls every subscriber with ev.
func (s *Subscribers) Publish(ev Event) {
	s.mu.RLock()
	fns := make([]func(Event), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// Len returns the number of active subscribers.
func (s *Subscribers) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.fns)
}
