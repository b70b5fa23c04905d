package dispatch

import (
	"context"
	"sync/atomic"
	"time"

	"rgehrsitz/messagebot/internal/cooldown"
	"rgehrsitz/messagebot/internal/host"
	"rgehrsitz/messagebot/internal/rulestore"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultActivationDelay is how long the engine waits after the first world event
// before it starts dispatching. Events seen during the delay are not answered.
const DefaultActivationDelay = 500 * time.Millisecond

type phase int32

const (
	dormant phase = iota // waiting for the first event
	arming               // activation timer running
	armed                // dispatching
)

// Engine wires the dispatchers of one bot instance to a world. Cooldown history and the
// announcement rotation belong to the engine and are lost when it stops.
type Engine struct {
	world     host.World
	deps      Deps
	join      *PresenceDispatcher
	leave     *PresenceDispatcher
	trigger   *TriggerDispatcher
	announcer *AnnouncementScheduler

	activationDelay time.Duration
	now             func() time.Time
	events          chan host.Event
	phase           atomic.Int32
	logger          zerolog.Logger
}

type Option func(*Engine)

// WithActivationDelay overrides DefaultActivationDelay.
func WithActivationDelay(d time.Duration) Option {
	return func(e *Engine) { e.activationDelay = d }
}

// WithClock sets the clock used for cooldowns.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine that reads rules from store and answers through sender.
func New(world host.World, sender host.Sender, store *rulestore.Store, opts ...Option) *Engine {
	e := &Engine{
		world:           world,
		activationDelay: DefaultActivationDelay,
		now:             time.Now,
		events:          make(chan host.Event, 64),
		logger:          log.With().Str("component", "engine").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.deps = Deps{
		Rules:     store,
		Cooldowns: cooldown.NewTrackerWithClock(e.now),
		Sender:    sender,
	}
	e.join = NewJoinDispatcher(e.deps)
	e.leave = NewLeaveDispatcher(e.deps)
	e.trigger = NewTriggerDispatcher(e.deps)
	e.announcer = NewAnnouncementScheduler(e.deps, world)
	return e
}

// Armed reports whether the engine has finished its startup delay.
func (e *Engine) Armed() bool {
	return phase(e.phase.Load()) == armed
}

// Run subscribes to the world and dispatches until ctx is done. Events that arrive
// before the engine is armed are dropped. Run unsubscribes and stops its timers before
// returning.
func (e *Engine) Run(ctx context.Context) error {
	unsubscribe := e.world.Subscribe(func(ev host.Event) {
		select {
		case e.events <- ev:
		case <-ctx.Done():
		}
	})
	defer unsubscribe()

	var activateTimer, announceTimer *time.Timer
	var activate, announce <-chan time.Time
	defer func() {
		if activateTimer != nil {
			activateTimer.Stop()
		}
		if announceTimer != nil {
			announceTimer.Stop()
		}
	}()

	e.logger.Info().Dur("activation_delay", e.activationDelay).Msg("Engine waiting for first event")
	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("Engine stopped")
			return nil

		case ev := <-e.events:
			switch phase(e.phase.Load()) {
			case dormant:
				e.phase.Store(int32(arming))
				activateTimer = time.NewTimer(e.activationDelay)
				activate = activateTimer.C
				e.logger.Debug().Stringer("event", ev.Kind).Msg("First event seen, arming")
			case arming:
				e.logger.Debug().Stringer("event", ev.Kind).Msg("Dropping event while arming")
			case armed:
				e.Dispatch(ctx, ev)
			}

		case <-activate:
			activate = nil
			e.phase.Store(int32(armed))
			announceTimer = time.NewTimer(e.announcer.Delay(ctx))
			announce = announceTimer.C
			e.logger.Info().Msg("Engine armed")

		case <-announce:
			if message, ok := e.announcer.Tick(ctx); ok {
				e.logger.Info().Str("message", message).Msg("Announcement sent")
			}
			announceTimer.Reset(e.announcer.Delay(ctx))
		}
	}
}

// Dispatch handles one event immediately, regardless of the startup phase. It must not
// be called while Run is active.
func (e *Engine) Dispatch(ctx context.Context, ev host.Event) {
	switch ev.Kind {
	case host.Join:
		e.join.Handle(ctx, ev.Player)
	case host.Leave:
		e.leave.Handle(ctx, ev.Player)
	case host.Message:
		e.trigger.Handle(ctx, ev.Player, ev.Text)
	default:
		e.logger.Warn().Int("kind", int(ev.Kind)).Msg("Ignoring unknown event")
	}
}
