package dispatch

import (
	"context"

	"rgehrsitz/messagebot/internal/cooldown"
	"rgehrsitz/messagebot/internal/rules"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PresenceDispatcher greets players on join or says goodbye on leave. Join and leave
// share the rejoin cooldown, so a player bouncing in and out is only messaged once per
// window.
type PresenceDispatcher struct {
	deps   Deps
	load   func(context.Context) []rules.MessageRule
	logger zerolog.Logger
}

// NewJoinDispatcher dispatches the join rule list.
func NewJoinDispatcher(deps Deps) *PresenceDispatcher {
	return &PresenceDispatcher{
		deps:   deps,
		load:   deps.Rules.JoinRules,
		logger: log.With().Str("dispatcher", "join").Logger(),
	}
}

// NewLeaveDispatcher dispatches the leave rule list.
func NewLeaveDispatcher(deps Deps) *PresenceDispatcher {
	return &PresenceDispatcher{
		deps:   deps,
		load:   deps.Rules.LeaveRules,
		logger: log.With().Str("dispatcher", "leave").Logger(),
	}
}

// Handle sends every matching rule's message to player and returns how many were sent.
func (d *PresenceDispatcher) Handle(ctx context.Context, player rules.Player) int {
	settings := d.deps.Rules.Settings(ctx)
	if d.deps.Cooldowns.IsOnCooldown(player.Name, cooldown.Rejoin, settings.RejoinCooldown) {
		d.logger.Debug().Str("player", player.Name).Msg("On rejoin cooldown")
		return 0
	}
	d.deps.Cooldowns.Record(player.Name, cooldown.Rejoin)

	sent := 0
	for i, rule := range d.load(ctx) {
		if !evaluate(d.logger, i, func() bool { return rules.Matches(player, rule) }) {
			continue
		}
		if send(ctx, d.logger, d.deps.Sender, rule.Message, player.Name) {
			sent++
		}
	}
	return sent
}
