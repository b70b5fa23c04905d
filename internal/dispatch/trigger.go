package dispatch

import (
	"context"

	"rgehrsitz/messagebot/internal/cooldown"
	"rgehrsitz/messagebot/internal/host"
	"rgehrsitz/messagebot/internal/rules"
	"rgehrsitz/messagebot/internal/trigger"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TriggerDispatcher answers chat lines that match trigger rules.
type TriggerDispatcher struct {
	deps   Deps
	logger zerolog.Logger
}

func NewTriggerDispatcher(deps Deps) *TriggerDispatcher {
	return &TriggerDispatcher{
		deps:   deps,
		logger: log.With().Str("dispatcher", "trigger").Logger(),
	}
}

// Handle answers text from player. At most maxResponses rules respond to one line;
// further matches are counted but dropped and do not refresh the cooldown.
func (d *TriggerDispatcher) Handle(ctx context.Context, player rules.Player, text string) int {
	if player.Name == host.ServerName {
		return 0
	}
	settings := d.deps.Rules.Settings(ctx)
	if d.deps.Cooldowns.IsOnCooldown(player.Name, cooldown.Trigger, settings.TriggerCooldown) {
		d.logger.Debug().Str("player", player.Name).Msg("On trigger cooldown")
		return 0
	}

	opts := settings.TriggerOptions()
	responses, sent := 0, 0
	for i, rule := range d.deps.Rules.TriggerRules(ctx) {
		matched := evaluate(d.logger, i, func() bool {
			return rules.Matches(player, rule.MessageRule) && trigger.Matches(rule.Trigger, text, opts)
		})
		if !matched {
			continue
		}
		responses++
		if responses > settings.MaxResponses {
			continue
		}
		d.deps.Cooldowns.Record(player.Name, cooldown.Trigger)
		if send(ctx, d.logger, d.deps.Sender, rule.Message, player.Name) {
			sent++
		}
	}
	if responses > settings.MaxResponses {
		d.logger.Debug().
			Str("player", player.Name).
			Int("matched", responses).
			Int("max", settings.MaxResponses).
			Msg("Response cap reached")
	}
	return sent
}
