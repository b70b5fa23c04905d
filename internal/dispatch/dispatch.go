// Package dispatch turns world events into outbound messages.
//
// The dispatchers in this package are not safe for concurrent use. Engine runs all of
// them on a single goroutine, which is what lets the cooldown history and the
// announcement rotation live without locks.
package dispatch

import (
	"context"

	"rgehrsitz/messagebot/internal/cooldown"
	"rgehrsitz/messagebot/internal/host"
	"rgehrsitz/messagebot/internal/rulestore"

	"github.com/rs/zerolog"
)

// Deps are the collaborators shared by every dispatcher of one engine.
type Deps struct {
	Rules     *rulestore.Store
	Cooldowns *cooldown.Tracker
	Sender    host.Sender
}

// evaluate runs check for one rule. A panic is logged and counts as no match so the
// remaining rules of the pass are still evaluated.
func evaluate(logger zerolog.Logger, index int, check func() bool) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Int("rule", index).Msg("Rule evaluation panicked, skipping rule")
			matched = false
		}
	}()
	return check()
}

// send delivers message and logs failures. It reports whether the host accepted it.
func send(ctx context.Context, logger zerolog.Logger, sender host.Sender, message, target string) bool {
	if err := sender.Send(ctx, message, host.SendOptions{Target: target}); err != nil {
		logger.Warn().Err(err).Str("target", target).Msg("Send failed")
		return false
	}
	logger.Debug().Str("target", target).Str("message", message).Msg("Sent")
	return true
}
