package dispatch

import (
	"context"
	"time"

	"rgehrsitz/messagebot/internal/host"
	"rgehrsitz/messagebot/internal/rulestore"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// AnnouncementScheduler broadcasts the announcement list in rotation. Engine owns the
// timer and calls Tick each time it fires.
type AnnouncementScheduler struct {
	deps   Deps
	roster host.Roster
	index  int
	logger zerolog.Logger
}

func NewAnnouncementScheduler(deps Deps, roster host.Roster) *AnnouncementScheduler {
	return &AnnouncementScheduler{
		deps:   deps,
		roster: roster,
		logger: log.With().Str("dispatcher", "announcement").Logger(),
	}
}

// Delay is the wait before the next tick. It is read from storage every cycle so a
// changed setting applies from the next tick on.
func (a *AnnouncementScheduler) Delay(ctx context.Context) time.Duration {
	d := a.deps.Rules.Settings(ctx).AnnouncementDelay
	if d <= 0 {
		a.logger.Warn().Dur("delay", d).Msg("Non-positive announcement delay, using default")
		return rulestore.DefaultAnnouncementDelayMinute * time.Minute
	}
	return d
}

// Tick sends the next announcement. Nothing is sent while the server is empty, and the
// rotation restarts from the first announcement once players return.
func (a *AnnouncementScheduler) Tick(ctx context.Context) (message string, sent bool) {
	announcements := a.deps.Rules.Announcements(ctx)
	if a.index >= len(announcements) {
		a.index = 0
	}

	online, err := a.roster.OnlinePlayers(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Listing online players failed, skipping announcement")
		online = nil
	}
	if len(online) == 0 {
		a.index = 0
		return "", false
	}
	if len(announcements) == 0 {
		return "", false
	}

	current := announcements[a.index]
	a.index++
	if current.Message == "" {
		return "", false
	}
	return current.Message, send(ctx, a.logger, a.deps.Sender, current.Message, "")
}

// Index is the position of the next announcement.
func (a *AnnouncementScheduler) Index() int {
	return a.index
}
