// Package discord runs the engine against a Discord guild: member joins and leaves and
// guild chat become events, private messages go out as DMs and broadcasts go to an
// announcement channel.
package discord

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"rgehrsitz/messagebot/internal/host"
	"rgehrsitz/messagebot/internal/rules"
	"rgehrsitz/messagebot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// KeyJoins stores how many times each user has joined, keyed by user ID.
const KeyJoins = "discordJoins"

var ErrNoAnnounceChannel = errors.New("no announcement channel configured")

type Config struct {
	Token             string
	GuildID           string
	AnnounceChannelID string
	ModRoleID         string
	AdminRoleID       string
}

// Adapter implements host.World and host.Sender for one guild.
type Adapter struct {
	host.Subscribers

	s   *discordgo.Session
	cfg Config
	kv  storage.Store

	mu    sync.Mutex // guards join counts in kv and names
	names map[string]string

	logger zerolog.Logger
}

func New(cfg Config, kv storage.Store) (*Adapter, error) {
	auth := strings.TrimSpace(cfg.Token)
	if !strings.HasPrefix(strings.ToLower(auth), "bot ") {
		auth = "Bot " + auth
	}
	s, err := discordgo.New(auth)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildPresences |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	return &Adapter{
		s:      s,
		cfg:    cfg,
		kv:     kv,
		names:  make(map[string]string),
		logger: log.With().Str("component", "discord").Str("guild", cfg.GuildID).Logger(),
	}, nil
}

// Open registers the event handlers and connects to the gateway.
func (a *Adapter) Open() error {
	a.s.AddHandler(a.onMemberAdd)
	a.s.AddHandler(a.onMemberRemove)
	a.s.AddHandler(a.onMessageCreate)
	if err := a.s.Open(); err != nil {
		return fmt.Errorf("opening discord gateway: %w", err)
	}
	a.logger.Info().Str("user", a.s.State.User.Username).Msg("Connected to Discord")
	return nil
}

func (a *Adapter) Close() error {
	return a.s.Close()
}

func (a *Adapter) onMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.Member == nil || m.User == nil || m.GuildID != a.cfg.GuildID || m.User.Bot {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	joins := a.recordJoin(ctx, m.User.ID)
	a.Publish(host.Event{Kind: host.Join, Player: a.player(m.Member, joins)})
}

func (a *Adapter) onMemberRemove(s *discordgo.Session, m *discordgo.GuildMemberRemove) {
	if m.Member == nil || m.User == nil || m.GuildID != a.cfg.GuildID || m.User.Bot {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a.Publish(host.Event{Kind: host.Leave, Player: a.player(m.Member, a.joinCount(ctx, m.User.ID))})
}

func (a *Adapter) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Message == nil || m.Author == nil || m.GuildID != a.cfg.GuildID || m.Author.Bot {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	member := m.Member
	if member == nil {
		member = &discordgo.Member{}
	}
	member.User = m.Author
	a.Publish(host.Event{
		Kind:   host.Message,
		Player: a.player(member, a.joinCount(ctx, m.Author.ID)),
		Text:   m.Content,
	})
}

func (a *Adapter) player(m *discordgo.Member, joins int) rules.Player {
	a.mu.Lock()
	a.names[m.User.Username] = m.User.ID
	a.mu.Unlock()

	g, err := a.s.State.Guild(a.cfg.GuildID)
	if err != nil {
		a.logger.Debug().Err(err).Msg("Guild not cached, role flags limited to configured roles")
		g = nil
	}
	p := Player(a.cfg, g, m)
	p.Joins = joins
	return p
}

// Player resolves the role flags of m. Admin is the admin role, the Administrator
// permission or guild ownership; mod is the mod role for non-admins; staff is either.
func Player(cfg Config, g *discordgo.Guild, m *discordgo.Member) rules.Player {
	p := rules.Player{Name: m.User.Username}

	var perms int64
	has := make(map[string]bool, len(m.Roles))
	for _, rid := range m.Roles {
		has[rid] = true
	}
	if g != nil {
		for _, ro := range g.Roles {
			if has[ro.ID] {
				perms |= ro.Permissions
			}
		}
		p.IsOwner = g.OwnerID != "" && g.OwnerID == m.User.ID
	}

	p.IsAdmin = p.IsOwner ||
		perms&discordgo.PermissionAdministrator != 0 ||
		(cfg.AdminRoleID != "" && has[cfg.AdminRoleID])
	p.IsMod = !p.IsAdmin && cfg.ModRoleID != "" && has[cfg.ModRoleID]
	p.IsStaff = p.IsAdmin || p.IsMod
	return p
}

// recordJoin bumps the stored join count of userID and returns it. When the counts
// cannot be read nothing is written, since saving would replace every other count.
func (a *Adapter) recordJoin(ctx context.Context, userID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	counts, err := storage.GetJSON(ctx, a.kv, KeyJoins, map[string]int{})
	if err != nil {
		a.logger.Warn().Err(err).Str("user", userID).Msg("Reading join counts failed, not recording join")
		return 0
	}
	if counts == nil {
		counts = map[string]int{}
	}
	counts[userID]++
	if err := storage.SetJSON(ctx, a.kv, KeyJoins, counts); err != nil {
		a.logger.Warn().Err(err).Msg("Saving join counts failed")
	}
	return counts[userID]
}

func (a *Adapter) joinCount(ctx context.Context, userID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	counts, err := storage.GetJSON(ctx, a.kv, KeyJoins, map[string]int{})
	if err != nil {
		a.logger.Warn().Err(err).Msg("Reading join counts failed")
	}
	return counts[userID]
}

// OnlinePlayers lists guild members whose cached presence is not offline. Only the
// role flags are resolved; Joins is left at zero to keep storage out of the
// announcement tick.
func (a *Adapter) OnlinePlayers(context.Context) ([]rules.Player, error) {
	g, err := a.s.State.Guild(a.cfg.GuildID)
	if err != nil {
		return nil, fmt.Errorf("guild %s not in state: %w", a.cfg.GuildID, err)
	}

	var players []rules.Player
	for _, pr := range g.Presences {
		if pr.User == nil || pr.Status == discordgo.StatusOffline {
			continue
		}
		m, err := a.s.State.Member(a.cfg.GuildID, pr.User.ID)
		if err != nil || m.User == nil || m.User.Bot {
			continue
		}
		players = append(players, a.player(m, 0))
	}
	sort.Slice(players, func(i, j int) bool { return players[i].Name < players[j].Name })
	return players, nil
}

// Send delivers message as a DM to the named player, or to the announcement channel
// when the target is empty.
func (a *Adapter) Send(ctx context.Context, message string, opts host.SendOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if opts.Target == "" {
		if a.cfg.AnnounceChannelID == "" {
			return ErrNoAnnounceChannel
		}
		if _, err := a.s.ChannelMessageSend(a.cfg.AnnounceChannelID, message); err != nil {
			return fmt.Errorf("sending announcement: %w", err)
		}
		return nil
	}

	a.mu.Lock()
	userID, ok := a.names[opts.Target]
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown player %q", opts.Target)
	}
	ch, err := a.s.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("opening DM with %s: %w", opts.Target, err)
	}
	if _, err := a.s.ChannelMessageSend(ch.ID, message); err != nil {
		return fmt.Errorf("sending DM to %s: %w", opts.Target, err)
	}
	return nil
}
