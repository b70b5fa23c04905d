// internal/config/config.go

package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrMissing is wrapped by Validate for every required value that is empty.
var ErrMissing = errors.New("missing required setting")

const (
	HostWS      = "ws"
	HostDiscord = "discord"
)

type Config struct {
	StorageDriver string
	StorageDSN    string
	Namespace     string

	Host string

	WSURL   string
	WSToken string

	DiscordToken           string
	DiscordGuild           string
	DiscordAnnounceChannel string
	DiscordModRole         string
	DiscordAdminRole       string

	ActivationDelay time.Duration

	LogLevel  string
	LogFormat string
}

// LoadDotEnv reads .env files into the environment. A missing file is not an error.
func LoadDotEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("Could not load .env")
	}
}

// Register binds every setting to fs. Environment variables provide the defaults so
// flags win over the environment.
func Register(fs *flag.FlagSet, cfg *Config) {
	RegisterStorage(fs, cfg)
	fs.StringVar(&cfg.Host, "host", envOrDefault("MESSAGEBOT_HOST", HostWS), "Host adapter: ws or discord")
	fs.StringVar(&cfg.WSURL, "ws-url", envOrDefault("MESSAGEBOT_WS_URL", ""), "Game bridge websocket URL")
	fs.StringVar(&cfg.WSToken, "ws-token", envOrDefault("MESSAGEBOT_WS_TOKEN", ""), "Game bridge bearer token")
	fs.StringVar(&cfg.DiscordToken, "discord-token", envOrDefault("DISCORD_BOT_TOKEN", ""), "Discord bot token")
	fs.StringVar(&cfg.DiscordGuild, "discord-guild", envOrDefault("DISCORD_GUILD_ID", ""), "Discord guild ID")
	fs.StringVar(&cfg.DiscordAnnounceChannel, "discord-announce-channel", envOrDefault("DISCORD_ANNOUNCE_CHANNEL_ID", ""), "Channel for announcements")
	fs.StringVar(&cfg.DiscordModRole, "discord-mod-role", envOrDefault("DISCORD_MOD_ROLE_ID", ""), "Role ID treated as mod")
	fs.StringVar(&cfg.DiscordAdminRole, "discord-admin-role", envOrDefault("DISCORD_ADMIN_ROLE_ID", ""), "Role ID treated as admin")
	fs.DurationVar(&cfg.ActivationDelay, "activation-delay", envDuration("MESSAGEBOT_ACTIVATION_DELAY", 500*time.Millisecond), "Wait after the first event before dispatching")
	fs.StringVar(&cfg.LogLevel, "log-level", envOrDefault("MESSAGEBOT_LOG_LEVEL", "info"), "Log level")
	fs.StringVar(&cfg.LogFormat, "log-format", envOrDefault("MESSAGEBOT_LOG_FORMAT", "console"), "Log format: console or json")
}

// RegisterStorage binds only the storage settings, for tools that do not connect to a
// host.
func RegisterStorage(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.StorageDriver, "storage", envOrDefault("MESSAGEBOT_STORAGE", "sqlite3"), "Storage driver: memory, sqlite3 or postgres")
	fs.StringVar(&cfg.StorageDSN, "dsn", envOrDefault("MESSAGEBOT_DSN", envOrDefault("DATABASE_URL", "messagebot.db")), "Storage DSN or SQLite path")
	fs.StringVar(&cfg.Namespace, "namespace", envOrDefault("MESSAGEBOT_NAMESPACE", "messages"), "Storage namespace")
}

// Load parses args into a Config and validates it.
func Load(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	Register(fs, &cfg)
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate reports every required value that is missing for the selected host.
func (c Config) Validate() error {
	var errs []error
	require := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissing, name))
		}
	}

	require("storage", c.StorageDriver)
	if c.StorageDriver != "memory" {
		require("dsn", c.StorageDSN)
	}
	require("namespace", c.Namespace)

	switch c.Host {
	case HostWS:
		require("ws-url", c.WSURL)
	case HostDiscord:
		require("discord-token", c.DiscordToken)
		require("discord-guild", c.DiscordGuild)
	default:
		errs = append(errs, fmt.Errorf("unknown host %q", c.Host))
	}
	if c.ActivationDelay < 0 {
		errs = append(errs, fmt.Errorf("activation-delay must not be negative, got %s", c.ActivationDelay))
	}
	return errors.Join(errs...)
}

// SetupLogging configures the global zerolog logger.
func SetupLogging(level, format string, out io.Writer) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)

	switch format {
	case "json":
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	case "console", "":
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	default:
		return fmt.Errorf("invalid log format %q", format)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Ignoring invalid duration")
		return fallback
	}
	return d
}
