package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"rgehrsitz/messagebot/internal/config"
	"rgehrsitz/messagebot/internal/dispatch"
	"rgehrsitz/messagebot/internal/host"
	"rgehrsitz/messagebot/internal/host/discord"
	"rgehrsitz/messagebot/internal/host/wsbridge"
	"rgehrsitz/messagebot/internal/rulestore"
	"rgehrsitz/messagebot/internal/storage"

	"github.com/rs/zerolog/log"
)

type world interface {
	host.World
	host.Sender
}

func main() {
	config.LoadDotEnv()
	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if lerr := config.SetupLogging(cfg.LogLevel, cfg.LogFormat, os.Stderr); lerr != nil {
		log.Fatal().Err(lerr).Msg("Invalid logging configuration")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, err := storage.Open(ctx, cfg.StorageDriver, cfg.StorageDSN, cfg.Namespace)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StorageDriver).Msg("Error opening storage")
	}
	defer kv.Close()

	var w world
	switch cfg.Host {
	case config.HostDiscord:
		d, err := discord.New(discord.Config{
			Token:             cfg.DiscordToken,
			GuildID:           cfg.DiscordGuild,
			AnnounceChannelID: cfg.DiscordAnnounceChannel,
			ModRoleID:         cfg.DiscordModRole,
			AdminRoleID:       cfg.DiscordAdminRole,
		}, kv)
		if err != nil {
			log.Fatal().Err(err).Msg("Error creating Discord adapter")
		}
		if err := d.Open(); err != nil {
			log.Fatal().Err(err).Msg("Error connecting to Discord")
		}
		defer d.Close()
		w = d
	default:
		c := wsbridge.New(cfg.WSURL, cfg.WSToken)
		go func() {
			if err := c.Run(ctx); err != nil {
				log.Error().Err(err).Msg("Bridge stopped")
			}
		}()
		w = c
	}

	engine := dispatch.New(w, w, rulestore.New(kv), dispatch.WithActivationDelay(cfg.ActivationDelay))
	log.Info().Str("host", cfg.Host).Str("namespace", cfg.Namespace).Msg("Message bot started")
	if err := engine.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Engine stopped with error")
	}
	log.Info().Msg("Message bot stopped")
}
