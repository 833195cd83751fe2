package main

import (
	"context"
	"os"
	"os/signal"

	"plugbot/internal/adapters/generator"
	"plugbot/internal/adapters/storage"
	"plugbot/internal/adapters/transport"
	"plugbot/internal/core/port"
	"plugbot/internal/core/service"
	"plugbot/internal/plugins"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func main() {
	log.Info().Msg("starting plugbot...")

	viper.AddConfigPath(".")
	viper.SetConfigType("toml")
	viper.SetDefault("prefixes.direct", "/")
	viper.SetDefault("prefixes.group", "!")

	log.Info().Msg("reading config file...")
	err := viper.ReadInConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("could not read config file")
	}

	var logLevel zerolog.Level

	switch viper.GetString("bot.log_level") {
	case "info":
		logLevel = zerolog.InfoLevel
	case "debug":
		logLevel = zerolog.DebugLevel
	default:
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg := service.Config{
		DirectPrefix:      viper.GetString("prefixes.direct"),
		GroupPrefix:       viper.GetString("prefixes.group"),
		RequireMembership: viper.GetBool("acl.require_membership"),
	}
	if cfg.DirectPrefix == "" || cfg.GroupPrefix == "" {
		log.Fatal().Msg("command prefixes must not be empty")
	}

	tg, err := transport.NewTelegram(
		viper.GetString("telegram.bot_token"),
		viper.GetString("telegram.bot_username"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed initializing telegram transport")
	}

	var store port.ACLStore
	if path := viper.GetString("storage.path"); path != "" {
		store, err = storage.NewSQLite(path)
		if err != nil {
			log.Fatal().Err(err).Msg("failed opening acl store")
		}
		defer store.Close()
	} else {
		log.Warn().Msg("no storage path configured, acl held in memory only")
	}

	acl := service.NewACL(ctx, store)
	if err := acl.Seed(viper.GetStringMapString("acl.seed")); err != nil {
		log.Fatal().Err(err).Msg("invalid acl seed in config")
	}

	b := service.NewBot(tg, acl, cfg)
	registerFactories(b)

	var entries []service.PluginEntry
	if err := viper.UnmarshalKey("plugins", &entries); err != nil {
		log.Fatal().Err(err).Msg("invalid plugin list in config")
	}
	b.Plugins().SetEntries(entries)

	b.Start()

	viper.OnConfigChange(func(e fsnotify.Event) {
		log.Info().Str("file", e.Name).Msg("config file changed, rehashing")

		var entries []service.PluginEntry
		if err := viper.UnmarshalKey("plugins", &entries); err != nil {
			log.Error().Err(err).Msg("invalid plugin list in config, keeping old set")
			return
		}
		b.Plugins().SetEntries(entries)
		b.Rehash()
	})
	viper.WatchConfig()

	go func() {
		<-b.Done()
		cancel()
	}()

	log.Info().Msg("bot listening")
	tg.Run(ctx)
	b.Shutdown()
}

func registerFactories(b *service.Bot) {
	m := b.Plugins()
	m.RegisterFactory("admin", plugins.NewAdmin)
	m.RegisterFactory("uptime", plugins.NewUptime)
	m.RegisterFactory("say", plugins.NewSay)
	m.RegisterFactory("tell", plugins.NewTell)
	m.RegisterFactory("stats", plugins.NewStats)

	gen := generator.NewOpenRouterGenerator(
		viper.GetString("ai.api_key"),
		viper.GetString("ai.system_prompt"),
		viper.GetString("ai.model"))
	m.RegisterFactory("ai", func(api port.BotAPI, config map[string]any) (port.Plugin, error) {
		return plugins.NewAI(api, config, gen)
	})
}
