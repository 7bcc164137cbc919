// The bot process: one Telegram front-end bound to a single token and a
// fixed slot, sharing the relational store with the rest of the fleet.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bridgeos/go-bridge-backend/internal/bot"
	"github.com/bridgeos/go-bridge-backend/internal/config"
	"github.com/bridgeos/go-bridge-backend/internal/observability"
	"github.com/bridgeos/go-bridge-backend/internal/repo"
	"github.com/bridgeos/go-bridge-backend/internal/services"
	"github.com/bridgeos/go-bridge-backend/internal/translate"
	"github.com/bridgeos/go-bridge-backend/internal/transport"
)

const version = "1.0.0"

func main() {
	cfg := config.MustLoad()
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTel(shutdownCtx)
	}()

	db, err := repo.OpenPostgres(cfg.DatabaseURL, repo.PoolOptions{
		MaxOpen: cfg.DBMaxOpen,
		MaxIdle: cfg.DBMaxIdle,
		Tracing: cfg.OTEL.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("database open failed")
	}
	defer func() {
		if err := repo.Close(db); err != nil {
			log.Warn().Err(err).Msg("pool close failed")
		}
	}()
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	fleet, err := transport.NewFleet(cfg.BotTokens, cfg.TransportTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("transport fleet setup failed")
	}
	own, ok := fleet[cfg.BotSlot].(*transport.TelegramClient)
	if !ok {
		log.Fatal().Int("bot_slot", cfg.BotSlot).Msg("no token configured for this process's slot")
	}

	translator := translate.NewAnthropicTranslator(translate.AnthropicOptions{
		APIKey:      cfg.Translation.APIKey,
		Model:       cfg.Translation.Model,
		Timeout:     cfg.Translation.Timeout,
		MaxAttempts: cfg.Translation.MaxAttempts,
		Logger:      log.Logger,
	})

	identity := services.NewIdentityService(db)
	connections := services.NewConnectionService(db)
	subscriptions := services.NewSubscriptionService(db, cfg.Checkout)
	messages := &services.MessageService{
		DB:               db,
		Translator:       translator,
		Fleet:            fleet,
		Subscriptions:    subscriptions,
		ContextSize:      cfg.Translation.ContextSize,
		FreeMessageLimit: cfg.FreeMessageLimit,
		EnforceLimits:    cfg.EnforceLimits,
		IsTestUser:       cfg.IsTestUser,
		Industries:       cfg.Industries,
		TransportTimeout: cfg.TransportTimeout,
	}
	tasks := &services.TaskService{DB: db, Translator: translator, Industries: cfg.Industries}
	extraction := &services.ExtractionService{DB: db, Translator: translator, Industries: cfg.Industries}

	janitor := &services.RetentionJanitor{DB: db, RetentionDays: cfg.MessageRetentionDays}
	go janitor.Run(ctx)

	b := bot.New(cfg, own, fleet, identity, connections, messages, tasks, subscriptions, extraction)
	b.Run(ctx)

	log.Info().Int("bot_slot", cfg.BotSlot).Msg("bot stopped")
}

func setupLogging(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Int("bot_slot", cfg.BotSlot).Logger()
}
