// Package bot implements the Telegram front-end: one update loop per
// process, bound to a single bot token and a fixed slot. Each bot handles
// only the conversations whose connection lives in its own slot; all
// coordination with the rest of the fleet flows through the database and the
// slot-keyed transport fleet.
package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/bridgeos/go-bridge-backend/internal/config"
	"github.com/bridgeos/go-bridge-backend/internal/services"
	"github.com/bridgeos/go-bridge-backend/internal/transport"
)

// Bot is one front-end process: a slot, its own client, and the capability
// to dispatch through any fleet member.
type Bot struct {
	Slot   int
	Client *transport.TelegramClient
	Fleet  transport.Fleet
	Cfg    config.Config

	Identity      *services.IdentityService
	Connections   *services.ConnectionService
	Messages      *services.MessageService
	Tasks         *services.TaskService
	Subscriptions *services.SubscriptionService
	Extraction    *services.ExtractionService

	reg *registrations
}

// New wires a Bot for the process's own slot.
func New(cfg config.Config, client *transport.TelegramClient, fleet transport.Fleet,
	identity *services.IdentityService, connections *services.ConnectionService,
	messages *services.MessageService, tasks *services.TaskService,
	subscriptions *services.SubscriptionService, extraction *services.ExtractionService) *Bot {
	return &Bot{
		Slot:          cfg.BotSlot,
		Client:        client,
		Fleet:         fleet,
		Cfg:           cfg,
		Identity:      identity,
		Connections:   connections,
		Messages:      messages,
		Tasks:         tasks,
		Subscriptions: subscriptions,
		Extraction:    extraction,
		reg:           newRegistrations(),
	}
}

// Run consumes the update stream until the context is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.Client.API().GetUpdatesChan(u)

	log.Info().Int("bot_slot", b.Slot).Str("username", b.Client.Username()).Msg("bot update loop started")

	for {
		select {
		case <-ctx.Done():
			b.Client.API().StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Int("bot_slot", b.Slot).Msg("update handler panicked")
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.Message != nil && update.Message.Text != "":
		b.handleText(ctx, update.Message)
	case update.Message != nil:
		b.handleMedia(ctx, update.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	switch msg.Command() {
	case "start":
		b.handleStart(ctx, msg)
	case "help":
		b.reply(ctx, userID, helpText)
	case "reset":
		b.handleReset(ctx, msg)
	case "addworker":
		b.handleAddWorker(ctx, msg)
	case "workers":
		b.handleWorkers(ctx, msg)
	case "tasks":
		b.handleTasksCommand(ctx, msg)
	case "daily":
		b.handleDaily(ctx, msg)
	case "feedback":
		b.handleFeedbackCommand(ctx, msg)
	case "subscribe":
		b.handleSubscribe(ctx, msg)
	default:
		b.reply(ctx, userID, "Unknown command. Use /help to see what I can do.")
	}
}

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID

	// An in-flight registration consumes plain text replies first.
	if b.reg.active(userID) {
		b.continueRegistration(ctx, msg)
		return
	}
	if b.reg.awaitingFeedback(userID) {
		b.captureFeedback(ctx, msg)
		return
	}

	if services.IsTaskTrigger(msg.Text) {
		b.handleTaskCreation(ctx, msg)
		return
	}

	b.relayText(ctx, msg)
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	// Acknowledge immediately so the client stops its spinner.
	if _, err := b.Client.API().Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		log.Warn().Err(err).Msg("callback ack failed")
	}

	switch {
	case strings.HasPrefix(cq.Data, callbackTaskDone):
		b.handleTaskCompletion(ctx, cq)
	}
}

// reply sends through this bot's own client, logging failures.
func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	sendCtx, cancel := context.WithTimeout(ctx, b.Cfg.TransportTimeout)
	defer cancel()
	if err := b.Client.SendMessage(sendCtx, chatID, text); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("reply failed")
	}
}

func (b *Bot) replyWithButton(ctx context.Context, chatID int64, text string, button transport.Button) {
	sendCtx, cancel := context.WithTimeout(ctx, b.Cfg.TransportTimeout)
	defer cancel()
	if err := b.Client.SendMessageWithButton(sendCtx, chatID, text, button); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("reply with button failed")
	}
}

const helpText = `🌉 BridgeOS commands:

/addworker - Get an invitation link for a new worker
/workers - See your worker slots
/tasks - List recent tasks
/daily - Get daily action items
/feedback - Send feedback to the team
/subscribe - Manage your subscription
/reset - Delete your registration and start over

Send a message and I will translate and relay it.
Start a message with ** to create a task.`
