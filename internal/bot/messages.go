// Message relay: plain text goes through the pipeline, media is forwarded
// as-is with a sender prefix.
package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/bridgeos/go-bridge-backend/internal/domain"
	"github.com/bridgeos/go-bridge-backend/internal/services"
	"github.com/bridgeos/go-bridge-backend/internal/transport"
)

// relayText runs the pipeline and maps its errors to short user-facing
// messages. Constraint identifiers never surface.
func (b *Bot) relayText(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID

	delivery, err := b.Messages.DeliverText(ctx, userID, b.Slot, msg.Text)
	switch {
	case err == nil:
		if delivery.LastFreeMessage {
			b.sendLastFreeWarning(ctx, userID)
		}

	case errors.Is(err, services.ErrNotRegistered):
		b.reply(ctx, userID, "Please use /start to register first.")

	case errors.Is(err, services.ErrNotConnected):
		b.replyNotConnected(ctx, userID)

	case errors.Is(err, services.ErrWrongSlot):
		// Dropped silently for the user's counterpart; the sender gets a hint.
		b.reply(ctx, userID, "⚠️ This chat isn't your active bot. Please message the bot you connected through.")

	case errors.Is(err, services.ErrLimitReached):
		b.sendLimitReached(ctx, userID)

	case errors.Is(err, services.ErrTranslationFailed):
		b.reply(ctx, userID, "⚠️ Translation is temporarily unavailable. Please try again.")

	case errors.Is(err, services.ErrTransportFailed):
		// Persisted but not delivered; the platform queue will retransmit.
		b.reply(ctx, userID, "⚠️ Your message was saved but could not be delivered yet.")

	default:
		log.Error().Err(err).Int64("sender_id", userID).Msg("pipeline failure")
		b.reply(ctx, userID, genericErrorText)
	}
}

// replyNotConnected tailors the no-connection message by role: managers get
// their invitation back, workers get pointed at their contact.
func (b *Bot) replyNotConnected(ctx context.Context, userID int64) {
	role, err := b.Identity.GetRole(ctx, userID)
	if err != nil {
		b.reply(ctx, userID, genericErrorText)
		return
	}
	if role == domain.RoleManager {
		manager, err := b.Identity.GetManager(ctx, userID)
		if err == nil && manager != nil {
			link := services.InviteLink(b.Cfg.BotUsername(b.Slot), manager.Code)
			b.reply(ctx, userID, fmt.Sprintf(
				"⚠️ You don't have a worker connected to this bot yet.\n\n"+
					"Share your invitation to connect a worker:\n\n📋 Code: %s\n🔗 %s", manager.Code, link))
			return
		}
	}
	b.reply(ctx, userID, "⚠️ You're not connected to a contact.\nAsk your contact for their invitation link.")
}

// handleMedia forwards non-text messages unchanged, prefixed with the sender
// name. No translation, no usage gating.
func (b *Bot) handleMedia(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID

	role, err := b.Identity.GetRole(ctx, userID)
	if err != nil {
		b.reply(ctx, userID, genericErrorText)
		return
	}

	var conn *domain.Connection
	switch role {
	case domain.RoleManager:
		conn, err = b.Connections.GetActiveForManagerSlot(ctx, userID, b.Slot)
	case domain.RoleWorker:
		conn, err = b.Connections.GetActiveForWorker(ctx, userID)
	default:
		b.reply(ctx, userID, "Please use /start to register first.")
		return
	}
	if err != nil {
		b.reply(ctx, userID, genericErrorText)
		return
	}
	if conn == nil {
		b.replyNotConnected(ctx, userID)
		return
	}

	recipientID := conn.Counterpart(userID)
	senderName := msg.From.FirstName
	if senderName == "" {
		senderName = "Your contact"
	}

	sendCtx, cancel := context.WithTimeout(ctx, b.Cfg.TransportTimeout)
	defer cancel()
	if err := b.Client.SendMessage(sendCtx, recipientID, fmt.Sprintf("📎 From %s:", senderName)); err != nil {
		log.Warn().Err(err).Msg("media prefix send failed")
	}
	fwd := tgbotapi.NewForward(recipientID, msg.Chat.ID, msg.MessageID)
	if _, err := b.Client.API().Send(fwd); err != nil {
		log.Warn().Err(err).Int64("recipient_id", recipientID).Msg("media forward failed")
		b.reply(ctx, userID, "⚠️ Could not forward that right now. Please try again.")
	}
}

// sendLimitReached delivers the subscribe call-to-action with a fresh
// checkout URL carrying the manager ID.
func (b *Bot) sendLimitReached(ctx context.Context, managerID int64) {
	b.replyWithButton(ctx, managerID,
		fmt.Sprintf("⚠️ Free Plan Limit Reached\n\n"+
			"Your business has used its allocation of %d translated messages.\n"+
			"To continue, please upgrade your account.", b.Cfg.FreeMessageLimit),
		transport.Button{
			Text: "💳 Upgrade to Business License",
			URL:  b.Subscriptions.CheckoutURL(managerID),
		})
}

// sendLastFreeWarning fires right after the final free message goes through.
func (b *Bot) sendLastFreeWarning(ctx context.Context, managerID int64) {
	b.replyWithButton(ctx, managerID,
		fmt.Sprintf("⚠️ That was your last free message!\n\nYou've used all %d free messages.\n\n"+
			"Subscribe for unlimited messages:", b.Cfg.FreeMessageLimit),
		transport.Button{
			Text: "🏢 Upgrade to Business License",
			URL:  b.Subscriptions.CheckoutURL(managerID),
		})
}
