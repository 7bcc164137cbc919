// Connection commands: /addworker hands out the next free slot's
// invitation, /workers shows the slot map, /subscribe and /feedback round
// out the manager surface.
package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/bridgeos/go-bridge-backend/internal/config"
	"github.com/bridgeos/go-bridge-backend/internal/repo"
	"github.com/bridgeos/go-bridge-backend/internal/services"
	"github.com/bridgeos/go-bridge-backend/internal/transport"
)

// handleAddWorker picks the next free slot and sends the invitation. When
// the fleet holds a client for that slot, the greeting arrives FROM the
// target bot so the manager lands in the right chat.
func (b *Bot) handleAddWorker(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID

	manager, err := b.Identity.GetManager(ctx, userID)
	if err != nil {
		b.reply(ctx, userID, genericErrorText)
		return
	}
	if manager == nil {
		b.reply(ctx, userID, "⚠️ Only managers can add workers.\n\nWorkers are added by their managers.")
		return
	}

	slot, err := b.Connections.NextFreeSlot(ctx, userID)
	if err != nil {
		b.reply(ctx, userID, genericErrorText)
		return
	}
	if slot == 0 {
		b.reply(ctx, userID, fmt.Sprintf("⚠️ All %d worker slots are in use.\n\nTo add another worker, disconnect an existing one first.", config.MaxBotSlots))
		return
	}

	link := services.InviteLink(b.Cfg.BotUsername(slot), manager.Code)
	log.Info().Int64("manager_id", userID).Int("slot", slot).Msg("addworker invitation issued")

	// Cross-bot greeting through the fleet capability, best-effort.
	if b.Fleet.Has(slot) && slot != b.Slot {
		greetCtx, cancel := context.WithTimeout(ctx, b.Cfg.TransportTimeout)
		defer cancel()
		err := b.Fleet.SendWithButton(greetCtx, slot, userID,
			"👋 Ready to add a worker!\n\n📋 Share this invitation with your worker:\n\n"+link,
			transport.Button{Text: "🚀 Open invitation", URL: link})
		if err != nil {
			log.Warn().Err(err).Int("slot", slot).Msg("cross-bot greeting failed")
		}
	}

	b.reply(ctx, userID, fmt.Sprintf(
		"✅ Worker slot assigned on Bot %d\n\n"+
			"Share this invitation with your worker:\n🔗 %s\n\n"+
			"💡 Your worker will chat with you through Bot %d.", slot, link, slot))
}

// handleWorkers renders the five-slot overview.
func (b *Bot) handleWorkers(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID

	manager, err := b.Identity.GetManager(ctx, userID)
	if err != nil {
		b.reply(ctx, userID, genericErrorText)
		return
	}
	if manager == nil {
		b.reply(ctx, userID, "⚠️ Only managers can view workers.")
		return
	}

	conns, err := b.Connections.ListActiveForManager(ctx, userID)
	if err != nil {
		b.reply(ctx, userID, genericErrorText)
		return
	}
	bySlot := map[int]int64{}
	for _, c := range conns {
		bySlot[c.BotSlot] = c.WorkerID
	}

	var sb strings.Builder
	sb.WriteString("👥 Your Workers\n\n")
	for slot := 1; slot <= config.MaxBotSlots; slot++ {
		if workerID, ok := bySlot[slot]; ok {
			fmt.Fprintf(&sb, "Bot %d: %s ✅\n", slot, b.displayName(ctx, workerID))
		} else {
			fmt.Fprintf(&sb, "Bot %d: Available\n", slot)
		}
	}
	sb.WriteString("\n💡 To add a worker: /addworker\n💡 To message a worker: open that bot's chat")
	b.reply(ctx, userID, sb.String())
}

// handleSubscribe shows the current billing state with either the customer
// portal or a fresh checkout link.
func (b *Bot) handleSubscribe(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID

	manager, err := b.Identity.GetManager(ctx, userID)
	if err != nil {
		b.reply(ctx, userID, genericErrorText)
		return
	}
	if manager == nil {
		b.reply(ctx, userID, "⚠️ Subscriptions are managed by the account's manager.")
		return
	}

	entitled, err := b.Subscriptions.IsEntitled(ctx, userID)
	if err != nil {
		b.reply(ctx, userID, genericErrorText)
		return
	}
	if entitled {
		portal, _ := b.Subscriptions.PortalURL(ctx, userID)
		if portal != "" {
			b.replyWithButton(ctx, userID, "✅ Your subscription is active.", transport.Button{
				Text: "⚙️ Manage subscription", URL: portal,
			})
			return
		}
		b.reply(ctx, userID, "✅ Your subscription is active.")
		return
	}

	b.replyWithButton(ctx, userID,
		fmt.Sprintf("You're on the free plan (%d messages).\n\nUpgrade for unlimited translated messages:", b.Cfg.FreeMessageLimit),
		transport.Button{Text: "💳 Subscribe", URL: b.Subscriptions.CheckoutURL(userID)})
}

// handleFeedbackCommand arms the next-message capture.
func (b *Bot) handleFeedbackCommand(ctx context.Context, msg *tgbotapi.Message) {
	b.reg.awaitFeedback(msg.From.ID)
	b.reply(ctx, msg.From.ID, "💬 Send your feedback as the next message and I'll pass it to the team.")
}

// captureFeedback stores the armed user's next message.
func (b *Bot) captureFeedback(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	b.reg.clearFeedback(userID)

	handle := msg.From.UserName
	if _, err := repo.CreateFeedback(ctx, b.Identity.DB, userID, msg.From.FirstName, handle, msg.Text); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("feedback save failed")
		b.reply(ctx, userID, genericErrorText)
		return
	}
	b.reply(ctx, userID, "🙏 Thanks! Your feedback was recorded.")
}
