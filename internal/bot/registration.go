// Registration flow.
//
// Registration is a short linear conversation (language → gender → industry
// or invite redemption) carried in process-local state. Nothing about an
// unfinished registration is durable: interrupting the flow and issuing
// /start again simply restarts it.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/bridgeos/go-bridge-backend/internal/domain"
	"github.com/bridgeos/go-bridge-backend/internal/services"
)

// Registration steps.
const (
	stepLanguage = iota
	stepGender
	stepIndustry
)

const invitePayloadPrefix = "invite_"

type regState struct {
	step       int
	language   string
	gender     string
	inviteCode string
}

// registrations is the transport-layer ephemeral state of in-flight
// conversations. It also tracks which users the /feedback command is
// currently listening to.
type registrations struct {
	mu       sync.Mutex
	inFlight map[int64]*regState
	feedback map[int64]bool
}

func newRegistrations() *registrations {
	return &registrations{
		inFlight: make(map[int64]*regState),
		feedback: make(map[int64]bool),
	}
}

func (r *registrations) active(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight[userID] != nil
}

func (r *registrations) get(userID int64) *regState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight[userID]
}

func (r *registrations) begin(userID int64, st *regState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight[userID] = st
}

func (r *registrations) finish(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, userID)
}

func (r *registrations) awaitFeedback(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feedback[userID] = true
}

func (r *registrations) awaitingFeedback(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.feedback[userID]
}

func (r *registrations) clearFeedback(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.feedback, userID)
}

// handleStart begins (or restarts) registration, honoring a deep-link invite
// payload.
func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	payload := strings.TrimSpace(msg.CommandArguments())

	user, err := b.Identity.GetUser(ctx, userID)
	if err != nil {
		b.reply(ctx, userID, genericErrorText)
		return
	}

	var role string
	if user != nil {
		role, err = b.Identity.GetRole(ctx, userID)
		if err != nil {
			b.reply(ctx, userID, genericErrorText)
			return
		}
	}

	// A user row without an active role (after /reset) registers again.
	if user != nil && role != domain.RoleNone {
		if strings.HasPrefix(payload, invitePayloadPrefix) {
			b.reply(ctx, userID, fmt.Sprintf("You're already registered as %s.\n\nUse /reset first if you want to start over.", roleLabel(role)))
			return
		}
		b.reply(ctx, userID, fmt.Sprintf("Welcome back! You're registered as %s.\n\nUse /help to see available commands.", roleLabel(role)))
		return
	}

	st := &regState{step: stepLanguage}
	if strings.HasPrefix(payload, invitePayloadPrefix) {
		code := strings.TrimPrefix(payload, invitePayloadPrefix)
		if !services.ValidInvitationCode(code) {
			b.reply(ctx, userID, "❌ Invalid invitation code format.\n\nPlease ask your manager for a valid invitation link.")
			return
		}
		st.inviteCode = code
		log.Info().Int64("user_id", userID).Str("code", code).Int("bot_slot", b.Slot).Msg("new user arrived with invite code")
	}
	b.reg.begin(userID, st)

	b.sendKeyboard(ctx, userID, "Welcome to BridgeOS! 🌉\n\nSelect your language:", b.Cfg.Languages)
}

// continueRegistration advances the in-flight flow with a plain-text reply.
func (b *Bot) continueRegistration(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	st := b.reg.get(userID)
	if st == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)

	switch st.step {
	case stepLanguage:
		if !contains(b.Cfg.Languages, text) {
			b.sendKeyboard(ctx, userID, "⚠️ Please select a language from the keyboard below.", b.Cfg.Languages)
			return
		}
		st.language = text
		st.step = stepGender
		b.sendKeyboard(ctx, userID, "What is your gender?\n(This helps with accurate translations)", genderOptions)

	case stepGender:
		if !contains(genderOptions, text) {
			b.sendKeyboard(ctx, userID, "⚠️ Please pick one of the options below.", genderOptions)
			return
		}
		st.gender = normalizeGender(text)
		if st.inviteCode != "" {
			b.completeWorkerRegistration(ctx, msg, st)
			return
		}
		st.step = stepIndustry
		b.sendKeyboard(ctx, userID, "What industry do you work in?", b.industryOptions())

	case stepIndustry:
		key, ok := b.industryKeyByName(text)
		if !ok {
			b.sendKeyboard(ctx, userID, "⚠️ Please pick an industry from the keyboard below.", b.industryOptions())
			return
		}
		b.completeManagerRegistration(ctx, msg, st, key)
	}
}

// completeManagerRegistration persists the user and the manager role, then
// shows the freshly generated invitation for this bot's slot.
func (b *Bot) completeManagerRegistration(ctx context.Context, msg *tgbotapi.Message, st *regState, industryKey string) {
	userID := msg.From.ID
	defer b.reg.finish(userID)

	if _, err := b.Identity.UpsertUser(ctx, userID, msg.From.FirstName, st.language, st.gender); err != nil {
		b.reply(ctx, userID, genericErrorText)
		return
	}
	manager, err := b.Identity.RegisterManager(ctx, userID, industryKey)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("manager registration failed")
		b.reply(ctx, userID, genericErrorText)
		return
	}

	link := services.InviteLink(b.Cfg.BotUsername(b.Slot), manager.Code)
	b.removeKeyboard(ctx, userID, fmt.Sprintf(
		"✅ You're registered as a manager!\n\n"+
			"📋 Your code: %s\n\n"+
			"Share this invitation with your first worker:\n🔗 %s\n\n"+
			"Use /addworker when you need more workers.", manager.Code, link))
}

// completeWorkerRegistration persists the user and worker role and redeems
// the invite on this bot's slot. The bind races are settled by the store's
// partial unique indexes.
func (b *Bot) completeWorkerRegistration(ctx context.Context, msg *tgbotapi.Message, st *regState) {
	userID := msg.From.ID
	defer b.reg.finish(userID)

	if _, err := b.Identity.UpsertUser(ctx, userID, msg.From.FirstName, st.language, st.gender); err != nil {
		b.reply(ctx, userID, genericErrorText)
		return
	}
	if err := b.Identity.RegisterWorker(ctx, userID); err != nil {
		b.reply(ctx, userID, genericErrorText)
		return
	}

	conn, err := b.Connections.Redeem(ctx, st.inviteCode, userID, b.Slot)
	switch {
	case errors.Is(err, services.ErrSlotOccupied):
		b.removeKeyboard(ctx, userID, "❌ This bot slot is already occupied.\n\nAsk your manager for a different bot invitation.")
		return
	case errors.Is(err, services.ErrWorkerAlreadyConnected):
		b.removeKeyboard(ctx, userID, "❌ You're already connected to a manager.\n\nUse /reset first if you want to connect to someone else.")
		return
	case errors.Is(err, services.ErrInvalidCode):
		b.removeKeyboard(ctx, userID, "❌ Invalid invitation code.\n\nPlease ask your contact for a new invitation link.")
		return
	case err != nil:
		log.Error().Err(err).Int64("user_id", userID).Msg("invite redemption failed")
		b.removeKeyboard(ctx, userID, genericErrorText)
		return
	}

	b.removeKeyboard(ctx, userID, "✅ Connected to your contact! You can start chatting now.\n\nUse /help to see available commands.")

	// Notify the manager, best-effort.
	workerName := msg.From.FirstName
	if workerName == "" {
		workerName = "Your worker"
	}
	notifyCtx, cancel := context.WithTimeout(ctx, b.Cfg.TransportTimeout)
	defer cancel()
	if err := b.Fleet.Send(notifyCtx, conn.BotSlot, conn.ManagerID, fmt.Sprintf("✅ %s connected as your worker!", workerName)); err != nil {
		log.Warn().Err(err).Int64("manager_id", conn.ManagerID).Msg("manager notification failed")
	}
}

// handleReset soft-deletes the caller's role and disconnects everything.
func (b *Bot) handleReset(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	b.reg.finish(userID)
	b.reg.clearFeedback(userID)
	if err := b.Identity.Reset(ctx, userID); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("reset failed")
		b.reply(ctx, userID, genericErrorText)
		return
	}
	b.reply(ctx, userID, "🔄 Your registration was deleted. Use /start to register again.")
}

var genderOptions = []string{"Male", "Female", "Prefer not to say"}

func normalizeGender(s string) string {
	switch s {
	case "Male":
		return "male"
	case "Female":
		return "female"
	default:
		return ""
	}
}

func (b *Bot) industryOptions() []string {
	out := make([]string, 0, len(b.Cfg.Industries))
	for _, ind := range b.Cfg.Industries {
		out = append(out, ind.Name)
	}
	return out
}

func (b *Bot) industryKeyByName(name string) (string, bool) {
	for key, ind := range b.Cfg.Industries {
		if strings.EqualFold(ind.Name, name) {
			return key, true
		}
	}
	return "", false
}

// sendKeyboard shows a one-time reply keyboard with the options in rows of
// two.
func (b *Bot) sendKeyboard(ctx context.Context, chatID int64, text string, options []string) {
	rows := make([][]tgbotapi.KeyboardButton, 0, (len(options)+1)/2)
	for i := 0; i < len(options); i += 2 {
		row := []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(options[i])}
		if i+1 < len(options) {
			row = append(row, tgbotapi.NewKeyboardButton(options[i+1]))
		}
		rows = append(rows, row)
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.OneTimeKeyboard = true
	kb.ResizeKeyboard = true

	out := tgbotapi.NewMessage(chatID, text)
	out.ReplyMarkup = kb
	if _, err := b.Client.API().Send(out); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("keyboard send failed")
	}
}

// removeKeyboard replies while clearing any reply keyboard.
func (b *Bot) removeKeyboard(ctx context.Context, chatID int64, text string) {
	out := tgbotapi.NewMessage(chatID, text)
	out.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	if _, err := b.Client.API().Send(out); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("send failed")
	}
}

func roleLabel(role string) string {
	switch role {
	case domain.RoleManager:
		return "a manager"
	case domain.RoleWorker:
		return "a worker"
	default:
		return "a user"
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

const genericErrorText = "⚠️ Something went wrong. Please try again."
