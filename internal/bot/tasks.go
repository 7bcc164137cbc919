// Task commands: ** creation, /tasks listing, inline completion, /daily
// extraction.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/bridgeos/go-bridge-backend/internal/domain"
	"github.com/bridgeos/go-bridge-backend/internal/repo"
	"github.com/bridgeos/go-bridge-backend/internal/services"
)

// callbackTaskDone prefixes inline-button completion payloads:
// "task_done:<task_id>".
const callbackTaskDone = "task_done:"

// handleTaskCreation turns a **-prefixed message into a pending task and
// pushes the translated description to the worker.
func (b *Bot) handleTaskCreation(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID

	task, err := b.Tasks.Create(ctx, userID, b.Slot, msg.Text)
	switch {
	case errors.Is(err, services.ErrEmptyTask):
		b.reply(ctx, userID, "⚠️ Task description is empty.\n\nExample: ** Check cow 115")
		return
	case errors.Is(err, services.ErrForbidden):
		b.reply(ctx, userID, "⚠️ Only managers can create tasks.")
		return
	case errors.Is(err, services.ErrNotConnected):
		b.replyNotConnected(ctx, userID)
		return
	case err != nil:
		log.Error().Err(err).Int64("manager_id", userID).Msg("task creation failed")
		b.reply(ctx, userID, "⚠️ Could not create the task. Please try again.")
		return
	}

	conn, err := b.Connections.GetActiveForManagerSlot(ctx, userID, b.Slot)
	if err == nil && conn != nil {
		out := tgbotapi.NewMessage(conn.WorkerID, fmt.Sprintf("📋 New task:\n\n%s", task.DescriptionTranslated))
		out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ Done", callbackTaskDone+strconv.FormatInt(task.TaskID, 10)),
			),
		)
		if _, err := b.Client.API().Send(out); err != nil {
			log.Warn().Err(err).Int64("worker_id", conn.WorkerID).Msg("task push failed")
		}
	}

	b.reply(ctx, userID, fmt.Sprintf("✅ Task #%d created and sent to your worker:\n\n%s", task.TaskID, task.Description))
}

// handleTaskCompletion is the inline-button path of the closed loop: the
// worker taps Done, the manager hears about it.
func (b *Bot) handleTaskCompletion(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	actorID := cq.From.ID
	raw := strings.TrimPrefix(cq.Data, callbackTaskDone)
	taskID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return
	}

	task, err := b.Tasks.Complete(ctx, taskID, actorID)
	switch {
	case errors.Is(err, services.ErrAlreadyCompleted):
		b.reply(ctx, actorID, "✅ That task is already completed.")
		return
	case errors.Is(err, services.ErrForbidden):
		b.reply(ctx, actorID, "⚠️ You can't complete this task.")
		return
	case err != nil:
		log.Error().Err(err).Int64("task_id", taskID).Msg("task completion failed")
		b.reply(ctx, actorID, genericErrorText)
		return
	}

	b.reply(ctx, actorID, fmt.Sprintf("✅ Task #%d marked as done.", task.TaskID))

	if conn, err := b.Connections.GetActiveForWorker(ctx, actorID); err == nil && conn != nil {
		notifyCtx, cancel := context.WithTimeout(ctx, b.Cfg.TransportTimeout)
		defer cancel()
		if err := b.Fleet.Send(notifyCtx, conn.BotSlot, conn.ManagerID,
			fmt.Sprintf("✅ Task completed:\n\n%s", task.Description)); err != nil {
			log.Warn().Err(err).Int64("manager_id", conn.ManagerID).Msg("completion notification failed")
		}
	}
}

// handleTasksCommand lists the caller's recent tasks: pending plus completed
// in the last 24 hours, role-appropriate.
func (b *Bot) handleTasksCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	role, err := b.Identity.GetRole(ctx, userID)
	if err != nil {
		b.reply(ctx, userID, genericErrorText)
		return
	}

	switch role {
	case domain.RoleManager:
		rows, err := b.Tasks.ListForManager(ctx, userID, nil)
		if err != nil {
			b.reply(ctx, userID, genericErrorText)
			return
		}
		b.reply(ctx, userID, b.formatManagerTasks(ctx, rows))

	case domain.RoleWorker:
		rows, err := b.Tasks.ListForWorker(ctx, userID, nil)
		if err != nil {
			b.reply(ctx, userID, genericErrorText)
			return
		}
		b.sendWorkerTasks(ctx, userID, rows)

	default:
		b.reply(ctx, userID, "Please use /start to register first.")
	}
}

// formatManagerTasks groups rows by worker.
func (b *Bot) formatManagerTasks(ctx context.Context, rows []repo.TaskRow) string {
	if len(rows) == 0 {
		return "📋 No tasks in the last 24 hours.\n\nCreate one by starting a message with ** (example: ** Check cow 115)."
	}
	var sb strings.Builder
	sb.WriteString("📋 Your tasks:\n")
	for workerID, group := range services.GroupByWorker(rows) {
		fmt.Fprintf(&sb, "\n👷 %s:\n", b.displayName(ctx, workerID))
		for _, t := range group {
			fmt.Fprintf(&sb, "%s #%d %s\n", statusIcon(t.Status), t.TaskID, t.Description)
		}
	}
	return sb.String()
}

// sendWorkerTasks shows translated descriptions; pending ones carry a Done
// button.
func (b *Bot) sendWorkerTasks(ctx context.Context, workerID int64, rows []repo.TaskRow) {
	if len(rows) == 0 {
		b.reply(ctx, workerID, "📋 No tasks in the last 24 hours.")
		return
	}
	for _, t := range rows {
		desc := t.DescriptionTranslated
		if desc == "" {
			desc = t.Description
		}
		text := fmt.Sprintf("%s Task #%d:\n%s", statusIcon(t.Status), t.TaskID, desc)
		if t.Status == domain.TaskPending {
			out := tgbotapi.NewMessage(workerID, text)
			out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
				tgbotapi.NewInlineKeyboardRow(
					tgbotapi.NewInlineKeyboardButtonData("✅ Done", callbackTaskDone+strconv.FormatInt(t.TaskID, 10)),
				),
			)
			if _, err := b.Client.API().Send(out); err != nil {
				log.Warn().Err(err).Msg("task list send failed")
			}
			continue
		}
		b.reply(ctx, workerID, text)
	}
}

// handleDaily runs the on-demand extraction over the manager's last 24h.
func (b *Bot) handleDaily(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	role, err := b.Identity.GetRole(ctx, userID)
	if err != nil {
		b.reply(ctx, userID, genericErrorText)
		return
	}
	if role != domain.RoleManager {
		b.reply(ctx, userID, "⚠️ Only managers can request daily action items.")
		return
	}

	b.reply(ctx, userID, "⏳ Gathering your daily action items…")

	extractCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	items, err := b.Extraction.DailyActionItems(extractCtx, userID)
	if err != nil {
		log.Error().Err(err).Int64("manager_id", userID).Msg("daily extraction failed")
		b.reply(ctx, userID, "⚠️ Could not build your daily summary. Please try again.")
		return
	}
	b.reply(ctx, userID, "📊 Daily Action Items\n\n"+items)
}

func (b *Bot) displayName(ctx context.Context, userID int64) string {
	if u, err := b.Identity.GetUser(ctx, userID); err == nil && u != nil && u.DisplayName != "" {
		return u.DisplayName
	}
	return fmt.Sprintf("Worker %d", userID)
}

func statusIcon(status string) string {
	if status == domain.TaskCompleted {
		return "✅"
	}
	return "⬜"
}
