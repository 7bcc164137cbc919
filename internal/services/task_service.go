// Package services – TaskService
//
// This file implements the task subsystem. Inbound text starting with the
// literal ** is a task trigger; creation translates the description for the
// worker, completion is closed-loop and idempotent, and the list views cover
// pending tasks plus tasks completed inside a 24h window. Tasks never touch
// the usage counters.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/bridgeos/go-bridge-backend/internal/config"
	"github.com/bridgeos/go-bridge-backend/internal/domain"
	"github.com/bridgeos/go-bridge-backend/internal/repo"
	"github.com/bridgeos/go-bridge-backend/internal/translate"
)

// TaskPrefix is the wire-level trigger: a payload starting with these two
// asterisks is a task, not a message.
const TaskPrefix = "**"

// taskListWindow is the default look-back for completed tasks in the list
// views.
const taskListWindow = 24 * time.Hour

// TaskService creates, completes, and lists assignments.
type TaskService struct {
	DB         *gorm.DB
	Translator translate.Translator
	Industries map[string]config.Industry
}

// IsTaskTrigger reports whether a payload routes to task creation.
func IsTaskTrigger(text string) bool {
	return strings.HasPrefix(text, TaskPrefix)
}

// ParseTaskText strips the ** prefix and trims the remainder. A trigger with
// no non-whitespace description yields ErrEmptyTask.
func ParseTaskText(text string) (string, error) {
	desc := strings.TrimSpace(strings.TrimPrefix(text, TaskPrefix))
	if desc == "" {
		return "", ErrEmptyTask
	}
	return desc, nil
}

// Create makes a pending task on the manager's connection for the given
// slot. Only a manager may create; the description is translated to the
// worker's language through the same translator path as messages.
func (s *TaskService) Create(ctx context.Context, managerID int64, botSlot int, rawText string) (*domain.Task, error) {
	role, err := repo.GetRole(ctx, s.DB, managerID)
	if err != nil {
		return nil, err
	}
	if role != domain.RoleManager {
		return nil, ErrForbidden
	}

	desc, err := ParseTaskText(rawText)
	if err != nil {
		return nil, err
	}

	conn, err := repo.GetActiveForManagerSlot(ctx, s.DB, managerID, botSlot)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, ErrNotConnected
	}

	manager, err := repo.GetUser(ctx, s.DB, managerID)
	if err != nil {
		return nil, err
	}
	worker, err := repo.GetUser(ctx, s.DB, conn.WorkerID)
	if err != nil {
		return nil, err
	}
	if manager == nil || worker == nil {
		return nil, ErrNotConnected
	}

	translated, err := s.translateDescription(ctx, managerID, desc, manager.UILanguage, worker.UILanguage, worker.Gender)
	if err != nil {
		return nil, err
	}

	task, err := repo.CreateTask(ctx, s.DB, conn.ConnectionID, desc, translated)
	if err != nil {
		return nil, err
	}
	log.Info().
		Int64("task_id", task.TaskID).
		Int64("connection_id", conn.ConnectionID).
		Int64("manager_id", managerID).
		Msg("task created")
	return task, nil
}

// Complete flips a pending task to completed. Preconditions run in one
// transaction: the task exists, its connection is still active, and the actor
// is that connection's worker. A repeat call returns ErrAlreadyCompleted with
// the row unchanged; every other violation is ErrForbidden.
func (s *TaskService) Complete(ctx context.Context, taskID, actorID int64) (*domain.Task, error) {
	var out *domain.Task
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := repo.GetTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if task == nil {
			return ErrForbidden
		}
		conn, err := repo.GetConnection(ctx, tx, task.ConnectionID)
		if err != nil {
			return err
		}
		if conn == nil || conn.Status != domain.ConnectionActive || conn.WorkerID != actorID {
			return ErrForbidden
		}
		if task.Status == domain.TaskCompleted {
			out = task
			return ErrAlreadyCompleted
		}
		flipped, err := repo.MarkTaskCompleted(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if !flipped {
			// Lost a race with another completion; the end state is the same.
			out = task
			return ErrAlreadyCompleted
		}
		out, err = repo.GetTask(ctx, tx, taskID)
		return err
	})
	if err != nil {
		return out, err
	}
	log.Info().Int64("task_id", taskID).Int64("worker_id", actorID).Msg("task completed")
	return out, nil
}

// ListForManager returns the manager's pending tasks plus tasks completed
// after since (default: 24h ago).
func (s *TaskService) ListForManager(ctx context.Context, managerID int64, since *time.Time) ([]repo.TaskRow, error) {
	return repo.ListTasksForManager(ctx, s.DB, managerID, sinceOrDefault(since))
}

// ListForWorker is the worker-side view; callers present the translated
// description.
func (s *TaskService) ListForWorker(ctx context.Context, workerID int64, since *time.Time) ([]repo.TaskRow, error) {
	return repo.ListTasksForWorker(ctx, s.DB, workerID, sinceOrDefault(since))
}

// GroupByWorker buckets task rows by worker ID for the manager view.
func GroupByWorker(rows []repo.TaskRow) map[int64][]repo.TaskRow {
	out := make(map[int64][]repo.TaskRow)
	for _, r := range rows {
		out[r.WorkerID] = append(out[r.WorkerID], r)
	}
	return out
}

func sinceOrDefault(since *time.Time) time.Time {
	if since != nil {
		return *since
	}
	return time.Now().UTC().Add(-taskListWindow)
}

func (s *TaskService) translateDescription(ctx context.Context, managerID int64, desc, fromLang, toLang, gender string) (string, error) {
	key := "other"
	if m, err := repo.GetManager(ctx, s.DB, managerID); err == nil && m != nil && m.Industry != "" {
		key = m.Industry
	}
	ind, ok := s.Industries[key]
	if !ok {
		ind = s.Industries["other"]
	}
	translated, err := s.Translator.Translate(ctx, translate.Request{
		Text:                desc,
		FromLanguage:        fromLang,
		ToLanguage:          toLang,
		TargetGender:        gender,
		IndustryName:        ind.Name,
		IndustryDescription: ind.Description,
	})
	if err != nil {
		return "", err
	}
	return translated, nil
}
