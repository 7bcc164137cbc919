// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Task model.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/bridgeos/go-bridge-backend/internal/domain"
)

// TaskRow is a task joined with its connection endpoints, as consumed by the
// list views.
type TaskRow struct {
	TaskID                int64      `json:"task_id"`
	ConnectionID          int64      `json:"connection_id"`
	ManagerID             int64      `json:"manager_id"`
	WorkerID              int64      `json:"worker_id"`
	BotSlot               int        `json:"bot_slot"`
	Description           string     `json:"description"`
	DescriptionTranslated string     `json:"description_translated"`
	Status                string     `json:"status"`
	CreatedAt             time.Time  `json:"created_at"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
}

// CreateTask inserts a pending task on a connection.
func CreateTask(ctx context.Context, db *gorm.DB, connectionID int64, description, descriptionTranslated string) (*domain.Task, error) {
	t := &domain.Task{
		ConnectionID:          connectionID,
		Description:           description,
		DescriptionTranslated: descriptionTranslated,
		Status:                domain.TaskPending,
		CreatedAt:             time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

// GetTask fetches a task by ID.
func GetTask(ctx context.Context, db *gorm.DB, taskID int64) (*domain.Task, error) {
	var t domain.Task
	err := db.WithContext(ctx).First(&t, "task_id = ?", taskID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// MarkTaskCompleted flips a pending task to completed and stamps
// completed_at. The WHERE clause makes the transition one-way: a task that is
// already completed is left untouched and RowsAffected reports 0.
func MarkTaskCompleted(ctx context.Context, db *gorm.DB, taskID int64) (bool, error) {
	res := db.WithContext(ctx).Model(&domain.Task{}).
		Where("task_id = ? AND status = ?", taskID, domain.TaskPending).
		Updates(map[string]any{
			"status":       domain.TaskCompleted,
			"completed_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListTasksForManager returns the manager's tasks across all connections:
// every pending task plus tasks completed after the cutoff, newest first.
func ListTasksForManager(ctx context.Context, db *gorm.DB, managerID int64, since time.Time) ([]TaskRow, error) {
	return listTasks(ctx, db, "c.manager_id = ?", managerID, since)
}

// ListTasksForWorker returns the worker's tasks with the same window.
func ListTasksForWorker(ctx context.Context, db *gorm.DB, workerID int64, since time.Time) ([]TaskRow, error) {
	return listTasks(ctx, db, "c.worker_id = ?", workerID, since)
}

func listTasks(ctx context.Context, db *gorm.DB, cond string, id int64, since time.Time) ([]TaskRow, error) {
	var out []TaskRow
	err := db.WithContext(ctx).Raw(`
		SELECT t.task_id, t.connection_id, c.manager_id, c.worker_id, c.bot_slot,
		       t.description, t.description_translated, t.status, t.created_at, t.completed_at
		FROM tasks t
		JOIN connections c ON c.connection_id = t.connection_id
		WHERE `+cond+` AND (t.status = 'pending' OR t.completed_at > ?)
		ORDER BY t.created_at DESC`, id, since).Scan(&out).Error
	return out, err
}

// TaskStats aggregates task counts for a manager's read model.
type TaskStats struct {
	Total          int64 `json:"total"`
	Pending        int64 `json:"pending"`
	Completed      int64 `json:"completed"`
	CompletedToday int64 `json:"completed_today"`
}

// GetTaskStats returns task counts for a manager.
func GetTaskStats(ctx context.Context, db *gorm.DB, managerID int64) (TaskStats, error) {
	var s TaskStats
	dayAgo := time.Now().UTC().Add(-24 * time.Hour)
	err := db.WithContext(ctx).Raw(`
		SELECT COUNT(*) AS total,
		       COALESCE(SUM(CASE WHEN t.status = 'pending' THEN 1 ELSE 0 END), 0) AS pending,
		       COALESCE(SUM(CASE WHEN t.status = 'completed' THEN 1 ELSE 0 END), 0) AS completed,
		       COALESCE(SUM(CASE WHEN t.status = 'completed' AND t.completed_at > ? THEN 1 ELSE 0 END), 0) AS completed_today
		FROM tasks t
		JOIN connections c ON c.connection_id = t.connection_id
		WHERE c.manager_id = ?`, dayAgo, managerID).Scan(&s).Error
	return s, err
}
