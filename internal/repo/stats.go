// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used by the
// read-model endpoints the external dashboard consumes.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/bridgeos/go-bridge-backend/internal/domain"
)

// FleetStats is the top-level overview of the deployment.
type FleetStats struct {
	Users             int64 `json:"users"`
	Managers          int64 `json:"managers"`
	Workers           int64 `json:"workers"`
	ActiveConnections int64 `json:"active_connections"`
	Messages          int64 `json:"messages"`
	PendingTasks      int64 `json:"pending_tasks"`
	UnreadFeedback    int64 `json:"unread_feedback"`
}

// GetFleetStats counts the principal entities. Each count is a separate
// lightweight query; the overview does not need a consistent snapshot.
func GetFleetStats(ctx context.Context, db *gorm.DB) (FleetStats, error) {
	var s FleetStats
	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&s.Users, db.WithContext(ctx).Model(&domain.User{})},
		{&s.Managers, db.WithContext(ctx).Model(&domain.Manager{})},
		{&s.Workers, db.WithContext(ctx).Model(&domain.Worker{})},
		{&s.ActiveConnections, db.WithContext(ctx).Model(&domain.Connection{}).Where("status = ?", domain.ConnectionActive)},
		{&s.Messages, db.WithContext(ctx).Model(&domain.Message{})},
		{&s.PendingTasks, db.WithContext(ctx).Model(&domain.Task{}).Where("status = ?", domain.TaskPending)},
		{&s.UnreadFeedback, db.WithContext(ctx).Model(&domain.Feedback{}).Where("status = ?", domain.FeedbackUnread)},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return s, err
		}
	}
	return s, nil
}
