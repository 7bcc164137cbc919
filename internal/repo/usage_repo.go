// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// UsageTracking model.
//
// The free-tier gate is a single conditional UPDATE with RETURNING: the
// check-and-increment is atomic in the database, never read-then-write at
// the application layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bridgeos/go-bridge-backend/internal/domain"
)

// GetOrCreateUsage returns the manager's usage row, creating a zeroed one on
// first read.
func GetOrCreateUsage(ctx context.Context, db *gorm.DB, managerID int64) (*domain.UsageTracking, error) {
	if err := ensureUsageRow(ctx, db, managerID); err != nil {
		return nil, err
	}
	var u domain.UsageTracking
	if err := db.WithContext(ctx).First(&u, "manager_id = ?", managerID).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// IncrementUsage atomically consumes one free message. When the counter is
// below freeLimit it increments, recomputes is_blocked, stamps the message
// timestamps, and reports allowed=true with the new state. When the counter
// has already reached freeLimit the row is left at the limit, is_blocked is
// forced on, and allowed=false.
func IncrementUsage(ctx context.Context, db *gorm.DB, managerID int64, freeLimit int) (count int, blocked bool, allowed bool, err error) {
	if err = ensureUsageRow(ctx, db, managerID); err != nil {
		return 0, false, false, err
	}

	now := time.Now().UTC()
	var row struct {
		MessagesSent int
		IsBlocked    bool
	}
	res := db.WithContext(ctx).Raw(`
		UPDATE usage_tracking
		SET messages_sent    = messages_sent + 1,
		    is_blocked       = (messages_sent + 1 >= ?),
		    first_message_at = COALESCE(first_message_at, ?),
		    last_message_at  = ?
		WHERE manager_id = ? AND messages_sent < ?
		RETURNING messages_sent, is_blocked`,
		freeLimit, now, now, managerID, freeLimit).Scan(&row)
	if res.Error != nil {
		return 0, false, false, res.Error
	}
	if res.RowsAffected > 0 {
		return row.MessagesSent, row.IsBlocked, true, nil
	}

	// At (or past) the limit: make sure the block flag is durable, then deny.
	err = db.WithContext(ctx).Model(&domain.UsageTracking{}).
		Where("manager_id = ?", managerID).
		Update("is_blocked", true).Error
	if err != nil {
		return 0, false, false, err
	}
	u, err := GetOrCreateUsage(ctx, db, managerID)
	if err != nil {
		return 0, false, false, err
	}
	return u.MessagesSent, true, false, nil
}

// ResetUsage zeroes the counter and clears the block flag. The only sanctioned
// decrease of messages_sent.
func ResetUsage(ctx context.Context, db *gorm.DB, managerID int64) error {
	return db.WithContext(ctx).Model(&domain.UsageTracking{}).
		Where("manager_id = ?", managerID).
		Updates(map[string]any{"messages_sent": 0, "is_blocked": false}).Error
}

func ensureUsageRow(ctx context.Context, db *gorm.DB, managerID int64) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "manager_id"}},
		DoNothing: true,
	}).Create(&domain.UsageTracking{ManagerID: managerID}).Error
}

// UsageStats aggregates usage across all managers for the read model.
type UsageStats struct {
	TrackedManagers int64 `json:"tracked_managers"`
	TotalMessages   int64 `json:"total_messages"`
	BlockedManagers int64 `json:"blocked_managers"`
}

// GetUsageStats returns fleet-wide usage aggregates.
func GetUsageStats(ctx context.Context, db *gorm.DB) (UsageStats, error) {
	var s UsageStats
	err := db.WithContext(ctx).Raw(`
		SELECT COUNT(*) AS tracked_managers,
		       COALESCE(SUM(messages_sent), 0) AS total_messages,
		       COALESCE(SUM(CASE WHEN is_blocked THEN 1 ELSE 0 END), 0) AS blocked_managers
		FROM usage_tracking`).Scan(&s).Error
	return s, err
}
