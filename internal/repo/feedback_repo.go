// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Feedback
// model. Feedback is write-only from users; the read model flips rows to
// read.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/bridgeos/go-bridge-backend/internal/domain"
)

// CreateFeedback inserts a feedback row from a user.
func CreateFeedback(ctx context.Context, db *gorm.DB, userID int64, displayName, handle, message string) (*domain.Feedback, error) {
	fb := &domain.Feedback{
		UserID:      userID,
		DisplayName: displayName,
		Handle:      handle,
		Message:     message,
		Status:      domain.FeedbackUnread,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(fb).Error; err != nil {
		return nil, err
	}
	return fb, nil
}

// ListFeedback returns feedback rows newest first, optionally only unread.
func ListFeedback(ctx context.Context, db *gorm.DB, unreadOnly bool) ([]domain.Feedback, error) {
	q := db.WithContext(ctx).Order("created_at DESC")
	if unreadOnly {
		q = q.Where("status = ?", domain.FeedbackUnread)
	}
	var out []domain.Feedback
	err := q.Find(&out).Error
	return out, err
}

// MarkFeedbackRead flips a feedback row to read. Idempotent.
func MarkFeedbackRead(ctx context.Context, db *gorm.DB, feedbackID int64) error {
	return db.WithContext(ctx).Model(&domain.Feedback{}).
		Where("feedback_id = ?", feedbackID).
		Update("status", domain.FeedbackRead).Error
}
