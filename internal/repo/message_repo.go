// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model, including the translation-context window and the daily-extraction
// reads.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/bridgeos/go-bridge-backend/internal/domain"
)

// ContextMessage is one entry of the translation context: the sender's UI
// language plus the original text, in send order.
type ContextMessage struct {
	SenderLanguage string    `json:"sender_language"`
	Text           string    `json:"text"`
	SentAt         time.Time `json:"sent_at"`
}

// CreateMessage inserts a message row. Callers persist only after the
// translation has succeeded.
func CreateMessage(ctx context.Context, db *gorm.DB, connectionID, senderID int64, originalText, translatedText string) (*domain.Message, error) {
	m := &domain.Message{
		ConnectionID:   connectionID,
		SenderID:       senderID,
		OriginalText:   originalText,
		TranslatedText: translatedText,
		SentAt:         time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// TranslationContext returns the last limit messages of a connection as
// (sender_language, text, sent_at) tuples ordered oldest-first. sent_at is
// monotonically non-decreasing within the result. The window is selected
// newest-first and flipped, so it is the tail of the conversation.
func TranslationContext(ctx context.Context, db *gorm.DB, connectionID int64, limit int) ([]ContextMessage, error) {
	if limit <= 0 {
		return []ContextMessage{}, nil
	}
	var rows []ContextMessage
	err := db.WithContext(ctx).Raw(`
		SELECT u.ui_language AS sender_language, m.original_text AS text, m.sent_at
		FROM messages m
		JOIN users u ON u.user_id = m.sender_id
		WHERE m.connection_id = ?
		ORDER BY m.sent_at DESC, m.message_id DESC
		LIMIT ?`, connectionID, limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	// Flip to chronological order.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// ListSince returns a connection's messages sent after the cutoff, ordered
// ascending. Used by the daily extraction window.
func ListSince(ctx context.Context, db *gorm.DB, connectionID int64, since time.Time) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("connection_id = ? AND sent_at > ?", connectionID, since).
		Order("sent_at ASC, message_id ASC").
		Find(&out).Error
	return out, err
}

// CountMessages returns the number of messages on a connection.
func CountMessages(ctx context.Context, db *gorm.DB, connectionID int64) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Message{}).
		Where("connection_id = ?", connectionID).
		Count(&total).Error
	return total, err
}

// DeleteMessagesBefore removes messages older than the cutoff. Retention is
// optional; the connection invariants hold regardless of whether this runs.
func DeleteMessagesBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("sent_at < ?", cutoff).
		Delete(&domain.Message{})
	return res.RowsAffected, res.Error
}
