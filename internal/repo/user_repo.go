// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bridgeos/go-bridge-backend/internal/domain"
)

// UpsertUser inserts a user row keyed by the platform user ID, or refreshes
// the mutable profile fields when the row already exists. Re-registration
// after a role switch reuses the same row.
func UpsertUser(ctx context.Context, db *gorm.DB, userID int64, displayName, uiLanguage, gender string) (*domain.User, error) {
	now := time.Now().UTC()
	u := &domain.User{
		UserID:      userID,
		DisplayName: displayName,
		UILanguage:  uiLanguage,
		Gender:      gender,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if u.UILanguage == "" {
		u.UILanguage = "English"
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"display_name": u.DisplayName,
			"ui_language":  u.UILanguage,
			"gender":       u.Gender,
			"updated_at":   now,
		}),
	}).Create(u).Error
	if err != nil {
		return nil, err
	}
	return GetUser(ctx, db, userID)
}

// GetUser fetches a user by platform ID. Returns (nil, nil) when the user has
// never been seen.
func GetUser(ctx context.Context, db *gorm.DB, userID int64) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).First(&u, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUserLanguage changes only the UI language.
func UpdateUserLanguage(ctx context.Context, db *gorm.DB, userID int64, uiLanguage string) error {
	return db.WithContext(ctx).Model(&domain.User{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{"ui_language": uiLanguage, "updated_at": time.Now().UTC()}).Error
}
