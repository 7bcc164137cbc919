// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Subscription model. Transitions are written with an UPSERT keyed on
// manager_id, which is what makes webhook replays idempotent.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bridgeos/go-bridge-backend/internal/domain"
)

// SubscriptionPatch carries the fields a webhook event may change. Nil
// pointers leave the stored value untouched.
type SubscriptionPatch struct {
	Status            string
	ExternalID        *string
	CustomerPortalURL *string
	RenewsAt          *time.Time
	EndsAt            *time.Time
	ClearEndsAt       bool // resume events null out ends_at
}

// GetSubscription returns the manager's subscription row, or nil when none
// exists (effectively not entitled).
func GetSubscription(ctx context.Context, db *gorm.DB, managerID int64) (*domain.Subscription, error) {
	var s domain.Subscription
	err := db.WithContext(ctx).First(&s, "manager_id = ?", managerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertSubscription applies a status transition for a manager. The row is
// created when absent and updated in place otherwise, so applying the same
// event twice converges on the same end state.
func UpsertSubscription(ctx context.Context, db *gorm.DB, managerID int64, patch SubscriptionPatch) (*domain.Subscription, error) {
	now := time.Now().UTC()

	assign := map[string]any{
		"status":     patch.Status,
		"updated_at": now,
	}
	row := &domain.Subscription{
		ManagerID: managerID,
		Status:    patch.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if patch.ExternalID != nil {
		assign["external_id"] = *patch.ExternalID
		row.ExternalID = *patch.ExternalID
	}
	if patch.CustomerPortalURL != nil {
		assign["customer_portal_url"] = *patch.CustomerPortalURL
		row.CustomerPortalURL = *patch.CustomerPortalURL
	}
	if patch.RenewsAt != nil {
		assign["renews_at"] = *patch.RenewsAt
		row.RenewsAt = patch.RenewsAt
	}
	if patch.EndsAt != nil {
		assign["ends_at"] = *patch.EndsAt
		row.EndsAt = patch.EndsAt
	} else if patch.ClearEndsAt {
		assign["ends_at"] = nil
	}

	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "manager_id"}},
		DoUpdates: clause.Assignments(assign),
	}).Create(row).Error
	if err != nil {
		return nil, err
	}
	return GetSubscription(ctx, db, managerID)
}

// ListSubscriptions returns every subscription row, newest first. Read-model
// only.
func ListSubscriptions(ctx context.Context, db *gorm.DB) ([]domain.Subscription, error) {
	var out []domain.Subscription
	err := db.WithContext(ctx).Order("updated_at DESC").Find(&out).Error
	return out, err
}
