// Package services – IdentityService
//
// This file implements the identity layer: user upsert on first contact,
// role creation with idempotent re-activation, soft delete with cascading
// disconnect, and single-active-role resolution.
package services

import (
	"context"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/bridgeos/go-bridge-backend/internal/domain"
	"github.com/bridgeos/go-bridge-backend/internal/repo"
)

// IdentityService owns users and their role rows.
type IdentityService struct {
	DB *gorm.DB
}

// NewIdentityService constructs an IdentityService.
func NewIdentityService(db *gorm.DB) *IdentityService {
	return &IdentityService{DB: db}
}

// UpsertUser creates or refreshes the identity row keyed by the platform
// user ID.
func (s *IdentityService) UpsertUser(ctx context.Context, userID int64, displayName, uiLanguage, gender string) (*domain.User, error) {
	return repo.UpsertUser(ctx, s.DB, userID, displayName, uiLanguage, gender)
}

// GetUser fetches a user; nil when never seen.
func (s *IdentityService) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	return repo.GetUser(ctx, s.DB, userID)
}

// GetManager fetches the active manager row; nil when absent or deleted.
func (s *IdentityService) GetManager(ctx context.Context, managerID int64) (*domain.Manager, error) {
	return repo.GetManager(ctx, s.DB, managerID)
}

// GetRole returns the single active role of a user.
func (s *IdentityService) GetRole(ctx context.Context, userID int64) (string, error) {
	return repo.GetRole(ctx, s.DB, userID)
}

// RegisterManager creates (or re-activates) a manager with a freshly
// generated invitation code and returns the manager row. The user row must
// already exist.
func (s *IdentityService) RegisterManager(ctx context.Context, userID int64, industry string) (*domain.Manager, error) {
	var out *domain.Manager
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		code, err := GenerateInvitationCode(ctx, tx)
		if err != nil {
			return err
		}
		if err := repo.CreateManager(ctx, tx, userID, code, industry); err != nil {
			return err
		}
		out, err = repo.GetManager(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int64("manager_id", userID).Str("code", out.Code).Str("industry", industry).Msg("manager registered")
	return out, nil
}

// RegisterWorker creates (or re-activates) a worker row.
func (s *IdentityService) RegisterWorker(ctx context.Context, userID int64) error {
	if err := repo.CreateWorker(ctx, s.DB, userID); err != nil {
		return err
	}
	log.Info().Int64("worker_id", userID).Msg("worker registered")
	return nil
}

// Reset soft-deletes whatever active role the user holds and, in the same
// transaction, disconnects every active connection involving the user.
// Message and task history stays behind for audit. Calling Reset for a user
// with no role is a no-op.
func (s *IdentityService) Reset(ctx context.Context, userID int64) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role, err := repo.GetRole(ctx, tx, userID)
		if err != nil {
			return err
		}
		switch role {
		case domain.RoleManager:
			if err := repo.SoftDeleteManager(ctx, tx, userID); err != nil {
				return err
			}
		case domain.RoleWorker:
			if err := repo.SoftDeleteWorker(ctx, tx, userID); err != nil {
				return err
			}
		default:
			return nil
		}
		n, err := repo.DisconnectAllForUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		log.Info().Int64("user_id", userID).Str("role", role).Int64("disconnected", n).Msg("user reset")
		return nil
	})
}
