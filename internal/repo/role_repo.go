// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Manager and
// Worker role rows, including soft delete and re-activation.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/bridgeos/go-bridge-backend/internal/domain"
)

// CreateManager inserts a manager row, or re-activates a soft-deleted one for
// the same user (clearing deleted_at and replacing code and industry). The
// active-code partial index guards code uniqueness; a violation surfaces as
// ErrCodeTaken.
func CreateManager(ctx context.Context, db *gorm.DB, managerID int64, code, industry string) error {
	var existing domain.Manager
	err := db.WithContext(ctx).Unscoped().First(&existing, "manager_id = ?", managerID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		m := &domain.Manager{
			ManagerID: managerID,
			Code:      code,
			Industry:  industry,
			CreatedAt: time.Now().UTC(),
		}
		return translateCodeConstraint(db.WithContext(ctx).Create(m).Error)
	case err != nil:
		return err
	}

	// Re-activation after soft delete, or an idempotent repeat.
	return translateCodeConstraint(db.WithContext(ctx).Unscoped().
		Model(&domain.Manager{}).
		Where("manager_id = ?", managerID).
		Updates(map[string]any{
			"code":       code,
			"industry":   industry,
			"deleted_at": nil,
		}).Error)
}

// GetManager fetches an active manager. Soft-deleted rows are invisible here.
func GetManager(ctx context.Context, db *gorm.DB, managerID int64) (*domain.Manager, error) {
	var m domain.Manager
	err := db.WithContext(ctx).First(&m, "manager_id = ?", managerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetManagerByCode finds the active manager owning an invitation code.
func GetManagerByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Manager, error) {
	var m domain.Manager
	err := db.WithContext(ctx).First(&m, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CodeExists probes whether an invitation code is held by any active manager.
// Used by the generator's uniqueness loop.
func CodeExists(ctx context.Context, db *gorm.DB, code string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Manager{}).
		Where("code = ?", code).
		Count(&n).Error
	return n > 0, err
}

// SoftDeleteManager marks a manager deleted. The caller is responsible for
// disconnecting the manager's active connections in the same transaction.
func SoftDeleteManager(ctx context.Context, db *gorm.DB, managerID int64) error {
	return db.WithContext(ctx).Delete(&domain.Manager{}, "manager_id = ?", managerID).Error
}

// CreateWorker inserts a worker row, or re-activates a soft-deleted one.
func CreateWorker(ctx context.Context, db *gorm.DB, workerID int64) error {
	var existing domain.Worker
	err := db.WithContext(ctx).Unscoped().First(&existing, "worker_id = ?", workerID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return db.WithContext(ctx).Create(&domain.Worker{
			WorkerID:  workerID,
			CreatedAt: time.Now().UTC(),
		}).Error
	case err != nil:
		return err
	}
	return db.WithContext(ctx).Unscoped().
		Model(&domain.Worker{}).
		Where("worker_id = ?", workerID).
		Update("deleted_at", nil).Error
}

// GetWorker fetches an active worker.
func GetWorker(ctx context.Context, db *gorm.DB, workerID int64) (*domain.Worker, error) {
	var w domain.Worker
	err := db.WithContext(ctx).First(&w, "worker_id = ?", workerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// SoftDeleteWorker marks a worker deleted.
func SoftDeleteWorker(ctx context.Context, db *gorm.DB, workerID int64) error {
	return db.WithContext(ctx).Delete(&domain.Worker{}, "worker_id = ?", workerID).Error
}

// GetRole returns the single active role for a user: manager, worker, or
// none. A user may carry a soft-deleted row of the other role after a
// reset-and-switch; only the active one counts.
func GetRole(ctx context.Context, db *gorm.DB, userID int64) (string, error) {
	var n int64
	if err := db.WithContext(ctx).Model(&domain.Manager{}).
		Where("manager_id = ?", userID).Count(&n).Error; err != nil {
		return domain.RoleNone, err
	}
	if n > 0 {
		return domain.RoleManager, nil
	}
	if err := db.WithContext(ctx).Model(&domain.Worker{}).
		Where("worker_id = ?", userID).Count(&n).Error; err != nil {
		return domain.RoleNone, err
	}
	if n > 0 {
		return domain.RoleWorker, nil
	}
	return domain.RoleNone, nil
}
