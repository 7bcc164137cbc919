// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Connection
// model.
//
// The two partial unique indexes created in db.go resolve bind races: no
// application-level mutex exists, the database IS the mutex. A losing INSERT
// fails deterministically and is translated into the typed error naming the
// violated invariant.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/bridgeos/go-bridge-backend/internal/domain"
)

// CreateConnection inserts an active connection binding a worker to a
// manager on a bot slot. On a unique violation it returns ErrSlotOccupied or
// ErrWorkerAlreadyConnected depending on which index rejected the row.
func CreateConnection(ctx context.Context, db *gorm.DB, managerID, workerID int64, botSlot int) (*domain.Connection, error) {
	c := &domain.Connection{
		ManagerID:   managerID,
		WorkerID:    workerID,
		BotSlot:     botSlot,
		Status:      domain.ConnectionActive,
		ConnectedAt: time.Now().UTC(),
	}
	if err := translateConnectionConstraint(db.WithContext(ctx).Create(c).Error); err != nil {
		return nil, err
	}
	return c, nil
}

// Disconnect flips an active connection to disconnected and stamps
// disconnected_at. It is an UPDATE, never a DELETE, so history survives.
// Repeat calls return ErrAlreadyDisconnected.
func Disconnect(ctx context.Context, db *gorm.DB, connectionID int64) error {
	res := db.WithContext(ctx).Model(&domain.Connection{}).
		Where("connection_id = ? AND status = ?", connectionID, domain.ConnectionActive).
		Updates(map[string]any{
			"status":          domain.ConnectionDisconnected,
			"disconnected_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyDisconnected
	}
	return nil
}

// DisconnectAllForUser disconnects every active connection in which the user
// participates on either side. Used by the soft-delete flows; idempotent.
func DisconnectAllForUser(ctx context.Context, db *gorm.DB, userID int64) (int64, error) {
	res := db.WithContext(ctx).Model(&domain.Connection{}).
		Where("status = ? AND (manager_id = ? OR worker_id = ?)", domain.ConnectionActive, userID, userID).
		Updates(map[string]any{
			"status":          domain.ConnectionDisconnected,
			"disconnected_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// GetConnection fetches a connection by ID regardless of status.
func GetConnection(ctx context.Context, db *gorm.DB, connectionID int64) (*domain.Connection, error) {
	var c domain.Connection
	err := db.WithContext(ctx).First(&c, "connection_id = ?", connectionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetActiveForManagerSlot returns the active connection on a specific slot of
// a manager, or nil when the slot is free.
func GetActiveForManagerSlot(ctx context.Context, db *gorm.DB, managerID int64, botSlot int) (*domain.Connection, error) {
	var c domain.Connection
	err := db.WithContext(ctx).
		Where("manager_id = ? AND bot_slot = ? AND status = ?", managerID, botSlot, domain.ConnectionActive).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetActiveForWorker returns the single active connection of a worker, or
// nil when the worker is unbound.
func GetActiveForWorker(ctx context.Context, db *gorm.DB, workerID int64) (*domain.Connection, error) {
	var c domain.Connection
	err := db.WithContext(ctx).
		Where("worker_id = ? AND status = ?", workerID, domain.ConnectionActive).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListActiveForManager returns the manager's active connections ordered by
// slot (at most one per slot, so at most five).
func ListActiveForManager(ctx context.Context, db *gorm.DB, managerID int64) ([]domain.Connection, error) {
	var out []domain.Connection
	err := db.WithContext(ctx).
		Where("manager_id = ? AND status = ?", managerID, domain.ConnectionActive).
		Order("bot_slot ASC").
		Find(&out).Error
	return out, err
}

// ListAllActive returns every active connection, newest first. Read-model
// only.
func ListAllActive(ctx context.Context, db *gorm.DB) ([]domain.Connection, error) {
	var out []domain.Connection
	err := db.WithContext(ctx).
		Where("status = ?", domain.ConnectionActive).
		Order("connected_at DESC").
		Find(&out).Error
	return out, err
}
