// Package services – ConnectionService
//
// This file implements the connection manager: race-free bind and unbind of
// manager↔worker pairs on bot slots. Concurrency is resolved entirely by the
// two partial unique indexes in the store; there is no application-level
// mutex, and none is permitted. If two binds race, exactly one commits and
// the other fails deterministically with the error naming the conflicting
// invariant.
package services

import (
	"context"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/bridgeos/go-bridge-backend/internal/config"
	"github.com/bridgeos/go-bridge-backend/internal/domain"
	"github.com/bridgeos/go-bridge-backend/internal/repo"
)

// ConnectionService binds and unbinds manager↔worker connections.
type ConnectionService struct {
	DB *gorm.DB
}

// NewConnectionService constructs a ConnectionService.
func NewConnectionService(db *gorm.DB) *ConnectionService {
	return &ConnectionService{DB: db}
}

// Bind inserts an active connection for (manager, worker, slot). Endpoint
// existence is checked inside the same transaction as the insert; the
// partial unique indexes arbitrate concurrent binds.
func (s *ConnectionService) Bind(ctx context.Context, managerID, workerID int64, botSlot int) (*domain.Connection, error) {
	if botSlot < 1 || botSlot > config.MaxBotSlots {
		return nil, ErrInvalidSlot
	}

	var out *domain.Connection
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := repo.GetManager(ctx, tx, managerID)
		if err != nil {
			return err
		}
		if m == nil {
			return ErrManagerGone
		}
		w, err := repo.GetWorker(ctx, tx, workerID)
		if err != nil {
			return err
		}
		if w == nil {
			return ErrWorkerGone
		}
		out, err = repo.CreateConnection(ctx, tx, managerID, workerID, botSlot)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().
		Int64("connection_id", out.ConnectionID).
		Int64("manager_id", managerID).
		Int64("worker_id", workerID).
		Int("bot_slot", botSlot).
		Msg("connection bound")
	return out, nil
}

// Redeem binds the redeeming worker to the manager owning the invitation
// code, on the slot of the bot that received the click.
func (s *ConnectionService) Redeem(ctx context.Context, code string, workerID int64, botSlot int) (*domain.Connection, error) {
	if !ValidInvitationCode(code) {
		return nil, ErrInvalidCode
	}
	m, err := repo.GetManagerByCode(ctx, s.DB, code)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrInvalidCode
	}
	return s.Bind(ctx, m.ManagerID, workerID, botSlot)
}

// Unbind disconnects a connection. Idempotent: a repeat call returns
// ErrAlreadyDisconnected, which callers that only care about the end state
// treat as success.
func (s *ConnectionService) Unbind(ctx context.Context, connectionID int64) error {
	err := repo.Disconnect(ctx, s.DB, connectionID)
	if err == nil {
		log.Info().Int64("connection_id", connectionID).Msg("connection unbound")
	}
	return err
}

// GetActiveForManagerSlot returns the active connection on one slot of a
// manager, or nil.
func (s *ConnectionService) GetActiveForManagerSlot(ctx context.Context, managerID int64, botSlot int) (*domain.Connection, error) {
	return repo.GetActiveForManagerSlot(ctx, s.DB, managerID, botSlot)
}

// GetActiveForWorker returns the worker's single active connection, or nil.
func (s *ConnectionService) GetActiveForWorker(ctx context.Context, workerID int64) (*domain.Connection, error) {
	return repo.GetActiveForWorker(ctx, s.DB, workerID)
}

// ListActiveForManager returns the manager's active connections (at most
// one per slot).
func (s *ConnectionService) ListActiveForManager(ctx context.Context, managerID int64) ([]domain.Connection, error) {
	return repo.ListActiveForManager(ctx, s.DB, managerID)
}

// NextFreeSlot returns the lowest slot with no active connection for the
// manager, or 0 when every slot is taken.
func (s *ConnectionService) NextFreeSlot(ctx context.Context, managerID int64) (int, error) {
	conns, err := s.ListActiveForManager(ctx, managerID)
	if err != nil {
		return 0, err
	}
	occupied := map[int]bool{}
	for _, c := range conns {
		occupied[c.BotSlot] = true
	}
	for slot := 1; slot <= config.MaxBotSlots; slot++ {
		if !occupied[slot] {
			return slot, nil
		}
	}
	return 0, nil
}
