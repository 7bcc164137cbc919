// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file centralizes the store-level invariant errors and
// the translation of driver constraint violations into them. The store layer
// is the only place that performs this translation.
package repo

import (
	"errors"
	"strings"
)

var (
	// ErrSlotOccupied means the (manager_id, bot_slot) partial unique index
	// rejected a bind: the slot already holds an active worker.
	ErrSlotOccupied = errors.New("bot slot already occupied for this manager")

	// ErrWorkerAlreadyConnected means the (worker_id) partial unique index
	// rejected a bind: the worker already has an active connection.
	ErrWorkerAlreadyConnected = errors.New("worker already has an active connection")

	// ErrAlreadyDisconnected is returned by Disconnect when the connection is
	// not active. Callers that only need the end state treat it as success.
	ErrAlreadyDisconnected = errors.New("connection already disconnected")

	// ErrCodeTaken means the active-manager code index rejected an insert.
	ErrCodeTaken = errors.New("invitation code already in use")
)

// translateConnectionConstraint maps a unique-violation error from a bind
// INSERT to the typed error naming the violated invariant. PostgreSQL reports
// the index name; SQLite reports the indexed column list, so both shapes are
// recognized. Any other error passes through untouched.
func translateConnectionConstraint(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, idxManagerSlotActive),
		strings.Contains(msg, "connections.bot_slot"):
		return ErrSlotOccupied
	case strings.Contains(msg, idxWorkerActive),
		strings.Contains(msg, "connections.worker_id"):
		return ErrWorkerAlreadyConnected
	}
	return err
}

// translateCodeConstraint maps a unique violation on the active-manager code
// index to ErrCodeTaken.
func translateCodeConstraint(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, idxManagerCodeActive) || strings.Contains(msg, "managers.code") {
		return ErrCodeTaken
	}
	return err
}
