// Package services defines the business logic for identity, connections,
// messaging, tasks, subscriptions, and extraction. This file centralizes
// common service-level error values so that they can be consistently returned
// by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; the bot
// front-end and HTTP handlers translate them into short localized messages
// and never surface the underlying constraint identifiers.
package services

import (
	"errors"

	"github.com/bridgeos/go-bridge-backend/internal/repo"
)

// Invariant violations surfaced by the connection manager. The store layer
// produces the first two from the partial unique indexes; they are re-exported
// here so callers need only one package for error checks.
var (
	// ErrSlotOccupied means the bot slot already holds an active worker for
	// this manager.
	ErrSlotOccupied = repo.ErrSlotOccupied

	// ErrWorkerAlreadyConnected means the worker already has an active
	// connection.
	ErrWorkerAlreadyConnected = repo.ErrWorkerAlreadyConnected

	// ErrAlreadyDisconnected is the idempotent-unbind outcome; callers that
	// only need the end state treat it as success.
	ErrAlreadyDisconnected = repo.ErrAlreadyDisconnected

	// ErrInvalidSlot is returned when a bind names a slot outside 1..5.
	ErrInvalidSlot = errors.New("bot slot out of range")

	// ErrManagerGone means the bind's manager does not exist or is
	// soft-deleted.
	ErrManagerGone = errors.New("manager not found")

	// ErrWorkerGone means the bind's worker does not exist or is
	// soft-deleted.
	ErrWorkerGone = errors.New("worker not found")

	// ErrCodeCollision is returned when invitation-code generation exhausts
	// its attempt budget without finding a free code.
	ErrCodeCollision = errors.New("could not generate a unique invitation code")

	// ErrInvalidCode is returned when a redeemed invitation code has the
	// wrong shape or names no active manager.
	ErrInvalidCode = errors.New("invalid invitation code")
)

// Pipeline and task errors.
var (
	// ErrNotRegistered means the sender has no user row or no active role.
	ErrNotRegistered = errors.New("user not registered")

	// ErrNotConnected means the sender has no active connection to carry the
	// message on this slot.
	ErrNotConnected = errors.New("no active connection")

	// ErrWrongSlot means a worker's message arrived on a bot other than the
	// one its connection is bound to. Dropped; visible only in logs.
	ErrWrongSlot = errors.New("message arrived on the wrong bot slot")

	// ErrLimitReached means the free-tier allocation is exhausted and the
	// manager is not entitled.
	ErrLimitReached = errors.New("free message limit reached")

	// ErrTranslationFailed wraps translator failures that survived retries.
	ErrTranslationFailed = errors.New("translation failed")

	// ErrTransportFailed wraps outbound delivery failures. The persisted
	// message is never rolled back on this error.
	ErrTransportFailed = errors.New("message delivery failed")

	// ErrEmptyTask is returned when a task trigger carries no description
	// after stripping the prefix.
	ErrEmptyTask = errors.New("task description is empty")

	// ErrForbidden covers task-completion precondition failures other than
	// the idempotent repeat: unknown task, dead connection, wrong actor.
	ErrForbidden = errors.New("operation not permitted")

	// ErrAlreadyCompleted is the idempotent task-completion outcome; the row
	// is unchanged and callers treat it as success.
	ErrAlreadyCompleted = errors.New("task already completed")

	// ErrUnknownEvent marks a webhook event kind outside the handled set. The
	// receiver logs it and still acknowledges.
	ErrUnknownEvent = errors.New("unknown webhook event kind")
)
