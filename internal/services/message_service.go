// Package services – MessageService
//
// This file implements the message pipeline: locate the connection, gate on
// usage, assemble translation context, translate, persist, then deliver.
//
// Ordering contract: the Message row is committed BEFORE the outbound send.
// History must never show delivered messages that were not persisted; the
// reverse (persisted but not delivered) is recoverable through the platform's
// own retransmit queue. A failed translation leaves no Message row.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/bridgeos/go-bridge-backend/internal/config"
	"github.com/bridgeos/go-bridge-backend/internal/domain"
	"github.com/bridgeos/go-bridge-backend/internal/repo"
	"github.com/bridgeos/go-bridge-backend/internal/translate"
	"github.com/bridgeos/go-bridge-backend/internal/transport"
)

// MessageService runs the translate-and-relay pipeline.
type MessageService struct {
	DB            *gorm.DB
	Translator    translate.Translator
	Fleet         transport.Fleet
	Subscriptions *SubscriptionService

	ContextSize      int
	FreeMessageLimit int
	EnforceLimits    bool
	IsTestUser       func(userID int64) bool
	Industries       map[string]config.Industry
	TransportTimeout time.Duration
}

// Delivery reports the outcome of one pipeline run.
type Delivery struct {
	Message     *domain.Message
	Connection  *domain.Connection
	RecipientID int64
	Translated  string

	// LastFreeMessage is set when this send consumed the final free message
	// and the manager is now blocked.
	LastFreeMessage bool

	// Delivered is false when persistence succeeded but the outbound send
	// failed; the message stays in history.
	Delivered bool
}

// DeliverText runs the full pipeline for a text message arriving on botSlot.
func (s *MessageService) DeliverText(ctx context.Context, senderID int64, botSlot int, text string) (*Delivery, error) {
	sender, err := repo.GetUser(ctx, s.DB, senderID)
	if err != nil {
		return nil, err
	}
	if sender == nil {
		return nil, ErrNotRegistered
	}

	role, err := repo.GetRole(ctx, s.DB, senderID)
	if err != nil {
		return nil, err
	}

	// Step 1: locate the connection.
	var conn *domain.Connection
	switch role {
	case domain.RoleManager:
		conn, err = repo.GetActiveForManagerSlot(ctx, s.DB, senderID, botSlot)
	case domain.RoleWorker:
		conn, err = repo.GetActiveForWorker(ctx, s.DB, senderID)
	default:
		return nil, ErrNotRegistered
	}
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, ErrNotConnected
	}
	if role == domain.RoleWorker && conn.BotSlot != botSlot {
		// A worker cannot be served by a different bot than it was bound to.
		log.Warn().
			Int64("worker_id", senderID).
			Int("arrived_slot", botSlot).
			Int("bound_slot", conn.BotSlot).
			Msg("dropping message on wrong slot")
		return nil, ErrWrongSlot
	}

	// Step 2: usage gating, manager side only. Workers are never counted.
	lastFree := false
	if role == domain.RoleManager && s.EnforceLimits && !s.isWhitelisted(senderID) {
		entitled, err := s.Subscriptions.IsEntitled(ctx, senderID)
		if err != nil {
			return nil, err
		}
		if !entitled {
			_, blocked, allowed, err := repo.IncrementUsage(ctx, s.DB, senderID, s.FreeMessageLimit)
			if err != nil {
				return nil, err
			}
			if !allowed {
				return nil, ErrLimitReached
			}
			lastFree = blocked
		}
	}

	recipient, err := repo.GetUser(ctx, s.DB, conn.Counterpart(senderID))
	if err != nil {
		return nil, err
	}
	if recipient == nil {
		return nil, ErrNotConnected
	}

	// Step 3: context assembly.
	history, err := repo.TranslationContext(ctx, s.DB, conn.ConnectionID, s.ContextSize)
	if err != nil {
		return nil, err
	}

	// Step 4: translation. Retries and per-attempt deadlines live in the
	// provider; a failure here leaves no Message row.
	translated, err := s.translateFor(ctx, conn, sender, recipient, text, history)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranslationFailed, err)
	}

	// Step 5: persist, then deliver.
	msg, err := repo.CreateMessage(ctx, s.DB, conn.ConnectionID, senderID, text, translated)
	if err != nil {
		return nil, err
	}

	out := &Delivery{
		Message:         msg,
		Connection:      conn,
		RecipientID:     recipient.UserID,
		Translated:      translated,
		LastFreeMessage: lastFree,
	}

	senderName := sender.DisplayName
	if senderName == "" {
		senderName = role
	}
	sendCtx, cancel := context.WithTimeout(ctx, s.transportTimeout())
	defer cancel()
	if err := s.Fleet.Send(sendCtx, conn.BotSlot, recipient.UserID, fmt.Sprintf("🗣️ %s: %s", senderName, translated)); err != nil {
		log.Error().Err(err).
			Int64("message_id", msg.MessageID).
			Int64("recipient_id", recipient.UserID).
			Msg("delivery failed after persist")
		return out, fmt.Errorf("%w: %v", ErrTransportFailed, err)
	}
	out.Delivered = true

	log.Info().
		Int64("message_id", msg.MessageID).
		Int64("connection_id", conn.ConnectionID).
		Int64("sender_id", senderID).
		Int("bot_slot", conn.BotSlot).
		Msg("message relayed")
	return out, nil
}

// TranslationContextFor exposes the read-side context window (C6).
func (s *MessageService) TranslationContextFor(ctx context.Context, connectionID int64, k int) ([]repo.ContextMessage, error) {
	return repo.TranslationContext(ctx, s.DB, connectionID, k)
}

func (s *MessageService) translateFor(ctx context.Context, conn *domain.Connection, sender, recipient *domain.User, text string, history []repo.ContextMessage) (string, error) {
	industryName, industryDesc := s.industryContext(ctx, conn.ManagerID)

	entries := make([]translate.ContextEntry, 0, len(history))
	for _, h := range history {
		entries = append(entries, translate.ContextEntry{
			SenderLanguage: h.SenderLanguage,
			Text:           h.Text,
			SentAt:         h.SentAt,
		})
	}

	return s.Translator.Translate(ctx, translate.Request{
		Text:                text,
		FromLanguage:        sender.UILanguage,
		ToLanguage:          recipient.UILanguage,
		TargetGender:        recipient.Gender,
		IndustryName:        industryName,
		IndustryDescription: industryDesc,
		Context:             entries,
	})
}

// industryContext resolves the manager's industry to its display name and
// description, falling back to the generic workplace entry.
func (s *MessageService) industryContext(ctx context.Context, managerID int64) (string, string) {
	key := "other"
	if m, err := repo.GetManager(ctx, s.DB, managerID); err == nil && m != nil && m.Industry != "" {
		key = m.Industry
	}
	ind, ok := s.Industries[key]
	if !ok {
		ind = s.Industries["other"]
	}
	return ind.Name, ind.Description
}

func (s *MessageService) isWhitelisted(userID int64) bool {
	return s.IsTestUser != nil && s.IsTestUser(userID)
}

func (s *MessageService) transportTimeout() time.Duration {
	if s.TransportTimeout > 0 {
		return s.TransportTimeout
	}
	return 5 * time.Second
}

// IsTransient reports whether an error from the pipeline is a retried-and-
// exhausted transient kind, for which callers show a generic try-again
// message.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTranslationFailed) || errors.Is(err, ErrTransportFailed)
}
