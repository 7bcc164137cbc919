// Package services – SubscriptionService
//
// This file implements the subscription state machine. Persisted status is
// one of free/active/cancelled/expired/paused; the effective entitlement is
// a pure function of (status, ends_at, now) on the domain model. Transitions
// are driven exclusively by webhook events — nothing else mutates status.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/bridgeos/go-bridge-backend/internal/config"
	"github.com/bridgeos/go-bridge-backend/internal/domain"
	"github.com/bridgeos/go-bridge-backend/internal/repo"
)

// Billing event kinds accepted from the webhook receiver.
const (
	EventSubscriptionCreated          = "subscription_created"
	EventSubscriptionUpdated          = "subscription_updated"
	EventSubscriptionCancelled        = "subscription_cancelled"
	EventSubscriptionExpired          = "subscription_expired"
	EventSubscriptionPaused           = "subscription_paused"
	EventSubscriptionResumed          = "subscription_resumed"
	EventSubscriptionPaymentFailed    = "subscription_payment_failed"
	EventSubscriptionPaymentRecovered = "subscription_payment_recovered"
	EventSubscriptionPaymentSuccess   = "subscription_payment_success"
	EventSubscriptionPlanChanged      = "subscription_plan_changed"
)

// BillingEvent is the provider-agnostic shape a webhook event reduces to.
type BillingEvent struct {
	Kind              string
	ManagerID         int64
	ExternalID        string
	CustomerPortalURL string
	RenewsAt          *time.Time
	EndsAt            *time.Time
	Cancelled         bool // provider's "cancelled" attribute on update events
}

// SubscriptionService derives entitlement and applies billing events.
type SubscriptionService struct {
	DB       *gorm.DB
	Checkout config.CheckoutConfig
}

// NewSubscriptionService constructs a SubscriptionService.
func NewSubscriptionService(db *gorm.DB, checkout config.CheckoutConfig) *SubscriptionService {
	return &SubscriptionService{DB: db, Checkout: checkout}
}

// Get returns the manager's subscription row, or nil.
func (s *SubscriptionService) Get(ctx context.Context, managerID int64) (*domain.Subscription, error) {
	return repo.GetSubscription(ctx, s.DB, managerID)
}

// IsEntitled reports whether the manager's messages bypass usage gating.
// No row means not entitled.
func (s *SubscriptionService) IsEntitled(ctx context.Context, managerID int64) (bool, error) {
	sub, err := repo.GetSubscription(ctx, s.DB, managerID)
	if err != nil {
		return false, err
	}
	if sub == nil {
		return false, nil
	}
	return sub.EntitledAt(time.Now().UTC()), nil
}

// ApplyEvent maps one billing event onto a status transition and upserts it
// keyed on manager_id, which makes replays idempotent: the same event twice
// converges on the same row. Unknown kinds return ErrUnknownEvent; the
// receiver logs and still acknowledges them.
func (s *SubscriptionService) ApplyEvent(ctx context.Context, ev BillingEvent) (*domain.Subscription, error) {
	patch := repo.SubscriptionPatch{}
	if ev.ExternalID != "" {
		patch.ExternalID = &ev.ExternalID
	}
	if ev.CustomerPortalURL != "" {
		patch.CustomerPortalURL = &ev.CustomerPortalURL
	}
	patch.RenewsAt = ev.RenewsAt
	patch.EndsAt = ev.EndsAt

	switch ev.Kind {
	case EventSubscriptionCreated, EventSubscriptionResumed, EventSubscriptionPaymentRecovered:
		patch.Status = domain.SubscriptionActive
		if ev.Kind == EventSubscriptionResumed {
			patch.EndsAt = nil
			patch.ClearEndsAt = true
		}

	case EventSubscriptionUpdated, EventSubscriptionPlanChanged:
		current, err := repo.GetSubscription(ctx, s.DB, ev.ManagerID)
		if err != nil {
			return nil, err
		}
		switch {
		case ev.Cancelled:
			patch.Status = domain.SubscriptionCancelled
		case current != nil:
			patch.Status = current.Status
		default:
			// First contact through an update event: treat as created.
			patch.Status = domain.SubscriptionActive
		}

	case EventSubscriptionPaymentSuccess:
		current, err := repo.GetSubscription(ctx, s.DB, ev.ManagerID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			// Nothing to refresh; a created event will follow.
			return nil, nil
		}
		patch.Status = current.Status

	case EventSubscriptionCancelled:
		patch.Status = domain.SubscriptionCancelled

	case EventSubscriptionExpired:
		patch.Status = domain.SubscriptionExpired

	case EventSubscriptionPaused, EventSubscriptionPaymentFailed:
		patch.Status = domain.SubscriptionPaused

	default:
		return nil, ErrUnknownEvent
	}

	sub, err := repo.UpsertSubscription(ctx, s.DB, ev.ManagerID, patch)
	if err != nil {
		return nil, err
	}
	log.Info().
		Int64("manager_id", ev.ManagerID).
		Str("event", ev.Kind).
		Str("status", sub.Status).
		Msg("subscription transition applied")
	return sub, nil
}

// CheckoutURL builds the hosted-checkout link with the manager ID in the
// custom-fields channel so the resulting webhook events route back here.
func (s *SubscriptionService) CheckoutURL(managerID int64) string {
	return fmt.Sprintf("https://%s/checkout/buy/%s?checkout[custom][manager_id]=%d",
		s.Checkout.StoreURL, s.Checkout.VariantID, managerID)
}

// PortalURL returns the stored customer-portal link, if any.
func (s *SubscriptionService) PortalURL(ctx context.Context, managerID int64) (string, error) {
	sub, err := repo.GetSubscription(ctx, s.DB, managerID)
	if err != nil || sub == nil {
		return "", err
	}
	return sub.CustomerPortalURL, nil
}
