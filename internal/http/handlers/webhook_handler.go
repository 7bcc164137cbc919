// Billing webhook receiver.
//
// Contract:
//   - Authenticity: HMAC-SHA-256 over the raw request body, hex-encoded in
//     the X-Signature header, compared in constant time. Verification
//     failure answers 401 with no side effects.
//   - Response discipline: once the signature verifies, the answer is ALWAYS
//     200 — even on internal failure. The event is logged for reconciliation;
//     provider retry storms are worse than delayed reconciliation.
//   - Idempotency: transitions are UPSERTs keyed on manager_id, so replays
//     converge on the same row.
//   - The out-of-band chat notification to the manager is best-effort and
//     never fails the webhook.
package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bridgeos/go-bridge-backend/internal/domain"
	"github.com/bridgeos/go-bridge-backend/internal/http/middleware"
	"github.com/bridgeos/go-bridge-backend/internal/services"
	"github.com/bridgeos/go-bridge-backend/internal/transport"
)

// signatureHeader carries the provider's hex HMAC tag.
const signatureHeader = "X-Signature"

// maxWebhookBody bounds how much of the request body is read.
const maxWebhookBody = 1 << 20

// WebhookHandler verifies and applies billing events.
type WebhookHandler struct {
	Secret        string
	Subscriptions *services.SubscriptionService
	Fleet         transport.Fleet
	NotifyTimeout time.Duration
}

// webhookEnvelope is the provider's payload shape: the event name and custom
// routing data live under meta, the subscription attributes under data.
type webhookEnvelope struct {
	Meta struct {
		EventName  string         `json:"event_name"`
		CustomData map[string]any `json:"custom_data"`
	} `json:"meta"`
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			RenewsAt  *time.Time `json:"renews_at"`
			EndsAt    *time.Time `json:"ends_at"`
			Cancelled bool       `json:"cancelled"`
			URLs      struct {
				CustomerPortal string `json:"customer_portal"`
			} `json:"urls"`
		} `json:"attributes"`
	} `json:"data"`
}

// HandleBillingWebhook is the POST handler for the provider's event stream.
func (h *WebhookHandler) HandleBillingWebhook(c *gin.Context) {
	lg := middleware.LoggerFrom(c)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}

	sig := c.GetHeader(signatureHeader)
	if sig == "" || !verifySignature(body, sig, h.Secret) {
		middleware.CountWebhookEvent("", "unauthorized")
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid signature")
		return
	}

	// Authenticated from here on: the response is 200 no matter what.
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		lg.Error().Err(err).Msg("webhook payload unparseable after valid signature")
		middleware.CountWebhookEvent("", "failed")
		ok(c, http.StatusOK, gin.H{"status": "error", "note": "unparseable payload"})
		return
	}

	kind := env.Meta.EventName
	managerID, found := managerIDFromCustomData(env.Meta.CustomData)
	if !found {
		lg.Warn().Str("event", kind).Msg("webhook event without manager_id custom data")
		middleware.CountWebhookEvent(kind, "failed")
		ok(c, http.StatusOK, gin.H{"status": "success", "note": "no manager_id"})
		return
	}

	sub, err := h.Subscriptions.ApplyEvent(c.Request.Context(), services.BillingEvent{
		Kind:              kind,
		ManagerID:         managerID,
		ExternalID:        env.Data.ID,
		CustomerPortalURL: env.Data.Attributes.URLs.CustomerPortal,
		RenewsAt:          env.Data.Attributes.RenewsAt,
		EndsAt:            env.Data.Attributes.EndsAt,
		Cancelled:         env.Data.Attributes.Cancelled,
	})
	switch {
	case errors.Is(err, services.ErrUnknownEvent):
		lg.Warn().Str("event", kind).Msg("unhandled webhook event kind")
		middleware.CountWebhookEvent(kind, "unknown")
	case err != nil:
		lg.Error().Err(err).Str("event", kind).Int64("manager_id", managerID).
			Msg("webhook event failed after authentication; logged for reconciliation")
		middleware.CountWebhookEvent(kind, "failed")
	default:
		middleware.CountWebhookEvent(kind, "applied")
		if sub != nil {
			h.notifyManager(managerID, sub)
		}
	}

	ok(c, http.StatusOK, gin.H{"status": "success"})
}

// notifyManager tells the manager about the new billing state through any
// available bot. Failures are logged and dropped.
func (h *WebhookHandler) notifyManager(managerID int64, sub *domain.Subscription) {
	text := notificationText(sub)
	if text == "" || len(h.Fleet) == 0 {
		return
	}
	timeout := h.NotifyTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		for slot := 1; slot <= 5; slot++ {
			if !h.Fleet.Has(slot) {
				continue
			}
			if err := h.Fleet.Send(ctx, slot, managerID, text); err == nil {
				return
			}
		}
	}()
}

func notificationText(sub *domain.Subscription) string {
	switch sub.Status {
	case domain.SubscriptionActive:
		return "✅ Your subscription is active. Unlimited messages are enabled."
	case domain.SubscriptionCancelled:
		if sub.EndsAt != nil {
			return fmt.Sprintf("⚠️ Your subscription was cancelled. Access continues until %s.", sub.EndsAt.Format("2006-01-02"))
		}
		return "⚠️ Your subscription was cancelled."
	case domain.SubscriptionExpired:
		return "❌ Your subscription has expired."
	case domain.SubscriptionPaused:
		return "⏸️ Your subscription is paused (payment issue). Please update your payment method."
	}
	return ""
}

// verifySignature recomputes the HMAC tag and compares in constant time.
func verifySignature(body []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// managerIDFromCustomData extracts the mandatory routing key injected at
// checkout time. Providers serialize custom fields inconsistently, so both
// string and numeric shapes are accepted.
func managerIDFromCustomData(custom map[string]any) (int64, bool) {
	v, ok := custom["manager_id"]
	if !ok {
		return 0, false
	}
	switch id := v.(type) {
	case string:
		n, err := strconv.ParseInt(id, 10, 64)
		return n, err == nil
	case float64:
		return int64(id), true
	case json.Number:
		n, err := id.Int64()
		return n, err == nil
	}
	return 0, false
}
