package repo

import (
	"context"
	"testing"
	"time"

	"github.com/bridgeos/go-bridge-backend/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestUpsertSubscription_CreateThenUpdate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	sub, err := UpsertSubscription(ctx, db, 1, SubscriptionPatch{
		Status:     domain.SubscriptionActive,
		ExternalID: strPtr("sub_123"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sub.Status != domain.SubscriptionActive || sub.ExternalID != "sub_123" {
		t.Fatalf("unexpected row: %+v", sub)
	}

	ends := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)
	sub, err = UpsertSubscription(ctx, db, 1, SubscriptionPatch{
		Status: domain.SubscriptionCancelled,
		EndsAt: &ends,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if sub.Status != domain.SubscriptionCancelled || sub.EndsAt == nil || !sub.EndsAt.Equal(ends) {
		t.Fatalf("cancel transition mismatch: %+v", sub)
	}
	// Fields not in the patch survive.
	if sub.ExternalID != "sub_123" {
		t.Fatalf("external_id must persist across patches: %+v", sub)
	}

	// Still exactly one row for the manager.
	var n int64
	if err := db.Model(&domain.Subscription{}).Where("manager_id = ?", int64(1)).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row, got %d", n)
	}
}

func TestUpsertSubscription_ReplayIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	patch := SubscriptionPatch{
		Status:     domain.SubscriptionActive,
		ExternalID: strPtr("sub_evt"),
	}
	first, err := UpsertSubscription(ctx, db, 3, patch)
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	second, err := UpsertSubscription(ctx, db, 3, patch)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}

	if second.SubscriptionID != first.SubscriptionID {
		t.Fatalf("replay must not create a new row: %d vs %d", second.SubscriptionID, first.SubscriptionID)
	}
	if second.Status != first.Status || second.ExternalID != first.ExternalID {
		t.Fatalf("replay must converge on the same state: %+v vs %+v", second, first)
	}
	if second.UpdatedAt.Before(first.UpdatedAt) {
		t.Fatalf("updated_at must be monotonic")
	}
}

func TestUpsertSubscription_ClearEndsAt(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ends := time.Now().UTC().Add(time.Hour)
	if _, err := UpsertSubscription(ctx, db, 4, SubscriptionPatch{
		Status: domain.SubscriptionCancelled,
		EndsAt: &ends,
	}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	sub, err := UpsertSubscription(ctx, db, 4, SubscriptionPatch{
		Status:      domain.SubscriptionActive,
		ClearEndsAt: true,
	})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if sub.Status != domain.SubscriptionActive || sub.EndsAt != nil {
		t.Fatalf("resume must null ends_at: %+v", sub)
	}
}

func TestGetSubscription_NilWhenAbsent(t *testing.T) {
	db := newTestDB(t)
	sub, err := GetSubscription(context.Background(), db, 999)
	if err != nil || sub != nil {
		t.Fatalf("expected (nil, nil), got %+v err=%v", sub, err)
	}
}
