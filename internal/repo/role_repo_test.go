package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/bridgeos/go-bridge-backend/internal/domain"
)

func TestGetRole_SingleActiveRole(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if role, err := GetRole(ctx, db, 1); err != nil || role != domain.RoleNone {
		t.Fatalf("fresh user: role=%q err=%v", role, err)
	}

	if _, err := UpsertUser(ctx, db, 1, "u", "English", ""); err != nil {
		t.Fatalf("user: %v", err)
	}
	if err := CreateManager(ctx, db, 1, "BRIDGE-11111", "construction"); err != nil {
		t.Fatalf("manager: %v", err)
	}
	if role, _ := GetRole(ctx, db, 1); role != domain.RoleManager {
		t.Fatalf("expected manager, got %q", role)
	}

	// Reset-and-switch: the soft-deleted manager row coexists with an
	// active worker row; the returned role is the active one.
	if err := SoftDeleteManager(ctx, db, 1); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if role, _ := GetRole(ctx, db, 1); role != domain.RoleNone {
		t.Fatalf("deleted manager must not count, got %q", role)
	}
	if err := CreateWorker(ctx, db, 1); err != nil {
		t.Fatalf("worker: %v", err)
	}
	if role, _ := GetRole(ctx, db, 1); role != domain.RoleWorker {
		t.Fatalf("expected worker after switch, got %q", role)
	}
}

func TestCreateManager_ReactivationClearsDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := UpsertUser(ctx, db, 2, "u", "English", ""); err != nil {
		t.Fatalf("user: %v", err)
	}
	if err := CreateManager(ctx, db, 2, "BRIDGE-22222", "dairy_farm"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := SoftDeleteManager(ctx, db, 2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if m, _ := GetManager(ctx, db, 2); m != nil {
		t.Fatalf("soft-deleted manager visible: %+v", m)
	}

	// Re-activation with a new code and industry.
	if err := CreateManager(ctx, db, 2, "BRIDGE-33333", "hospitality"); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	m, err := GetManager(ctx, db, 2)
	if err != nil || m == nil {
		t.Fatalf("reactivated manager missing: %v", err)
	}
	if m.Code != "BRIDGE-33333" || m.Industry != "hospitality" {
		t.Fatalf("reactivation fields: %+v", m)
	}
}

func TestManagerCode_UniqueAmongActiveOnly(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, id := range []int64{1, 2} {
		if _, err := UpsertUser(ctx, db, id, "u", "English", ""); err != nil {
			t.Fatalf("user %d: %v", id, err)
		}
	}
	if err := CreateManager(ctx, db, 1, "BRIDGE-55555", "other"); err != nil {
		t.Fatalf("first: %v", err)
	}

	// Same code for an active second manager is rejected by name.
	err := CreateManager(ctx, db, 2, "BRIDGE-55555", "other")
	if !errors.Is(err, ErrCodeTaken) {
		t.Fatalf("expected ErrCodeTaken, got %v", err)
	}

	// Once the holder is soft-deleted, the code is reusable.
	if err := SoftDeleteManager(ctx, db, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := CreateManager(ctx, db, 2, "BRIDGE-55555", "other"); err != nil {
		t.Fatalf("code should be free again: %v", err)
	}

	taken, err := CodeExists(ctx, db, "BRIDGE-55555")
	if err != nil || !taken {
		t.Fatalf("CodeExists: taken=%v err=%v", taken, err)
	}
	taken, err = CodeExists(ctx, db, "BRIDGE-00000")
	if err != nil || taken {
		t.Fatalf("unknown code reported taken: %v", err)
	}
}

func TestGetManagerByCode(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := UpsertUser(ctx, db, 3, "u", "English", ""); err != nil {
		t.Fatalf("user: %v", err)
	}
	if err := CreateManager(ctx, db, 3, "BRIDGE-44444", "agriculture"); err != nil {
		t.Fatalf("create: %v", err)
	}

	m, err := GetManagerByCode(ctx, db, "BRIDGE-44444")
	if err != nil || m == nil || m.ManagerID != 3 {
		t.Fatalf("lookup mismatch: %+v err=%v", m, err)
	}
	if m, err := GetManagerByCode(ctx, db, "BRIDGE-99999"); err != nil || m != nil {
		t.Fatalf("unknown code must be (nil, nil): %+v err=%v", m, err)
	}
}

func TestWorkerLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := UpsertUser(ctx, db, 9, "w", "English", ""); err != nil {
		t.Fatalf("user: %v", err)
	}
	if err := CreateWorker(ctx, db, 9); err != nil {
		t.Fatalf("create: %v", err)
	}
	// Idempotent repeat.
	if err := CreateWorker(ctx, db, 9); err != nil {
		t.Fatalf("repeat create: %v", err)
	}
	if w, _ := GetWorker(ctx, db, 9); w == nil {
		t.Fatalf("worker missing")
	}
	if err := SoftDeleteWorker(ctx, db, 9); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if w, _ := GetWorker(ctx, db, 9); w != nil {
		t.Fatalf("soft-deleted worker visible: %+v", w)
	}
	if err := CreateWorker(ctx, db, 9); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if w, _ := GetWorker(ctx, db, 9); w == nil {
		t.Fatalf("reactivated worker missing")
	}
}

func TestUpsertUser_RefreshesProfile(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u, err := UpsertUser(ctx, db, 5, "Ana", "English", "female")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	created := u.CreatedAt

	u, err = UpsertUser(ctx, db, 5, "Ana Maria", "Español", "female")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if u.DisplayName != "Ana Maria" || u.UILanguage != "Español" {
		t.Fatalf("profile not refreshed: %+v", u)
	}
	if !u.CreatedAt.Equal(created) {
		t.Fatalf("created_at must not move on upsert")
	}
}
