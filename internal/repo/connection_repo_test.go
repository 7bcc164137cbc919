package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"

	"github.com/bridgeos/go-bridge-backend/internal/domain"
)

// seedPair creates a user+manager and a user+worker so connections have
// valid endpoints.
func seedPair(t *testing.T, db *gorm.DB, managerID, workerID int64) {
	t.Helper()
	ctx := context.Background()
	for _, id := range []int64{managerID, workerID} {
		if _, err := UpsertUser(ctx, db, id, "u", "English", ""); err != nil {
			t.Fatalf("seed user %d: %v", id, err)
		}
	}
	if err := CreateManager(ctx, db, managerID, codeFor(managerID), "dairy_farm"); err != nil {
		t.Fatalf("seed manager: %v", err)
	}
	if err := CreateWorker(ctx, db, workerID); err != nil {
		t.Fatalf("seed worker: %v", err)
	}
}

func codeFor(id int64) string {
	return fmt.Sprintf("BRIDGE-%05d", 10000+id)
}

func TestCreateConnection_Success(t *testing.T) {
	db := newTestDB(t)
	seedPair(t, db, 1, 2)

	conn, err := CreateConnection(context.Background(), db, 1, 2, 3)
	if err != nil {
		t.Fatalf("CreateConnection: %v", err)
	}
	if conn.ConnectionID == 0 || conn.Status != domain.ConnectionActive || conn.BotSlot != 3 {
		t.Fatalf("unexpected connection: %+v", conn)
	}
	if conn.ConnectedAt.IsZero() {
		t.Fatalf("ConnectedAt unset")
	}
}

func TestCreateConnection_SlotOccupied(t *testing.T) {
	db := newTestDB(t)
	seedPair(t, db, 1, 2)
	seedPair(t, db, 7, 3) // second worker 3 under another manager row for seeding
	ctx := context.Background()

	if _, err := CreateConnection(ctx, db, 1, 2, 2); err != nil {
		t.Fatalf("first bind: %v", err)
	}
	// Worker 3 tries the same manager+slot: the (manager_id, bot_slot)
	// partial index must reject it by name.
	_, err := CreateConnection(ctx, db, 1, 3, 2)
	if !errors.Is(err, ErrSlotOccupied) {
		t.Fatalf("expected ErrSlotOccupied, got %v", err)
	}
}

func TestCreateConnection_WorkerAlreadyConnected(t *testing.T) {
	db := newTestDB(t)
	seedPair(t, db, 1, 2)
	seedPair(t, db, 5, 6)
	ctx := context.Background()

	if _, err := CreateConnection(ctx, db, 1, 2, 1); err != nil {
		t.Fatalf("first bind: %v", err)
	}
	// Same worker on a different manager and slot: the (worker_id) partial
	// index rejects.
	_, err := CreateConnection(ctx, db, 5, 2, 3)
	if !errors.Is(err, ErrWorkerAlreadyConnected) {
		t.Fatalf("expected ErrWorkerAlreadyConnected, got %v", err)
	}
}

func TestTwoWorkersRacingOneSlot(t *testing.T) {
	db := newTestDB(t)
	seedPair(t, db, 1, 2)
	seedPair(t, db, 9, 3)
	ctx := context.Background()

	_, err1 := CreateConnection(ctx, db, 1, 2, 2)
	_, err2 := CreateConnection(ctx, db, 1, 3, 2)

	// Exactly one commits; the other fails with the invariant's error.
	if err1 != nil {
		t.Fatalf("winner should commit: %v", err1)
	}
	if !errors.Is(err2, ErrSlotOccupied) {
		t.Fatalf("loser should hit ErrSlotOccupied, got %v", err2)
	}

	conns, err := ListActiveForManager(ctx, db, 1)
	if err != nil {
		t.Fatalf("ListActiveForManager: %v", err)
	}
	if len(conns) != 1 || conns[0].BotSlot != 2 || conns[0].WorkerID != 2 {
		t.Fatalf("expected exactly one active row on slot 2, got %+v", conns)
	}
}

func TestDisconnect_IdempotentAndPreservesHistory(t *testing.T) {
	db := newTestDB(t)
	seedPair(t, db, 1, 2)
	ctx := context.Background()

	conn, err := CreateConnection(ctx, db, 1, 2, 1)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := Disconnect(ctx, db, conn.ConnectionID); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	// Repeat is a no-op signalled with ErrAlreadyDisconnected.
	if err := Disconnect(ctx, db, conn.ConnectionID); !errors.Is(err, ErrAlreadyDisconnected) {
		t.Fatalf("expected ErrAlreadyDisconnected, got %v", err)
	}

	got, err := GetConnection(ctx, db, conn.ConnectionID)
	if err != nil || got == nil {
		t.Fatalf("row must survive disconnect: %v", err)
	}
	if got.Status != domain.ConnectionDisconnected || got.DisconnectedAt == nil {
		t.Fatalf("unexpected state after disconnect: %+v", got)
	}

	// Slot and worker are free again: a rebind succeeds and history now
	// holds two rows.
	if _, err := CreateConnection(ctx, db, 1, 2, 1); err != nil {
		t.Fatalf("rebind after disconnect: %v", err)
	}
	var total int64
	if err := db.Model(&domain.Connection{}).Count(&total).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 rows of history, got %d", total)
	}
}

func TestLookups(t *testing.T) {
	db := newTestDB(t)
	seedPair(t, db, 1, 2)
	seedPair(t, db, 1, 3) // re-seeding manager 1 is idempotent
	ctx := context.Background()

	c1, err := CreateConnection(ctx, db, 1, 2, 1)
	if err != nil {
		t.Fatalf("bind 1: %v", err)
	}
	if _, err := CreateConnection(ctx, db, 1, 3, 4); err != nil {
		t.Fatalf("bind 2: %v", err)
	}

	bySlot, err := GetActiveForManagerSlot(ctx, db, 1, 1)
	if err != nil || bySlot == nil || bySlot.ConnectionID != c1.ConnectionID {
		t.Fatalf("GetActiveForManagerSlot mismatch: %+v err=%v", bySlot, err)
	}
	if free, err := GetActiveForManagerSlot(ctx, db, 1, 3); err != nil || free != nil {
		t.Fatalf("slot 3 should be free, got %+v err=%v", free, err)
	}

	byWorker, err := GetActiveForWorker(ctx, db, 3)
	if err != nil || byWorker == nil || byWorker.BotSlot != 4 {
		t.Fatalf("GetActiveForWorker mismatch: %+v err=%v", byWorker, err)
	}

	list, err := ListActiveForManager(ctx, db, 1)
	if err != nil || len(list) != 2 {
		t.Fatalf("ListActiveForManager: %v %+v", err, list)
	}
	// Ordered by slot ascending.
	if list[0].BotSlot != 1 || list[1].BotSlot != 4 {
		t.Fatalf("unexpected order: %+v", list)
	}
}

func TestDisconnectAllForUser(t *testing.T) {
	db := newTestDB(t)
	seedPair(t, db, 1, 2)
	seedPair(t, db, 1, 3)
	ctx := context.Background()

	if _, err := CreateConnection(ctx, db, 1, 2, 1); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if _, err := CreateConnection(ctx, db, 1, 3, 2); err != nil {
		t.Fatalf("bind: %v", err)
	}

	n, err := DisconnectAllForUser(ctx, db, 1)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 disconnects, got %d err=%v", n, err)
	}
	list, err := ListActiveForManager(ctx, db, 1)
	if err != nil || len(list) != 0 {
		t.Fatalf("expected no active rows, got %+v err=%v", list, err)
	}
	// Idempotent.
	if n, err := DisconnectAllForUser(ctx, db, 1); err != nil || n != 0 {
		t.Fatalf("repeat should affect 0 rows, got %d err=%v", n, err)
	}
}
