package repo

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/bridgeos/go-bridge-backend/internal/domain"
)

func seedConnection(t *testing.T, db *gorm.DB, managerID, workerID int64, slot int) *domain.Connection {
	t.Helper()
	seedPair(t, db, managerID, workerID)
	conn, err := CreateConnection(context.Background(), db, managerID, workerID, slot)
	if err != nil {
		t.Fatalf("seed connection: %v", err)
	}
	return conn
}

func TestCreateTask_Pending(t *testing.T) {
	db := newTestDB(t)
	conn := seedConnection(t, db, 1, 2, 1)

	task, err := CreateTask(context.Background(), db, conn.ConnectionID, "Check cow 115", "לבדוק פרה 115")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.Status != domain.TaskPending || task.CompletedAt != nil {
		t.Fatalf("new task must be pending with nil completed_at: %+v", task)
	}
	if task.Description != "Check cow 115" || task.DescriptionTranslated == "" {
		t.Fatalf("descriptions mismatch: %+v", task)
	}
}

func TestMarkTaskCompleted_OneWay(t *testing.T) {
	db := newTestDB(t)
	conn := seedConnection(t, db, 1, 2, 1)
	ctx := context.Background()

	task, err := CreateTask(ctx, db, conn.ConnectionID, "Fix gate", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	flipped, err := MarkTaskCompleted(ctx, db, task.TaskID)
	if err != nil || !flipped {
		t.Fatalf("first completion should flip: flipped=%v err=%v", flipped, err)
	}
	got, _ := GetTask(ctx, db, task.TaskID)
	if got.Status != domain.TaskCompleted || got.CompletedAt == nil {
		t.Fatalf("completed state mismatch: %+v", got)
	}
	stamp := *got.CompletedAt

	// Second flip is a no-op; the row is byte-identical.
	flipped, err = MarkTaskCompleted(ctx, db, task.TaskID)
	if err != nil || flipped {
		t.Fatalf("second completion must not flip: flipped=%v err=%v", flipped, err)
	}
	got, _ = GetTask(ctx, db, task.TaskID)
	if !got.CompletedAt.Equal(stamp) {
		t.Fatalf("completed_at must not move: %v vs %v", got.CompletedAt, stamp)
	}
}

func TestListTasks_WindowAndViews(t *testing.T) {
	db := newTestDB(t)
	conn := seedConnection(t, db, 1, 2, 1)
	ctx := context.Background()

	pending, err := CreateTask(ctx, db, conn.ConnectionID, "pending one", "tr-pending")
	if err != nil {
		t.Fatalf("create pending: %v", err)
	}
	recent, err := CreateTask(ctx, db, conn.ConnectionID, "done recently", "tr-recent")
	if err != nil {
		t.Fatalf("create recent: %v", err)
	}
	if _, err := MarkTaskCompleted(ctx, db, recent.TaskID); err != nil {
		t.Fatalf("complete recent: %v", err)
	}

	// An old completed task falls outside the window.
	old, err := CreateTask(ctx, db, conn.ConnectionID, "done long ago", "")
	if err != nil {
		t.Fatalf("create old: %v", err)
	}
	past := time.Now().UTC().Add(-48 * time.Hour)
	if err := db.Model(&domain.Task{}).Where("task_id = ?", old.TaskID).
		Updates(map[string]any{"status": domain.TaskCompleted, "completed_at": past}).Error; err != nil {
		t.Fatalf("backdate: %v", err)
	}

	since := time.Now().UTC().Add(-24 * time.Hour)
	rows, err := ListTasksForManager(ctx, db, 1, since)
	if err != nil {
		t.Fatalf("manager list: %v", err)
	}
	ids := map[int64]bool{}
	for _, r := range rows {
		ids[r.TaskID] = true
	}
	if len(rows) != 2 || !ids[pending.TaskID] || !ids[recent.TaskID] {
		t.Fatalf("manager view should hold pending + recently completed, got %+v", rows)
	}

	wrows, err := ListTasksForWorker(ctx, db, 2, since)
	if err != nil {
		t.Fatalf("worker list: %v", err)
	}
	if len(wrows) != 2 {
		t.Fatalf("worker view size: %+v", wrows)
	}
	for _, r := range wrows {
		if r.WorkerID != 2 || r.ManagerID != 1 {
			t.Fatalf("join endpoints wrong: %+v", r)
		}
	}
}

func TestGetTaskStats(t *testing.T) {
	db := newTestDB(t)
	conn := seedConnection(t, db, 1, 2, 1)
	ctx := context.Background()

	if _, err := CreateTask(ctx, db, conn.ConnectionID, "a", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	done, err := CreateTask(ctx, db, conn.ConnectionID, "b", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := MarkTaskCompleted(ctx, db, done.TaskID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	s, err := GetTaskStats(ctx, db, 1)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if s.Total != 2 || s.Pending != 1 || s.Completed != 1 || s.CompletedToday != 1 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}
