package services

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/bridgeos/go-bridge-backend/internal/domain"
)

func newTaskService(db *gorm.DB) (*TaskService, *fakeTranslator) {
	tr := &fakeTranslator{}
	return &TaskService{DB: db, Translator: tr, Industries: testIndustries()}, tr
}

func TestIsTaskTriggerAndParse(t *testing.T) {
	if !IsTaskTrigger("** Check cow 115") || !IsTaskTrigger("**x") {
		t.Fatalf("prefix detection broken")
	}
	if IsTaskTrigger("* single star") || IsTaskTrigger("check **") {
		t.Fatalf("false positives")
	}

	desc, err := ParseTaskText("**  Check cow 115  ")
	if err != nil || desc != "Check cow 115" {
		t.Fatalf("parse: %q err=%v", desc, err)
	}
	if _, err := ParseTaskText("**"); !errors.Is(err, ErrEmptyTask) {
		t.Fatalf("bare trigger: %v", err)
	}
	if _, err := ParseTaskText("**   "); !errors.Is(err, ErrEmptyTask) {
		t.Fatalf("whitespace trigger: %v", err)
	}
}

func TestTaskCreate_HappyPath(t *testing.T) {
	db := newTestDB(t)
	bindPair(t, db, 1, 2, 2)
	svc, tr := newTaskService(db)

	task, err := svc.Create(context.Background(), 1, 2, "** Check cow 115")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Description != "Check cow 115" || task.Status != domain.TaskPending {
		t.Fatalf("unexpected task: %+v", task)
	}
	if task.DescriptionTranslated != "[Español] Check cow 115" {
		t.Fatalf("translation missing: %+v", task)
	}

	// The translator got the worker's language and the manager's industry.
	req := tr.requests[0]
	if req.ToLanguage != "Español" || req.IndustryName != "Dairy Farm" {
		t.Fatalf("translator request: %+v", req)
	}
}

func TestTaskCreate_Guards(t *testing.T) {
	db := newTestDB(t)
	bindPair(t, db, 1, 2, 1)
	svc, _ := newTaskService(db)
	ctx := context.Background()

	// Workers cannot create.
	if _, err := svc.Create(ctx, 2, 1, "** nope"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("worker create: %v", err)
	}
	// Empty description.
	if _, err := svc.Create(ctx, 1, 1, "**   "); !errors.Is(err, ErrEmptyTask) {
		t.Fatalf("empty: %v", err)
	}
	// No connection on that slot.
	if _, err := svc.Create(ctx, 1, 4, "** task"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("free slot: %v", err)
	}
	// Tasks never consume usage counters.
	if _, err := svc.Create(ctx, 1, 1, "** real task"); err != nil {
		t.Fatalf("create: %v", err)
	}
	var u domain.UsageTracking
	err := db.First(&u, "manager_id = ?", int64(1)).Error
	if err == nil && u.MessagesSent != 0 {
		t.Fatalf("tasks must not touch usage: %+v", u)
	}
}

func TestTaskComplete_ClosedLoop(t *testing.T) {
	db := newTestDB(t)
	bindPair(t, db, 1, 2, 1)
	svc, _ := newTaskService(db)
	ctx := context.Background()

	task, err := svc.Create(ctx, 1, 1, "** Check cow 115")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	done, err := svc.Complete(ctx, task.TaskID, 2)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != domain.TaskCompleted || done.CompletedAt == nil {
		t.Fatalf("completion state: %+v", done)
	}
	stamp := *done.CompletedAt

	// Second completion: AlreadyCompleted, row unchanged.
	again, err := svc.Complete(ctx, task.TaskID, 2)
	if !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}
	if again == nil || !again.CompletedAt.Equal(stamp) {
		t.Fatalf("row must be unchanged: %+v", again)
	}
}

func TestTaskComplete_Forbidden(t *testing.T) {
	db := newTestDB(t)
	bindPair(t, db, 1, 2, 1)
	seedPeople(t, db, 5, 6, "English", "עברית")
	svc, _ := newTaskService(db)
	ctx := context.Background()

	task, err := svc.Create(ctx, 1, 1, "** Fix the gate")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// A different worker cannot complete; the row is unchanged.
	if _, err := svc.Complete(ctx, task.TaskID, 6); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign worker: %v", err)
	}
	// The manager cannot complete either.
	if _, err := svc.Complete(ctx, task.TaskID, 1); !errors.Is(err, ErrForbidden) {
		t.Fatalf("manager complete: %v", err)
	}
	// Unknown task.
	if _, err := svc.Complete(ctx, 9999, 2); !errors.Is(err, ErrForbidden) {
		t.Fatalf("unknown task: %v", err)
	}

	var got domain.Task
	if err := db.First(&got, "task_id = ?", task.TaskID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != domain.TaskPending || got.CompletedAt != nil {
		t.Fatalf("row must stay pending: %+v", got)
	}
}

func TestTaskComplete_DeadConnectionForbidden(t *testing.T) {
	db := newTestDB(t)
	conn := bindPair(t, db, 1, 2, 1)
	svc, _ := newTaskService(db)
	ctx := context.Background()

	task, err := svc.Create(ctx, 1, 1, "** before disconnect")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := NewConnectionService(db).Unbind(ctx, conn.ConnectionID); err != nil {
		t.Fatalf("unbind: %v", err)
	}
	if _, err := svc.Complete(ctx, task.TaskID, 2); !errors.Is(err, ErrForbidden) {
		t.Fatalf("dead connection: %v", err)
	}
}

func TestTaskLists_AndGrouping(t *testing.T) {
	db := newTestDB(t)
	bindPair(t, db, 1, 2, 1)
	svc, _ := newTaskService(db)
	ctx := context.Background()

	if _, err := svc.Create(ctx, 1, 1, "** one"); err != nil {
		t.Fatalf("create: %v", err)
	}
	task2, err := svc.Create(ctx, 1, 1, "** two")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Complete(ctx, task2.TaskID, 2); err != nil {
		t.Fatalf("complete: %v", err)
	}

	rows, err := svc.ListForManager(ctx, 1, nil)
	if err != nil || len(rows) != 2 {
		t.Fatalf("manager list: %v rows=%d", err, len(rows))
	}
	grouped := GroupByWorker(rows)
	if len(grouped) != 1 || len(grouped[2]) != 2 {
		t.Fatalf("grouping mismatch: %+v", grouped)
	}

	wrows, err := svc.ListForWorker(ctx, 2, nil)
	if err != nil || len(wrows) != 2 {
		t.Fatalf("worker list: %v rows=%d", err, len(wrows))
	}
	for _, r := range wrows {
		if r.DescriptionTranslated == "" {
			t.Fatalf("worker view needs translated descriptions: %+v", r)
		}
	}
}
