package services

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/bridgeos/go-bridge-backend/internal/domain"
	"github.com/bridgeos/go-bridge-backend/internal/repo"
)

func newExtractionService(db *gorm.DB) (*ExtractionService, *fakeTranslator) {
	tr := &fakeTranslator{}
	return &ExtractionService{DB: db, Translator: tr, Industries: testIndustries()}, tr
}

func seedTimedMessage(t *testing.T, db *gorm.DB, connID, senderID int64, text string, at time.Time) {
	t.Helper()
	if err := db.Create(&domain.Message{
		ConnectionID: connID,
		SenderID:     senderID,
		OriginalText: text,
		SentAt:       at,
	}).Error; err != nil {
		t.Fatalf("seed message: %v", err)
	}
}

func TestDailyActionItems_EmptyWindow(t *testing.T) {
	db := newTestDB(t)
	bindPair(t, db, 1, 2, 1)
	svc, tr := newExtractionService(db)

	out, err := svc.DailyActionItems(context.Background(), 1)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if out != EmptyWindowResponse {
		t.Fatalf("empty window must use the fixed response, got %q", out)
	}
	if len(tr.extracts) != 0 {
		t.Fatalf("empty window must not call the provider")
	}
}

func TestDailyActionItems_GroupsByWorkerWithinWindow(t *testing.T) {
	db := newTestDB(t)
	c1 := bindPair(t, db, 1, 2, 1)
	seedPeople(t, db, 1, 3, "English", "עברית")
	c2, err := NewConnectionService(db).Bind(context.Background(), 1, 3, 2)
	if err != nil {
		t.Fatalf("second bind: %v", err)
	}
	svc, tr := newExtractionService(db)
	now := time.Now().UTC()

	seedTimedMessage(t, db, c1.ConnectionID, 2, "gate is broken", now.Add(-2*time.Hour))
	seedTimedMessage(t, db, c2.ConnectionID, 3, "cow 115 limping", now.Add(-1*time.Hour))
	seedTimedMessage(t, db, c1.ConnectionID, 2, "too old", now.Add(-30*time.Hour))

	out, err := svc.DailyActionItems(context.Background(), 1)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if out == "" || out == EmptyWindowResponse {
		t.Fatalf("expected provider output, got %q", out)
	}

	req := tr.extracts[0]
	if len(req.Transcripts) != 2 {
		t.Fatalf("expected one transcript per worker, got %d", len(req.Transcripts))
	}
	total := 0
	for _, tr := range req.Transcripts {
		total += len(tr.Lines)
		for _, line := range tr.Lines {
			if line.Text == "too old" {
				t.Fatalf("window leak: %+v", tr)
			}
		}
	}
	if total != 2 {
		t.Fatalf("expected 2 in-window lines, got %d", total)
	}
	if req.OutputLanguage != "English" {
		t.Fatalf("output language must be the manager's UI language: %q", req.OutputLanguage)
	}
	if req.IndustryName != "Dairy Farm" {
		t.Fatalf("industry context missing: %+v", req)
	}
}

func TestDailyActionItems_UnknownManager(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newExtractionService(db)
	if _, err := svc.DailyActionItems(context.Background(), 404); err == nil {
		t.Fatalf("expected error for unknown manager")
	}
}

func TestRetentionJanitor_Sweep(t *testing.T) {
	db := newTestDB(t)
	conn := bindPair(t, db, 1, 2, 1)
	now := time.Now().UTC()

	seedTimedMessage(t, db, conn.ConnectionID, 1, "ancient", now.Add(-45*24*time.Hour))
	seedTimedMessage(t, db, conn.ConnectionID, 1, "fresh", now)

	j := &RetentionJanitor{DB: db, RetentionDays: 30}
	j.sweep(context.Background())

	n, err := repo.CountMessages(context.Background(), db, conn.ConnectionID)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 survivor, got %d err=%v", n, err)
	}
}
