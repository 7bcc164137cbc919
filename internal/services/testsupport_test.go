package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bridgeos/go-bridge-backend/internal/config"
	"github.com/bridgeos/go-bridge-backend/internal/repo"
	"github.com/bridgeos/go-bridge-backend/internal/translate"
	"github.com/bridgeos/go-bridge-backend/internal/transport"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("services_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testCheckout() config.CheckoutConfig {
	return config.CheckoutConfig{StoreURL: "bridgeos.example.com", VariantID: "1166995"}
}

func testIndustries() map[string]config.Industry {
	return map[string]config.Industry{
		"dairy_farm": {Name: "Dairy Farm", Description: "Dairy farming operations."},
		"other":      {Name: "Workplace", Description: "General workplace communication."},
	}
}

// seedPeople creates a manager with a code and a worker, both with user
// rows.
func seedPeople(t *testing.T, db *gorm.DB, managerID, workerID int64, managerLang, workerLang string) {
	t.Helper()
	ctx := context.Background()
	if _, err := repo.UpsertUser(ctx, db, managerID, "Boss", managerLang, "male"); err != nil {
		t.Fatalf("manager user: %v", err)
	}
	if _, err := repo.UpsertUser(ctx, db, workerID, "Juan", workerLang, "male"); err != nil {
		t.Fatalf("worker user: %v", err)
	}
	if err := repo.CreateManager(ctx, db, managerID, fmt.Sprintf("BRIDGE-%05d", 10000+managerID), "dairy_farm"); err != nil {
		t.Fatalf("manager row: %v", err)
	}
	if err := repo.CreateWorker(ctx, db, workerID); err != nil {
		t.Fatalf("worker row: %v", err)
	}
}

// fakeTranslator is deterministic: "[toLang] original". It records every
// request and can be told to fail.
type fakeTranslator struct {
	mu       sync.Mutex
	requests []translate.Request
	extracts []translate.ExtractionRequest
	fail     bool
}

func (f *fakeTranslator) Translate(_ context.Context, req translate.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", errors.New("provider down")
	}
	f.requests = append(f.requests, req)
	return "[" + req.ToLanguage + "] " + req.Text, nil
}

func (f *fakeTranslator) ExtractActionItems(_ context.Context, req translate.ExtractionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", errors.New("provider down")
	}
	f.extracts = append(f.extracts, req)
	return "• demo action item", nil
}

// sentMessage is one recorded outbound send.
type sentMessage struct {
	Slot   int
	ChatID int64
	Text   string
}

// fakeClient records sends for one slot and can be told to fail.
type fakeClient struct {
	mu   *sync.Mutex
	sink *[]sentMessage
	slot int
	fail bool
}

func (f *fakeClient) SendMessage(_ context.Context, chatID int64, text string) error {
	if f.fail {
		return errors.New("transport down")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	*f.sink = append(*f.sink, sentMessage{Slot: f.slot, ChatID: chatID, Text: text})
	return nil
}

func (f *fakeClient) SendMessageWithButton(ctx context.Context, chatID int64, text string, _ transport.Button) error {
	return f.SendMessage(ctx, chatID, text)
}

// newFakeFleet builds a five-slot fleet sharing one recording sink.
func newFakeFleet(fail bool) (transport.Fleet, *[]sentMessage) {
	var mu sync.Mutex
	sink := &[]sentMessage{}
	fleet := transport.Fleet{}
	for slot := 1; slot <= 5; slot++ {
		fleet[slot] = &fakeClient{mu: &mu, sink: sink, slot: slot, fail: fail}
	}
	return fleet, sink
}
