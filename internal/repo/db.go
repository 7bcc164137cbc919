// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping for PostgreSQL,
// pool sizing, and schema migrations.
package repo

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/bridgeos/go-bridge-backend/internal/domain"
)

// PoolOptions bounds the process-wide connection pool. The database is the
// only shared resource across the fleet, so the pool is sized explicitly and
// torn down at shutdown via Close.
type PoolOptions struct {
	MaxOpen int
	MaxIdle int
	Tracing bool // attach the OTel GORM plugin
}

// OpenPostgres opens the shared PostgreSQL database and applies pool bounds.
func OpenPostgres(dsn string, opts PoolOptions) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	maxOpen := opts.MaxOpen
	if maxOpen <= 0 {
		maxOpen = 20
	}
	maxIdle := opts.MaxIdle
	if maxIdle <= 0 {
		maxIdle = 5
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if opts.Tracing {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, fmt.Errorf("attach tracing plugin: %w", err)
		}
	}

	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Partial unique index names. The connection-manager error translation keys
// off these, so they must stay in sync with the DDL below.
const (
	idxManagerSlotActive = "idx_connections_manager_slot_active"
	idxWorkerActive      = "idx_connections_worker_active"
	idxManagerCodeActive = "idx_managers_code_active"
)

// AutoMigrate creates the schema and the partial unique indexes that carry
// the connection invariants. GORM tags cannot express index predicates, so
// the partial indexes are raw DDL; the syntax below is accepted by both
// PostgreSQL and SQLite (used in tests).
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.User{},
		&domain.Manager{},
		&domain.Worker{},
		&domain.Connection{},
		&domain.Message{},
		&domain.Task{},
		&domain.Subscription{},
		&domain.UsageTracking{},
		&domain.Feedback{},
	); err != nil {
		return err
	}

	ddl := []string{
		// A slot holds at most one active worker for a given manager.
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s
			ON connections (manager_id, bot_slot) WHERE status = 'active'`, idxManagerSlotActive),
		// A worker has at most one active connection.
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s
			ON connections (worker_id) WHERE status = 'active'`, idxWorkerActive),
		// Invitation codes are unique among active managers only.
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s
			ON managers (code) WHERE deleted_at IS NULL`, idxManagerCodeActive),
	}
	for _, stmt := range ddl {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create partial index: %w", err)
		}
	}
	return nil
}
