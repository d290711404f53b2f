// Package audit is the durable attack/recovery log: a small GORM/SQLite
// store (gorm.Open + AutoMigrate + OTel tracing plugin + WAL pragma
// tuning) holding a single append-only event table.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/corvidlabs/corvid/internal/core/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// Store persists domain.AttackLogEntry rows.
type Store struct {
	db *gorm.DB
}

// entryModel is the GORM row shape for one AttackLogEntry.
type entryModel struct {
	ID        uint   `gorm:"primaryKey"`
	Timestamp time.Time `gorm:"index"`
	Kind      string    `gorm:"index"`
	Target    string
	Outcome   string
	Detail    string
}

func (entryModel) TableName() string { return "attack_log_entries" }

// Open initializes the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}

	if err := db.AutoMigrate(&entryModel{}); err != nil {
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}

	if err := db.Use(tracing.NewPlugin()); err != nil {
		return nil, fmt.Errorf("audit: attach tracing plugin: %w", err)
	}

	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA busy_timeout=5000;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_attack_log_kind ON attack_log_entries(kind)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_attack_log_timestamp ON attack_log_entries(timestamp)")

	return &Store{db: db}, nil
}

// Append persists one log entry. Failures are the caller's to log; the
// attack coordinator and recovery controller treat this as best-effort
// durability and never block on it.
func (s *Store) Append(ctx context.Context, e domain.AttackLogEntry) error {
	model := entryModel{
		Timestamp: e.Timestamp,
		Kind:      e.Kind,
		Target:    e.Target,
		Outcome:   e.Outcome,
		Detail:    e.Detail,
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("audit: append: %w", err)
	}
	return nil
}

// Recent returns the most recent entries, newest first, up to limit.
func (s *Store) Recent(ctx context.Context, limit int) ([]domain.AttackLogEntry, error) {
	var models []entryModel
	if err := s.db.WithContext(ctx).Order("timestamp DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("audit: recent: %w", err)
	}

	entries := make([]domain.AttackLogEntry, len(models))
	for i, m := range models {
		entries[i] = domain.AttackLogEntry{
			Timestamp: m.Timestamp,
			Kind:      m.Kind,
			Target:    m.Target,
			Outcome:   m.Outcome,
			Detail:    m.Detail,
		}
	}
	return entries, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("audit: close: %w", err)
	}
	return sqlDB.Close()
}
