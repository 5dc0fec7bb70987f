package migrations

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DataMigration is one applied row in data_migrations.
type DataMigration struct {
	ID        string    `gorm:"primaryKey;size:200;column:id"`
	AppliedAt time.Time `gorm:"not null;column:applied_at"`
}

func (DataMigration) TableName() string { return "data_migrations" }

type step struct {
	id string
	fn func(*gorm.DB) error
}

// steps run in order. Ids are stable: never rename or reorder an applied step.
var steps = []step{
	{"00001_backfill_order_kind", backfillOrderKind},
	{"00002_normalize_canceled_spelling", normalizeCanceledSpelling},
	{"00003_create_status_indexes", createStatusIndexes},
}

// RunOnce applies fn in a transaction unless migrationID is already recorded.
// The id is recorded in the same transaction, so a failed fn leaves no trace.
func RunOnce(db *gorm.DB, migrationID string, fn func(*gorm.DB) error) error {
	if db == nil {
		return nil
	}
	if migrationID == "" {
		return errors.New("migration id is empty")
	}
	if fn == nil {
		return fmt.Errorf("migration %q has nil fn", migrationID)
	}

	if err := db.AutoMigrate(&DataMigration{}); err != nil {
		return fmt.Errorf("ensure data migrations table: %w", err)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		var applied int64
		if err := tx.Model(&DataMigration{}).Where("id = ?", migrationID).Count(&applied).Error; err != nil {
			return fmt.Errorf("check migration %q: %w", migrationID, err)
		}
		if applied > 0 {
			return nil
		}

		if err := fn(tx); err != nil {
			return fmt.Errorf("run migration %q: %w", migrationID, err)
		}
		if err := tx.Create(&DataMigration{ID: migrationID, AppliedAt: time.Now().UTC()}).Error; err != nil {
			return fmt.Errorf("record migration %q: %w", migrationID, err)
		}

		logrus.WithField("migration", migrationID).Info("[database] data migration applied")
		return nil
	})
}

// Run applies every pending data migration. It stops at the first failure.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	for _, s := range steps {
		if err := RunOnce(db, s.id, s.fn); err != nil {
			return err
		}
	}
	return nil
}

// Applied lists recorded migrations, oldest first.
func Applied(db *gorm.DB) ([]DataMigration, error) {
	var rows []DataMigration
	if err := db.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
