package migrations

import (
	"fmt"

	"gorm.io/gorm"
)

// backfillOrderKind tags orders written without a kind. Such rows were only
// ever produced by the entry path, so entry is the correct value.
func backfillOrderKind(db *gorm.DB) error {
	for _, table := range orderTables {
		if err := db.Exec(fmt.Sprintf(
			"UPDATE %s SET kind = 'entry' WHERE kind IS NULL OR kind = ''", table,
		)).Error; err != nil {
			return fmt.Errorf("backfill kind on %s: %w", table, err)
		}
	}
	return nil
}

// normalizeCanceledSpelling folds the British spelling some manual scripts wrote.
func normalizeCanceledSpelling(db *gorm.DB) error {
	for _, table := range orderTables {
		if err := db.Exec(fmt.Sprintf(
			"UPDATE %s SET status = 'canceled' WHERE status = 'cancelled'", table,
		)).Error; err != nil {
			return fmt.Errorf("normalize canceled on %s: %w", table, err)
		}
	}
	return nil
}

// createStatusIndexes adds the status lookups the reconciliation scans rely on.
// Index names carry the table name since orders and positions tables share a struct.
func createStatusIndexes(db *gorm.DB) error {
	tables := append([]string{"positions", "test_positions"}, orderTables...)
	for _, table := range tables {
		if err := db.Exec(fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS idx_%s_status ON %s (status)", table, table,
		)).Error; err != nil {
			return fmt.Errorf("create status index on %s: %w", table, err)
		}
	}
	return nil
}
