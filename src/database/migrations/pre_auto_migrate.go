package migrations

import (
	"fmt"

	"gorm.io/gorm"
)

// legacyKindColumn is the name older schemas used for the entry/exit tag.
const legacyKindColumn = "order_dir"

var orderTables = []string{"orders", "test_orders"}

// PrepareLegacyOrderColumns renames the old order_dir column to kind before
// AutoMigrate runs, so existing entry/exit tags are carried over instead of
// AutoMigrate adding an empty kind column next to them.
func PrepareLegacyOrderColumns(db *gorm.DB) error {
	m := db.Migrator()

	for _, table := range orderTables {
		if !m.HasTable(table) {
			continue
		}
		if !m.HasColumn(table, legacyKindColumn) {
			continue
		}

		if m.HasColumn(table, "kind") {
			// both exist: copy what the new column is missing, then drop the old one
			if err := db.Exec(fmt.Sprintf(
				"UPDATE %s SET kind = %s WHERE (kind IS NULL OR kind = '') AND %s IS NOT NULL",
				table, legacyKindColumn, legacyKindColumn,
			)).Error; err != nil {
				return fmt.Errorf("copy %s.%s into kind: %w", table, legacyKindColumn, err)
			}
			if err := m.DropColumn(table, legacyKindColumn); err != nil {
				return fmt.Errorf("drop %s.%s: %w", table, legacyKindColumn, err)
			}
			continue
		}

		if err := m.RenameColumn(table, legacyKindColumn, "kind"); err != nil {
			return fmt.Errorf("rename %s.%s to kind: %w", table, legacyKindColumn, err)
		}
	}

	return nil
}
