package migrations

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestRunOnceRecordsAndSkips(t *testing.T) {
	db := openSQLite(t)

	calls := 0
	fn := func(tx *gorm.DB) error {
		calls++
		return nil
	}

	require.NoError(t, RunOnce(db, "test_migration", fn))
	require.NoError(t, RunOnce(db, "test_migration", fn))
	require.Equal(t, 1, calls)

	var count int64
	require.NoError(t, db.Model(&DataMigration{}).Where("id = ?", "test_migration").Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRunOnceFailureIsNotRecorded(t *testing.T) {
	db := openSQLite(t)

	err := RunOnce(db, "broken", func(tx *gorm.DB) error { return fmt.Errorf("boom") })
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&DataMigration{}).Where("id = ?", "broken").Count(&count).Error)
	require.Zero(t, count)
}

func TestRunOnceValidatesInput(t *testing.T) {
	db := openSQLite(t)

	require.Error(t, RunOnce(db, "", func(tx *gorm.DB) error { return nil }))
	require.Error(t, RunOnce(db, "nil_fn", nil))
	require.NoError(t, RunOnce(nil, "nil_db", nil))
}

func TestPrepareLegacyOrderColumnsRenamesOrderDir(t *testing.T) {
	db := openSQLite(t)

	require.NoError(t, db.Exec("CREATE TABLE test_orders (order_id text primary key, status text, order_dir text)").Error)
	require.NoError(t, db.Exec("INSERT INTO test_orders (order_id, status, order_dir) VALUES ('o1', 'pending', 'exit')").Error)

	require.NoError(t, PrepareLegacyOrderColumns(db))

	require.True(t, db.Migrator().HasColumn("test_orders", "kind"))
	require.False(t, db.Migrator().HasColumn("test_orders", "order_dir"))

	var kind string
	require.NoError(t, db.Raw("SELECT kind FROM test_orders WHERE order_id = 'o1'").Row().Scan(&kind))
	require.Equal(t, "exit", kind)
}

func TestBackfillOrderKindAndSpelling(t *testing.T) {
	db := openSQLite(t)

	for _, table := range orderTables {
		require.NoError(t, db.Exec(fmt.Sprintf("CREATE TABLE %s (order_id text primary key, status text, kind text)", table)).Error)
		require.NoError(t, db.Exec(fmt.Sprintf("INSERT INTO %s (order_id, status, kind) VALUES ('a', 'cancelled', ''), ('b', 'pending', 'exit')", table)).Error)
	}
	for _, table := range []string{"positions", "test_positions"} {
		require.NoError(t, db.Exec(fmt.Sprintf("CREATE TABLE %s (position_id text primary key, status text)", table)).Error)
	}

	require.NoError(t, Run(db))

	for _, table := range orderTables {
		var kind, status string
		require.NoError(t, db.Raw(fmt.Sprintf("SELECT kind, status FROM %s WHERE order_id = 'a'", table)).Row().Scan(&kind, &status))
		require.Equal(t, "entry", kind)
		require.Equal(t, "canceled", status)

		require.NoError(t, db.Raw(fmt.Sprintf("SELECT kind FROM %s WHERE order_id = 'b'", table)).Row().Scan(&kind))
		require.Equal(t, "exit", kind)
	}
}

func TestRunAppliesEveryStepOnce(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, db.Exec("CREATE TABLE orders (order_id TEXT, kind TEXT, status TEXT)").Error)
	require.NoError(t, db.Exec("CREATE TABLE test_orders (order_id TEXT, kind TEXT, status TEXT)").Error)
	require.NoError(t, db.Exec("CREATE TABLE positions (position_id TEXT, status TEXT)").Error)
	require.NoError(t, db.Exec("CREATE TABLE test_positions (position_id TEXT, status TEXT)").Error)
	require.NoError(t, db.Exec("INSERT INTO test_orders VALUES ('a', '', 'cancelled')").Error)

	require.NoError(t, Run(db))
	require.NoError(t, Run(db))

	applied, err := Applied(db)
	require.NoError(t, err)
	require.Len(t, applied, len(steps))
	require.Equal(t, steps[0].id, applied[0].ID)

	var kind, status string
	require.NoError(t, db.Raw("SELECT kind, status FROM test_orders WHERE order_id = 'a'").Row().Scan(&kind, &status))
	require.Equal(t, "entry", kind)
	require.Equal(t, "canceled", status)
}
