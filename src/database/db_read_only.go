package database

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ReadOnlyDB serves the listing endpoints of the operator API. The database
// user behind DATABASE_URL_READONLY should have SELECT-only permissions.
var ReadOnlyDB *gorm.DB

// InitReadOnlyDB connects to the read replica. Without DATABASE_URL_READONLY,
// or on sqlite, it falls back to MainDB. It never runs migrations.
func InitReadOnlyDB() error {
	config := GetConfig()

	if config.DatabaseURLReadOnly == "" || config.Driver == DriverSQLite {
		if MainDB == nil {
			return fmt.Errorf("read-only fallback requires MainDB to be initialized")
		}
		logrus.Info("[ReadOnlyDB] no replica configured, reusing MainDB")
		ReadOnlyDB = MainDB
		return nil
	}

	db, err := gorm.Open(postgres.Open(config.DatabaseURLReadOnly),
		&gorm.Config{
			PrepareStmt:    true,
			TranslateError: true,
			Logger:         logger.Default.LogMode(logger.LogLevel(config.GormLogLevel)),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to connect to ReadOnlyDB: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB from ReadOnlyDB: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping ReadOnlyDB: %w", err)
	}

	var dbName, schema string
	if err := db.
		Raw("SELECT current_database(), current_schema()").
		Row().
		Scan(&dbName, &schema); err != nil {
		return fmt.Errorf("failed to query current db/schema on ReadOnlyDB: %w", err)
	}

	logrus.WithFields(map[string]interface{}{"dbName": dbName, "schema": schema}).Info("[ReadOnlyDB] connected")

	ReadOnlyDB = db
	return nil
}
