package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tradelifecycle/src/database/migrations"
	"tradelifecycle/src/model"
)

// MainDB is the primary read/write database connection used by the application.
var MainDB *gorm.DB

// Open connects to the configured driver without touching the schema.
func Open(config Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch config.Driver {
	case DriverPostgres, "":
		dialector = postgres.Open(config.DatabaseURLMain)
	case DriverSQLite:
		dialector = sqlite.Open(config.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", config.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.LogLevel(config.GormLogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", config.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB from gorm: %w", err)
	}
	if config.Driver == DriverSQLite {
		// a single writer avoids SQLITE_BUSY on file databases
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(1 * time.Hour)
	}

	return db, nil
}

// InitMainDB initializes the main (read/write) database connection and runs migrations.
// This should be called once at application startup.
func InitMainDB() error {
	config := GetConfig()

	db, err := Open(config)
	if err != nil {
		return err
	}

	MainDB = db
	logrus.WithField("driver", config.Driver).Info("[database] MainDB connection established")

	if err := Migrate(MainDB); err != nil {
		return err
	}

	logrus.Info("[database] MainDB migrations completed")
	return nil
}

// Migrate creates every table for both paper and live modes and runs the
// data migrations. Orders and positions share a struct across modes, so
// they are migrated per table name.
func Migrate(db *gorm.DB) error {
	if err := migrations.PrepareLegacyOrderColumns(db); err != nil {
		return fmt.Errorf("failed to prepare legacy order columns: %w", err)
	}

	if err := db.AutoMigrate(
		&model.AccountBalance{},
		&model.OrderLog{},
		&model.Exception{},
		&model.PriceBar{},
		&migrations.DataMigration{},
	); err != nil {
		return fmt.Errorf("failed to run migrations on MainDB: %w", err)
	}

	for _, mode := range []model.Mode{model.ModePaper, model.ModeLive} {
		if err := db.Table(mode.OrdersTable()).AutoMigrate(&model.Order{}); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", mode.OrdersTable(), err)
		}
		if err := db.Table(mode.PositionsTable()).AutoMigrate(&model.Position{}); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", mode.PositionsTable(), err)
		}
	}

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("failed to run data migrations on MainDB: %w", err)
	}

	return nil
}
