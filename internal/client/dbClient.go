package client

import (
	"farmland-checkout/internal/model"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const defaultSqliteDSN = "file:storefront.db?_busy_timeout=5000&_foreign_keys=on"

// InitDBClient opens mysql when databaseURL is set and a local sqlite file
// otherwise, then migrates every table.
func InitDBClient(databaseURL string) (*gorm.DB, error) {
	if databaseURL == "" {
		return OpenSqlite(defaultSqliteDSN)
	}
	return OpenMysql(databaseURL)
}

func OpenMysql(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(databaseURL), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("connect to mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}

	// Connection pool (important for webhooks)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return migrate(db)
}

// OpenSqlite keeps a single connection: sqlite serializes writers anyway and
// an in-memory database lives only as long as its connection.
func OpenSqlite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return migrate(db)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}
}

func migrate(db *gorm.DB) (*gorm.DB, error) {
	if err := db.AutoMigrate(model.All()...); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return db, nil
}
