package database

import (
	"fmt"

	"github.com/goldpack/exchange-core/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase initializes a GORM SQLite connection and migrates the schema.
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.AutoMigrate(
		&types.Trader{},
		&types.Order{},
		&types.AdvanceOrder{},
		&types.Position{},
		&types.AdvancePosition{},
		&types.JoinReference{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}
