package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ksred/rtp-api/internal/database/migrations"
	"github.com/ksred/rtp-api/internal/factory"
	"github.com/ksred/rtp-api/internal/info"
	"github.com/ksred/rtp-api/internal/ledger"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := migrations.AddEventMirror(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := migrations.AddEventCorrelations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Auto-migrate other schemas
	err = db.AutoMigrate(
		&ledger.TradeRecord{},
		&factory.Bank{},
		&factory.ContractCode{},
		&info.State{},
		&info.Bank{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
