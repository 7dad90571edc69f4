package migrations

import (
	"gorm.io/gorm"

	"github.com/ksred/rtp-api/internal/indexer"
)

func AddEventMirror(db *gorm.DB) error {
	// Create the mirrored event tables
	if err := db.AutoMigrate(&indexer.EventRecord{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&indexer.Checkpoint{}); err != nil {
		return err
	}

	return nil
}
