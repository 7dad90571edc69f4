package migrations

import (
	"gorm.io/gorm"
)

// AddEventCorrelations adds the composite indexes backing trade
// reconciliation queries against the mirrored events
func AddEventCorrelations(db *gorm.DB) error {
	// Using raw SQL for index creation to have more control over index types
	indexes := []string{
		// Composite index for per-trade event timelines
		`CREATE INDEX IF NOT EXISTS idx_event_records_trade
		 ON event_records(partnership_id, trade_id)`,

		// Composite index for per-kind scans in block order
		`CREATE INDEX IF NOT EXISTS idx_event_records_kind_height
		 ON event_records(kind, block_height)`,

		// Composite index for per-account audits
		`CREATE INDEX IF NOT EXISTS idx_event_records_receiver_height
		 ON event_records(receiver, block_height)`,
	}

	// Execute each index creation
	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
