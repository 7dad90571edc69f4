package indexer

import (
	"errors"

	"gorm.io/gorm"

	"github.com/ksred/rtp-api/internal/types"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// SaveBlock persists a block's events and advances the local checkpoint
// in one transaction, so a crash never records events without the
// cursor that covers them.
func (d *Database) SaveBlock(height uint64, records []EventRecord) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if len(records) > 0 {
			if err := tx.Create(&records).Error; err != nil {
				return err
			}
		}

		var cp Checkpoint
		if err := tx.First(&cp).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			cp = Checkpoint{}
		}
		cp.LastBlockHeight = height
		return tx.Save(&cp).Error
	})
}

func (d *Database) LastBlockHeight() (uint64, error) {
	var cp Checkpoint
	if err := d.db.First(&cp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return cp.LastBlockHeight, nil
}

// EventsByTrade returns the mirrored events for a trade in block order.
func (d *Database) EventsByTrade(partnershipID, tradeID string) ([]EventRecord, error) {
	var records []EventRecord
	err := d.db.
		Where("partnership_id = ? AND trade_id = ?", partnershipID, tradeID).
		Order("block_height asc, id asc").
		Find(&records).Error
	return records, err
}

// EventsByKind returns mirrored events of one kind in block order.
func (d *Database) EventsByKind(kind types.EventKind, limit int) ([]EventRecord, error) {
	var records []EventRecord
	q := d.db.Where("kind = ?", kind).Order("block_height asc, id asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&records).Error
	return records, err
}
