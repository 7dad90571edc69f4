package ledger

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

// ReplaceTrade stores a trade leg, fully replacing any prior record
// with the same trade ID. Resubmission is an overwrite, not a merge.
func (d *Database) ReplaceTrade(record *TradeRecord) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().
			Where("account = ? AND trade_id = ?", record.Account, record.TradeID).
			Delete(&TradeRecord{}).Error; err != nil {
			return err
		}
		return tx.Create(record).Error
	})
}

func (d *Database) GetTrade(account, tradeID string) (*TradeRecord, error) {
	var record TradeRecord
	if err := d.db.Where("account = ? AND trade_id = ?", account, tradeID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (d *Database) UpdateMatchingStatus(account, tradeID string, status types.MatchingStatus) error {
	return d.db.Model(&TradeRecord{}).
		Where("account = ? AND trade_id = ?", account, tradeID).
		Updates(map[string]interface{}{
			"matching_status":  status.Status,
			"matching_message": status.Message,
		}).Error
}

func (d *Database) UpdatePaymentStatus(account, tradeID string, status types.PaymentStatus) error {
	return d.db.Model(&TradeRecord{}).
		Where("account = ? AND trade_id = ?", account, tradeID).
		Updates(map[string]interface{}{
			"payment_status":  status.Status,
			"payment_message": status.Message,
		}).Error
}

func (d *Database) SetPaymentFlag(account, tradeID string, confirmation types.PaymentConfirmation) error {
	column := "credit_confirmed"
	if confirmation == types.ConfirmationDebit {
		column = "debit_confirmed"
	}
	return d.db.Model(&TradeRecord{}).
		Where("account = ? AND trade_id = ?", account, tradeID).
		Update(column, true).Error
}

// DeleteAccountTrades removes every trade owned by the account. Used by
// whole-account teardown only.
func (d *Database) DeleteAccountTrades(account string) error {
	return d.db.Unscoped().Where("account = ?", account).Delete(&TradeRecord{}).Error
}
