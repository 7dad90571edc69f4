package info

import (
	"errors"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// GetState returns the cursor row, creating it at zero on first read.
func (d *Database) GetState() (*State, error) {
	var state State
	if err := d.db.First(&state).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			state = State{}
			if err := d.db.Create(&state).Error; err != nil {
				return nil, err
			}
			return &state, nil
		}
		return nil, err
	}
	return &state, nil
}

func (d *Database) SetLastBlockHeight(height uint64) error {
	state, err := d.GetState()
	if err != nil {
		return err
	}
	state.LastBlockHeight = height
	return d.db.Save(state).Error
}

// InitBlockHeight sets the cursor only if it has never been set. Used
// to seed a fresh deployment at the ledger tip without clobbering a
// cursor from a previous run.
func (d *Database) InitBlockHeight(height uint64) (bool, error) {
	state, err := d.GetState()
	if err != nil {
		return false, err
	}
	if state.LastBlockHeight != 0 {
		return false, nil
	}
	state.LastBlockHeight = height
	return true, d.db.Save(state).Error
}

func (d *Database) ListBankIDs() ([]string, error) {
	var banks []Bank
	if err := d.db.Order("created_at asc").Find(&banks).Error; err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(banks))
	for _, b := range banks {
		ids = append(ids, b.BankID)
	}
	return ids, nil
}

// AddBank records a bank ID for the receiver filter. Idempotent.
func (d *Database) AddBank(bankID string) error {
	var existing Bank
	err := d.db.Where("bank_id = ?", bankID).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return d.db.Create(&Bank{BankID: bankID}).Error
}

// Reset clears the bank list and zeroes the cursor.
func (d *Database) Reset() error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("1 = 1").Delete(&Bank{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Where("1 = 1").Delete(&State{}).Error
	})
}
