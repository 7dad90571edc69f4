package factory

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

func (d *Database) GetBank(bankID string) (*Bank, error) {
	var bank Bank
	if err := d.db.Where("bank_id = ?", bankID).First(&bank).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &bank, nil
}

func (d *Database) InsertBank(bank *Bank) error {
	return d.db.Create(bank).Error
}

func (d *Database) ListBankIDs(skip, limit int) ([]string, error) {
	var ids []string
	if err := d.db.Model(&Bank{}).
		Order("created_at ASC").
		Offset(skip).
		Limit(limit).
		Pluck("bank_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// ListBanks returns every registry row, oldest first.
func (d *Database) ListBanks() ([]Bank, error) {
	var banks []Bank
	if err := d.db.Order("created_at ASC").Find(&banks).Error; err != nil {
		return nil, err
	}
	return banks, nil
}

func (d *Database) CountBanks() (int64, error) {
	var count int64
	if err := d.db.Model(&Bank{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (d *Database) UpdateBankStatus(bankID, status string) error {
	result := d.db.Model(&Bank{}).
		Where("bank_id = ?", bankID).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("bank not found")
	}
	return nil
}

func (d *Database) DeleteBank(bankID string) error {
	return d.db.Unscoped().Where("bank_id = ?", bankID).Delete(&Bank{}).Error
}

// SaveContractCode stores the deployable code, replacing any prior
// version.
func (d *Database) SaveContractCode(code []byte) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("1 = 1").Delete(&ContractCode{}).Error; err != nil {
			return err
		}
		return tx.Create(&ContractCode{Code: code}).Error
	})
}

func (d *Database) GetContractCode() ([]byte, error) {
	var record ContractCode
	if err := d.db.Order("id DESC").First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return record.Code, nil
}

// ClearAll wipes registry and contract code. Test-only.
func (d *Database) ClearAll() error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("1 = 1").Delete(&Bank{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Where("1 = 1").Delete(&ContractCode{}).Error
	})
}
