package factory

import (
	"time"

	"gorm.io/gorm"
)

// Bank registry statuses. A bank marked deleting is locked out of trade
// routing until its contract teardown confirms.
const (
	BankStatusActive   = "ACTIVE"
	BankStatusDeleting = "DELETING"
)

// Bank is one registry entry. The bank ID is content-derived from the
// name, so a duplicate create attempt maps onto an existing row.
type Bank struct {
	gorm.Model `json:"-"`
	BankID     string `gorm:"uniqueIndex" json:"bank_id"`
	Bank       string `json:"bank"`
	Account    string `json:"account"`
	Status     string `json:"status"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ContractCode holds the deployable bank contract code. Single row.
type ContractCode struct {
	gorm.Model
	Code []byte
}
