package indexer

import (
	"gorm.io/gorm"

	"github.com/ksred/rtp-api/internal/types"
)

// EventRecord is a domain event mirrored into the operational store for
// reconciliation and audit. Payload holds the raw variant JSON.
type EventRecord struct {
	gorm.Model
	BlockHeight uint64          `gorm:"index;not null"`
	Receiver    string          `gorm:"index;not null"`
	Kind        types.EventKind `gorm:"index;not null"`
	Version     string          `gorm:"not null"`
	Payload     string          `gorm:"type:text;not null"`

	// Correlation columns lifted out of the payload where present.
	PartnershipID string `gorm:"index"`
	TradeID       string `gorm:"index"`
	BankID        string `gorm:"index"`
}

// Checkpoint is the indexer's local copy of the cursor, written in the
// same transaction as the block's events. The info service holds the
// authoritative cursor; this one bounds replay when the info service is
// behind.
type Checkpoint struct {
	gorm.Model
	LastBlockHeight uint64 `gorm:"not null;default:0"`
}
