package info

import (
	"gorm.io/gorm"
)

// State is the singleton indexer cursor row. LastBlockHeight is the
// height of the last block the indexer fully processed; zero means the
// indexer has never checkpointed.
type State struct {
	gorm.Model
	LastBlockHeight uint64 `gorm:"not null;default:0"`
}

// Bank is a bank ID known to the indexer's receiver filter.
type Bank struct {
	gorm.Model
	BankID string `gorm:"uniqueIndex;not null"`
}
