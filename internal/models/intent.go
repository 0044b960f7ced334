package models

import (
	"time"
)

// TransactionIntent is the durably logged plan for a balance change,
// written before the atomic write set is attempted. It survives a later
// rollback, so a crash between planning and execution leaves a forensic
// trail: an intent with no matching transaction row means the write set
// never committed. Intents are append-only and are not part of the
// reconciled state.
type TransactionIntent struct {
	ID            uint   `gorm:"primarykey"`
	IntentID      string `gorm:"uniqueIndex;not null"`
	UserID        uint   `gorm:"index;not null"`
	WalletID      uint   `gorm:"not null"`
	ActionType    string `gorm:"not null"`
	ReferenceID   string
	Amount        int64 `gorm:"not null"`
	BalanceBefore int64 `gorm:"not null"`
	BalanceAfter  int64 `gorm:"not null"`
	Metadata      JSON  `gorm:"type:jsonb"`
	CreatedAt     time.Time
}
