package models

import (
	"time"
)

// Action types
const (
	ActionProfileAnalysis  = "profile_analysis"
	ActionProfileUnlock    = "profile_unlock"
	ActionCreditGrant      = "credit_grant"
	ActionManualAdjustment = "manual_adjustment"
)

// Transaction is one immutable row in the append-only balance history.
// Amount is signed: positive for grants, negative for spends. The
// BalanceBefore/BalanceAfter pair chains successive transactions for a
// wallet into a total order, and the sum of Amount over a wallet's
// history must always equal its stored balance.
type Transaction struct {
	ID            uint   `gorm:"primarykey"`
	TransactionID string `gorm:"uniqueIndex;not null"` // External reference ID
	IntentID      string `gorm:"index"`                // Links back to the logged intent
	WalletID      uint   `gorm:"index;not null"`
	UserID        uint   `gorm:"index;not null"`
	ActionType    string `gorm:"not null"`
	ReferenceID   string // The billed resource, e.g. a username
	Amount        int64  `gorm:"not null"`
	BalanceBefore int64  `gorm:"not null"`
	BalanceAfter  int64  `gorm:"not null"`
	Description   string
	Metadata      JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time
}
