package models

import (
	"time"

	"gorm.io/gorm"
)

// Wallet holds a user's prepaid credit balance. One wallet per user.
// CurrentBalance is only ever changed through the ledger executor's
// conditional update; it must never be written directly.
type Wallet struct {
	ID                   uint  `gorm:"primarykey"`
	UserID               uint  `gorm:"uniqueIndex;not null"`
	CurrentBalance       int64 `gorm:"not null;default:0"`
	TotalEarnedThisCycle int64 `gorm:"not null;default:0"`
	TotalSpentThisCycle  int64 `gorm:"not null;default:0"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	// Wallets always start empty; credits arrive through the grant path.
	w.CurrentBalance = 0
	w.TotalEarnedThisCycle = 0
	w.TotalSpentThisCycle = 0
	return nil
}
