package models

import (
	"time"
)

// Entitlement grants a user time-boxed access to a resource as the side
// effect of a successful debit. At most one row exists per
// (user, reference); paying again for the same resource renews
// ExpiresAt instead of inserting a duplicate.
type Entitlement struct {
	ID          uint   `gorm:"primarykey"`
	UserID      uint   `gorm:"uniqueIndex:idx_entitlements_user_reference;not null"`
	ReferenceID string `gorm:"uniqueIndex:idx_entitlements_user_reference;not null"`
	GrantedAt   time.Time
	ExpiresAt   time.Time `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Active reports whether the entitlement is still live at t. Expiry is a
// read-side check; expired rows are never deleted in the background.
func (e *Entitlement) Active(t time.Time) bool {
	return e.ExpiresAt.After(t)
}
