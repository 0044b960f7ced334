package models

import (
	"time"
)

// Inconsistency severities
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
)

// Inconsistency issue types
const (
	IssueBalanceMismatch    = "balance_mismatch"
	IssueVerificationFailed = "verification_failed"
	IssueAuditError         = "audit_error"
)

// Inconsistency is a durable record of a wallet whose stored balance
// disagrees with its transaction history, or whose post-commit
// verification failed. Inconsistencies are never auto-corrected: repair
// happens through an explicit adjustment transaction that references
// this record, so the correction is as auditable as the drift.
type Inconsistency struct {
	ID              uint   `gorm:"primarykey"`
	UserID          uint   `gorm:"index;not null"`
	WalletID        uint   `gorm:"not null"`
	IssueType       string `gorm:"not null"`
	ExpectedBalance int64
	ActualBalance   int64
	Discrepancy     int64
	Severity        string `gorm:"not null"`
	Details         string
	OrphanedIntents JSON `gorm:"type:jsonb"` // Intent IDs logged without a committed transaction
	ResolvedAt      *time.Time
	Resolution      string
	ResolutionTxID  string // TransactionID of the corrective adjustment
	CreatedAt       time.Time
}

// Resolved reports whether a corrective adjustment has been applied.
func (i *Inconsistency) Resolved() bool {
	return i.ResolvedAt != nil
}

// SeverityThresholds grades a discrepancy magnitude into a severity
// band. Thresholds are inclusive lower bounds in credits.
type SeverityThresholds struct {
	Critical int64
	High     int64
}

// DefaultSeverityThresholds match the operational defaults: drift of 100
// credits or more pages someone, 25 or more is high, anything else medium.
var DefaultSeverityThresholds = SeverityThresholds{Critical: 100, High: 25}

// Grade classifies an absolute discrepancy.
func (t SeverityThresholds) Grade(discrepancy int64) string {
	if discrepancy < 0 {
		discrepancy = -discrepancy
	}
	switch {
	case discrepancy >= t.Critical:
		return SeverityCritical
	case discrepancy >= t.High:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}
