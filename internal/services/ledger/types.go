package ledger

import (
	"time"

	"creditledger/internal/models"
)

// DebitRequest describes one billable action to charge against a
// user's wallet. Amount is the positive debit magnitude in credits.
type DebitRequest struct {
	UserID      uint
	ActionType  string
	ReferenceID string
	Amount      int64
	Metadata    map[string]interface{}
}

// GrantRequest adds credits to a user's wallet, creating the wallet on
// first grant. Structurally a debit with a positive amount.
type GrantRequest struct {
	UserID      uint
	Amount      int64
	Description string
	Metadata    map[string]interface{}
}

// AdjustRequest is a signed manual correction issued through the repair
// path. It never grants entitlements.
type AdjustRequest struct {
	UserID   uint
	Amount   int64
	Reason   string
	Metadata map[string]interface{}
}

// TransactionResult reports the outcome of a committed ledger
// operation. Consistent is false when post-commit verification found a
// mismatch; in that case Discrepancy describes what disagreed and the
// issue has already been escalated.
type TransactionResult struct {
	Success              bool
	TransactionID        string
	IntentID             string
	EntitlementID        uint
	EntitlementExpiresAt time.Time
	Balance              int64
	Consistent           bool
	Discrepancy          string
}

// BalanceSummary is the read-only view of a wallet.
type BalanceSummary struct {
	UserID         uint
	CurrentBalance int64
	CycleEarned    int64
	CycleSpent     int64
	UpdatedAt      time.Time
}

// EntitlementStatus answers "does this user currently have access to
// this resource".
type EntitlementStatus struct {
	Granted   bool
	ExpiresAt time.Time
}

// Config holds ledger executor configuration.
type Config struct {
	// Thresholds grade escalated discrepancies found by post-commit
	// verification.
	Thresholds models.SeverityThresholds

	// EntitlementActions maps action types to whether a successful
	// debit grants an entitlement for the billed resource.
	EntitlementActions map[string]bool

	// EntitlementWindow is how long a granted entitlement lasts.
	EntitlementWindow time.Duration

	// MaxRetries bounds DebitWithRetry's transparent retries of
	// concurrent-modification conflicts.
	MaxRetries int

	// RetryBackoff is the pause between retries.
	RetryBackoff time.Duration
}

// MetricsCollector defines the interface for collecting ledger metrics.
type MetricsCollector interface {
	RecordOperationDuration(operation string, duration time.Duration)
	RecordTransaction(txType string, amount int64)
	RecordError(operation, errType string)
	RecordCacheHit(key string)
	RecordCacheMiss(key string)
	RecordInconsistency(severity string)
}
