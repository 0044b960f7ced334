package audit

import (
	"time"

	"creditledger/internal/models"
)

// Config holds auditor configuration.
type Config struct {
	// Thresholds grade discrepancy magnitudes into severities.
	Thresholds models.SeverityThresholds

	// Workers bounds the CheckWallet fan-out in RunDailyAudit.
	Workers int
}

// DefaultWorkers is the audit fan-out used when none is configured.
const DefaultWorkers = 8

// HealthReport summarizes one full audit run.
type HealthReport struct {
	GeneratedAt       time.Time
	TotalWallets      int
	InconsistentCount int
	AuditErrorCount   int

	// WalletsAudited counts wallets actually dispatched to workers.
	// It falls short of TotalWallets only when the run was cut off,
	// in which case Interrupted is set.
	WalletsAudited int
	Interrupted    bool

	// SuccessRate is 1 - inconsistent/evaluated, where evaluated is
	// the audited wallets minus those that could not be checked.
	SuccessRate float64

	// Today's activity, from the transaction log.
	TodayTransactionCount int64
	TodayCreditsSpent     int64

	// CriticalIssues need immediate operator attention.
	CriticalIssues []*models.Inconsistency

	// AuditErrors lists wallets that could not be evaluated this run.
	AuditErrors []AuditError
}

// AuditError marks a wallet the auditor could not evaluate. The wallet
// is reported unresolved rather than silently dropped.
type AuditError struct {
	UserID uint
	Err    string
}
