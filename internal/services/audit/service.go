// Package audit recomputes wallet balances from the transaction log and
// flags wallets whose stored balance disagrees. The auditor is
// read-only apart from persisting critical findings for escalation; it
// never corrects a balance itself.
package audit

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"creditledger/internal/models"
	"creditledger/internal/repositories"
)

// WalletStore is the read access the auditor needs.
type WalletStore interface {
	GetWalletByUserID(userID uint) (*models.Wallet, error)
	ListWalletUserIDs() ([]uint, error)
	SumTransactionAmounts(userID uint) (int64, error)
	GetActivityStats(ctx context.Context, start, end time.Time) (*repositories.ActivityStats, error)
}

// IntentStore surfaces intents that never committed.
type IntentStore interface {
	GetOrphanedByUserID(userID uint) ([]models.TransactionIntent, error)
}

// EscalationStore persists critical findings.
type EscalationStore interface {
	Create(rec *models.Inconsistency) error
}

// Service is the auditor's public contract.
type Service interface {
	// CheckWallet reconciles one wallet against its transaction
	// history. It returns nil when the wallet is consistent.
	CheckWallet(ctx context.Context, userID uint) (*models.Inconsistency, error)

	// RunDailyAudit reconciles every wallet and aggregates a report.
	RunDailyAudit(ctx context.Context) (*HealthReport, error)
}

type service struct {
	store       WalletStore
	intents     IntentStore
	escalations EscalationStore
	config      Config
}

// NewService creates the auditor.
func NewService(store WalletStore, intents IntentStore, escalations EscalationStore, config Config) Service {
	if store == nil {
		panic("wallet store is required")
	}
	if intents == nil {
		panic("intent store is required")
	}
	if escalations == nil {
		panic("escalation store is required")
	}
	if config.Thresholds == (models.SeverityThresholds{}) {
		config.Thresholds = models.DefaultSeverityThresholds
	}
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}
	return &service{
		store:       store,
		intents:     intents,
		escalations: escalations,
		config:      config,
	}
}

// CheckWallet independently recomputes the expected balance from the
// append-only transaction log. Wallets start at zero and every change,
// grants and adjustments included, is a transaction row, so the
// expected balance is exactly the sum of signed amounts.
func (s *service) CheckWallet(ctx context.Context, userID uint) (*models.Inconsistency, error) {
	wallet, err := s.store.GetWalletByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read wallet %d: %w", userID, err)
	}

	expected, err := s.store.SumTransactionAmounts(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to recompute balance for wallet %d: %w", userID, err)
	}

	actual := wallet.CurrentBalance
	if actual == expected {
		return nil, nil
	}

	discrepancy := actual - expected
	rec := &models.Inconsistency{
		UserID:          userID,
		WalletID:        wallet.ID,
		IssueType:       models.IssueBalanceMismatch,
		ExpectedBalance: expected,
		ActualBalance:   actual,
		Discrepancy:     discrepancy,
		Severity:        s.config.Thresholds.Grade(discrepancy),
		Details: fmt.Sprintf("stored balance %d disagrees with transaction history sum %d",
			actual, expected),
	}

	// Orphaned intents are the prime suspects for drift: a write set
	// that was planned but never committed.
	orphans, err := s.intents.GetOrphanedByUserID(userID)
	if err != nil {
		log.Printf("audit: failed to load orphaned intents for user %d: %v", userID, err)
	} else if len(orphans) > 0 {
		ids := make([]interface{}, len(orphans))
		for i, intent := range orphans {
			ids[i] = intent.IntentID
		}
		rec.OrphanedIntents = models.JSON{"intent_ids": ids}
	}

	if rec.Severity == models.SeverityCritical {
		if err := s.escalations.Create(rec); err != nil {
			log.Printf("audit: failed to persist critical inconsistency for user %d: %v", userID, err)
		}
	}
	return rec, nil
}

// RunDailyAudit fans CheckWallet out over a bounded worker pool. The
// log is immutable and the checks are read-only, so no locking against
// live writers is needed. A wallet that cannot be evaluated is reported
// as an audit error and the run continues.
func (s *service) RunDailyAudit(ctx context.Context) (*HealthReport, error) {
	userIDs, err := s.store.ListWalletUserIDs()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate wallets: %w", err)
	}

	report := &HealthReport{
		GeneratedAt:  time.Now().UTC(),
		TotalWallets: len(userIDs),
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		work = make(chan uint)
	)
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for userID := range work {
				rec, err := s.CheckWallet(ctx, userID)
				mu.Lock()
				switch {
				case err != nil:
					report.AuditErrorCount++
					report.AuditErrors = append(report.AuditErrors, AuditError{UserID: userID, Err: err.Error()})
				case rec != nil:
					report.InconsistentCount++
					if rec.Severity == models.SeverityCritical {
						report.CriticalIssues = append(report.CriticalIssues, rec)
					}
				}
				mu.Unlock()
			}
		}()
	}

	dispatched := 0
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			break
		}
		work <- userID
		dispatched++
	}
	close(work)
	wg.Wait()

	report.WalletsAudited = dispatched
	report.Interrupted = dispatched < len(userIDs)
	if report.Interrupted {
		log.Printf("audit: run interrupted after %d of %d wallets: %v", dispatched, len(userIDs), ctx.Err())
	}

	// Wallets never dispatched must not inflate the rate, so evaluated
	// is derived from the audited count, not the wallet total.
	evaluated := dispatched - report.AuditErrorCount
	if evaluated > 0 {
		report.SuccessRate = 1 - float64(report.InconsistentCount)/float64(evaluated)
	} else {
		report.SuccessRate = 1
	}

	now := time.Now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	stats, err := s.store.GetActivityStats(ctx, startOfDay, now)
	if err != nil {
		log.Printf("audit: failed to load today's activity: %v", err)
	} else {
		report.TodayTransactionCount = stats.TransactionCount
		report.TodayCreditsSpent = stats.SpendTotal
	}

	return report, nil
}
