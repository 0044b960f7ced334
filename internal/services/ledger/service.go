package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"creditledger/internal/models"
	"creditledger/internal/repositories"

	"github.com/google/uuid"
)

type service struct {
	repo        repositories.WalletRepository
	intents     repositories.IntentRepository
	escalations repositories.InconsistencyRepository
	cache       CacheOperator
	config      Config
	metrics     MetricsCollector
}

// NewService creates the ledger executor. The cache is optional; nil
// disables caching. Metrics default to a no-op collector.
func NewService(
	repo repositories.WalletRepository,
	intents repositories.IntentRepository,
	escalations repositories.InconsistencyRepository,
	cache CacheOperator,
	config Config,
	metrics MetricsCollector,
) Service {
	if repo == nil {
		panic("wallet repository is required")
	}
	if intents == nil {
		panic("intent repository is required")
	}
	if escalations == nil {
		panic("inconsistency repository is required")
	}

	if config.EntitlementActions == nil {
		config.EntitlementActions = map[string]bool{
			models.ActionProfileAnalysis: true,
			models.ActionProfileUnlock:   true,
		}
	}
	if config.EntitlementWindow == 0 {
		config.EntitlementWindow = DefaultEntitlementWindow
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.RetryBackoff == 0 {
		config.RetryBackoff = DefaultRetryBackoff
	}
	if config.Thresholds == (models.SeverityThresholds{}) {
		config.Thresholds = models.DefaultSeverityThresholds
	}
	if cache == nil {
		cache = noopCache{}
	}
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}

	return &service{
		repo:        repo,
		intents:     intents,
		escalations: escalations,
		cache:       cache,
		config:      config,
		metrics:     metrics,
	}
}

func (s *service) Debit(ctx context.Context, req DebitRequest) (*TransactionResult, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("debit", time.Since(start)) }()

	if req.Amount <= 0 {
		s.metrics.RecordError("debit", "invalid_amount")
		return nil, ErrInvalidAmount
	}

	wallet, err := s.repo.GetWalletByUserID(req.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			s.metrics.RecordError("debit", "wallet_not_found")
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if wallet.CurrentBalance < req.Amount {
		s.metrics.RecordError("debit", "insufficient_credits")
		return nil, ErrInsufficientCredits
	}

	return s.commitChange(ctx, "debit", changePlan{
		wallet:      wallet,
		actionType:  req.ActionType,
		referenceID: req.ReferenceID,
		amount:      -req.Amount,
		description: fmt.Sprintf("%s: %s", req.ActionType, req.ReferenceID),
		metadata:    req.Metadata,
		spentDelta:  req.Amount,
		entitle:     s.config.EntitlementActions[req.ActionType],
	})
}

func (s *service) DebitWithRetry(ctx context.Context, req DebitRequest) (*TransactionResult, error) {
	var result *TransactionResult
	var err error
	for attempt := 0; attempt < s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.config.RetryBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		result, err = s.Debit(ctx, req)
		if !errors.Is(err, ErrConcurrentModification) {
			return result, err
		}
	}
	return result, err
}

func (s *service) Grant(ctx context.Context, req GrantRequest) (*TransactionResult, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("grant", time.Since(start)) }()

	if req.Amount <= 0 {
		s.metrics.RecordError("grant", "invalid_amount")
		return nil, ErrInvalidAmount
	}

	wallet, err := s.getOrCreateWallet(req.UserID)
	if err != nil {
		return nil, err
	}

	description := req.Description
	if description == "" {
		description = "credit grant"
	}

	return s.commitChange(ctx, "grant", changePlan{
		wallet:      wallet,
		actionType:  models.ActionCreditGrant,
		amount:      req.Amount,
		description: description,
		metadata:    req.Metadata,
		earnedDelta: req.Amount,
	})
}

func (s *service) Adjust(ctx context.Context, req AdjustRequest) (*TransactionResult, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("adjust", time.Since(start)) }()

	if req.Amount == 0 {
		s.metrics.RecordError("adjust", "invalid_amount")
		return nil, ErrInvalidAmount
	}

	wallet, err := s.repo.GetWalletByUserID(req.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if wallet.CurrentBalance+req.Amount < 0 {
		s.metrics.RecordError("adjust", "insufficient_credits")
		return nil, ErrInsufficientCredits
	}

	plan := changePlan{
		wallet:      wallet,
		actionType:  models.ActionManualAdjustment,
		amount:      req.Amount,
		description: req.Reason,
		metadata:    req.Metadata,
	}
	if req.Amount > 0 {
		plan.earnedDelta = req.Amount
	} else {
		plan.spentDelta = -req.Amount
	}
	return s.commitChange(ctx, "adjust", plan)
}

func (s *service) GetBalance(ctx context.Context, userID uint) (*BalanceSummary, error) {
	wallet, err := s.cache.GetWallet(ctx, userID)
	if err == nil {
		s.metrics.RecordCacheHit("wallet")
	} else {
		s.metrics.RecordCacheMiss("wallet")
		wallet, err = s.repo.GetWalletByUserID(userID)
		if err != nil {
			if errors.Is(err, repositories.ErrWalletNotFound) {
				return nil, ErrWalletNotFound
			}
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if cacheErr := s.cache.SetWallet(ctx, wallet); cacheErr != nil {
			log.Printf("failed to cache wallet %d: %v", userID, cacheErr)
		}
	}

	return &BalanceSummary{
		UserID:         wallet.UserID,
		CurrentBalance: wallet.CurrentBalance,
		CycleEarned:    wallet.TotalEarnedThisCycle,
		CycleSpent:     wallet.TotalSpentThisCycle,
		UpdatedAt:      wallet.UpdatedAt,
	}, nil
}

func (s *service) CheckEntitlement(ctx context.Context, userID uint, referenceID string) (*EntitlementStatus, error) {
	entitlement, err := s.repo.GetEntitlement(userID, referenceID)
	if err != nil {
		if errors.Is(err, repositories.ErrEntitlementNotFound) {
			return &EntitlementStatus{Granted: false}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &EntitlementStatus{
		Granted:   entitlement.Active(time.Now()),
		ExpiresAt: entitlement.ExpiresAt,
	}, nil
}

func (s *service) GetTransactionHistory(ctx context.Context, userID uint, limit, offset int) ([]models.Transaction, error) {
	history, err := s.repo.GetTransactionHistory(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return history, nil
}

// changePlan is one planned balance change, shared by the debit, grant,
// and adjustment paths.
type changePlan struct {
	wallet      *models.Wallet
	actionType  string
	referenceID string
	amount      int64 // signed
	description string
	metadata    map[string]interface{}
	earnedDelta int64
	spentDelta  int64
	entitle     bool
}

// commitChange runs the shared spine of every balance change: log the
// intent, execute the atomic write set under the conditional balance
// update, then self-verify against the committed rows.
//
// The repository calls inside the write set intentionally do not carry
// the caller's context: once the unit starts committing it must run to
// completion (commit or full rollback) even if the caller has stopped
// waiting, so no half-applied state is ever left behind.
func (s *service) commitChange(ctx context.Context, operation string, plan changePlan) (*TransactionResult, error) {
	balanceBefore := plan.wallet.CurrentBalance
	balanceAfter := balanceBefore + plan.amount
	now := time.Now().UTC()

	// The intent is durably logged before the write set is attempted.
	// It survives a rollback, so a crash between here and the commit is
	// diagnosable: the auditor surfaces intents with no transaction row.
	intent := &models.TransactionIntent{
		IntentID:      uuid.NewString(),
		UserID:        plan.wallet.UserID,
		WalletID:      plan.wallet.ID,
		ActionType:    plan.actionType,
		ReferenceID:   plan.referenceID,
		Amount:        plan.amount,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		Metadata:      models.NewJSON(plan.metadata),
	}
	if err := s.intents.Create(intent); err != nil {
		s.metrics.RecordError(operation, "intent_log_failed")
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	txn := &models.Transaction{
		TransactionID: "TX-" + uuid.NewString(),
		IntentID:      intent.IntentID,
		WalletID:      plan.wallet.ID,
		UserID:        plan.wallet.UserID,
		ActionType:    plan.actionType,
		ReferenceID:   plan.referenceID,
		Amount:        plan.amount,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		Description:   plan.description,
		Metadata:      models.NewJSON(plan.metadata),
	}

	var entitlement *models.Entitlement
	err := s.repo.ExecuteInTransaction(func(tx repositories.WalletRepository) error {
		matched, err := tx.ApplyBalanceChange(plan.wallet.UserID, balanceBefore, balanceAfter, plan.earnedDelta, plan.spentDelta)
		if err != nil {
			return err
		}
		if !matched {
			return ErrConcurrentModification
		}
		if err := tx.CreateTransaction(txn); err != nil {
			return err
		}
		if plan.entitle {
			entitlement = &models.Entitlement{
				UserID:      plan.wallet.UserID,
				ReferenceID: plan.referenceID,
				GrantedAt:   now,
				ExpiresAt:   now.Add(s.config.EntitlementWindow),
			}
			if err := tx.UpsertEntitlement(entitlement); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrConcurrentModification) {
			s.metrics.RecordError(operation, "concurrent_modification")
			return nil, ErrConcurrentModification
		}
		s.metrics.RecordError(operation, "write_set_failed")
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if cacheErr := s.cache.InvalidateWallet(ctx, plan.wallet.UserID); cacheErr != nil {
		log.Printf("failed to invalidate wallet cache for user %d: %v", plan.wallet.UserID, cacheErr)
	}
	s.metrics.RecordTransaction(operation, plan.amount)

	result := &TransactionResult{
		Success:       true,
		TransactionID: txn.TransactionID,
		IntentID:      intent.IntentID,
		Balance:       balanceAfter,
		Consistent:    true,
	}
	if entitlement != nil {
		result.EntitlementID = entitlement.ID
		result.EntitlementExpiresAt = entitlement.ExpiresAt
	}

	if discrepancy := s.verifyCommit(plan, txn, balanceAfter); discrepancy != "" {
		result.Consistent = false
		result.Discrepancy = discrepancy
		s.escalate(plan.wallet, operation, discrepancy, balanceAfter)
		return result, ErrInconsistentResult
	}
	return result, nil
}

// verifyCommit re-reads all records touched by the write set and
// returns a description of the first mismatch, or "" when everything
// checks out. The wallet balance is compared against the newest
// transaction's balance_after rather than ours, so a later debit that
// raced in between commit and verification is not a false alarm.
func (s *service) verifyCommit(plan changePlan, txn *models.Transaction, balanceAfter int64) string {
	committed, err := s.repo.GetTransactionByTransactionID(txn.TransactionID)
	if err != nil {
		return fmt.Sprintf("transaction %s not found after commit: %v", txn.TransactionID, err)
	}
	if committed.BalanceAfter != committed.BalanceBefore+committed.Amount {
		return fmt.Sprintf("transaction %s balance chain broken: %d + %d != %d",
			txn.TransactionID, committed.BalanceBefore, committed.Amount, committed.BalanceAfter)
	}
	if committed.BalanceAfter != balanceAfter || committed.Amount != plan.amount {
		return fmt.Sprintf("transaction %s does not match plan: amount %d balance_after %d, wanted %d and %d",
			txn.TransactionID, committed.Amount, committed.BalanceAfter, plan.amount, balanceAfter)
	}

	wallet, err := s.repo.GetWalletByUserID(plan.wallet.UserID)
	if err != nil {
		return fmt.Sprintf("wallet for user %d not readable after commit: %v", plan.wallet.UserID, err)
	}
	latest, err := s.repo.GetLatestTransaction(plan.wallet.UserID)
	if err != nil {
		return fmt.Sprintf("no transaction found for user %d after commit: %v", plan.wallet.UserID, err)
	}
	if wallet.CurrentBalance != latest.BalanceAfter {
		return fmt.Sprintf("wallet balance %d disagrees with latest transaction balance_after %d",
			wallet.CurrentBalance, latest.BalanceAfter)
	}

	if plan.entitle {
		entitlement, err := s.repo.GetEntitlement(plan.wallet.UserID, plan.referenceID)
		if err != nil {
			return fmt.Sprintf("entitlement for (%d, %s) not found after commit: %v",
				plan.wallet.UserID, plan.referenceID, err)
		}
		if !entitlement.ExpiresAt.After(time.Now()) {
			return fmt.Sprintf("entitlement for (%d, %s) was not renewed", plan.wallet.UserID, plan.referenceID)
		}
	}
	return ""
}

// escalate durably records a failed verification. Balances are never
// silently corrected here; repair happens through an explicit, audited
// adjustment transaction.
func (s *service) escalate(wallet *models.Wallet, operation, details string, expectedBalance int64) {
	actual := expectedBalance
	if current, err := s.repo.GetWalletByUserID(wallet.UserID); err == nil {
		actual = current.CurrentBalance
	}
	severity := s.config.Thresholds.Grade(actual - expectedBalance)

	rec := &models.Inconsistency{
		UserID:          wallet.UserID,
		WalletID:        wallet.ID,
		IssueType:       models.IssueVerificationFailed,
		ExpectedBalance: expectedBalance,
		ActualBalance:   actual,
		Discrepancy:     actual - expectedBalance,
		Severity:        severity,
		Details:         details,
	}
	if err := s.escalations.Create(rec); err != nil {
		// The record could not be persisted; the error returned to the
		// caller is now the only trace, so make it loud.
		log.Printf("CRITICAL: failed to record inconsistency for user %d (%s): %v", wallet.UserID, details, err)
	}
	s.metrics.RecordError(operation, "inconsistent_result")
	s.metrics.RecordInconsistency(severity)
}

func (s *service) getOrCreateWallet(userID uint) (*models.Wallet, error) {
	wallet, err := s.repo.GetWalletByUserID(userID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, repositories.ErrWalletNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	wallet = &models.Wallet{UserID: userID}
	if err := s.repo.CreateWallet(wallet); err != nil && !errors.Is(err, repositories.ErrDuplicateWallet) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	// A concurrent first grant may have won the insert; read back either way.
	wallet, err = s.repo.GetWalletByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return wallet, nil
}

type noopCache struct{}

func (noopCache) GetWallet(context.Context, uint) (*models.Wallet, error) {
	return nil, errors.New("cache disabled")
}
func (noopCache) SetWallet(context.Context, *models.Wallet) error { return nil }
func (noopCache) InvalidateWallet(context.Context, uint) error    { return nil }
