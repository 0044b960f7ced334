package ledger

import (
	"context"

	"creditledger/internal/models"
)

// Service is the only mutating entry point to wallet state. All balance
// changes, including corrections, go through it.
type Service interface {
	// Debit charges a wallet for one billable action: a single attempt,
	// failing fast on a concurrent-modification conflict.
	Debit(ctx context.Context, req DebitRequest) (*TransactionResult, error)

	// DebitWithRetry retries Debit on ErrConcurrentModification with a
	// fresh snapshot, bounded by the configured retry count.
	DebitWithRetry(ctx context.Context, req DebitRequest) (*TransactionResult, error)

	// Grant adds credits, creating the wallet lazily on first grant.
	Grant(ctx context.Context, req GrantRequest) (*TransactionResult, error)

	// Adjust applies a signed manual correction. Used by the repair
	// path; the correction is logged like any other transaction.
	Adjust(ctx context.Context, req AdjustRequest) (*TransactionResult, error)

	// Read paths
	GetBalance(ctx context.Context, userID uint) (*BalanceSummary, error)
	CheckEntitlement(ctx context.Context, userID uint, referenceID string) (*EntitlementStatus, error)
	GetTransactionHistory(ctx context.Context, userID uint, limit, offset int) ([]models.Transaction, error)
}

// CacheOperator defines the wallet read-cache operations the executor
// needs. Implemented by cache.WalletCache; nil disables caching.
type CacheOperator interface {
	GetWallet(ctx context.Context, userID uint) (*models.Wallet, error)
	SetWallet(ctx context.Context, wallet *models.Wallet) error
	InvalidateWallet(ctx context.Context, userID uint) error
}
