package repositories

import (
	"context"
	"errors"
	"time"

	"creditledger/internal/models"
)

var (
	ErrWalletNotFound        = errors.New("wallet not found")
	ErrDuplicateWallet       = errors.New("wallet already exists")
	ErrTransactionNotFound   = errors.New("transaction not found")
	ErrEntitlementNotFound   = errors.New("entitlement not found")
	ErrInconsistencyNotFound = errors.New("inconsistency record not found")
)

// WalletRepository defines the database operations for wallets and the
// records written atomically alongside them. Implementations obtained
// inside ExecuteInTransaction share one database transaction, so a
// failure in any call rolls back every write in the closure.
type WalletRepository interface {
	// Wallet operations
	CreateWallet(wallet *models.Wallet) error
	GetWalletByUserID(userID uint) (*models.Wallet, error)
	ListWalletUserIDs() ([]uint, error)

	// ApplyBalanceChange conditionally moves the wallet balance from
	// balanceBefore to balanceAfter, adjusting the cycle counters. The
	// update only matches while the stored balance still equals
	// balanceBefore; matched reports whether it did. This conditional
	// write is the serialization point for concurrent spenders.
	ApplyBalanceChange(userID uint, balanceBefore, balanceAfter, earnedDelta, spentDelta int64) (matched bool, err error)

	// Transaction log operations (append-only)
	CreateTransaction(tx *models.Transaction) error
	GetTransactionByTransactionID(transactionID string) (*models.Transaction, error)
	GetLatestTransaction(userID uint) (*models.Transaction, error)
	GetTransactionHistory(ctx context.Context, userID uint, limit, offset int) ([]models.Transaction, error)
	SumTransactionAmounts(userID uint) (int64, error)
	GetActivityStats(ctx context.Context, start, end time.Time) (*ActivityStats, error)

	// Entitlement operations
	UpsertEntitlement(entitlement *models.Entitlement) error
	GetEntitlement(userID uint, referenceID string) (*models.Entitlement, error)

	// ExecuteInTransaction runs fn inside a single database transaction.
	ExecuteInTransaction(fn func(WalletRepository) error) error
}

// ActivityStats aggregates transaction-log activity for a time window.
// SpendTotal and AvgSpend cover debits only, reported as positive credits.
type ActivityStats struct {
	TransactionCount  int64
	SpendTotal        int64
	AvgSpend          float64
	LastTransactionAt *time.Time
}

// IntentRepository persists transaction intents. Intents are written
// outside the atomic write set, before it runs, so they survive a
// rollback or a crash mid-operation.
type IntentRepository interface {
	Create(intent *models.TransactionIntent) error
	// GetOrphanedByUserID returns intents that never produced a
	// committed transaction row.
	GetOrphanedByUserID(userID uint) ([]models.TransactionIntent, error)
}

// InconsistencyRepository persists escalation records for wallets whose
// state disagrees with their history.
type InconsistencyRepository interface {
	Create(rec *models.Inconsistency) error
	GetByID(id uint) (*models.Inconsistency, error)
	ListUnresolved() ([]models.Inconsistency, error)
	MarkResolved(id uint, resolution, transactionID string) error
}
