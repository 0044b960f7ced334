package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"creditledger/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type walletRepository struct {
	db *gorm.DB
}

// NewWalletRepository creates a gorm-backed WalletRepository.
func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) CreateWallet(wallet *models.Wallet) error {
	result := r.db.Create(wallet)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrDuplicateWallet
		}
		return fmt.Errorf("failed to create wallet: %w", result.Error)
	}
	return nil
}

func (r *walletRepository) GetWalletByUserID(userID uint) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

func (r *walletRepository) ListWalletUserIDs() ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.Wallet{}).Order("user_id").Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	return ids, nil
}

// ApplyBalanceChange is the optimistic-concurrency write: the balance
// check and the update are one statement, so two spenders racing on the
// same wallet can never both match.
func (r *walletRepository) ApplyBalanceChange(userID uint, balanceBefore, balanceAfter, earnedDelta, spentDelta int64) (bool, error) {
	result := r.db.Model(&models.Wallet{}).
		Where("user_id = ? AND current_balance = ?", userID, balanceBefore).
		Updates(map[string]interface{}{
			"current_balance":         balanceAfter,
			"total_earned_this_cycle": gorm.Expr("total_earned_this_cycle + ?", earnedDelta),
			"total_spent_this_cycle":  gorm.Expr("total_spent_this_cycle + ?", spentDelta),
			"updated_at":              time.Now().UTC(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to apply balance change: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *walletRepository) CreateTransaction(tx *models.Transaction) error {
	result := r.db.Create(tx)
	if result.Error != nil {
		return fmt.Errorf("failed to create transaction: %w", result.Error)
	}
	return nil
}

func (r *walletRepository) GetTransactionByTransactionID(transactionID string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := r.db.Where("transaction_id = ?", transactionID).First(&tx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &tx, nil
}

func (r *walletRepository) GetLatestTransaction(userID uint) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.Where("user_id = ?", userID).Order("id DESC").First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get latest transaction: %w", err)
	}
	return &tx, nil
}

func (r *walletRepository) GetTransactionHistory(ctx context.Context, userID uint, limit, offset int) ([]models.Transaction, error) {
	var history []models.Transaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	return history, nil
}

func (r *walletRepository) SumTransactionAmounts(userID uint) (int64, error) {
	var total int64
	err := r.db.Model(&models.Transaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum transactions: %w", err)
	}
	return total, nil
}

func (r *walletRepository) GetActivityStats(ctx context.Context, start, end time.Time) (*ActivityStats, error) {
	var stats ActivityStats
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("created_at BETWEEN ? AND ?", start, end).
		Select(`
			COUNT(*) as transaction_count,
			COALESCE(SUM(CASE WHEN amount < 0 THEN -amount ELSE 0 END), 0) as spend_total,
			COALESCE(AVG(CASE WHEN amount < 0 THEN -amount END), 0) as avg_spend,
			MAX(created_at) as last_transaction_at
		`).
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get activity stats: %w", err)
	}
	return &stats, nil
}

// UpsertEntitlement inserts a new entitlement or renews the existing
// one for the same (user, reference). Racing renewals are safe:
// last writer wins on expires_at, which only ever extends access.
func (r *walletRepository) UpsertEntitlement(entitlement *models.Entitlement) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "reference_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"expires_at": entitlement.ExpiresAt,
			"updated_at": time.Now().UTC(),
		}),
	}).Create(entitlement).Error
	if err != nil {
		return fmt.Errorf("failed to upsert entitlement: %w", err)
	}
	return nil
}

func (r *walletRepository) GetEntitlement(userID uint, referenceID string) (*models.Entitlement, error) {
	var entitlement models.Entitlement
	err := r.db.Where("user_id = ? AND reference_id = ?", userID, referenceID).First(&entitlement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntitlementNotFound
		}
		return nil, fmt.Errorf("failed to get entitlement: %w", err)
	}
	return &entitlement, nil
}

func (r *walletRepository) ExecuteInTransaction(fn func(WalletRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&walletRepository{db: tx})
	})
}
