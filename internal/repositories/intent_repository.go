package repositories

import (
	"fmt"

	"creditledger/internal/models"

	"gorm.io/gorm"
)

type intentRepository struct {
	db *gorm.DB
}

// NewIntentRepository creates a gorm-backed IntentRepository.
func NewIntentRepository(db *gorm.DB) IntentRepository {
	return &intentRepository{db: db}
}

func (r *intentRepository) Create(intent *models.TransactionIntent) error {
	if err := r.db.Create(intent).Error; err != nil {
		return fmt.Errorf("failed to log intent: %w", err)
	}
	return nil
}

// GetOrphanedByUserID finds intents whose planned transaction never
// committed. These are the candidates for "the write set was planned
// but the atomic unit never finished".
func (r *intentRepository) GetOrphanedByUserID(userID uint) ([]models.TransactionIntent, error) {
	committed := r.db.Model(&models.Transaction{}).
		Select("intent_id").
		Where("user_id = ?", userID)

	var orphans []models.TransactionIntent
	err := r.db.
		Where("user_id = ? AND intent_id NOT IN (?)", userID, committed).
		Order("created_at").
		Find(&orphans).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find orphaned intents: %w", err)
	}
	return orphans, nil
}
