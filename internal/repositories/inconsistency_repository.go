package repositories

import (
	"errors"
	"fmt"
	"time"

	"creditledger/internal/models"

	"gorm.io/gorm"
)

type inconsistencyRepository struct {
	db *gorm.DB
}

// NewInconsistencyRepository creates a gorm-backed InconsistencyRepository.
func NewInconsistencyRepository(db *gorm.DB) InconsistencyRepository {
	return &inconsistencyRepository{db: db}
}

func (r *inconsistencyRepository) Create(rec *models.Inconsistency) error {
	if err := r.db.Create(rec).Error; err != nil {
		return fmt.Errorf("failed to record inconsistency: %w", err)
	}
	return nil
}

func (r *inconsistencyRepository) GetByID(id uint) (*models.Inconsistency, error) {
	var rec models.Inconsistency
	if err := r.db.First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInconsistencyNotFound
		}
		return nil, fmt.Errorf("failed to get inconsistency: %w", err)
	}
	return &rec, nil
}

func (r *inconsistencyRepository) ListUnresolved() ([]models.Inconsistency, error) {
	var recs []models.Inconsistency
	err := r.db.Where("resolved_at IS NULL").Order("created_at").Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list inconsistencies: %w", err)
	}
	return recs, nil
}

func (r *inconsistencyRepository) MarkResolved(id uint, resolution, transactionID string) error {
	now := time.Now().UTC()
	result := r.db.Model(&models.Inconsistency{}).
		Where("id = ? AND resolved_at IS NULL", id).
		Updates(map[string]interface{}{
			"resolved_at":      &now,
			"resolution":       resolution,
			"resolution_tx_id": transactionID,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to resolve inconsistency: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrInconsistencyNotFound
	}
	return nil
}
