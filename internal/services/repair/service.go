// Package repair applies manual, audited corrections to wallets with
// recorded inconsistencies. A repair is never a direct balance
// overwrite: the correction is issued as a normal adjustment
// transaction through the ledger executor, so it shows up in the same
// append-only history it is repairing.
package repair

import (
	"context"
	"errors"
	"fmt"

	"creditledger/internal/models"
	"creditledger/internal/repositories"
	"creditledger/internal/services/ledger"
)

var (
	ErrAlreadyResolved = errors.New("inconsistency already resolved")
	ErrEmptyReason     = errors.New("repair reason is required")
)

// Adjuster is the slice of the ledger executor the repair path uses.
type Adjuster interface {
	Adjust(ctx context.Context, req ledger.AdjustRequest) (*ledger.TransactionResult, error)
}

// Service applies operator-approved corrections.
type Service struct {
	ledger      Adjuster
	escalations repositories.InconsistencyRepository
}

// NewService creates the repair service.
func NewService(adjuster Adjuster, escalations repositories.InconsistencyRepository) *Service {
	if adjuster == nil {
		panic("adjuster is required")
	}
	if escalations == nil {
		panic("inconsistency repository is required")
	}
	return &Service{ledger: adjuster, escalations: escalations}
}

// ListOpen returns the inconsistencies still awaiting a repair decision.
func (s *Service) ListOpen(ctx context.Context) ([]models.Inconsistency, error) {
	return s.escalations.ListUnresolved()
}

// Repair applies a signed correcting adjustment against the wallet
// named by an inconsistency record, then marks the record resolved with
// a pointer to the corrective transaction. The adjustment amount is an
// explicit operator decision, not derived automatically.
func (s *Service) Repair(ctx context.Context, inconsistencyID uint, adjustment int64, reason string) (*ledger.TransactionResult, error) {
	if reason == "" {
		return nil, ErrEmptyReason
	}

	rec, err := s.escalations.GetByID(inconsistencyID)
	if err != nil {
		return nil, err
	}
	if rec.Resolved() {
		return nil, ErrAlreadyResolved
	}

	result, err := s.ledger.Adjust(ctx, ledger.AdjustRequest{
		UserID: rec.UserID,
		Amount: adjustment,
		Reason: reason,
		Metadata: map[string]interface{}{
			"inconsistency_id": rec.ID,
			"issue_type":       rec.IssueType,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("corrective adjustment failed: %w", err)
	}

	if err := s.escalations.MarkResolved(rec.ID, reason, result.TransactionID); err != nil {
		// The adjustment committed; the record just was not closed.
		// Surface it so the operator closes it by hand instead of
		// repairing twice.
		return result, fmt.Errorf("adjustment %s committed but inconsistency %d not marked resolved: %w",
			result.TransactionID, rec.ID, err)
	}
	return result, nil
}
