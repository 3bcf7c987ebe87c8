package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dropforge/internal/domain"
)

type OperationRepository struct {
	db *gorm.DB
}

func NewOperationRepository(db *gorm.DB) *OperationRepository {
	return &OperationRepository{db: db}
}

// CompletedKeys returns the natural keys of every completed operation for a
// campaign, mapped to their confirmation ids. The planner subtracts these
// from the desired state.
func (r *OperationRepository) CompletedKeys(ctx context.Context, campaignID string) (map[string]string, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []OperationModel
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND completed_at IS NOT NULL", campaignID).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	keys := make(map[string]string, len(models))
	for _, model := range models {
		keys[model.Kind+":"+model.TargetRef] = model.ConfirmationID
	}
	return keys, nil
}

// MarkCompleted durably records a confirmed batch before the pipeline moves
// on: each operation row is inserted under its natural key (re-runs hit the
// unique index and change nothing), and the matching entity progress
// markers are advanced in the same transaction.
func (r *OperationRepository) MarkCompleted(ctx context.Context, ops []domain.Operation, confirmationID string, confirmedAt time.Time) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if len(ops) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, op := range ops {
			completedAt := confirmedAt
			model := OperationModel{
				ID:             uuid.NewString(),
				CampaignID:     op.CampaignID,
				Kind:           string(op.Kind),
				TargetRef:      op.TargetRef,
				Tier:           op.Tier,
				Amount:         op.Amount,
				Payload:        copyBytes(op.Payload),
				CompletedAt:    &completedAt,
				ConfirmationID: confirmationID,
				CreatedAt:      confirmedAt,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "kind"}, {Name: "target_ref"}},
				DoNothing: true,
			}).Create(&model).Error
			if err != nil {
				return err
			}
			if err := advanceMarker(tx, op, confirmationID, confirmedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

func advanceMarker(tx *gorm.DB, op domain.Operation, confirmationID string, confirmedAt time.Time) error {
	switch op.Kind {
	case domain.OpCreateVault:
		return tx.Model(&VaultModel{}).
			Where("address = ? AND created_on_ledger IS NULL", op.TargetRef).
			Update("created_on_ledger", confirmedAt).Error
	case domain.OpFundVault:
		return tx.Model(&VaultModel{}).
			Where("address = ? AND funded_on_ledger IS NULL", op.TargetRef).
			Update("funded_on_ledger", confirmedAt).Error
	case domain.OpActivateCohort:
		return tx.Model(&CohortModel{}).
			Where("address = ? AND activated_at IS NULL", op.TargetRef).
			Update("activated_at", confirmedAt).Error
	case domain.OpActivateCampaign:
		return tx.Model(&CampaignModel{}).
			Where("id = ? AND activated_at IS NULL", op.CampaignID).
			Updates(map[string]any{
				"activated_at":            confirmedAt,
				"activation_confirmation": confirmationID,
			}).Error
	default:
		return nil
	}
}
