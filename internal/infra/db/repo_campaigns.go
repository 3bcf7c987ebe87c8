package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"dropforge/internal/domain"
)

type CampaignRepository struct {
	db *gorm.DB
}

func NewCampaignRepository(db *gorm.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// SaveCompiled persists one compile result atomically. A fingerprint that
// already exists aborts the save: compiled campaigns are write-once and a
// superseding compile produces new rows under a new fingerprint.
func (r *CampaignRepository) SaveCompiled(ctx context.Context, compiled domain.CompiledCampaign) error {
	if r.db == nil {
		return errDBUnavailable
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing CampaignModel
		err := tx.Where("fingerprint = ?", compiled.Campaign.Fingerprint).First(&existing).Error
		if err == nil {
			return domain.ErrCampaignExists
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		campaign := CampaignModel{
			ID:          compiled.Campaign.ID,
			Fingerprint: copyBytes(compiled.Campaign.Fingerprint),
			Address:     compiled.Campaign.Address,
			Asset:       compiled.Campaign.Asset,
			Admin:       compiled.Campaign.Admin,
			Budget:      compiled.Campaign.Budget,
			Decimals:    compiled.Campaign.Decimals,
			CreatedAt:   compiled.Campaign.CreatedAt,
		}
		if campaign.ID == "" {
			campaign.ID = uuid.NewString()
		}
		if err := tx.Create(&campaign).Error; err != nil {
			return err
		}

		for _, cohort := range compiled.Cohorts {
			model := CohortModel{
				ID:                   cohort.ID,
				CampaignID:           campaign.ID,
				Name:                 cohort.Name,
				Root:                 copyBytes(cohort.Root),
				Address:              cohort.Address,
				TreeShape:            string(cohort.TreeShape),
				AmountPerEntitlement: cohort.AmountPerEntitlement,
				VaultCount:           cohort.VaultCount,
				TotalEntitlements:    cohort.TotalEntitlements,
				Dust:                 cohort.Dust,
			}
			if err := tx.Create(&model).Error; err != nil {
				return err
			}
		}

		claimants := make([]ClaimantModel, 0, len(compiled.Claimants))
		for _, claimant := range compiled.Claimants {
			claimants = append(claimants, ClaimantModel{
				ID:           claimant.ID,
				CohortID:     claimant.CohortID,
				Address:      claimant.Address,
				Entitlements: claimant.Entitlements,
				VaultIndex:   claimant.VaultIndex,
				Proof:        copyBytes(claimant.Proof),
			})
		}
		if len(claimants) > 0 {
			if err := tx.CreateInBatches(claimants, 500).Error; err != nil {
				return err
			}
		}

		vaults := make([]VaultModel, 0, len(compiled.Vaults))
		for _, vault := range compiled.Vaults {
			vaults = append(vaults, VaultModel{
				ID:              vault.ID,
				CohortID:        vault.CohortID,
				VaultIndex:      vault.Index,
				Address:         vault.Address,
				RequiredFunding: vault.RequiredFunding,
				ClaimantCount:   vault.ClaimantCount,
			})
		}
		if len(vaults) > 0 {
			if err := tx.CreateInBatches(vaults, 500).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *CampaignRepository) GetByFingerprint(ctx context.Context, fingerprint []byte) (*domain.Campaign, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model CampaignModel
	err := r.db.WithContext(ctx).Where("fingerprint = ?", fingerprint).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	campaign := campaignToDomain(model)
	return &campaign, nil
}

func (r *CampaignRepository) Cohorts(ctx context.Context, campaignID string) ([]domain.Cohort, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []CohortModel
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("name ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	cohorts := make([]domain.Cohort, 0, len(models))
	for _, model := range models {
		cohorts = append(cohorts, cohortToDomain(model))
	}
	return cohorts, nil
}

func (r *CampaignRepository) Vaults(ctx context.Context, cohortID string) ([]domain.Vault, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []VaultModel
	err := r.db.WithContext(ctx).
		Where("cohort_id = ?", cohortID).
		Order("vault_index ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	vaults := make([]domain.Vault, 0, len(models))
	for _, model := range models {
		vaults = append(vaults, domain.Vault{
			ID:              model.ID,
			CohortID:        model.CohortID,
			Index:           model.VaultIndex,
			Address:         model.Address,
			RequiredFunding: model.RequiredFunding,
			ClaimantCount:   model.ClaimantCount,
			CreatedOnLedger: model.CreatedOnLedger,
			FundedOnLedger:  model.FundedOnLedger,
		})
	}
	return vaults, nil
}

func (r *CampaignRepository) ClaimantCount(ctx context.Context, cohortID string) (int64, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&ClaimantModel{}).
		Where("cohort_id = ?", cohortID).
		Count(&count).Error
	return count, err
}

func campaignToDomain(model CampaignModel) domain.Campaign {
	return domain.Campaign{
		ID:          model.ID,
		Fingerprint: copyBytes(model.Fingerprint),
		Address:     model.Address,
		Asset:       model.Asset,
		Admin:       model.Admin,
		Budget:      model.Budget,
		Decimals:    model.Decimals,
		CreatedAt:   model.CreatedAt,
		ActivatedAt: cloneTime(model.ActivatedAt),
	}
}

func cohortToDomain(model CohortModel) domain.Cohort {
	return domain.Cohort{
		ID:                   model.ID,
		CampaignID:           model.CampaignID,
		Name:                 model.Name,
		Root:                 copyBytes(model.Root),
		Address:              model.Address,
		TreeShape:            domain.TreeShape(model.TreeShape),
		AmountPerEntitlement: model.AmountPerEntitlement,
		VaultCount:           model.VaultCount,
		TotalEntitlements:    model.TotalEntitlements,
		Dust:                 model.Dust,
		ActivatedAt:          cloneTime(model.ActivatedAt),
	}
}

func cloneTime(in *time.Time) *time.Time {
	if in == nil {
		return nil
	}
	out := *in
	return &out
}
