package usecase

import (
	"context"
	"sort"

	"dropforge/internal/domain"
)

type TierProgress struct {
	Tier      int
	Completed int
	Remaining int
}

type CohortProgress struct {
	Name          string
	VaultCount    int
	VaultsCreated int
	VaultsFunded  int
	Activated     bool
}

type CampaignStatusReport struct {
	Campaign  domain.Campaign
	Activated bool
	Tiers     []TierProgress
	Cohorts   []CohortProgress
}

// CampaignStatus reports deployment progress from the store alone. It never
// touches the ledger: the coordinator is the single writer of completion
// state, and this query only reads what it recorded.
type CampaignStatus struct {
	Store CampaignStore
	Ops   OperationStore
}

func (uc *CampaignStatus) Execute(ctx context.Context, fingerprint []byte) (*CampaignStatusReport, error) {
	campaign, err := uc.Store.GetByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	cohorts, err := uc.Store.Cohorts(ctx, campaign.ID)
	if err != nil {
		return nil, err
	}

	report := &CampaignStatusReport{
		Campaign:  *campaign,
		Activated: campaign.ActivatedAt != nil,
	}

	vaultsByCohort := make(map[string][]domain.Vault, len(cohorts))
	for _, cohort := range cohorts {
		vaults, err := uc.Store.Vaults(ctx, cohort.ID)
		if err != nil {
			return nil, err
		}
		vaultsByCohort[cohort.ID] = vaults

		progress := CohortProgress{
			Name:       cohort.Name,
			VaultCount: cohort.VaultCount,
			Activated:  cohort.ActivatedAt != nil,
		}
		for _, vault := range vaults {
			if vault.CreatedOnLedger != nil {
				progress.VaultsCreated++
			}
			if vault.FundedOnLedger != nil {
				progress.VaultsFunded++
			}
		}
		report.Cohorts = append(report.Cohorts, progress)
	}

	completed, err := uc.Ops.CompletedKeys(ctx, campaign.ID)
	if err != nil {
		return nil, err
	}
	desired, err := desiredOperations(*campaign, cohorts, vaultsByCohort)
	if err != nil {
		return nil, err
	}

	byTier := make(map[int]*TierProgress)
	for _, op := range desired {
		progress, ok := byTier[op.Tier]
		if !ok {
			progress = &TierProgress{Tier: op.Tier}
			byTier[op.Tier] = progress
		}
		if _, done := completed[op.Key()]; done {
			progress.Completed++
		} else {
			progress.Remaining++
		}
	}
	for _, progress := range byTier {
		report.Tiers = append(report.Tiers, *progress)
	}
	sort.Slice(report.Tiers, func(i, j int) bool { return report.Tiers[i].Tier < report.Tiers[j].Tier })
	return report, nil
}
