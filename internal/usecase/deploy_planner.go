package usecase

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"dropforge/internal/domain"
)

type DeployPlan struct {
	Campaign   domain.Campaign
	Operations []domain.Operation
}

// DeployPlanner computes the delta between the compiled campaign and what
// the ledger already holds. Actual state is the union of store completion
// markers and live ledger queries; nothing is cached between runs, so a
// fresh plan is always safe to execute.
type DeployPlanner struct {
	Store  CampaignStore
	Ops    OperationStore
	Ledger Ledger
}

func (p *DeployPlanner) Plan(ctx context.Context, fingerprint []byte) (*DeployPlan, error) {
	campaign, err := p.Store.GetByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	cohorts, err := p.Store.Cohorts(ctx, campaign.ID)
	if err != nil {
		return nil, err
	}
	vaultsByCohort := make(map[string][]domain.Vault, len(cohorts))
	for _, cohort := range cohorts {
		vaults, err := p.Store.Vaults(ctx, cohort.ID)
		if err != nil {
			return nil, err
		}
		vaultsByCohort[cohort.ID] = vaults
	}

	completed, err := p.Ops.CompletedKeys(ctx, campaign.ID)
	if err != nil {
		return nil, err
	}

	desired, err := desiredOperations(*campaign, cohorts, vaultsByCohort)
	if err != nil {
		return nil, err
	}

	plan := &DeployPlan{Campaign: *campaign}
	for _, op := range desired {
		if _, done := completed[op.Key()]; done {
			continue
		}
		done, err := p.satisfiedOnLedger(ctx, op, *campaign, cohorts, vaultsByCohort)
		if err != nil {
			return nil, err
		}
		if done {
			continue
		}
		plan.Operations = append(plan.Operations, op)
	}
	sort.SliceStable(plan.Operations, func(i, j int) bool {
		return plan.Operations[i].Tier < plan.Operations[j].Tier
	})
	return plan, nil
}

// satisfiedOnLedger checks whether the ledger already reflects an operation
// the store has no completion marker for, which happens when a crash lost
// the marker write for an in-flight batch. Registration and activation have
// no queryable ledger footprint here, so those rely on markers alone.
func (p *DeployPlanner) satisfiedOnLedger(ctx context.Context, op domain.Operation, campaign domain.Campaign, cohorts []domain.Cohort, vaultsByCohort map[string][]domain.Vault) (bool, error) {
	switch op.Kind {
	case domain.OpCreateCampaign, domain.OpCreateCohort, domain.OpCreateVault:
		if op.Kind == domain.OpCreateVault && vaultMarkerSet(op.TargetRef, vaultsByCohort, func(v domain.Vault) bool { return v.CreatedOnLedger != nil }) {
			return true, nil
		}
		return p.Ledger.AccountExists(ctx, op.TargetRef)
	case domain.OpFundVault:
		if vaultMarkerSet(op.TargetRef, vaultsByCohort, func(v domain.Vault) bool { return v.FundedOnLedger != nil }) {
			return true, nil
		}
		exists, err := p.Ledger.AccountExists(ctx, op.TargetRef)
		if err != nil || !exists {
			return false, err
		}
		balance, err := p.Ledger.AccountBalance(ctx, op.TargetRef)
		if err != nil {
			return false, err
		}
		return balance >= op.Amount, nil
	case domain.OpActivateCohort:
		for _, cohort := range cohorts {
			if cohort.Address == op.TargetRef {
				return cohort.ActivatedAt != nil, nil
			}
		}
		return false, nil
	case domain.OpActivateCampaign:
		return campaign.ActivatedAt != nil, nil
	default:
		return false, nil
	}
}

func vaultMarkerSet(address string, vaultsByCohort map[string][]domain.Vault, marked func(domain.Vault) bool) bool {
	for _, vaults := range vaultsByCohort {
		for _, vault := range vaults {
			if vault.Address == address {
				return marked(vault)
			}
		}
	}
	return false
}

// desiredOperations enumerates the full operation set a compiled campaign
// needs on an empty ledger, in tier order. Vaults with zero required
// funding get no fund operation.
func desiredOperations(campaign domain.Campaign, cohorts []domain.Cohort, vaultsByCohort map[string][]domain.Vault) ([]domain.Operation, error) {
	var ops []domain.Operation
	add := func(kind domain.OperationKind, targetRef string, amount uint64, payload []byte) {
		ops = append(ops, domain.Operation{
			ID:         uuid.NewString(),
			CampaignID: campaign.ID,
			Kind:       kind,
			TargetRef:  targetRef,
			Tier:       kind.Tier(),
			Amount:     amount,
			Payload:    payload,
		})
	}

	payload, err := json.Marshal(struct {
		Fingerprint string `json:"fingerprint"`
		Asset       string `json:"asset"`
		Admin       string `json:"admin"`
		Decimals    int32  `json:"decimals"`
	}{hex.EncodeToString(campaign.Fingerprint), campaign.Asset, campaign.Admin, campaign.Decimals})
	if err != nil {
		return nil, err
	}
	add(domain.OpCreateCampaign, campaign.Address, 0, payload)

	for _, cohort := range cohorts {
		payload, err := json.Marshal(struct {
			Campaign   string `json:"campaign"`
			Root       string `json:"root"`
			Shape      string `json:"shape"`
			VaultCount int    `json:"vault_count"`
		}{campaign.Address, hex.EncodeToString(cohort.Root), string(cohort.TreeShape), cohort.VaultCount})
		if err != nil {
			return nil, err
		}
		add(domain.OpCreateCohort, cohort.Address, 0, payload)

		vaults := vaultsByCohort[cohort.ID]
		if len(vaults) != cohort.VaultCount {
			return nil, fmt.Errorf("cohort %q: %d vaults persisted, %d expected: %w", cohort.Name, len(vaults), cohort.VaultCount, domain.ErrNotFound)
		}
		for _, vault := range vaults {
			payload, err := json.Marshal(struct {
				Cohort string `json:"cohort"`
				Index  uint32 `json:"index"`
			}{cohort.Address, vault.Index})
			if err != nil {
				return nil, err
			}
			add(domain.OpCreateVault, vault.Address, 0, payload)
			if vault.RequiredFunding > 0 {
				add(domain.OpFundVault, vault.Address, vault.RequiredFunding, nil)
			}
			add(domain.OpRegisterVault, vault.Address, 0, payload)
		}
		add(domain.OpActivateCohort, cohort.Address, 0, nil)
	}
	add(domain.OpActivateCampaign, campaign.Address, 0, nil)

	sort.SliceStable(ops, func(i, j int) bool { return ops[i].Tier < ops[j].Tier })
	return ops, nil
}
