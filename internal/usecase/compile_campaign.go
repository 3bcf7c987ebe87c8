package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"dropforge/internal/domain"
	"dropforge/internal/infra/assign"
	"dropforge/internal/infra/funding"
	"dropforge/internal/infra/merkle"
)

type ClaimantInput struct {
	Cohort       string
	Address      string
	AddressBytes [merkle.ClaimantSize]byte
	Entitlements uint64
}

type CohortInput struct {
	Name                 string
	AmountPerEntitlement decimal.Decimal
}

type CompileCampaignRequest struct {
	Asset          string
	Admin          string
	Decimals       int32
	Budget         uint64
	TreeShape      domain.TreeShape
	PerVaultTarget int
	Cohorts        []CohortInput
	Claimants      []ClaimantInput
}

type CompileCampaignResponse struct {
	Campaign domain.Campaign
	Cohorts  []domain.Cohort
	Warnings []string
}

// CompileCampaign turns raw claimant and cohort rows into a fully derived,
// persisted campaign: vault layout, commitment trees, membership proofs,
// fingerprint and the exact funding table. Compilation is all-or-nothing;
// any validation or arithmetic failure leaves the store untouched.
type CompileCampaign struct {
	Store    CampaignStore
	Assigner VaultAssigner
}

// compiledCohort carries one cohort's derived state between the two compile
// passes. Addresses cannot be assigned until every root is known, because
// they all hang off the campaign fingerprint.
type compiledCohort struct {
	input     CohortInput
	claimants []ClaimantInput
	tree      *merkle.Tree
	root      []byte
	indices   []uint32
	funding   funding.Result
	counts    []int
}

func (uc *CompileCampaign) Execute(ctx context.Context, req CompileCampaignRequest) (*CompileCampaignResponse, error) {
	if err := validateCompileRequest(req); err != nil {
		return nil, err
	}

	byCohort, err := groupClaimants(req)
	if err != nil {
		return nil, err
	}

	var warnings []string
	compiled := make([]*compiledCohort, 0, len(req.Cohorts))
	roots := make([][]byte, 0, len(req.Cohorts))
	var budgetNeeded uint64
	for _, cohort := range req.Cohorts {
		claimants := byCohort[cohort.Name]
		if len(claimants) == 0 {
			return nil, fmt.Errorf("cohort %q: %w", cohort.Name, domain.ErrEmptyCohort)
		}
		if cohort.AmountPerEntitlement.IsZero() {
			warnings = append(warnings, fmt.Sprintf("cohort %q has a zero amount per entitlement", cohort.Name))
		}

		cc, err := uc.compileCohort(cohort, claimants, req)
		if err != nil {
			return nil, fmt.Errorf("cohort %q: %w", cohort.Name, err)
		}

		for _, vault := range cc.funding.Vaults {
			total, ok := addUint64(budgetNeeded, vault.BaseUnits)
			if !ok {
				return nil, fmt.Errorf("campaign funding total: %w", domain.ErrAmountOverflow)
			}
			budgetNeeded = total
		}
		compiled = append(compiled, cc)
		roots = append(roots, cc.root)
	}

	if budgetNeeded > req.Budget {
		return nil, fmt.Errorf("required %d base units, budget %d: %w", budgetNeeded, req.Budget, domain.ErrBudgetExceeded)
	}

	fingerprint, err := merkle.Fingerprint(roots)
	if err != nil {
		return nil, err
	}

	out, err := assemble(req, fingerprint, compiled, warnings)
	if err != nil {
		return nil, err
	}
	if err := uc.Store.SaveCompiled(ctx, *out); err != nil {
		return nil, err
	}
	return &CompileCampaignResponse{
		Campaign: out.Campaign,
		Cohorts:  out.Cohorts,
		Warnings: out.Warnings,
	}, nil
}

func (uc *CompileCampaign) compileCohort(cohort CohortInput, claimants []ClaimantInput, req CompileCampaignRequest) (*compiledCohort, error) {
	vaultCount := assign.VaultCount(len(claimants), req.PerVaultTarget)

	indices := make([]uint32, len(claimants))
	leafHashes := make([][]byte, len(claimants))
	entitlements := make([]uint64, vaultCount)
	counts := make([]int, vaultCount)
	for i, claimant := range claimants {
		index, err := uc.Assigner.Assign(claimant.AddressBytes[:], vaultCount)
		if err != nil {
			return nil, err
		}
		leaf := merkle.Leaf{
			Claimant:     claimant.AddressBytes,
			Entitlements: claimant.Entitlements,
			VaultIndex:   index,
		}
		if err := merkle.ValidateLeaf(leaf, vaultCount); err != nil {
			return nil, fmt.Errorf("claimant %s: %w", claimant.Address, err)
		}
		indices[i] = index
		leafHashes[i] = leaf.Hash()
		entitlements[index] += claimant.Entitlements
		counts[index]++
	}

	tree, err := merkle.Build(merkle.Shape(req.TreeShape), leafHashes)
	if err != nil {
		return nil, err
	}
	result, err := funding.Compute(cohort.AmountPerEntitlement, req.Decimals, entitlements)
	if err != nil {
		return nil, err
	}
	return &compiledCohort{
		input:     cohort,
		claimants: claimants,
		tree:      tree,
		root:      tree.Root(),
		indices:   indices,
		funding:   result,
		counts:    counts,
	}, nil
}

// assemble stamps fingerprint-derived addresses and identities onto the
// compiled cohorts and flattens them into one persistable unit.
func assemble(req CompileCampaignRequest, fingerprint []byte, compiled []*compiledCohort, warnings []string) (*domain.CompiledCampaign, error) {
	now := time.Now().UTC()
	campaign := domain.Campaign{
		ID:          uuid.NewString(),
		Fingerprint: fingerprint,
		Address:     domain.CampaignAddress(fingerprint),
		Asset:       req.Asset,
		Admin:       req.Admin,
		Budget:      req.Budget,
		Decimals:    req.Decimals,
		CreatedAt:   now,
	}

	out := &domain.CompiledCampaign{Campaign: campaign, Warnings: warnings}
	for _, cc := range compiled {
		cohort := domain.Cohort{
			ID:                   uuid.NewString(),
			CampaignID:           campaign.ID,
			Name:                 cc.input.Name,
			Root:                 cc.root,
			Address:              domain.CohortAddress(fingerprint, cc.root),
			TreeShape:            req.TreeShape,
			AmountPerEntitlement: cc.input.AmountPerEntitlement,
			VaultCount:           len(cc.funding.Vaults),
			TotalEntitlements:    cc.funding.TotalEntitlements,
			Dust:                 cc.funding.Dust,
		}
		out.Cohorts = append(out.Cohorts, cohort)

		for i, claimant := range cc.claimants {
			proof, err := cc.tree.Proof(i)
			if err != nil {
				return nil, err
			}
			encoded, err := json.Marshal(proof)
			if err != nil {
				return nil, err
			}
			out.Claimants = append(out.Claimants, domain.Claimant{
				ID:           uuid.NewString(),
				CohortID:     cohort.ID,
				Address:      claimant.Address,
				Entitlements: claimant.Entitlements,
				VaultIndex:   cc.indices[i],
				Proof:        encoded,
			})
		}
		for _, vault := range cc.funding.Vaults {
			out.Vaults = append(out.Vaults, domain.Vault{
				ID:              uuid.NewString(),
				CohortID:        cohort.ID,
				Index:           vault.Index,
				Address:         domain.VaultAddress(fingerprint, cc.root, vault.Index),
				RequiredFunding: vault.BaseUnits,
				ClaimantCount:   cc.counts[vault.Index],
			})
		}
	}
	return out, nil
}

func validateCompileRequest(req CompileCampaignRequest) error {
	if !req.TreeShape.Valid() {
		return fmt.Errorf("tree shape %q: %w", req.TreeShape, merkle.ErrUnknownShape)
	}
	if req.Decimals < 0 {
		return fmt.Errorf("asset decimals %d: %w", req.Decimals, domain.ErrAmountOverflow)
	}
	if len(req.Cohorts) == 0 {
		return domain.ErrEmptyCohort
	}
	seen := make(map[string]bool, len(req.Cohorts))
	for _, cohort := range req.Cohorts {
		if seen[cohort.Name] {
			return fmt.Errorf("cohort %q declared twice", cohort.Name)
		}
		seen[cohort.Name] = true
		if cohort.AmountPerEntitlement.IsNegative() {
			return fmt.Errorf("cohort %q amount %s: %w", cohort.Name, cohort.AmountPerEntitlement, domain.ErrAmountOverflow)
		}
	}
	return nil
}

// groupClaimants buckets rows by cohort in canonical claimant order. Leaves
// are sorted by claimant address, so the same membership set always yields
// the same tree no matter how the input file was arranged.
func groupClaimants(req CompileCampaignRequest) (map[string][]ClaimantInput, error) {
	known := make(map[string]bool, len(req.Cohorts))
	for _, cohort := range req.Cohorts {
		known[cohort.Name] = true
	}

	byCohort := make(map[string][]ClaimantInput, len(req.Cohorts))
	dedupe := make(map[string]bool, len(req.Claimants))
	for _, claimant := range req.Claimants {
		if !known[claimant.Cohort] {
			return nil, fmt.Errorf("claimant %s references cohort %q: %w", claimant.Address, claimant.Cohort, domain.ErrUnknownCohort)
		}
		if claimant.Entitlements == 0 {
			return nil, fmt.Errorf("claimant %s: %w", claimant.Address, domain.ErrZeroEntitlements)
		}
		key := claimant.Cohort + "\x00" + string(claimant.AddressBytes[:])
		if dedupe[key] {
			return nil, fmt.Errorf("claimant %s in cohort %q: %w", claimant.Address, claimant.Cohort, domain.ErrDuplicateClaimant)
		}
		dedupe[key] = true
		byCohort[claimant.Cohort] = append(byCohort[claimant.Cohort], claimant)
	}
	for name := range byCohort {
		claimants := byCohort[name]
		sort.Slice(claimants, func(i, j int) bool {
			return bytes.Compare(claimants[i].AddressBytes[:], claimants[j].AddressBytes[:]) < 0
		})
	}
	return byCohort, nil
}

func addUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}
