//go:build integration
// +build integration

package db

import (
	"context"
	"crypto/sha256"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"dropforge/internal/domain"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("POSTGRES_DSN_TEST"))
	if dsn == "" {
		t.Skip("POSTGRES_DSN_TEST not set")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	store := &Store{DB: gdb}
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func resetDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	err := db.Exec(`
		TRUNCATE campaign_models,
			cohort_models,
			claimant_models,
			vault_models,
			operation_models
		RESTART IDENTITY CASCADE`).Error
	if err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func testCompiled(t *testing.T) domain.CompiledCampaign {
	t.Helper()
	fingerprint := sha256.Sum256([]byte("campaign"))
	root := sha256.Sum256([]byte("cohort"))
	campaignID := uuid.NewString()
	cohortID := uuid.NewString()

	cohortAddr := domain.CohortAddress(fingerprint[:], root[:])
	return domain.CompiledCampaign{
		Campaign: domain.Campaign{
			ID:          campaignID,
			Fingerprint: fingerprint[:],
			Address:     domain.CampaignAddress(fingerprint[:]),
			Asset:       "So11111111111111111111111111111111111111112",
			Admin:       "admin",
			Budget:      1000,
			Decimals:    6,
			CreatedAt:   time.Now().UTC(),
		},
		Cohorts: []domain.Cohort{{
			ID:                   cohortID,
			CampaignID:           campaignID,
			Name:                 "early",
			Root:                 root[:],
			Address:              cohortAddr,
			TreeShape:            domain.TreeWide,
			AmountPerEntitlement: decimal.NewFromInt(100),
			VaultCount:           1,
			TotalEntitlements:    8,
			Dust:                 decimal.Zero,
		}},
		Claimants: []domain.Claimant{{
			ID:           uuid.NewString(),
			CohortID:     cohortID,
			Address:      "4vJ9JU1bJJE96FWSJKvHsmmFADCg4gpZQff4P3bkLKi",
			Entitlements: 8,
			VaultIndex:   0,
			Proof:        []byte(`{"shape":"wide","levels":[]}`),
		}},
		Vaults: []domain.Vault{{
			ID:              uuid.NewString(),
			CohortID:        cohortID,
			Index:           0,
			Address:         domain.VaultAddress(fingerprint[:], root[:], 0),
			RequiredFunding: 800,
			ClaimantCount:   1,
		}},
	}
}

func TestSaveCompiledRoundTrip(t *testing.T) {
	gdb := setupTestDB(t)
	resetDB(t, gdb)
	ctx := context.Background()

	repo := NewCampaignRepository(gdb)
	compiled := testCompiled(t)
	if err := repo.SaveCompiled(ctx, compiled); err != nil {
		t.Fatalf("save compiled: %v", err)
	}

	campaign, err := repo.GetByFingerprint(ctx, compiled.Campaign.Fingerprint)
	if err != nil {
		t.Fatalf("get campaign: %v", err)
	}
	if campaign.Address != compiled.Campaign.Address {
		t.Fatalf("campaign address mismatch: %s", campaign.Address)
	}
	if campaign.ActivatedAt != nil {
		t.Fatal("freshly compiled campaign must not be activated")
	}

	cohorts, err := repo.Cohorts(ctx, campaign.ID)
	if err != nil {
		t.Fatalf("cohorts: %v", err)
	}
	if len(cohorts) != 1 || cohorts[0].Name != "early" {
		t.Fatalf("unexpected cohorts: %+v", cohorts)
	}
	if !cohorts[0].AmountPerEntitlement.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("amount drifted: %s", cohorts[0].AmountPerEntitlement)
	}

	vaults, err := repo.Vaults(ctx, cohorts[0].ID)
	if err != nil {
		t.Fatalf("vaults: %v", err)
	}
	if len(vaults) != 1 || vaults[0].RequiredFunding != 800 {
		t.Fatalf("unexpected vaults: %+v", vaults)
	}

	count, err := repo.ClaimantCount(ctx, cohorts[0].ID)
	if err != nil || count != 1 {
		t.Fatalf("claimant count: %d err=%v", count, err)
	}
}

func TestSaveCompiledIsWriteOnce(t *testing.T) {
	gdb := setupTestDB(t)
	resetDB(t, gdb)
	ctx := context.Background()

	repo := NewCampaignRepository(gdb)
	compiled := testCompiled(t)
	if err := repo.SaveCompiled(ctx, compiled); err != nil {
		t.Fatalf("save compiled: %v", err)
	}
	if err := repo.SaveCompiled(ctx, compiled); !errors.Is(err, domain.ErrCampaignExists) {
		t.Fatalf("expected ErrCampaignExists, got %v", err)
	}
}

func TestMarkCompletedIsIdempotentAndAdvancesMarkers(t *testing.T) {
	gdb := setupTestDB(t)
	resetDB(t, gdb)
	ctx := context.Background()

	campaigns := NewCampaignRepository(gdb)
	operations := NewOperationRepository(gdb)
	compiled := testCompiled(t)
	if err := campaigns.SaveCompiled(ctx, compiled); err != nil {
		t.Fatalf("save compiled: %v", err)
	}

	vault := compiled.Vaults[0]
	ops := []domain.Operation{
		{
			CampaignID: compiled.Campaign.ID,
			Kind:       domain.OpCreateVault,
			TargetRef:  vault.Address,
			Tier:       domain.OpCreateVault.Tier(),
		},
		{
			CampaignID: compiled.Campaign.ID,
			Kind:       domain.OpFundVault,
			TargetRef:  vault.Address,
			Tier:       domain.OpFundVault.Tier(),
			Amount:     vault.RequiredFunding,
		},
	}
	confirmedAt := time.Now().UTC()
	if err := operations.MarkCompleted(ctx, ops, "conf-1", confirmedAt); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	// A crash-replay of the same batch must change nothing.
	if err := operations.MarkCompleted(ctx, ops, "conf-2", confirmedAt.Add(time.Hour)); err != nil {
		t.Fatalf("re-mark completed: %v", err)
	}

	keys, err := operations.CompletedKeys(ctx, compiled.Campaign.ID)
	if err != nil {
		t.Fatalf("completed keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 completed keys, got %d", len(keys))
	}
	if keys[ops[0].Key()] != "conf-1" {
		t.Fatalf("confirmation overwritten on replay: %s", keys[ops[0].Key()])
	}

	vaults, err := campaigns.Vaults(ctx, compiled.Cohorts[0].ID)
	if err != nil {
		t.Fatalf("vaults: %v", err)
	}
	if vaults[0].CreatedOnLedger == nil || vaults[0].FundedOnLedger == nil {
		t.Fatal("vault markers not advanced")
	}
}
