package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"dropforge/internal/config"
	"dropforge/internal/domain"
	"dropforge/internal/infra/assign"
	"dropforge/internal/infra/csvsource"
	"dropforge/internal/infra/db"
	"dropforge/internal/infra/ledger"
	"dropforge/internal/usecase"
)

func runCompile(args []string) int {
	fs := flag.NewFlagSet("compile", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	cfg := config.FromEnv()
	var claimantsPath string
	var cohortsPath string
	var shape string
	fs.StringVar(&claimantsPath, "claimants", cfg.ClaimantsCSV, "claimant rows CSV")
	fs.StringVar(&cohortsPath, "cohorts", cfg.CohortsCSV, "cohort rows CSV")
	fs.StringVar(&shape, "shape", cfg.TreeShape, "commitment tree shape (narrow|wide)")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	if claimantsPath == "" || cohortsPath == "" {
		fmt.Fprintln(os.Stderr, "compile requires --claimants and --cohorts")
		return 1
	}

	claimants, cohorts, err := readInputs(claimantsPath, cohortsPath)
	if err != nil {
		log.Error("reading input files", zap.Error(err))
		return 1
	}

	signer, err := ledger.NewEd25519SignerFromSeedHex(cfg.AdminKeySeedHex)
	if err != nil {
		log.Error("load admin key", zap.Error(err))
		return 1
	}

	store, err := db.NewStore(cfg)
	if err != nil {
		log.Error("init store", zap.Error(err))
		return 1
	}

	uc := &usecase.CompileCampaign{
		Store:    db.NewCampaignRepository(store.DB),
		Assigner: assign.XXHash{},
	}
	resp, err := uc.Execute(context.Background(), usecase.CompileCampaignRequest{
		Asset:          cfg.Asset,
		Admin:          signer.Address(),
		Decimals:       int32(cfg.AssetDecimals),
		Budget:         cfg.TotalBudget,
		TreeShape:      domain.TreeShape(shape),
		PerVaultTarget: cfg.ClaimantsPerVault,
		Cohorts:        cohorts,
		Claimants:      claimants,
	})
	if err != nil {
		log.Error("compile failed", zap.Error(err))
		return 1
	}

	for _, warning := range resp.Warnings {
		log.Warn(warning)
	}
	log.Info("campaign compiled",
		zap.String("fingerprint", hex.EncodeToString(resp.Campaign.Fingerprint)),
		zap.String("address", resp.Campaign.Address),
		zap.Int("cohorts", len(resp.Cohorts)))
	fmt.Println(hex.EncodeToString(resp.Campaign.Fingerprint))
	return 0
}

func readInputs(claimantsPath, cohortsPath string) ([]usecase.ClaimantInput, []usecase.CohortInput, error) {
	claimantsFile, err := os.Open(claimantsPath)
	if err != nil {
		return nil, nil, err
	}
	defer claimantsFile.Close()
	claimantRows, err := csvsource.ReadClaimants(claimantsFile)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", claimantsPath, err)
	}

	cohortsFile, err := os.Open(cohortsPath)
	if err != nil {
		return nil, nil, err
	}
	defer cohortsFile.Close()
	cohortRows, err := csvsource.ReadCohorts(cohortsFile)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", cohortsPath, err)
	}

	claimants := make([]usecase.ClaimantInput, 0, len(claimantRows))
	for _, row := range claimantRows {
		claimants = append(claimants, usecase.ClaimantInput{
			Cohort:       row.Cohort,
			Address:      row.Address,
			AddressBytes: row.AddressBytes,
			Entitlements: row.Entitlements,
		})
	}
	cohorts := make([]usecase.CohortInput, 0, len(cohortRows))
	for _, row := range cohortRows {
		cohorts = append(cohorts, usecase.CohortInput{
			Name:                 row.Cohort,
			AmountPerEntitlement: row.AmountPerEntitlement,
		})
	}
	return claimants, cohorts, nil
}
