package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"dropforge/internal/config"
	"dropforge/internal/infra/db"
	"dropforge/internal/usecase"
)

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var fingerprintHex string
	fs.StringVar(&fingerprintHex, "fingerprint", "", "campaign fingerprint hex")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg := config.FromEnv()
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	fingerprint, err := hex.DecodeString(fingerprintHex)
	if err != nil || len(fingerprint) == 0 {
		fmt.Fprintln(os.Stderr, "status requires --fingerprint <hex>")
		return 1
	}

	store, err := db.NewStore(cfg)
	if err != nil {
		log.Error("init store", zap.Error(err))
		return 1
	}

	status := &usecase.CampaignStatus{
		Store: db.NewCampaignRepository(store.DB),
		Ops:   db.NewOperationRepository(store.DB),
	}
	report, err := status.Execute(context.Background(), fingerprint)
	if err != nil {
		log.Error("status query failed", zap.Error(err))
		return 1
	}

	fmt.Printf("campaign %s\n", report.Campaign.Address)
	fmt.Printf("  asset=%s budget=%d active=%t\n", report.Campaign.Asset, report.Campaign.Budget, report.Activated)
	for _, tier := range report.Tiers {
		fmt.Printf("  tier %d: %d done, %d remaining\n", tier.Tier, tier.Completed, tier.Remaining)
	}
	for _, cohort := range report.Cohorts {
		fmt.Printf("  cohort %s: vaults %d created=%d funded=%d active=%t\n",
			cohort.Name, cohort.VaultCount, cohort.VaultsCreated, cohort.VaultsFunded, cohort.Activated)
	}
	return 0
}

func runMigrate(args []string) int {
	cfg := config.FromEnv()
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	store, err := db.NewStore(cfg)
	if err != nil {
		log.Error("init store", zap.Error(err))
		return 1
	}
	if err := store.Migrate(); err != nil {
		log.Error("migrate", zap.Error(err))
		return 1
	}
	log.Info("schema migrated")
	return 0
}
