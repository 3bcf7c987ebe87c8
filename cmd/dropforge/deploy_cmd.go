package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"dropforge/internal/config"
	"dropforge/internal/infra/db"
	"dropforge/internal/infra/ledger"
	"dropforge/internal/usecase"
)

func runDeploy(args []string) int {
	fs := flag.NewFlagSet("deploy", flag.ContinueOnError)
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
		fmt.Fprintln(os.Stderr, "deploy requires --fingerprint <hex>")
		return 1
	}

	store, err := db.NewStore(cfg)
	if err != nil {
		log.Error("init store", zap.Error(err))
		return 1
	}
	client, err := ledger.NewClient(cfg.LedgerRPCURL, &http.Client{Timeout: 15 * time.Second})
	if err != nil {
		log.Error("init ledger client", zap.Error(err))
		return 1
	}
	signer, err := ledger.NewEd25519SignerFromSeedHex(cfg.AdminKeySeedHex)
	if err != nil {
		log.Error("load admin key", zap.Error(err))
		return 1
	}

	campaigns := db.NewCampaignRepository(store.DB)
	operations := db.NewOperationRepository(store.DB)
	coordinator := &usecase.DeployCoordinator{
		Planner: &usecase.DeployPlanner{
			Store:  campaigns,
			Ops:    operations,
			Ledger: client,
		},
		Transmitter: &usecase.TxTransmitter{
			Ledger:         client,
			Signer:         signer,
			Log:            log,
			MaxAttempts:    cfg.SubmitMaxAttempts,
			BaseDelay:      cfg.SubmitBaseDelay(),
			MaxDelay:       cfg.SubmitMaxDelay(),
			ConfirmTimeout: cfg.ConfirmTimeout(),
			ConfirmPoll:    cfg.ConfirmPollInterval(),
			Concurrency:    cfg.DeployConcurrency,
		},
		Ops:           operations,
		Log:           log,
		MaxBatchBytes: cfg.MaxBatchBytes,
		MaxBatchOps:   cfg.MaxBatchOps,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	resp, err := coordinator.Execute(ctx, usecase.DeployCampaignRequest{Fingerprint: fingerprint})
	if err != nil {
		log.Error("deployment failed", zap.Error(err))
		return 1
	}
	log.Info("deployment finished",
		zap.Int("planned", resp.PlannedOperations),
		zap.Int("batches", resp.Batches),
		zap.Int("confirmed", resp.ConfirmedBatches))
	return 0
}
