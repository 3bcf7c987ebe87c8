package usecase

import (
	"context"

	"go.uber.org/zap"

	"dropforge/internal/domain"
)

type DeployCampaignRequest struct {
	Fingerprint []byte
}

type DeployCampaignResponse struct {
	PlannedOperations int
	Batches           int
	ConfirmedBatches  int
	Receipts          []domain.BatchReceipt
}

// DeployCoordinator runs plan → pack → transmit, persisting completion
// markers batch by batch. A crash loses at most the in-flight batch;
// recovery is simply running the coordinator again, which re-plans against
// the markers and the live ledger instead of replaying any log.
type DeployCoordinator struct {
	Planner     *DeployPlanner
	Transmitter *TxTransmitter
	Ops         OperationStore
	Log         *zap.Logger

	MaxBatchBytes int
	MaxBatchOps   int
}

func (c *DeployCoordinator) Execute(ctx context.Context, req DeployCampaignRequest) (*DeployCampaignResponse, error) {
	log := c.logger()

	plan, err := c.Planner.Plan(ctx, req.Fingerprint)
	if err != nil {
		return nil, err
	}
	resp := &DeployCampaignResponse{PlannedOperations: len(plan.Operations)}
	if len(plan.Operations) == 0 {
		log.Info("campaign fully deployed, nothing to do",
			zap.String("campaign", plan.Campaign.Address))
		return resp, nil
	}

	batches, err := PackBatches(plan.Operations, c.MaxBatchBytes, c.MaxBatchOps)
	if err != nil {
		return nil, err
	}
	resp.Batches = len(batches)
	log.Info("deployment planned",
		zap.String("campaign", plan.Campaign.Address),
		zap.Int("operations", len(plan.Operations)),
		zap.Int("batches", len(batches)))

	for _, tier := range batchTiers(batches) {
		err := c.Transmitter.TransmitTier(ctx, tier, func(batch domain.Batch, receipt domain.BatchReceipt) error {
			if err := c.Ops.MarkCompleted(ctx, batch.Operations, receipt.ConfirmationID, receipt.ConfirmedAt); err != nil {
				return err
			}
			resp.ConfirmedBatches++
			resp.Receipts = append(resp.Receipts, receipt)
			return nil
		})
		if err != nil {
			return resp, err
		}
	}
	log.Info("deployment complete",
		zap.String("campaign", plan.Campaign.Address),
		zap.Int("batches", resp.ConfirmedBatches))
	return resp, nil
}

func batchTiers(batches []domain.Batch) [][]domain.Batch {
	var tiers [][]domain.Batch
	for _, batch := range batches {
		if len(tiers) == 0 || tiers[len(tiers)-1][0].Tier != batch.Tier {
			tiers = append(tiers, nil)
		}
		tiers[len(tiers)-1] = append(tiers[len(tiers)-1], batch)
	}
	return tiers
}

func (c *DeployCoordinator) logger() *zap.Logger {
	if c.Log != nil {
		return c.Log
	}
	return zap.NewNop()
}
