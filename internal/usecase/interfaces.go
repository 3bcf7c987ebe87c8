package usecase

import (
	"context"
	"time"

	"dropforge/internal/domain"
)

type CampaignStore interface {
	SaveCompiled(ctx context.Context, compiled domain.CompiledCampaign) error
	GetByFingerprint(ctx context.Context, fingerprint []byte) (*domain.Campaign, error)
	Cohorts(ctx context.Context, campaignID string) ([]domain.Cohort, error)
	Vaults(ctx context.Context, cohortID string) ([]domain.Vault, error)
}

type OperationStore interface {
	CompletedKeys(ctx context.Context, campaignID string) (map[string]string, error)
	MarkCompleted(ctx context.Context, ops []domain.Operation, confirmationID string, confirmedAt time.Time) error
}

// Ledger is the submission-side collaborator. Reads are live queries: the
// planner never caches an answer across runs.
type Ledger interface {
	LatestToken(ctx context.Context) (domain.SequencingToken, error)
	Submit(ctx context.Context, sub domain.BatchSubmission) (string, error)
	Confirmation(ctx context.Context, submissionID string) (domain.ConfirmationStatus, error)
	AccountExists(ctx context.Context, address string) (bool, error)
	AccountBalance(ctx context.Context, address string) (uint64, error)
}

// BatchSigner binds the sequencing token into every signature, so a stale
// token can never be replayed under a fresh one.
type BatchSigner interface {
	Sign(payload []byte, token domain.SequencingToken) ([]byte, error)
	Address() string
}

type VaultAssigner interface {
	Assign(claimant []byte, vaultCount int) (uint32, error)
}
