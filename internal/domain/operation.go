package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type OperationKind string

const (
	OpCreateCampaign   OperationKind = "create_campaign"
	OpCreateCohort     OperationKind = "create_cohort"
	OpCreateVault      OperationKind = "create_vault"
	OpFundVault        OperationKind = "fund_vault"
	OpRegisterVault    OperationKind = "register_vault"
	OpActivateCohort   OperationKind = "activate_cohort"
	OpActivateCampaign OperationKind = "activate_campaign"
)

// Tier is the dependency stage an operation belongs to. Operations in tier
// N must all confirm before any operation in tier N+1 is submitted.
func (k OperationKind) Tier() int {
	switch k {
	case OpCreateCampaign:
		return 0
	case OpCreateCohort:
		return 1
	case OpCreateVault, OpFundVault, OpRegisterVault:
		return 2
	case OpActivateCohort:
		return 3
	case OpActivateCampaign:
		return 4
	default:
		return -1
	}
}

// Operation is one planned ledger mutation. TargetRef is the derived ledger
// address of the entity the operation touches; (CampaignID, Kind, TargetRef)
// is the operation's natural key and a completed operation is never
// re-created under it.
type Operation struct {
	ID             string
	CampaignID     string
	Kind           OperationKind
	TargetRef      string
	Tier           int
	Amount         uint64
	Payload        []byte
	CompletedAt    *time.Time
	ConfirmationID string
}

// Key is the natural identity used for completion markers.
func (o Operation) Key() string {
	return string(o.Kind) + ":" + o.TargetRef
}

// EncodedSize is the operation's on-wire footprint used for batch packing.
func (o Operation) EncodedSize() int {
	const opOverhead = 64 // kind tag, target ref, framing
	return opOverhead + len(o.Payload)
}

type Batch struct {
	Index      int
	Tier       int
	Operations []Operation
}

func (b Batch) EncodedSize() int {
	total := 0
	for _, op := range b.Operations {
		total += op.EncodedSize()
	}
	return total
}

type SequencingToken string

// BatchSubmission is a signed, sequenced batch ready for the ledger. The
// signature covers payload || token, so a refreshed token always forces a
// re-sign.
type BatchSubmission struct {
	Token     SequencingToken
	Payload   []byte
	Signature []byte
	Signer    string
}

type ConfirmationStatus string

const (
	ConfirmationPending   ConfirmationStatus = "pending"
	ConfirmationConfirmed ConfirmationStatus = "confirmed"
	ConfirmationFailed    ConfirmationStatus = "failed"
)

// EncodePayload renders the batch's operations into the canonical wire
// payload the admin key signs.
func (b Batch) EncodePayload() ([]byte, error) {
	type wireOp struct {
		Kind      OperationKind `json:"kind"`
		TargetRef string        `json:"target_ref"`
		Amount    uint64        `json:"amount,omitempty"`
		Payload   []byte        `json:"payload,omitempty"`
	}
	ops := make([]wireOp, 0, len(b.Operations))
	for _, op := range b.Operations {
		ops = append(ops, wireOp{
			Kind:      op.Kind,
			TargetRef: op.TargetRef,
			Amount:    op.Amount,
			Payload:   op.Payload,
		})
	}
	return json.Marshal(struct {
		Tier int      `json:"tier"`
		Ops  []wireOp `json:"ops"`
	}{Tier: b.Tier, Ops: ops})
}

// BatchReceipt records a confirmed submission for one batch.
type BatchReceipt struct {
	BatchIndex     int
	ConfirmationID string
	Attempts       int
	ConfirmedAt    time.Time
}

// BatchError scopes a transmission failure to the exact batch and
// operations that exhausted their retries. Earlier confirmations are
// unaffected by it.
type BatchError struct {
	BatchIndex int
	Tier       int
	Attempts   int
	Operations []string
	Err        error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d (tier %d) failed after %d attempts [%s]: %v",
		e.BatchIndex, e.Tier, e.Attempts, strings.Join(e.Operations, ", "), e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
