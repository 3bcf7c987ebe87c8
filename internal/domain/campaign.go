package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TreeShape tags which reduction a cohort's commitment tree uses. The shape
// is fixed when the cohort is compiled; verifiers pick the matching
// reduction from this tag alone.
type TreeShape string

const (
	TreeNarrow TreeShape = "narrow"
	TreeWide   TreeShape = "wide"
)

func (s TreeShape) Valid() bool {
	return s == TreeNarrow || s == TreeWide
}

// Campaign is the top-level distribution commitment. Fingerprint, cohort
// roots and the funding table are write-once: superseding a campaign means
// compiling a new row, never mutating this one. Only deployment progress
// markers are updated after creation.
type Campaign struct {
	ID          string
	Fingerprint []byte
	Address     string
	Asset       string
	Admin       string
	Budget      uint64
	Decimals    int32
	CreatedAt   time.Time
	ActivatedAt *time.Time
}

type Cohort struct {
	ID         string
	CampaignID string
	Name       string
	Root       []byte
	Address    string
	TreeShape  TreeShape

	// AmountPerEntitlement is in whole token units; funding amounts are in
	// base units after scaling by the campaign's decimals.
	AmountPerEntitlement decimal.Decimal

	VaultCount        int
	TotalEntitlements uint64

	// Dust is the cohort remainder in base units left over by per-vault
	// flooring. Tracked, never redistributed.
	Dust decimal.Decimal

	ActivatedAt *time.Time
}

type Claimant struct {
	ID           string
	CohortID     string
	Address      string
	Entitlements uint64
	VaultIndex   uint32

	// Proof is the canonical JSON encoding of the claimant's membership
	// proof against the cohort root.
	Proof []byte
}

type Vault struct {
	ID              string
	CohortID        string
	Index           uint32
	Address         string
	RequiredFunding uint64
	ClaimantCount   int
	CreatedOnLedger *time.Time
	FundedOnLedger  *time.Time
}

// CompiledCampaign is the complete output of one compile pass. It is
// persisted atomically or not at all.
type CompiledCampaign struct {
	Campaign  Campaign
	Cohorts   []Cohort
	Claimants []Claimant
	Vaults    []Vault
	Warnings  []string
}
