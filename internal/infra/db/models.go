package db

import (
	"time"

	"github.com/shopspring/decimal"
)

type CampaignModel struct {
	ID                     string     `gorm:"type:uuid;primaryKey"`
	Fingerprint            []byte     `gorm:"type:bytea;uniqueIndex;not null"`
	Address                string     `gorm:"uniqueIndex;not null"`
	Asset                  string     `gorm:"not null"`
	Admin                  string     `gorm:"not null"`
	Budget                 uint64     `gorm:"type:numeric(20,0);not null"`
	Decimals               int32      `gorm:"not null"`
	CreatedAt              time.Time  `gorm:"not null"`
	ActivatedAt            *time.Time
	ActivationConfirmation string
}

type CohortModel struct {
	ID                   string          `gorm:"type:uuid;primaryKey"`
	CampaignID           string          `gorm:"type:uuid;index;uniqueIndex:idx_cohort_campaign_name,priority:1;not null"`
	Name                 string          `gorm:"uniqueIndex:idx_cohort_campaign_name,priority:2;not null"`
	Root                 []byte          `gorm:"type:bytea;not null"`
	Address              string          `gorm:"uniqueIndex;not null"`
	TreeShape            string          `gorm:"not null"`
	AmountPerEntitlement decimal.Decimal `gorm:"type:numeric(38,18);not null"`
	VaultCount           int             `gorm:"not null"`
	TotalEntitlements    uint64          `gorm:"type:numeric(20,0);not null"`
	Dust                 decimal.Decimal `gorm:"type:numeric(38,18);not null"`
	ActivatedAt          *time.Time
}

type ClaimantModel struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	CohortID     string `gorm:"type:uuid;index;uniqueIndex:idx_claimant_cohort_address,priority:1;not null"`
	Address      string `gorm:"uniqueIndex:idx_claimant_cohort_address,priority:2;index;not null"`
	Entitlements uint64 `gorm:"type:numeric(20,0);not null"`
	VaultIndex   uint32 `gorm:"not null"`
	Proof        []byte `gorm:"type:jsonb;not null"`
}

type VaultModel struct {
	ID              string `gorm:"type:uuid;primaryKey"`
	CohortID        string `gorm:"type:uuid;index;uniqueIndex:idx_vault_cohort_index,priority:1;not null"`
	VaultIndex      uint32 `gorm:"uniqueIndex:idx_vault_cohort_index,priority:2;not null"`
	Address         string `gorm:"uniqueIndex;not null"`
	RequiredFunding uint64 `gorm:"type:numeric(20,0);not null"`
	ClaimantCount   int    `gorm:"not null"`
	CreatedOnLedger *time.Time
	FundedOnLedger  *time.Time
}

type OperationModel struct {
	ID             string    `gorm:"type:uuid;primaryKey"`
	CampaignID     string    `gorm:"type:uuid;index;uniqueIndex:idx_op_natural_key,priority:1;not null"`
	Kind           string    `gorm:"uniqueIndex:idx_op_natural_key,priority:2;not null"`
	TargetRef      string    `gorm:"uniqueIndex:idx_op_natural_key,priority:3;not null"`
	Tier           int       `gorm:"not null"`
	Amount         uint64    `gorm:"type:numeric(20,0);not null"`
	Payload        []byte    `gorm:"type:bytea"`
	CompletedAt    *time.Time
	ConfirmationID string
	CreatedAt      time.Time `gorm:"not null"`
}
