package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrEmptyCohort        = errors.New("cohort has no claimants")
	ErrUnknownCohort      = errors.New("claimant references unknown cohort")
	ErrDuplicateClaimant  = errors.New("duplicate claimant in cohort")
	ErrZeroEntitlements   = errors.New("entitlement count must be positive")
	ErrAmountOverflow     = errors.New("funding amount overflow")
	ErrImpossibleRounding = errors.New("vault rounding violates dust bound")
	ErrBudgetExceeded     = errors.New("required funding exceeds declared budget")
	ErrOperationTooLarge  = errors.New("operation exceeds batch size limit")
	ErrCampaignExists     = errors.New("campaign already persisted")
)
