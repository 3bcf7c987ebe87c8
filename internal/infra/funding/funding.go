// Package funding computes per-vault required funding with exact decimal
// arithmetic. No floating point is involved anywhere: token amounts are
// scaled to base units as decimals, floored per vault, and the cohort
// remainder is tracked explicitly as dust.
package funding

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"dropforge/internal/domain"
)

var maxBaseUnits = decimal.NewFromUint64(math.MaxUint64)

type VaultFunding struct {
	Index        uint32
	Entitlements uint64
	BaseUnits    uint64
}

type Result struct {
	Vaults            []VaultFunding
	TotalEntitlements uint64
	TotalBaseUnits    uint64

	// Dust is the exact cohort remainder in base units:
	// total_entitlements × rate − Σ vault fundings. Never redistributed.
	Dust decimal.Decimal
}

// Compute derives the funding table for one cohort. amountPerEntitlement is
// in whole token units, scaled by decimals to base units. Each vault's
// funding is floored; flooring that leaves dust of a full entitlement or
// more is rejected rather than silently absorbed.
func Compute(amountPerEntitlement decimal.Decimal, decimals int32, entitlementsPerVault []uint64) (Result, error) {
	if amountPerEntitlement.IsNegative() {
		return Result{}, fmt.Errorf("amount per entitlement %s: %w", amountPerEntitlement, domain.ErrAmountOverflow)
	}
	if decimals < 0 {
		return Result{}, fmt.Errorf("asset decimals %d: %w", decimals, domain.ErrAmountOverflow)
	}

	rate := amountPerEntitlement.Shift(decimals)

	result := Result{Vaults: make([]VaultFunding, 0, len(entitlementsPerVault))}
	distributed := decimal.Zero
	for index, entitlements := range entitlementsPerVault {
		total, ok := addUint64(result.TotalEntitlements, entitlements)
		if !ok {
			return Result{}, fmt.Errorf("cohort entitlement total: %w", domain.ErrAmountOverflow)
		}
		result.TotalEntitlements = total

		exact := rate.Mul(decimal.NewFromUint64(entitlements))
		floored := exact.Floor()
		if floored.Cmp(maxBaseUnits) > 0 {
			return Result{}, fmt.Errorf("vault %d funding %s: %w", index, floored, domain.ErrAmountOverflow)
		}
		baseUnits := floored.BigInt().Uint64()

		totalUnits, ok := addUint64(result.TotalBaseUnits, baseUnits)
		if !ok {
			return Result{}, fmt.Errorf("cohort funding total: %w", domain.ErrAmountOverflow)
		}
		result.TotalBaseUnits = totalUnits
		distributed = distributed.Add(floored)
		result.Vaults = append(result.Vaults, VaultFunding{
			Index:        uint32(index),
			Entitlements: entitlements,
			BaseUnits:    baseUnits,
		})
	}

	exactTotal := rate.Mul(decimal.NewFromUint64(result.TotalEntitlements))
	result.Dust = exactTotal.Sub(distributed)

	if rate.IsPositive() && result.Dust.Cmp(rate) >= 0 {
		return Result{}, fmt.Errorf("cohort dust %s >= rate %s: %w", result.Dust, rate, domain.ErrImpossibleRounding)
	}
	return result, nil
}

func addUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}
