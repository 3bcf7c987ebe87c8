// Package assign maps claimants onto a cohort's vaults. Assignment is a
// pure function of (claimant identity, vault count): it never consults
// iteration order or external state, so compile, audit and verification
// passes all derive the same index.
package assign

import (
	"errors"

	"github.com/cespare/xxhash/v2"
)

var ErrNoVaults = errors.New("vault count must be positive")

// Assigner is pluggable: the exact hash is an implementation detail as long
// as it is deterministic and tolerably uniform. Callers persist the result
// for audit but can always re-derive it.
type Assigner interface {
	Assign(claimant []byte, vaultCount int) (uint32, error)
}

// XXHash assigns by xxhash64 of the claimant identity modulo the vault
// count.
type XXHash struct{}

func (XXHash) Assign(claimant []byte, vaultCount int) (uint32, error) {
	if vaultCount <= 0 {
		return 0, ErrNoVaults
	}
	return uint32(xxhash.Sum64(claimant) % uint64(vaultCount)), nil
}

// VaultCount derives how many vaults a cohort needs from its claimant count
// and the configured claimants-per-vault target. Always at least one.
func VaultCount(claimants, perVaultTarget int) int {
	if perVaultTarget <= 0 || claimants <= 0 {
		return 1
	}
	count := (claimants + perVaultTarget - 1) / perVaultTarget
	if count < 1 {
		return 1
	}
	return count
}
