package merkle

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
)

// LeafSize is the fixed width of the canonical claim encoding:
// claimant(32) || entitlements uint64 BE || vault index uint32 BE.
//
// The on-chain verifier recomputes leaf hashes from this exact byte layout,
// so the encoding must never change shape; any change invalidates every
// previously issued proof. Pinned by golden vectors in leaf_test.go.
const LeafSize = 44

const ClaimantSize = 32

var (
	ErrZeroEntitlements = errors.New("leaf entitlements must be positive")
	ErrVaultOutOfRange  = errors.New("leaf vault index out of range")
)

// Leaf is one claim record: a claimant's identity, the vault that services
// it, and the entitlement count it is owed. Immutable once hashed.
type Leaf struct {
	Claimant     [ClaimantSize]byte
	Entitlements uint64
	VaultIndex   uint32
}

func (l Leaf) Encode() [LeafSize]byte {
	var out [LeafSize]byte
	copy(out[:ClaimantSize], l.Claimant[:])
	binary.BigEndian.PutUint64(out[ClaimantSize:ClaimantSize+8], l.Entitlements)
	binary.BigEndian.PutUint32(out[ClaimantSize+8:], l.VaultIndex)
	return out
}

// Hash returns the domain-separated leaf hash over the canonical encoding.
func (l Leaf) Hash() []byte {
	encoded := l.Encode()
	return LeafHash(encoded[:])
}

// LeafHash hashes already-encoded leaf bytes under the leaf domain prefix.
func LeafHash(encoded []byte) []byte {
	hasher := sha256.New()
	hasher.Write([]byte{leafPrefix})
	hasher.Write(encoded)
	return hasher.Sum(nil)
}

// ValidateLeaf enforces the leaf invariants against its cohort's vault
// count before the leaf is hashed into a tree.
func ValidateLeaf(l Leaf, vaultCount int) error {
	if l.Entitlements == 0 {
		return ErrZeroEntitlements
	}
	if vaultCount <= 0 || l.VaultIndex >= uint32(vaultCount) {
		return ErrVaultOutOfRange
	}
	return nil
}
