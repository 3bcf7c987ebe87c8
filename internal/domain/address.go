package domain

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/mr-tron/base58"
)

// Ledger account addresses are derived, not stored as a source of truth:
// every component (and the on-chain verifier) recomputes the same address
// from the same commitment bytes.

func CampaignAddress(fingerprint []byte) string {
	return deriveAddress("campaign", fingerprint)
}

func CohortAddress(fingerprint, root []byte) string {
	return deriveAddress("cohort", fingerprint, root)
}

func VaultAddress(fingerprint, root []byte, index uint32) string {
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], index)
	return deriveAddress("vault", fingerprint, root, idx[:])
}

func deriveAddress(kind string, parts ...[]byte) string {
	h := sha256.New()
	h.Write([]byte("dropforge:acct:" + kind))
	for _, p := range parts {
		h.Write(p)
	}
	return base58.Encode(h.Sum(nil))
}
