// Package merkle builds the cohort commitment trees and campaign
// fingerprint. Hashing is domain separated: leaf hashes are prefixed with
// 0x00 and internal node hashes with 0x01, so a leaf hash can never be
// reinterpreted as an internal node. Children are sorted ascending before
// hashing, which makes every internal hash independent of child order and
// lets proofs carry flat sibling sets with no left/right bookkeeping.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
)

const HashSize = 32

const (
	leafPrefix     = 0x00
	internalPrefix = 0x01
)

var (
	ErrEmptyTree      = errors.New("empty merkle tree")
	ErrInvalidHashLen = errors.New("invalid hash length")
	ErrInvalidIndex   = errors.New("invalid leaf index")
	ErrUnknownShape   = errors.New("unknown tree shape")
)

// Shape selects the reduction fanout. Narrow trees pair nodes two at a time
// and keep proofs one hash per level; wide trees hash up to 256 children per
// node, trading larger per-level sibling sets for far fewer levels. Existing
// narrow commitments stay verifiable forever; large cohorts opt into wide.
type Shape string

const (
	ShapeNarrow Shape = "narrow"
	ShapeWide   Shape = "wide"
)

func (s Shape) Fanout() (int, error) {
	switch s {
	case ShapeNarrow:
		return 2, nil
	case ShapeWide:
		return 256, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownShape, s)
	}
}

// ChildrenHash hashes one internal node over its children. The input is not
// mutated; children are copied and sorted before hashing.
func ChildrenHash(children [][]byte) []byte {
	sorted := make([][]byte, len(children))
	copy(sorted, children)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i], sorted[j]) < 0
	})
	hasher := sha256.New()
	hasher.Write([]byte{internalPrefix})
	for _, child := range sorted {
		hasher.Write(child)
	}
	return hasher.Sum(nil)
}

func cloneHash(hash []byte) []byte {
	if hash == nil {
		return nil
	}
	out := make([]byte, len(hash))
	copy(out, hash)
	return out
}

func validateHash(hash []byte) error {
	if len(hash) != HashSize {
		return ErrInvalidHashLen
	}
	return nil
}

func cloneAndValidateLeaves(leaves [][]byte) ([][]byte, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}
	out := make([][]byte, len(leaves))
	for i, leaf := range leaves {
		if err := validateHash(leaf); err != nil {
			return nil, fmt.Errorf("leaf %d: %w", i, err)
		}
		out[i] = cloneHash(leaf)
	}
	return out, nil
}
