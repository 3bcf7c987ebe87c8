package merkle

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"sort"
)

// Fingerprint derives the top-level campaign commitment from its cohort
// roots. Roots are sorted ascending before concatenation, so the
// fingerprint is independent of cohort declaration order: two campaigns
// with the same cohorts authored in any order fingerprint identically.
func Fingerprint(cohortRoots [][]byte) ([]byte, error) {
	if len(cohortRoots) == 0 {
		return nil, ErrEmptyTree
	}
	sorted := make([][]byte, len(cohortRoots))
	for i, root := range cohortRoots {
		if err := validateHash(root); err != nil {
			return nil, fmt.Errorf("cohort root %d: %w", i, err)
		}
		sorted[i] = cloneHash(root)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i], sorted[j]) < 0
	})
	hasher := sha256.New()
	for _, root := range sorted {
		hasher.Write(root)
	}
	return hasher.Sum(nil), nil
}
