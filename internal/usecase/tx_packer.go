package usecase

import (
	"fmt"

	"dropforge/internal/domain"
)

// PackBatches splits a tier-ordered operation list into submission batches
// under the encoded byte and operation count limits, greedy first-fit. A
// batch never spans a tier boundary, and all operations sharing a target
// stay in one batch so their relative order survives concurrent submission
// of sibling batches.
func PackBatches(ops []domain.Operation, maxBytes, maxOps int) ([]domain.Batch, error) {
	if maxBytes <= 0 || maxOps <= 0 {
		return nil, fmt.Errorf("batch limits %d bytes / %d ops must be positive", maxBytes, maxOps)
	}
	for _, op := range ops {
		if op.EncodedSize() > maxBytes {
			return nil, fmt.Errorf("operation %s is %d bytes, limit %d: %w",
				op.Key(), op.EncodedSize(), maxBytes, domain.ErrOperationTooLarge)
		}
	}

	var batches []domain.Batch
	for _, tierOps := range splitTiers(ops) {
		var open []int
		for _, group := range targetGroups(tierOps) {
			size, count := groupFootprint(group)
			if size > maxBytes || count > maxOps {
				return nil, fmt.Errorf("operations for target %s need %d bytes / %d ops, limits %d / %d: %w",
					group[0].TargetRef, size, count, maxBytes, maxOps, domain.ErrOperationTooLarge)
			}

			placed := false
			for _, idx := range open {
				batch := &batches[idx]
				if batch.EncodedSize()+size <= maxBytes && len(batch.Operations)+count <= maxOps {
					batch.Operations = append(batch.Operations, group...)
					placed = true
					break
				}
			}
			if !placed {
				batches = append(batches, domain.Batch{
					Index:      len(batches),
					Tier:       group[0].Tier,
					Operations: append([]domain.Operation(nil), group...),
				})
				open = append(open, len(batches)-1)
			}
		}
	}
	return batches, nil
}

func splitTiers(ops []domain.Operation) [][]domain.Operation {
	var tiers [][]domain.Operation
	for _, op := range ops {
		if len(tiers) == 0 || tiers[len(tiers)-1][0].Tier != op.Tier {
			tiers = append(tiers, nil)
		}
		tiers[len(tiers)-1] = append(tiers[len(tiers)-1], op)
	}
	return tiers
}

// targetGroups buckets one tier's operations by target in first-appearance
// order, preserving the per-target operation order.
func targetGroups(ops []domain.Operation) [][]domain.Operation {
	index := make(map[string]int, len(ops))
	var groups [][]domain.Operation
	for _, op := range ops {
		i, ok := index[op.TargetRef]
		if !ok {
			i = len(groups)
			index[op.TargetRef] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], op)
	}
	return groups
}

func groupFootprint(group []domain.Operation) (bytes, count int) {
	for _, op := range group {
		bytes += op.EncodedSize()
	}
	return bytes, len(group)
}
