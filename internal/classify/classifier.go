// Package classify holds the pure condition classification and duplicate
// guard logic shared by the preview and dispatch paths. Both paths must call
// the same functions so previews never disagree with what gets recorded.
package classify

import (
	"fmt"
	"sort"

	"github.com/kursadbilgin/notify-engine/internal/domain"
)

// NormalizeThresholds sorts, deduplicates, and validates an overdue-day
// threshold list taken from settings.
func NormalizeThresholds(thresholds []int) ([]int, error) {
	if len(thresholds) == 0 {
		return nil, fmt.Errorf("%w: at least one overdue threshold is required", domain.ErrValidation)
	}

	seen := make(map[int]struct{}, len(thresholds))
	normalized := make([]int, 0, len(thresholds))
	for _, threshold := range thresholds {
		if threshold <= 0 {
			return nil, fmt.Errorf("%w: overdue threshold must be positive, got %d", domain.ErrValidation, threshold)
		}
		if _, ok := seen[threshold]; ok {
			continue
		}
		seen[threshold] = struct{}{}
		normalized = append(normalized, threshold)
	}

	sort.Ints(normalized)
	return normalized, nil
}

// Invoice classifies an invoice into a notification condition.
//
// overdueDays may be negative (not yet due), zero (due today), or positive.
// Non-positive values classify as due. Otherwise the smallest threshold T
// with overdueDays <= T wins; values past every threshold clamp to the
// largest so no invoice is left unclassifiable.
func Invoice(overdueDays int, thresholds []int) (domain.Condition, error) {
	normalized, err := NormalizeThresholds(thresholds)
	if err != nil {
		return "", err
	}

	if overdueDays <= 0 {
		return domain.ConditionDue, nil
	}

	for _, threshold := range normalized {
		if overdueDays <= threshold {
			return domain.OverdueCondition(threshold), nil
		}
	}

	return domain.OverdueCondition(normalized[len(normalized)-1]), nil
}

// Contract maps a contract milestone to its condition code. The milestone is
// computed by the remote data source; this is a 1:1 lookup.
func Contract(milestone domain.Milestone) (domain.Condition, error) {
	switch milestone {
	case domain.MilestonePreExpiry:
		return domain.ConditionPreExpiry, nil
	case domain.MilestonePostOne:
		return domain.ConditionPostOne, nil
	case domain.MilestonePostThree:
		return domain.ConditionPostThree, nil
	case domain.MilestonePostFive:
		return domain.ConditionPostFive, nil
	}
	return "", fmt.Errorf("%w: unknown contract milestone %q", domain.ErrValidation, milestone)
}
