package domain

import (
	"fmt"
	"strings"
)

// Condition is a discrete tag describing why an entity is eligible for
// notification right now. It is derived from entity state and settings at
// classification time, never stored on the target itself.
type Condition string

const (
	ConditionDue Condition = "due"

	ConditionPreExpiry Condition = "pre-expiry"
	ConditionPostOne   Condition = "post-1"
	ConditionPostThree Condition = "post-3"
	ConditionPostFive  Condition = "post-5"
)

func (c Condition) String() string { return string(c) }

// OverdueCondition returns the condition tag for an overdue-day threshold,
// e.g. overdue-5.
func OverdueCondition(threshold int) Condition {
	return Condition(fmt.Sprintf("overdue-%d", threshold))
}

// Milestone is the contract lifecycle position computed by the remote data
// source. This core only maps it to the condition code used for
// deduplication.
type Milestone string

const (
	MilestonePreExpiry Milestone = "pre-expiry"
	MilestonePostOne   Milestone = "post-1"
	MilestonePostThree Milestone = "post-3"
	MilestonePostFive  Milestone = "post-5"
)

func (m Milestone) String() string { return string(m) }

func (m Milestone) IsValid() bool {
	switch m {
	case MilestonePreExpiry, MilestonePostOne, MilestonePostThree, MilestonePostFive:
		return true
	}
	return false
}

func ParseMilestoneFromString(s string) (Milestone, error) {
	m := Milestone(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("%w: invalid milestone %q", ErrValidation, s)
	}
	return m, nil
}
