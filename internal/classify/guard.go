package classify

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kursadbilgin/notify-engine/internal/domain"
)

// HasMatchingCondition reports whether the candidate condition was already
// notified for an entity. Empty or unknown history is never a duplicate, so
// a history read failure cannot silently block a first-time send.
//
// The guard is advisory: a match surfaces a confirmation step, it does not
// block dispatch. Each evaluation is independent.
func HasMatchingCondition(history []domain.Condition, candidate domain.Condition) bool {
	for _, sent := range history {
		if sent == candidate {
			return true
		}
	}
	return false
}

// Label returns a human-readable description of a condition. It has no
// behavioral effect; unknown tags are echoed as-is.
func Label(condition domain.Condition) string {
	switch condition {
	case domain.ConditionDue:
		return "Due today"
	case domain.ConditionPreExpiry:
		return "Approaching expiry"
	case domain.ConditionPostOne:
		return "1 day past expiry"
	case domain.ConditionPostThree:
		return "3 days past expiry"
	case domain.ConditionPostFive:
		return "5 days past expiry"
	}

	if days, ok := overdueDaysFromCondition(condition); ok {
		return fmt.Sprintf("Overdue %d+ days", days)
	}

	return condition.String()
}

func overdueDaysFromCondition(condition domain.Condition) (int, bool) {
	suffix, ok := strings.CutPrefix(condition.String(), "overdue-")
	if !ok {
		return 0, false
	}

	days, err := strconv.Atoi(suffix)
	if err != nil || days <= 0 {
		return 0, false
	}
	return days, true
}
