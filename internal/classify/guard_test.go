package classify

import (
	"testing"

	"github.com/kursadbilgin/notify-engine/internal/domain"
)

func TestHasMatchingCondition(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		history   []domain.Condition
		candidate domain.Condition
		want      bool
	}{
		{name: "empty history never matches", history: nil, candidate: domain.ConditionDue, want: false},
		{name: "exact match", history: []domain.Condition{"due"}, candidate: "due", want: true},
		{name: "different bucket", history: []domain.Condition{"overdue-3"}, candidate: "overdue-5", want: false},
		{name: "match among several", history: []domain.Condition{"due", "overdue-3", "overdue-5"}, candidate: "overdue-5", want: true},
		{name: "contract condition", history: []domain.Condition{domain.ConditionPreExpiry}, candidate: domain.ConditionPreExpiry, want: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := HasMatchingCondition(tc.history, tc.candidate); got != tc.want {
				t.Fatalf("HasMatchingCondition() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestLabel(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		condition domain.Condition
		want      string
	}{
		{condition: domain.ConditionDue, want: "Due today"},
		{condition: "overdue-5", want: "Overdue 5+ days"},
		{condition: domain.ConditionPreExpiry, want: "Approaching expiry"},
		{condition: domain.ConditionPostThree, want: "3 days past expiry"},
		{condition: "overdue-zero", want: "overdue-zero"},
		{condition: "mystery", want: "mystery"},
	}

	for _, tc := range testCases {
		if got := Label(tc.condition); got != tc.want {
			t.Fatalf("Label(%s) = %q, want %q", tc.condition, got, tc.want)
		}
	}
}
