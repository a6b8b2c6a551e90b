package domain

import "testing"

func TestBatchJobValidate(t *testing.T) {
	t.Parallel()

	validTarget := NotificationTarget{EntityType: EntityInvoice, EntityID: "inv-1"}

	testCases := []struct {
		name    string
		job     BatchJob
		wantErr bool
	}{
		{
			name: "valid job",
			job: BatchJob{
				Targets:  []NotificationTarget{validTarget},
				Channels: []Channel{ChannelEmail, ChannelSMS},
			},
		},
		{
			name:    "empty targets",
			job:     BatchJob{Channels: []Channel{ChannelEmail}},
			wantErr: true,
		},
		{
			name:    "empty channels",
			job:     BatchJob{Targets: []NotificationTarget{validTarget}},
			wantErr: true,
		},
		{
			name: "invalid entity type",
			job: BatchJob{
				Targets:  []NotificationTarget{{EntityType: "customer", EntityID: "c-1"}},
				Channels: []Channel{ChannelEmail},
			},
			wantErr: true,
		},
		{
			name: "missing entity id",
			job: BatchJob{
				Targets:  []NotificationTarget{{EntityType: EntityContract}},
				Channels: []Channel{ChannelEmail},
			},
			wantErr: true,
		},
		{
			name: "invalid channel",
			job: BatchJob{
				Targets:  []NotificationTarget{validTarget},
				Channels: []Channel{"fax"},
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := tc.job.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestBatchProgressCloneIsDeep(t *testing.T) {
	t.Parallel()

	target := NotificationTarget{EntityType: EntityInvoice, EntityID: "inv-9"}
	progress := BatchProgress{
		JobID:         "job-1",
		Status:        JobStatusRunning,
		Total:         3,
		Current:       2,
		CurrentTarget: &target,
		Results: []DispatchResult{
			{Target: target, Channel: ChannelEmail, Success: true},
		},
	}

	cloned := progress.Clone()
	cloned.Results[0].Success = false
	cloned.CurrentTarget.EntityID = "changed"

	if !progress.Results[0].Success {
		t.Fatal("mutating clone results should not affect the original")
	}
	if progress.CurrentTarget.EntityID != "inv-9" {
		t.Fatal("mutating clone current target should not affect the original")
	}
}

func TestJobStatusIsTerminal(t *testing.T) {
	t.Parallel()

	terminal := []JobStatus{JobStatusCompleted, JobStatusCancelled}
	for _, status := range terminal {
		if !status.IsTerminal() {
			t.Fatalf("IsTerminal() = false for %s, want true", status)
		}
	}

	active := []JobStatus{JobStatusIdle, JobStatusRunning, JobStatusPaused}
	for _, status := range active {
		if status.IsTerminal() {
			t.Fatalf("IsTerminal() = true for %s, want false", status)
		}
	}
}

func TestParseChannelFromString(t *testing.T) {
	t.Parallel()

	ch, err := ParseChannelFromString("  Email ")
	if err != nil {
		t.Fatalf("ParseChannelFromString() unexpected error: %v", err)
	}
	if ch != ChannelEmail {
		t.Fatalf("channel = %s, want %s", ch, ChannelEmail)
	}

	if _, err := ParseChannelFromString("pigeon"); err == nil {
		t.Fatal("expected error for unknown channel")
	}
}
