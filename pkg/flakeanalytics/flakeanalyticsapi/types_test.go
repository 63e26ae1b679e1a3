package flakeanalyticsapi

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestEmbeddedFieldsAreFlattened(t *testing.T) {
	day := func(value string) time.Time {
		ret, err := time.Parse(time.DateOnly, value)
		if err != nil {
			t.Fatal(err)
		}
		return ret
	}
	testCases := []struct {
		name     string
		in       interface{}
		expected string
	}{
		{
			name: "failure group",
			in: FailureGroup{
				FailureGroupKey: FailureGroupKey{Platform: "linux", Team: "payments", RootCauseGroupID: "8c5bd9c0"},
				FailureCount:    2,
				AffectedTests:   1,
				LatestFailureAt: day("2024-01-04"),
			},
			expected: `{"platform":"linux","team":"payments","root_cause_group_id":"8c5bd9c0","failure_count":2,"affected_tests":1,"latest_failure_at":"2024-01-04T00:00:00Z"}`,
		},
		{
			name: "weekly insight of the first week",
			in: WeeklyFlakeInsight{
				WeeklyFlakeSample: WeeklyFlakeSample{WeekStart: day("2024-01-01"), TestRuns: 10, FlakeFailures: 1},
				FlakeRate:         0.1,
			},
			expected: `{"week_start":"2024-01-01T00:00:00Z","test_runs":10,"flake_failures":1,"flake_rate":0.1,"wow_delta":null,"z_score":null,"is_anomalous":false}`,
		},
		{
			name: "unresolved root cause group without a ticket",
			in: RootCauseGroup{
				FailureGroupKey: FailureGroupKey{Platform: "mac", Team: "auth", RootCauseGroupID: "61dc05c1"},
				Summary:         "TimeoutError",
				CreatedAt:       day("2024-01-01"),
				LastSeenAt:      day("2024-01-03"),
				FailureCount:    3,
			},
			expected: `{"platform":"mac","team":"auth","root_cause_group_id":"61dc05c1","summary":"TimeoutError","created_at":"2024-01-01T00:00:00Z","last_seen_at":"2024-01-03T00:00:00Z","failure_count":3}`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := json.Marshal(tc.in)
			if err != nil {
				t.Fatalf("failed to marshal: %v", err)
			}
			if diff := cmp.Diff(tc.expected, string(raw)); diff != "" {
				t.Errorf("unexpected json: %s", diff)
			}
		})
	}
}
