package flakemetrics

import (
	"time"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
)

func mustTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func sampleRuns() flakeanalyticsapi.RunDataset {
	return flakeanalyticsapi.RunDataset{
		Schema: flakeanalyticsapi.FullSchema(),
		Records: []flakeanalyticsapi.RunRecord{
			{
				RunID:      "1",
				TestName:   "test_checkout",
				Status:     "passed",
				ExecutedAt: mustTime("2024-01-01T00:00:00Z"),
				Platform:   "linux",
				Team:       "checkout",
				RunURL:     "https://ci.example/runs/1",
				LogPath:    "/logs/1",
			},
			{
				RunID:          "2",
				TestName:       "test_checkout",
				Status:         "failed",
				ExecutedAt:     mustTime("2024-01-02T00:00:00Z"),
				FailureReason:  "AssertionError: price mismatch",
				StackTraceHash: "abc123",
				ErrorCode:      "E_ASSERT",
				Platform:       "linux",
				Team:           "checkout",
				RunURL:         "https://ci.example/runs/2",
				LogPath:        "/logs/2",
			},
			{
				RunID:      "3",
				TestName:   "test_checkout",
				Status:     "passed",
				ExecutedAt: mustTime("2024-01-03T00:00:00Z"),
				Platform:   "linux",
				Team:       "checkout",
				RunURL:     "https://ci.example/runs/3",
				LogPath:    "/logs/3",
			},
			{
				RunID:          "4",
				TestName:       "test_login",
				Status:         "failed",
				ExecutedAt:     mustTime("2024-01-01T12:00:00Z"),
				FailureReason:  "TimeoutError",
				StackTraceHash: "def456",
				ErrorCode:      "E_TIMEOUT",
				Platform:       "mac",
				Team:           "auth",
				RunURL:         "https://ci.example/runs/4",
				LogPath:        "/logs/4",
			},
			{
				RunID:          "5",
				TestName:       "test_login",
				Status:         "failed",
				ExecutedAt:     mustTime("2024-01-04T12:00:00Z"),
				FailureReason:  "TimeoutError",
				StackTraceHash: "def456",
				ErrorCode:      "E_TIMEOUT",
				Platform:       "mac",
				Team:           "auth",
				RunURL:         "https://ci.example/runs/5",
				LogPath:        "/logs/5",
			},
		},
	}
}

// runs builds a minimal dataset of a single test from (timestamp, status) pairs.
func runs(testName string, pairs ...string) flakeanalyticsapi.RunDataset {
	ds := flakeanalyticsapi.RunDataset{
		Schema: flakeanalyticsapi.NewSchema(flakeanalyticsapi.ColumnTestName, flakeanalyticsapi.ColumnExecutedAt, flakeanalyticsapi.ColumnStatus),
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		ds.Records = append(ds.Records, flakeanalyticsapi.RunRecord{
			TestName:   testName,
			ExecutedAt: mustTime(pairs[i]),
			Status:     pairs[i+1],
		})
	}
	return ds
}
