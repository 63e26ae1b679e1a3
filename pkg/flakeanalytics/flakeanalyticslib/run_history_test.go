package flakeanalyticslib

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	clocktesting "k8s.io/utils/clock/testing"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
)

type recordingDataClient struct {
	since   []time.Time
	samples []flakeanalyticsapi.WeeklyFlakeSample
}

func (r *recordingDataClient) ListRunRecordsSince(_ context.Context, since time.Time) (flakeanalyticsapi.RunDataset, error) {
	r.since = append(r.since, since)
	return flakeanalyticsapi.RunDataset{Schema: flakeanalyticsapi.FullSchema()}, nil
}

func (r *recordingDataClient) ListWeeklyFlakeSamples(_ context.Context, since time.Time) ([]flakeanalyticsapi.WeeklyFlakeSample, error) {
	r.since = append(r.since, since)
	return r.samples, nil
}

func TestRunHistoryFlagsValidate(t *testing.T) {
	testCases := []struct {
		name        string
		mutate      func(*RunHistoryFlags)
		expectedErr string
	}{
		{
			name:   "input file needs no google credentials",
			mutate: func(f *RunHistoryFlags) { f.InputPath = "runs.csv" },
		},
		{
			name:        "bigquery needs credentials",
			mutate:      func(f *RunHistoryFlags) {},
			expectedErr: "one of --google-service-account-credential-file or --google-oauth-credential-file must be specified",
		},
		{
			name: "bigquery needs a positive lookback",
			mutate: func(f *RunHistoryFlags) {
				f.Authentication.GoogleServiceAccountCredentialFile = "sa.json"
				f.Lookback = 0
			},
			expectedErr: "--lookback must be positive",
		},
		{
			name:   "bigquery with credentials",
			mutate: func(f *RunHistoryFlags) { f.Authentication.GoogleServiceAccountCredentialFile = "sa.json" },
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := NewRunHistoryFlags()
			tc.mutate(f)
			err := f.Validate()
			var actualErr string
			if err != nil {
				actualErr = err.Error()
			}
			if actualErr != tc.expectedErr {
				t.Errorf("expected error %q, got %q", tc.expectedErr, actualErr)
			}
		})
	}
}

func TestRunHistorySourceFromFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	history := "test_name,executed_at,status\n" +
		"login,2024-01-02T00:00:00Z,passed\n" +
		"login,2024-01-03T00:00:00Z,failed\n" +
		"login,2024-01-08T00:00:00Z,passed\n"
	if err := afero.WriteFile(fs, "/runs.csv", []byte(history), 0644); err != nil {
		t.Fatalf("failed to write history: %v", err)
	}
	f := NewRunHistoryFlags()
	f.InputPath = "/runs.csv"
	source, err := f.ToSource(context.Background(), fs, clocktesting.NewFakeClock(time.Now()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dataset, err := source.LoadRunDataset(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dataset.Records) != 3 {
		t.Errorf("expected 3 records, got %d", len(dataset.Records))
	}

	samples, err := source.WeeklySamples(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []flakeanalyticsapi.WeeklyFlakeSample{
		{WeekStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), TestRuns: 2, FlakeFailures: 1},
		{WeekStart: time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), TestRuns: 1},
	}
	if diff := cmp.Diff(expected, samples); diff != "" {
		t.Errorf("samples differ from expected: %s", diff)
	}
}

func TestRunHistorySourceFromBigQuery(t *testing.T) {
	now := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	client := &recordingDataClient{samples: []flakeanalyticsapi.WeeklyFlakeSample{{TestRuns: 3}}}
	source := &RunHistorySource{
		ciDataClient: client,
		lookback:     30 * 24 * time.Hour,
		clock:        clocktesting.NewFakeClock(now),
	}

	if _, err := source.LoadRunDataset(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	samples, err := source.WeeklySamples(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(client.samples, samples); diff != "" {
		t.Errorf("samples differ from expected: %s", diff)
	}
	since := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	if diff := cmp.Diff([]time.Time{since, since}, client.since); diff != "" {
		t.Errorf("queries used the wrong lower bound: %s", diff)
	}
}
