package weeklyinsights

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
)

func TestWeekStart(t *testing.T) {
	testCases := []struct {
		in       string
		expected string
	}{
		{in: "2024-01-01T00:00:00Z", expected: "2024-01-01"},
		{in: "2024-01-07T23:59:59Z", expected: "2024-01-01"},
		{in: "2024-01-08T00:00:00Z", expected: "2024-01-08"},
		{in: "2024-01-08T01:00:00+02:00", expected: "2024-01-01"},
		{in: "2024-03-03T12:00:00Z", expected: "2024-02-26"},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			in, err := time.Parse(time.RFC3339, tc.in)
			if err != nil {
				t.Fatal(err)
			}
			assert.Equal(t, tc.expected, WeekStart(in).Format(time.DateOnly))
		})
	}
}

func TestAggregateWeeklySamples(t *testing.T) {
	at := func(value string) time.Time {
		t, _ := time.Parse(time.RFC3339, value)
		return t
	}
	dataset := flakeanalyticsapi.RunDataset{
		Schema: flakeanalyticsapi.NewSchema(flakeanalyticsapi.ColumnTestName, flakeanalyticsapi.ColumnExecutedAt, flakeanalyticsapi.ColumnStatus),
		Records: []flakeanalyticsapi.RunRecord{
			{TestName: "a", ExecutedAt: at("2024-01-10T00:00:00Z"), Status: "passed"},
			{TestName: "a", ExecutedAt: at("2024-01-02T00:00:00Z"), Status: "FAILED"},
			{TestName: "b", ExecutedAt: at("2024-01-03T00:00:00Z"), Status: "passed"},
			{TestName: "b", ExecutedAt: at("2024-01-11T00:00:00Z"), Status: "flaky"},
			{TestName: "b", ExecutedAt: at("2024-01-12T00:00:00Z"), Status: "skipped"},
		},
	}
	actual, err := AggregateWeeklySamples(dataset)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []flakeanalyticsapi.WeeklyFlakeSample{
		{WeekStart: week("2024-01-01"), TestRuns: 2, FlakeFailures: 1},
		{WeekStart: week("2024-01-08"), TestRuns: 3, FlakeFailures: 1},
	}
	if diff := cmp.Diff(expected, actual); diff != "" {
		t.Errorf("unexpected samples: %s", diff)
	}

	dataset.Schema = flakeanalyticsapi.NewSchema(flakeanalyticsapi.ColumnTestName)
	if _, err := AggregateWeeklySamples(dataset); err == nil {
		t.Error("expected an error for a dataset without timestamps")
	}
}
