package flakemetrics

import (
	"fmt"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
)

// ComputeEngineOutputs runs the per-test aggregation and then summarises the
// failures of the same history, which gets its failed flag derived from status.
func ComputeEngineOutputs(dataset flakeanalyticsapi.RunDataset) (flakeanalyticsapi.EngineOutputs, error) {
	perTest, err := ComputePerTestFlakeMetrics(dataset)
	if err != nil {
		return flakeanalyticsapi.EngineOutputs{}, fmt.Errorf("failed to compute per-test metrics: %w", err)
	}
	flagged := dataset.WithFailureFlag()
	groups, err := ComputeFailureGroupSummaries(flagged)
	if err != nil {
		return flakeanalyticsapi.EngineOutputs{}, fmt.Errorf("failed to summarise failure groups: %w", err)
	}
	runs, err := BuildFailureGroupRuns(flagged)
	if err != nil {
		return flakeanalyticsapi.EngineOutputs{}, fmt.Errorf("failed to build failure group runs: %w", err)
	}
	return flakeanalyticsapi.EngineOutputs{
		PerTest:          perTest,
		FailureGroups:    groups,
		FailureGroupRuns: runs,
	}, nil
}
