package flakemetrics

import (
	"sort"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
)

// ComputePerTestFlakeMetrics summarises every test of the dataset into one row.
// Rows are sorted by flake rate, worst first; ties are ordered by test name.
func ComputePerTestFlakeMetrics(dataset flakeanalyticsapi.RunDataset) ([]flakeanalyticsapi.PerTestFlakeMetric, error) {
	if err := dataset.Schema.Require("flake metrics",
		flakeanalyticsapi.ColumnTestName, flakeanalyticsapi.ColumnStatus, flakeanalyticsapi.ColumnExecutedAt); err != nil {
		return nil, err
	}

	flagged := dataset.WithFailureFlag()
	countsTowardsTotal := totalRunPolicy(flagged.Schema)
	platformOf := attributePolicy(flagged.Schema, flakeanalyticsapi.ColumnPlatform, func(r flakeanalyticsapi.RunRecord) string { return r.Platform })
	teamOf := attributePolicy(flagged.Schema, flakeanalyticsapi.ColumnTeam, func(r flakeanalyticsapi.RunRecord) string { return r.Team })

	names, byTest := groupByTest(flagged.Records)
	ret := make([]flakeanalyticsapi.PerTestFlakeMetric, 0, len(names))
	for _, name := range names {
		runs := byTest[name]
		metric := flakeanalyticsapi.PerTestFlakeMetric{TestName: name}
		for _, run := range runs {
			if !countsTowardsTotal(run) {
				continue
			}
			metric.TotalRuns++
			if run.Failed {
				metric.FailedRuns++
			}
		}
		metric.FlakeRate = flakeRate(metric.FailedRuns, metric.TotalRuns)

		windows := stabilityForTest(name, runs, flakeanalyticsapi.StabilityWindowLengths)
		current := windows[len(windows)-1]
		metric.Stability7d = current.Stability(flakeanalyticsapi.Stability7DayColumn)
		metric.Stability30d = current.Stability(flakeanalyticsapi.Stability30DayColumn)

		latest := runs[len(runs)-1]
		metric.Platform = platformOf(latest)
		metric.Team = teamOf(latest)
		ret = append(ret, metric)
	}

	sort.SliceStable(ret, func(i, j int) bool {
		return ret[i].FlakeRate > ret[j].FlakeRate
	})
	return ret, nil
}

func flakeRate(failed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(failed) / float64(total)
}

// totalRunPolicy decides which records count as runs. When the source carries
// run identifiers only identified runs are counted, failed runs included.
func totalRunPolicy(schema flakeanalyticsapi.Schema) func(flakeanalyticsapi.RunRecord) bool {
	if schema.Has(flakeanalyticsapi.ColumnRunID) {
		return func(r flakeanalyticsapi.RunRecord) bool { return len(r.RunID) > 0 }
	}
	return func(flakeanalyticsapi.RunRecord) bool { return true }
}

// attributePolicy yields the attribute only when the source provided its column.
func attributePolicy(schema flakeanalyticsapi.Schema, column flakeanalyticsapi.Column, get func(flakeanalyticsapi.RunRecord) string) func(flakeanalyticsapi.RunRecord) string {
	if !schema.Has(column) {
		return func(flakeanalyticsapi.RunRecord) string { return "" }
	}
	return get
}
