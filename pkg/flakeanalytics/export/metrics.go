package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
)

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}

func WritePerTestMetricsCSV(w io.Writer, metrics []flakeanalyticsapi.PerTestFlakeMetric) error {
	rows := make([][]string, 0, len(metrics))
	for _, m := range metrics {
		rows = append(rows, []string{
			m.TestName,
			strconv.Itoa(m.TotalRuns),
			strconv.Itoa(m.FailedRuns),
			formatFloat(m.FlakeRate),
			formatFloat(m.Stability7d),
			formatFloat(m.Stability30d),
			m.Platform,
			m.Team,
		})
	}
	return writeCSV(w, flakeanalyticsapi.PerTestFlakeMetricColumns, rows)
}

// WritePerTestMetricsJSON writes an empty array, never null, for no metrics.
func WritePerTestMetricsJSON(w io.Writer, metrics []flakeanalyticsapi.PerTestFlakeMetric) error {
	if metrics == nil {
		metrics = []flakeanalyticsapi.PerTestFlakeMetric{}
	}
	return writeJSON(w, metrics)
}

func WriteFailureGroupsCSV(w io.Writer, groups []flakeanalyticsapi.FailureGroup) error {
	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, []string{
			g.Platform,
			g.Team,
			g.RootCauseGroupID,
			strconv.Itoa(g.FailureCount),
			strconv.Itoa(g.AffectedTests),
			formatTimestamp(g.LatestFailureAt),
		})
	}
	return writeCSV(w, flakeanalyticsapi.FailureGroupColumns, rows)
}

func WriteFailureGroupsJSON(w io.Writer, groups []flakeanalyticsapi.FailureGroup) error {
	if groups == nil {
		groups = []flakeanalyticsapi.FailureGroup{}
	}
	return writeJSON(w, groups)
}

func WriteFailureGroupRunsCSV(w io.Writer, runs []flakeanalyticsapi.FailureGroupRun) error {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.RootCauseGroupID,
			r.TestName,
			r.RunID,
			formatTimestamp(r.ExecutedAt),
			r.RunURL,
			r.LogPath,
			r.FailureReason,
			r.Platform,
			r.Team,
		})
	}
	return writeCSV(w, flakeanalyticsapi.FailureGroupRunColumns, rows)
}

func WriteFailureGroupRunsJSON(w io.Writer, runs []flakeanalyticsapi.FailureGroupRun) error {
	if runs == nil {
		runs = []flakeanalyticsapi.FailureGroupRun{}
	}
	return writeJSON(w, runs)
}
