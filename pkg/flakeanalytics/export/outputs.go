package export

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
)

const (
	PerTestMetricsFile    = "per_test_flake_metrics"
	FailureGroupsFile     = "failure_groups"
	FailureGroupRunsFile  = "failure_group_runs"
	WeeklyInsightsFile    = "weekly_flake_insights"
	jsonExtension         = ".json"
	csvExtension          = ".csv"
	outputDirPermissions  = 0755
	outputFilePermissions = 0644
)

type fileWriter struct {
	name  string
	write func(io.Writer) error
}

func writeFiles(fs afero.Fs, dir string, files []fileWriter) ([]string, error) {
	if err := fs.MkdirAll(dir, outputDirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	var written []string
	for _, file := range files {
		buf := &bytes.Buffer{}
		if err := file.write(buf); err != nil {
			return written, fmt.Errorf("failed to serialize %s: %w", file.name, err)
		}
		path := filepath.Join(dir, file.name)
		if err := afero.WriteFile(fs, path, buf.Bytes(), outputFilePermissions); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// WriteOutputs writes the JSON and CSV form of every engine output into dir and
// returns the written paths, JSON files first.
func WriteOutputs(fs afero.Fs, dir string, outputs flakeanalyticsapi.EngineOutputs) ([]string, error) {
	return writeFiles(fs, dir, []fileWriter{
		{name: PerTestMetricsFile + jsonExtension, write: func(w io.Writer) error { return WritePerTestMetricsJSON(w, outputs.PerTest) }},
		{name: FailureGroupsFile + jsonExtension, write: func(w io.Writer) error { return WriteFailureGroupsJSON(w, outputs.FailureGroups) }},
		{name: FailureGroupRunsFile + jsonExtension, write: func(w io.Writer) error { return WriteFailureGroupRunsJSON(w, outputs.FailureGroupRuns) }},
		{name: PerTestMetricsFile + csvExtension, write: func(w io.Writer) error { return WritePerTestMetricsCSV(w, outputs.PerTest) }},
		{name: FailureGroupsFile + csvExtension, write: func(w io.Writer) error { return WriteFailureGroupsCSV(w, outputs.FailureGroups) }},
		{name: FailureGroupRunsFile + csvExtension, write: func(w io.Writer) error { return WriteFailureGroupRunsCSV(w, outputs.FailureGroupRuns) }},
	})
}

// WriteInsights writes the weekly insights as CSV and JSON into dir.
func WriteInsights(fs afero.Fs, dir string, insights []flakeanalyticsapi.WeeklyFlakeInsight) ([]string, error) {
	return writeFiles(fs, dir, []fileWriter{
		{name: WeeklyInsightsFile + jsonExtension, write: func(w io.Writer) error { return WriteInsightsJSON(w, insights) }},
		{name: WeeklyInsightsFile + csvExtension, write: func(w io.Writer) error { return WriteInsightsCSV(w, insights) }},
	})
}
