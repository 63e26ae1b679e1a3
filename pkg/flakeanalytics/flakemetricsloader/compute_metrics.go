package flakemetricsloader

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"k8s.io/utils/clock"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/export"
	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticslib"
	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakemetrics"
	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/groupstore"
)

type runDatasetLoader interface {
	LoadRunDataset(ctx context.Context) (flakeanalyticsapi.RunDataset, error)
}

// ComputeMetricsOptions is the runtime form of ComputeMetricsFlags. Uploader,
// inserters and group store are optional.
type ComputeMetricsOptions struct {
	source    runDatasetLoader
	fs        afero.Fs
	outputDir string
	clock     clock.PassiveClock

	uploader  flakeanalyticslib.GCSUploader
	gcsPrefix string

	// inserters are keyed by table name
	inserters  map[string]flakeanalyticslib.BigQueryInserter
	groupStore *groupstore.Store
}

func (o *ComputeMetricsOptions) Run(ctx context.Context) error {
	dataset, err := o.source.LoadRunDataset(ctx)
	if err != nil {
		return fmt.Errorf("failed to load run history: %w", err)
	}
	logrus.WithField("records", len(dataset.Records)).Info("Loaded run history.")

	outputs, err := flakemetrics.ComputeEngineOutputs(dataset)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"tests":          len(outputs.PerTest),
		"failure_groups": len(outputs.FailureGroups),
	}).Info("Computed flake metrics.")

	paths, err := export.WriteOutputs(o.fs, o.outputDir, outputs)
	if err != nil {
		return err
	}
	logrus.WithField("dir", o.outputDir).Infof("Wrote %d files.", len(paths))

	if o.uploader != nil {
		if err := o.uploader.Upload(ctx, o.fs, o.gcsPrefix, paths...); err != nil {
			return err
		}
		logrus.WithField("prefix", o.gcsPrefix).Info("Uploaded outputs to GCS.")
	}

	if len(o.inserters) > 0 {
		if err := o.insert(ctx, outputs); err != nil {
			return err
		}
	}

	if o.groupStore != nil {
		if err := o.groupStore.Observe(ctx, outputs.FailureGroups, outputs.FailureGroupRuns); err != nil {
			return fmt.Errorf("failed to record failure groups: %w", err)
		}
		logrus.Infof("Recorded %d failure groups.", len(outputs.FailureGroups))
	}

	return nil
}

func (o *ComputeMetricsOptions) insert(ctx context.Context, outputs flakeanalyticsapi.EngineOutputs) error {
	computedAt := o.clock.Now().UTC()

	perTestRows := make([]*flakeanalyticsapi.PerTestFlakeMetricRow, 0, len(outputs.PerTest))
	for _, metric := range outputs.PerTest {
		perTestRows = append(perTestRows, flakeanalyticsapi.NewPerTestFlakeMetricRow(computedAt, metric))
	}
	groupRows := make([]*flakeanalyticsapi.FailureGroupRow, 0, len(outputs.FailureGroups))
	for _, group := range outputs.FailureGroups {
		groupRows = append(groupRows, flakeanalyticsapi.NewFailureGroupRow(computedAt, group))
	}
	runRows := make([]*flakeanalyticsapi.FailureGroupRunRow, 0, len(outputs.FailureGroupRuns))
	for _, run := range outputs.FailureGroupRuns {
		runRows = append(runRows, flakeanalyticsapi.NewFailureGroupRunRow(computedAt, run))
	}

	for _, insert := range []struct {
		table string
		rows  interface{}
	}{
		{table: flakeanalyticsapi.PerTestFlakeMetricsTable, rows: perTestRows},
		{table: flakeanalyticsapi.FailureGroupsTableName, rows: groupRows},
		{table: flakeanalyticsapi.FailureGroupRunsTableName, rows: runRows},
	} {
		inserter, ok := o.inserters[insert.table]
		if !ok {
			continue
		}
		if err := inserter.Put(ctx, insert.rows); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", insert.table, err)
		}
		logrus.WithField("table", insert.table).Debug("Inserted rows.")
	}
	return nil
}
