package flakemetricsloader

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"k8s.io/utils/clock"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticslib"
	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/groupstore"
)

type ComputeMetricsFlags struct {
	RunHistory *flakeanalyticslib.RunHistoryFlags

	OutputDir        string
	GCSBucket        string
	GCSPrefix        string
	UploadToBigQuery bool
	DryRun           bool
	GroupStorePath   string
}

func NewComputeMetricsFlags() *ComputeMetricsFlags {
	return &ComputeMetricsFlags{
		RunHistory: flakeanalyticslib.NewRunHistoryFlags(),
		OutputDir:  "flake-metrics",
	}
}

func (f *ComputeMetricsFlags) BindFlags(fs *pflag.FlagSet) {
	f.RunHistory.BindFlags(fs)

	fs.StringVar(&f.OutputDir, "output-dir", f.OutputDir, "directory the per-test metrics and failure groups are written to as JSON and CSV")
	fs.StringVar(&f.GCSBucket, "gcs-bucket", f.GCSBucket, "optional GCS bucket the written files are uploaded to")
	fs.StringVar(&f.GCSPrefix, "gcs-prefix", f.GCSPrefix, "object prefix for uploads, defaults to flake-metrics/<timestamp>")
	fs.BoolVar(&f.UploadToBigQuery, "upload-to-bigquery", f.UploadToBigQuery, "insert the computed metrics into the BigQuery dataset")
	fs.BoolVar(&f.DryRun, "dry-run", f.DryRun, "print BigQuery inserts to stdout instead of running them")
	fs.StringVar(&f.GroupStorePath, "group-store", f.GroupStorePath, "optional SQLite database recording every observed root-cause group")
}

func NewComputeMetricsCommand() *cobra.Command {
	f := NewComputeMetricsFlags()

	cmd := &cobra.Command{
		Use: "compute-metrics",
		Long: `Compute per-test flake metrics and root-cause failure groups from run history.

Run history is read from --input or, without it, from BigQuery. The results are
written to --output-dir and can additionally be uploaded to GCS, inserted into
BigQuery and recorded in the root-cause group registry used by escalate.`,
		Example: `./flake-analytics compute-metrics --input=runs.csv --output-dir=out --group-store=groups.db`,

		SilenceUsage: true,

		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if err := f.Validate(); err != nil {
				logrus.WithError(err).Fatal("Flags are invalid")
			}
			o, err := f.ToOptions(ctx)
			if err != nil {
				logrus.WithError(err).Fatal("Failed to build runtime options")
			}
			defer o.Close()

			if err := o.Run(ctx); err != nil {
				logrus.WithError(err).Fatal("Command failed")
			}

			return nil
		},

		Args: flakeanalyticslib.NoArgs,
	}

	f.BindFlags(cmd.Flags())

	return cmd
}

// Validate checks to see if the user-input is likely to produce functional runtime options
func (f *ComputeMetricsFlags) Validate() error {
	if len(f.OutputDir) == 0 {
		return fmt.Errorf("missing --output-dir")
	}
	if f.DryRun && !f.UploadToBigQuery {
		return fmt.Errorf("--dry-run only applies to --upload-to-bigquery")
	}
	needsGoogle := f.RunHistory.UsesBigQuery() || len(f.GCSBucket) > 0 || (f.UploadToBigQuery && !f.DryRun)
	if !needsGoogle {
		return f.RunHistory.Validate()
	}
	if err := f.RunHistory.DataCoordinates.Validate(); err != nil {
		return err
	}
	if err := f.RunHistory.Authentication.Validate(); err != nil {
		return err
	}
	return f.RunHistory.Validate()
}

// ToOptions goes from the user input to the runtime values need to run the command.
// Expect to see unit tests on the options, but not on the flags which are simply value mappings.
func (f *ComputeMetricsFlags) ToOptions(ctx context.Context) (*ComputeMetricsOptions, error) {
	fs := afero.NewOsFs()
	realClock := clock.RealClock{}

	source, err := f.RunHistory.ToSource(ctx, fs, realClock)
	if err != nil {
		return nil, err
	}

	o := &ComputeMetricsOptions{
		source:    source,
		fs:        fs,
		outputDir: f.OutputDir,
		clock:     realClock,
	}

	if len(f.GCSBucket) > 0 {
		gcsClient, err := f.RunHistory.Authentication.NewGCSClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCS client: %w", err)
		}
		o.uploader = flakeanalyticslib.NewGCSUploader(gcsClient, f.GCSBucket)
		o.gcsPrefix = f.GCSPrefix
		if len(o.gcsPrefix) == 0 {
			o.gcsPrefix = path.Join("flake-metrics", realClock.Now().UTC().Format("20060102T150405Z"))
		}
	}

	if f.UploadToBigQuery {
		o.inserters = map[string]flakeanalyticslib.BigQueryInserter{}
		tables := []string{
			flakeanalyticsapi.PerTestFlakeMetricsTable,
			flakeanalyticsapi.FailureGroupsTableName,
			flakeanalyticsapi.FailureGroupRunsTableName,
		}
		if f.DryRun {
			for _, table := range tables {
				o.inserters[table] = flakeanalyticslib.NewDryRunInserter(os.Stdout, table)
			}
		} else {
			bigQueryClient, err := f.RunHistory.Authentication.NewBigQueryClient(ctx, f.RunHistory.DataCoordinates.ProjectID)
			if err != nil {
				return nil, fmt.Errorf("failed to create BigQuery client: %w", err)
			}
			for _, table := range tables {
				o.inserters[table] = flakeanalyticslib.NewBigQueryInserter(bigQueryClient, *f.RunHistory.DataCoordinates, table)
			}
		}
	}

	if len(f.GroupStorePath) > 0 {
		store, err := groupstore.Open(ctx, f.GroupStorePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open group store %s: %w", f.GroupStorePath, err)
		}
		o.groupStore = store
	}

	return o, nil
}

func (o *ComputeMetricsOptions) Close() {
	if o.groupStore == nil {
		return
	}
	if err := o.groupStore.Close(); err != nil {
		logrus.WithError(err).Warn("Failed to close group store.")
	}
}
