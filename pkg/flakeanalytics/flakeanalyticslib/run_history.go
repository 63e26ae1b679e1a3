package flakeanalyticslib

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"k8s.io/utils/clock"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/weeklyinsights"
)

const defaultLookback = 90 * 24 * time.Hour

// RunHistoryFlags selects where run history comes from: a local file when
// --input is set, BigQuery otherwise.
type RunHistoryFlags struct {
	DataCoordinates *BigQueryDataCoordinates
	Authentication  *GoogleAuthenticationFlags

	InputPath string
	Lookback  time.Duration
}

func NewRunHistoryFlags() *RunHistoryFlags {
	return &RunHistoryFlags{
		DataCoordinates: NewBigQueryDataCoordinates(),
		Authentication:  NewGoogleAuthenticationFlags(),
		Lookback:        defaultLookback,
	}
}

func (f *RunHistoryFlags) BindFlags(fs *pflag.FlagSet) {
	f.DataCoordinates.BindFlags(fs)
	f.Authentication.BindFlags(fs)

	fs.StringVar(&f.InputPath, "input", f.InputPath, "run history file (.csv, .json or .ndjson) to read instead of BigQuery")
	fs.DurationVar(&f.Lookback, "lookback", f.Lookback, "how far back to read run history from BigQuery")
}

func (f *RunHistoryFlags) UsesBigQuery() bool {
	return len(f.InputPath) == 0
}

func (f *RunHistoryFlags) Validate() error {
	if !f.UsesBigQuery() {
		return nil
	}
	if f.Lookback <= 0 {
		return fmt.Errorf("--lookback must be positive")
	}
	if err := f.DataCoordinates.Validate(); err != nil {
		return err
	}
	return f.Authentication.Validate()
}

// ToSource connects to BigQuery when no input file was given.
func (f *RunHistoryFlags) ToSource(ctx context.Context, fs afero.Fs, clock clock.PassiveClock) (*RunHistorySource, error) {
	source := &RunHistorySource{
		fs:        fs,
		inputPath: f.InputPath,
		lookback:  f.Lookback,
		clock:     clock,
	}
	if !f.UsesBigQuery() {
		return source, nil
	}
	client, err := f.Authentication.NewBigQueryClient(ctx, f.DataCoordinates.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client: %w", err)
	}
	source.ciDataClient = NewRetryingCIDataClient(NewCIDataClient(*f.DataCoordinates, client))
	return source, nil
}

// RunHistorySource loads run history and weekly samples from the configured source.
type RunHistorySource struct {
	fs           afero.Fs
	inputPath    string
	ciDataClient CIDataClient
	lookback     time.Duration
	clock        clock.PassiveClock
}

func (s *RunHistorySource) since() time.Time {
	return s.clock.Now().Add(-s.lookback)
}

func (s *RunHistorySource) LoadRunDataset(ctx context.Context) (flakeanalyticsapi.RunDataset, error) {
	if s.ciDataClient == nil {
		logrus.WithField("input", s.inputPath).Debug("Loading run history from file.")
		return LoadRunDataset(s.fs, s.inputPath)
	}
	since := s.since()
	logrus.WithField("since", since).Debug("Loading run history from BigQuery.")
	return s.ciDataClient.ListRunRecordsSince(ctx, since)
}

// WeeklySamples are aggregated by BigQuery, or locally for an input file.
func (s *RunHistorySource) WeeklySamples(ctx context.Context) ([]flakeanalyticsapi.WeeklyFlakeSample, error) {
	if s.ciDataClient != nil {
		return s.ciDataClient.ListWeeklyFlakeSamples(ctx, s.since())
	}
	dataset, err := LoadRunDataset(s.fs, s.inputPath)
	if err != nil {
		return nil, err
	}
	return weeklyinsights.AggregateWeeklySamples(dataset)
}
