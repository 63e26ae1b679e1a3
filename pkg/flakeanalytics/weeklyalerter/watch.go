package weeklyalerter

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticslib"
)

const defaultSchedule = "0 8 * * 1"

type WatchFlags struct {
	*AnalyzeWeeklyFlags

	Schedule string
}

func NewWatchFlags() *WatchFlags {
	return &WatchFlags{
		AnalyzeWeeklyFlags: NewAnalyzeWeeklyFlags(),
		Schedule:           defaultSchedule,
	}
}

func (f *WatchFlags) BindFlags(fs *pflag.FlagSet) {
	f.AnalyzeWeeklyFlags.BindFlags(fs)
	fs.StringVar(&f.Schedule, "schedule", f.Schedule, "cron expression, or a descriptor like @daily, on which the weekly analysis runs")
}

// Validate checks to see if the user-input is likely to produce functional runtime options
func (f *WatchFlags) Validate() error {
	if _, err := cron.ParseStandard(f.Schedule); err != nil {
		return fmt.Errorf("invalid --schedule %q: %w", f.Schedule, err)
	}
	return f.AnalyzeWeeklyFlags.Validate()
}

func (f *WatchFlags) ToOptions(ctx context.Context) (*WatchOptions, error) {
	analyze, err := f.AnalyzeWeeklyFlags.ToOptions(ctx)
	if err != nil {
		return nil, err
	}
	return &WatchOptions{analyze: analyze, schedule: f.Schedule}, nil
}

func NewWatchCommand() *cobra.Command {
	f := NewWatchFlags()

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run analyze-weekly on a schedule until interrupted",
		Long: `Run the weekly analysis once at startup and then on every tick of --schedule,
notifying the configured channels whenever an alert threshold is reached.`,
		Example: `./flake-analytics watch --schedule="@daily" --webhook-url=https://alerts.example.com/flakes`,

		SilenceUsage: true,

		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := f.Validate(); err != nil {
				logrus.WithError(err).Fatal("Flags are invalid")
			}
			o, err := f.ToOptions(ctx)
			if err != nil {
				logrus.WithError(err).Fatal("Failed to build runtime options")
			}

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

type analyzer interface {
	Run(ctx context.Context) error
}

type WatchOptions struct {
	analyze  analyzer
	schedule string
}

// Run blocks until ctx is done. Failed analyses are logged and retried on the
// next tick; overlapping ticks wait for the running analysis.
func (o *WatchOptions) Run(ctx context.Context) error {
	var lock sync.Mutex
	analyze := func() {
		lock.Lock()
		defer lock.Unlock()
		if ctx.Err() != nil {
			return
		}
		if err := o.analyze.Run(ctx); err != nil {
			logrus.WithError(err).Error("Weekly analysis failed.")
		}
	}

	c := cron.New()
	if _, err := c.AddFunc(o.schedule, analyze); err != nil {
		return fmt.Errorf("failed to schedule analysis: %w", err)
	}

	analyze()
	c.Start()
	logrus.WithField("schedule", o.schedule).Info("Watching weekly flake insights.")
	<-ctx.Done()
	<-c.Stop().Done()
	logrus.Info("Stopped watching.")
	return nil
}
