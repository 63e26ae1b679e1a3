package flakeanalytics

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/escalator"
	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/exportserver"
	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakemetricsloader"
	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/weeklyalerter"
)

// Overall usage
// 1. compute-metrics reads run history, writes per-test metrics and failure groups,
//    and records every failure group in the group store
// 2. analyze-weekly (or watch, on a schedule) enriches weekly samples and alerts
//    when the latest week reaches a threshold
// 3. escalate files Jira tickets for groups unresolved past the SLA
// 4. serve exposes the same data over HTTP

func NewFlakeAnalyticsCommand() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:  "flake-analytics",
		Long: `Commands computing and alerting on test flakiness from CI run history`,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid --log-level: %w", err)
			}
			logrus.SetLevel(level)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", logrus.InfoLevel.String(), "log level: trace, debug, info, warning or error")

	cmd.AddCommand(flakemetricsloader.NewComputeMetricsCommand())
	cmd.AddCommand(weeklyalerter.NewAnalyzeWeeklyCommand())
	cmd.AddCommand(weeklyalerter.NewWatchCommand())
	cmd.AddCommand(escalator.NewEscalateCommand())
	cmd.AddCommand(exportserver.NewServeCommand())

	return cmd
}
