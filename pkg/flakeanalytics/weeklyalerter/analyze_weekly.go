package weeklyalerter

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/alerting"
	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/export"
	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/weeklyinsights"
)

type weeklySampleSource interface {
	WeeklySamples(ctx context.Context) ([]flakeanalyticsapi.WeeklyFlakeSample, error)
}

type alertRunner interface {
	Run(ctx context.Context, insights []flakeanalyticsapi.WeeklyFlakeInsight) (*alerting.Notification, error)
}

type AnalyzeWeeklyOptions struct {
	source          weeklySampleSource
	engine          alertRunner
	zScoreThreshold float64
	anomalyLimit    int

	fs        afero.Fs
	outputDir string
}

func (o *AnalyzeWeeklyOptions) Run(ctx context.Context) error {
	samples, err := o.source.WeeklySamples(ctx)
	if err != nil {
		return fmt.Errorf("failed to get weekly samples: %w", err)
	}
	insights := weeklyinsights.EnrichWeeklySamples(samples, o.zScoreThreshold)
	logrus.WithField("weeks", len(insights)).Info("Enriched weekly samples.")

	if len(o.outputDir) > 0 {
		paths, err := export.WriteInsights(o.fs, o.outputDir, insights)
		if err != nil {
			return err
		}
		logrus.WithField("dir", o.outputDir).Infof("Wrote %d files.", len(paths))
	}

	for _, anomaly := range weeklyinsights.LatestAnomalies(insights, o.anomalyLimit) {
		logrus.WithFields(logrus.Fields{
			"week":       anomaly.WeekStart.Format("2006-01-02"),
			"flake_rate": anomaly.FlakeRate,
		}).Info("Anomalous week.")
	}

	notification, err := o.engine.Run(ctx, insights)
	if notification == nil {
		logrus.Info("No alert thresholds were reached.")
	}
	return err
}
