package weeklyalerter

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"k8s.io/utils/clock"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/alerting"
	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticslib"
)

type AnalyzeWeeklyFlags struct {
	RunHistory *flakeanalyticslib.RunHistoryFlags

	ConfigPath      string
	OutputDir       string
	MaxFlakeRate    float64
	MaxWowDelta     float64
	MaxZScore       float64
	ZScoreThreshold float64
	AnomalyLimit    int

	SlackWebhookURLFile     string
	SlackTokenFile          string
	SlackChannel            string
	WebhookURL              string
	PagerDutyRoutingKeyFile string

	changed func(name string) bool
}

func NewAnalyzeWeeklyFlags() *AnalyzeWeeklyFlags {
	defaults := alerting.DefaultConfig()
	return &AnalyzeWeeklyFlags{
		RunHistory:      flakeanalyticslib.NewRunHistoryFlags(),
		MaxFlakeRate:    defaults.Thresholds.MaxFlakeRate,
		MaxWowDelta:     defaults.Thresholds.MaxWowDelta,
		MaxZScore:       defaults.Thresholds.MaxZScore,
		ZScoreThreshold: defaults.ZScoreThreshold,
		AnomalyLimit:    defaults.AnomalyLimit,
	}
}

func (f *AnalyzeWeeklyFlags) BindFlags(fs *pflag.FlagSet) {
	f.RunHistory.BindFlags(fs)

	fs.StringVar(&f.ConfigPath, "config", f.ConfigPath, "optional alerting config file; flags set explicitly override its values")
	fs.StringVar(&f.OutputDir, "output-dir", f.OutputDir, "optional directory the enriched weekly insights are written to as JSON and CSV")
	fs.Float64Var(&f.MaxFlakeRate, "max-flake-rate", f.MaxFlakeRate, "alert when the latest weekly flake rate reaches this value")
	fs.Float64Var(&f.MaxWowDelta, "max-wow-delta", f.MaxWowDelta, "alert when the latest week-over-week change reaches this value")
	fs.Float64Var(&f.MaxZScore, "max-zscore", f.MaxZScore, "alert when the absolute Z-score of the latest week reaches this value")
	fs.Float64Var(&f.ZScoreThreshold, "zscore-threshold", f.ZScoreThreshold, "absolute Z-score from which a week is flagged as anomalous")
	fs.IntVar(&f.AnomalyLimit, "anomaly-limit", f.AnomalyLimit, "how many recent anomalous weeks are listed in an alert")

	fs.StringVar(&f.SlackWebhookURLFile, "slack-webhook-url-file", f.SlackWebhookURLFile, "file holding a Slack incoming webhook URL")
	fs.StringVar(&f.SlackTokenFile, "slack-token-file", f.SlackTokenFile, "file holding a Slack bot token, requires --slack-channel")
	fs.StringVar(&f.SlackChannel, "slack-channel", f.SlackChannel, "Slack channel alerts are posted to")
	fs.StringVar(&f.WebhookURL, "webhook-url", f.WebhookURL, "generic webhook receiving alerts as JSON")
	fs.StringVar(&f.PagerDutyRoutingKeyFile, "pagerduty-routing-key-file", f.PagerDutyRoutingKeyFile, "file holding a PagerDuty Events API v2 routing key")

	f.changed = fs.Changed
}

func NewAnalyzeWeeklyCommand() *cobra.Command {
	f := NewAnalyzeWeeklyFlags()

	cmd := &cobra.Command{
		Use: "analyze-weekly",
		Long: `Enrich weekly flake samples with week-over-week deltas, Z-scores and anomaly flags,
and notify every configured channel when an alert threshold is reached.

Samples are aggregated by BigQuery or, with --input, computed from a run history file.`,
		Example: `./flake-analytics analyze-weekly --input=runs.csv --slack-webhook-url-file=/etc/slack/url`,

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
func (f *AnalyzeWeeklyFlags) Validate() error {
	if len(f.SlackTokenFile) > 0 && len(f.SlackChannel) == 0 {
		return fmt.Errorf("--slack-token-file requires --slack-channel")
	}
	if f.AnomalyLimit < 0 {
		return fmt.Errorf("--anomaly-limit must not be negative")
	}
	return f.RunHistory.Validate()
}

// alertingConfig layers explicitly set flags over the config file, or over the
// defaults without one.
func (f *AnalyzeWeeklyFlags) alertingConfig(fs afero.Fs) (*alerting.Config, error) {
	config := alerting.DefaultConfig()
	if len(f.ConfigPath) > 0 {
		loaded, err := alerting.LoadConfig(fs, f.ConfigPath)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	override := func(name string) bool {
		return len(f.ConfigPath) == 0 || (f.changed != nil && f.changed(name))
	}
	if override("max-flake-rate") {
		config.Thresholds.MaxFlakeRate = f.MaxFlakeRate
	}
	if override("max-wow-delta") {
		config.Thresholds.MaxWowDelta = f.MaxWowDelta
	}
	if override("max-zscore") {
		config.Thresholds.MaxZScore = f.MaxZScore
	}
	if override("zscore-threshold") {
		config.ZScoreThreshold = f.ZScoreThreshold
	}
	if override("anomaly-limit") {
		config.AnomalyLimit = f.AnomalyLimit
	}

	if len(f.SlackWebhookURLFile) > 0 {
		config.Channels.SlackWebhook = &alerting.SlackWebhookConfig{WebhookURLFile: f.SlackWebhookURLFile, Channel: f.SlackChannel}
	}
	if len(f.SlackTokenFile) > 0 {
		config.Channels.Slack = &alerting.SlackConfig{TokenFile: f.SlackTokenFile, Channel: f.SlackChannel}
	}
	if len(f.WebhookURL) > 0 {
		config.Channels.Webhook = &alerting.WebhookConfig{URL: f.WebhookURL}
	}
	if len(f.PagerDutyRoutingKeyFile) > 0 {
		config.Channels.PagerDuty = &alerting.PagerDutyConfig{RoutingKeyFile: f.PagerDutyRoutingKeyFile}
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ToOptions goes from the user input to the runtime values need to run the command.
func (f *AnalyzeWeeklyFlags) ToOptions(ctx context.Context) (*AnalyzeWeeklyOptions, error) {
	fs := afero.NewOsFs()
	config, err := f.alertingConfig(fs)
	if err != nil {
		return nil, err
	}
	engine, err := alerting.NewEngineFromConfig(fs, config, logrus.WithField("component", "alerting"))
	if err != nil {
		return nil, err
	}
	source, err := f.RunHistory.ToSource(ctx, fs, clock.RealClock{})
	if err != nil {
		return nil, err
	}
	return &AnalyzeWeeklyOptions{
		source:          source,
		engine:          engine,
		zScoreThreshold: config.ZScoreThreshold,
		anomalyLimit:    config.AnomalyLimit,
		fs:              fs,
		outputDir:       f.OutputDir,
	}, nil
}
