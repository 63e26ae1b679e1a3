package alerting

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/weeklyinsights"
)

const (
	RuleHighFlakeRate     = "High flake rate"
	RuleWeekOverWeekSpike = "Week-over-week spike"
	RuleAnomalousSpike    = "Anomalous spike"

	subjectSeparator = " | "
)

type channel struct {
	name     string
	notifier Notifier
}

// Engine evaluates the latest weekly insight against a ThresholdConfig and fans
// the resulting notification out to every registered channel.
type Engine struct {
	thresholds   flakeanalyticsapi.ThresholdConfig
	anomalyLimit int
	channels     []channel
	logger       logrus.FieldLogger
}

func NewEngine(thresholds flakeanalyticsapi.ThresholdConfig, logger logrus.FieldLogger) *Engine {
	return &Engine{
		thresholds:   thresholds,
		anomalyLimit: weeklyinsights.DefaultAnomalyLimit,
		logger:       logger,
	}
}

// WithAnomalyLimit bounds the number of anomalous weeks appended to the body.
func (e *Engine) WithAnomalyLimit(limit int) *Engine {
	e.anomalyLimit = limit
	return e
}

// Register adds a channel. Channels are notified in registration order.
func (e *Engine) Register(name string, notifier Notifier) {
	e.channels = append(e.channels, channel{name: name, notifier: notifier})
}

// Channels lists the registered channel names in notification order.
func (e *Engine) Channels() []string {
	var ret []string
	for _, c := range e.channels {
		ret = append(ret, c.name)
	}
	return ret
}

// Evaluate builds the notification for the latest insight, or returns nil when no
// rule fires or there are no insights.
func (e *Engine) Evaluate(insights []flakeanalyticsapi.WeeklyFlakeInsight) *Notification {
	latest, ok := weeklyinsights.Latest(insights)
	if !ok {
		return nil
	}

	var rules, lines []string
	if latest.FlakeRate >= e.thresholds.MaxFlakeRate {
		rules = append(rules, RuleHighFlakeRate)
		lines = append(lines, fmt.Sprintf("Current week (%s) flake rate is %s, exceeding the threshold of %s.",
			latest.WeekStart.Format(time.DateOnly), percent(latest.FlakeRate), percent(e.thresholds.MaxFlakeRate)))
	}
	if latest.WowDelta != nil && *latest.WowDelta >= e.thresholds.MaxWowDelta {
		rules = append(rules, RuleWeekOverWeekSpike)
		lines = append(lines, fmt.Sprintf("Week-over-week delta is %s which is above the allowed delta of %s.",
			percent(*latest.WowDelta), percent(e.thresholds.MaxWowDelta)))
	}
	if latest.ZScore != nil && *latest.ZScore >= e.thresholds.MaxZScore {
		rules = append(rules, RuleAnomalousSpike)
		lines = append(lines, fmt.Sprintf("Latest Z-score is %.2f, beyond the threshold of %.2f.",
			*latest.ZScore, e.thresholds.MaxZScore))
	}
	if len(rules) == 0 {
		return nil
	}

	if anomalies := weeklyinsights.LatestAnomalies(insights, e.anomalyLimit); len(anomalies) > 0 {
		rows := make([]string, 0, len(anomalies))
		for _, anomaly := range anomalies {
			z := "N/A"
			if anomaly.ZScore != nil {
				z = strconv.FormatFloat(*anomaly.ZScore, 'f', 2, 64)
			}
			rows = append(rows, fmt.Sprintf("- %s: rate=%s, z=%s", anomaly.WeekStart.Format(time.DateOnly), percent(anomaly.FlakeRate), z))
		}
		lines = append(lines, "Recent anomalies:\n"+strings.Join(rows, "\n"))
	}

	return &Notification{
		Subject: strings.Join(rules, subjectSeparator),
		Body:    strings.Join(lines, "\n"),
		Rules:   rules,
	}
}

// Run evaluates the insights and, when an alert fires, sends it to every channel.
// A failing channel does not prevent delivery to the others; all failures are
// returned together once every channel was attempted.
func (e *Engine) Run(ctx context.Context, insights []flakeanalyticsapi.WeeklyFlakeInsight) (*Notification, error) {
	notification := e.Evaluate(insights)
	evaluationsCounter.WithLabelValues(strconv.FormatBool(notification != nil)).Inc()
	if notification == nil {
		e.logger.Debug("No alert thresholds were reached.")
		return nil, nil
	}

	logger := e.logger.WithField("subject", notification.Subject)
	logger.Info("Alert thresholds reached, notifying channels.")
	var errs []error
	for _, c := range e.channels {
		err := c.notifier.Send(ctx, notification.Subject, notification.Body)
		countDelivery(c.name, err)
		if err != nil {
			logger.WithError(err).WithField("channel", c.name).Error("Failed to send notification.")
			errs = append(errs, fmt.Errorf("channel %s: %w", c.name, err))
			continue
		}
		logger.WithField("channel", c.name).Debug("Sent notification.")
	}
	return notification, utilerrors.NewAggregate(errs)
}

func percent(value float64) string {
	if math.IsInf(value, 1) {
		return "inf%"
	}
	return strconv.FormatFloat(value*100, 'f', 2, 64) + "%"
}
