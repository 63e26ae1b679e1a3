package alerting

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
)

func ptr(v float64) *float64 {
	return &v
}

func insight(day string, rate float64, delta, z *float64, anomalous bool) flakeanalyticsapi.WeeklyFlakeInsight {
	weekStart, err := time.Parse(time.DateOnly, day)
	if err != nil {
		panic(err)
	}
	return flakeanalyticsapi.WeeklyFlakeInsight{
		WeeklyFlakeSample: flakeanalyticsapi.WeeklyFlakeSample{WeekStart: weekStart},
		FlakeRate:         rate,
		WowDelta:          delta,
		ZScore:            z,
		IsAnomalous:       anomalous,
	}
}

func TestEngineEvaluate(t *testing.T) {
	testCases := []struct {
		name       string
		thresholds flakeanalyticsapi.ThresholdConfig
		insights   []flakeanalyticsapi.WeeklyFlakeInsight
		expected   *Notification
	}{
		{
			name:       "no insights",
			thresholds: flakeanalyticsapi.DefaultThresholdConfig(),
		},
		{
			name:       "nothing reaches a threshold",
			thresholds: flakeanalyticsapi.DefaultThresholdConfig(),
			insights: []flakeanalyticsapi.WeeklyFlakeInsight{
				insight("2024-01-01", 0.01, nil, nil, false),
				insight("2024-01-08", 0.012, ptr(0.2), nil, false),
			},
		},
		{
			name:       "every rule fires",
			thresholds: flakeanalyticsapi.DefaultThresholdConfig(),
			insights: []flakeanalyticsapi.WeeklyFlakeInsight{
				insight("2024-01-15", 0.2, ptr(9), ptr(4), true),
				insight("2024-01-01", 0.01, nil, nil, false),
				insight("2024-01-08", 0.02, ptr(1), nil, false),
			},
			expected: &Notification{
				Subject: "High flake rate | Week-over-week spike | Anomalous spike",
				Body: strings.Join([]string{
					"Current week (2024-01-15) flake rate is 20.00%, exceeding the threshold of 5.00%.",
					"Week-over-week delta is 900.00% which is above the allowed delta of 50.00%.",
					"Latest Z-score is 4.00, beyond the threshold of 3.00.",
					"Recent anomalies:",
					"- 2024-01-15: rate=20.00%, z=4.00",
				}, "\n"),
				Rules: []string{RuleHighFlakeRate, RuleWeekOverWeekSpike, RuleAnomalousSpike},
			},
		},
		{
			name:       "thresholds are inclusive",
			thresholds: flakeanalyticsapi.ThresholdConfig{MaxFlakeRate: 0.5, MaxWowDelta: 1, MaxZScore: 2},
			insights: []flakeanalyticsapi.WeeklyFlakeInsight{
				insight("2024-01-08", 0.25, ptr(1), ptr(2), false),
			},
			expected: &Notification{
				Subject: "Week-over-week spike | Anomalous spike",
				Body: strings.Join([]string{
					"Week-over-week delta is 100.00% which is above the allowed delta of 100.00%.",
					"Latest Z-score is 2.00, beyond the threshold of 2.00.",
				}, "\n"),
				Rules: []string{RuleWeekOverWeekSpike, RuleAnomalousSpike},
			},
		},
		{
			name:       "jump from zero and older anomalies",
			thresholds: flakeanalyticsapi.ThresholdConfig{MaxFlakeRate: 0.9, MaxWowDelta: 0.5, MaxZScore: 3},
			insights: []flakeanalyticsapi.WeeklyFlakeInsight{
				insight("2024-01-01", 0.3, nil, nil, false),
				insight("2024-01-08", 0.0, ptr(-1), ptr(-2.75), true),
				insight("2024-01-15", 0.1, ptr(math.Inf(1)), ptr(-0.5), false),
			},
			expected: &Notification{
				Subject: "Week-over-week spike",
				Body: strings.Join([]string{
					"Week-over-week delta is inf% which is above the allowed delta of 50.00%.",
					"Recent anomalies:",
					"- 2024-01-08: rate=0.00%, z=-2.75",
				}, "\n"),
				Rules: []string{RuleWeekOverWeekSpike},
			},
		},
		{
			name:       "a low score does not fire",
			thresholds: flakeanalyticsapi.ThresholdConfig{MaxFlakeRate: 0.9, MaxWowDelta: 0.5, MaxZScore: 3},
			insights: []flakeanalyticsapi.WeeklyFlakeInsight{
				insight("2024-01-15", 0.1, ptr(0.1), ptr(-4), true),
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			logger, _ := test.NewNullLogger()
			engine := NewEngine(tc.thresholds, logrus.NewEntry(logger))
			if diff := cmp.Diff(tc.expected, engine.Evaluate(tc.insights)); diff != "" {
				t.Errorf("unexpected notification: %s", diff)
			}
		})
	}
}

type recordingNotifier struct {
	sent []string
	err  error
}

func (r *recordingNotifier) Send(_ context.Context, subject, body string) error {
	r.sent = append(r.sent, subject)
	return r.err
}

func TestEngineRunIsolatesChannelFailures(t *testing.T) {
	logger, hook := test.NewNullLogger()
	engine := NewEngine(flakeanalyticsapi.DefaultThresholdConfig(), logrus.NewEntry(logger))

	var order []string
	broken := &recordingNotifier{err: errors.New("connection refused")}
	first := &recordingNotifier{}
	last := &recordingNotifier{}
	engine.Register("first", NotifierFunc(func(ctx context.Context, subject, body string) error {
		order = append(order, "first")
		return first.Send(ctx, subject, body)
	}))
	engine.Register("broken", NotifierFunc(func(ctx context.Context, subject, body string) error {
		order = append(order, "broken")
		return broken.Send(ctx, subject, body)
	}))
	engine.Register("last", NotifierFunc(func(ctx context.Context, subject, body string) error {
		order = append(order, "last")
		return last.Send(ctx, subject, body)
	}))

	notification, err := engine.Run(context.Background(), []flakeanalyticsapi.WeeklyFlakeInsight{
		insight("2024-01-01", 0.5, nil, nil, false),
	})
	if notification == nil {
		t.Fatal("expected a notification")
	}
	if err == nil || !strings.Contains(err.Error(), "channel broken: connection refused") {
		t.Errorf("expected the broken channel to be reported, got %v", err)
	}
	if diff := cmp.Diff([]string{"first", "broken", "last"}, order); diff != "" {
		t.Errorf("unexpected delivery order: %s", diff)
	}
	if len(last.sent) != 1 || last.sent[0] != RuleHighFlakeRate {
		t.Errorf("expected the channel after the broken one to be notified, got %v", last.sent)
	}
	var logged bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel && entry.Data["channel"] == "broken" {
			logged = true
		}
	}
	if !logged {
		t.Error("expected the failure to be logged")
	}
}

func TestEngineRunWithoutAlert(t *testing.T) {
	logger, _ := test.NewNullLogger()
	engine := NewEngine(flakeanalyticsapi.DefaultThresholdConfig(), logrus.NewEntry(logger))
	notifier := &recordingNotifier{}
	engine.Register("only", notifier)

	notification, err := engine.Run(context.Background(), nil)
	if err != nil || notification != nil {
		t.Errorf("expected silence, got %v, %v", notification, err)
	}
	if len(notifier.sent) != 0 {
		t.Errorf("expected no deliveries, got %v", notifier.sent)
	}
	if diff := cmp.Diff([]string{"only"}, engine.Channels()); diff != "" {
		t.Errorf("unexpected channels: %s", diff)
	}
}
