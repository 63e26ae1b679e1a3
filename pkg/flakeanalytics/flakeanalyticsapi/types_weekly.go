package flakeanalyticsapi

import "time"

// WeeklyFlakeSample is one calendar week of externally aggregated runs.
type WeeklyFlakeSample struct {
	WeekStart     time.Time `json:"week_start"`
	TestRuns      int       `json:"test_runs"`
	FlakeFailures int       `json:"flake_failures"`
}

// FlakeRate is FlakeFailures/TestRuns, or 0 for a week without runs.
func (s WeeklyFlakeSample) FlakeRate() float64 {
	if s.TestRuns == 0 {
		return 0
	}
	return float64(s.FlakeFailures) / float64(s.TestRuns)
}

type WeeklyFlakeInsight struct {
	WeeklyFlakeSample
	FlakeRate float64 `json:"flake_rate"`
	// WowDelta is nil for the first week and +Inf for a jump from a zero rate.
	WowDelta *float64 `json:"wow_delta"`
	// ZScore is nil until two prior weeks with non-zero variance exist.
	ZScore      *float64 `json:"z_score"`
	IsAnomalous bool     `json:"is_anomalous"`
}

// WeeklyFlakeInsightColumns is the column set of an insight export.
var WeeklyFlakeInsightColumns = []string{
	"week_start",
	"test_runs",
	"flake_failures",
	"flake_rate",
	"wow_delta",
	"z_score",
	"is_anomalous",
}

const (
	DefaultMaxFlakeRate = 0.05
	DefaultMaxWowDelta  = 0.5
	DefaultMaxZScore    = 3.0
)

// ThresholdConfig holds independent ceilings; reaching any one of them alerts.
type ThresholdConfig struct {
	MaxFlakeRate float64 `json:"maxFlakeRate"`
	MaxWowDelta  float64 `json:"maxWowDelta"`
	MaxZScore    float64 `json:"maxZScore"`
}

func DefaultThresholdConfig() ThresholdConfig {
	return ThresholdConfig{
		MaxFlakeRate: DefaultMaxFlakeRate,
		MaxWowDelta:  DefaultMaxWowDelta,
		MaxZScore:    DefaultMaxZScore,
	}
}
