package flakeanalyticsapi

import "time"

const (
	Stability7DayColumn  = "stability_7d"
	Stability30DayColumn = "stability_30d"
)

// StabilityWindowLength is one trailing window the stability calculator evaluates.
type StabilityWindowLength struct {
	Name   string
	Length time.Duration
}

// StabilityWindowLengths are evaluated for every run, in this order.
var StabilityWindowLengths = []StabilityWindowLength{
	{Name: Stability7DayColumn, Length: 7 * 24 * time.Hour},
	{Name: Stability30DayColumn, Length: 30 * 24 * time.Hour},
}

// WindowStability holds the counts of one trailing window ending at a run.
type WindowStability struct {
	Name       string  `json:"name"`
	FailedRuns int     `json:"failed_runs"`
	TotalRuns  int     `json:"total_runs"`
	Stability  float64 `json:"stability"`
}

// StabilityWindow is computed for every run of a test; Windows follows the
// order of StabilityWindowLengths.
type StabilityWindow struct {
	TestName   string            `json:"test_name"`
	ExecutedAt time.Time         `json:"executed_at"`
	Windows    []WindowStability `json:"windows"`
}

// Stability returns the stability of the named window, or 1.0 when absent.
func (w StabilityWindow) Stability(name string) float64 {
	for _, window := range w.Windows {
		if window.Name == name {
			return window.Stability
		}
	}
	return 1.0
}

type PerTestFlakeMetric struct {
	TestName     string  `json:"test_name"`
	TotalRuns    int     `json:"total_runs"`
	FailedRuns   int     `json:"failed_runs"`
	FlakeRate    float64 `json:"flake_rate"`
	Stability7d  float64 `json:"stability_7d"`
	Stability30d float64 `json:"stability_30d"`
	Platform     string  `json:"platform,omitempty"`
	Team         string  `json:"team,omitempty"`
}

// PerTestFlakeMetricColumns is the column set of a per-test metrics export.
var PerTestFlakeMetricColumns = []string{
	"test_name",
	"total_runs",
	"failed_runs",
	"flake_rate",
	Stability7DayColumn,
	Stability30DayColumn,
	"platform",
	"team",
}

type FailureGroupKey struct {
	Platform         string `json:"platform"`
	Team             string `json:"team"`
	RootCauseGroupID string `json:"root_cause_group_id"`
}

type FailureGroup struct {
	FailureGroupKey
	FailureCount    int       `json:"failure_count"`
	AffectedTests   int       `json:"affected_tests"`
	LatestFailureAt time.Time `json:"latest_failure_at"`
}

// FailureGroupColumns is the column set of a failure group export, present even
// when there are no rows.
var FailureGroupColumns = []string{
	"platform",
	"team",
	"root_cause_group_id",
	"failure_count",
	"affected_tests",
	"latest_failure_at",
}

// FailureGroupRun is the drill-down row behind a FailureGroup.
type FailureGroupRun struct {
	RootCauseGroupID string    `json:"root_cause_group_id"`
	TestName         string    `json:"test_name"`
	RunID            string    `json:"run_id"`
	ExecutedAt       time.Time `json:"executed_at"`
	RunURL           string    `json:"run_url"`
	LogPath          string    `json:"log_path"`
	FailureReason    string    `json:"failure_reason"`
	Platform         string    `json:"platform"`
	Team             string    `json:"team"`
}

var FailureGroupRunColumns = []string{
	"root_cause_group_id",
	"test_name",
	"run_id",
	"executed_at",
	"run_url",
	"log_path",
	"failure_reason",
	"platform",
	"team",
}

// EngineOutputs are the results of one pass of the engine over a run history.
type EngineOutputs struct {
	PerTest          []PerTestFlakeMetric `json:"per_test"`
	FailureGroups    []FailureGroup       `json:"failure_groups"`
	FailureGroupRuns []FailureGroupRun    `json:"failure_group_runs"`
}
