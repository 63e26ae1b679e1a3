package flakeanalyticsapi

import (
	"time"

	"cloud.google.com/go/bigquery"
)

const (
	RunRecordsTableName       = "TestRunRecords"
	PerTestFlakeMetricsTable  = "PerTestFlakeMetrics"
	FailureGroupsTableName    = "FailureGroups"
	FailureGroupRunsTableName = "FailureGroupRuns"
)

// RunRecordRow is how run history is stored in BigQuery. Every column exists in
// the table, individual values may be NULL.
type RunRecordRow struct {
	TestName       string              `bigquery:"test_name"`
	ExecutedAt     time.Time           `bigquery:"executed_at"`
	Status         string              `bigquery:"status"`
	FailureReason  bigquery.NullString `bigquery:"failure_reason"`
	StackTraceHash bigquery.NullString `bigquery:"stack_trace_hash"`
	ErrorCode      bigquery.NullString `bigquery:"error_code"`
	Platform       bigquery.NullString `bigquery:"platform"`
	Team           bigquery.NullString `bigquery:"team"`
	RunID          bigquery.NullString `bigquery:"run_id"`
	RunURL         bigquery.NullString `bigquery:"run_url"`
	LogPath        bigquery.NullString `bigquery:"log_path"`
}

func (r RunRecordRow) ToRunRecord() RunRecord {
	return RunRecord{
		TestName:       r.TestName,
		ExecutedAt:     r.ExecutedAt.UTC(),
		Status:         r.Status,
		FailureReason:  r.FailureReason.StringVal,
		StackTraceHash: r.StackTraceHash.StringVal,
		ErrorCode:      r.ErrorCode.StringVal,
		Platform:       r.Platform.StringVal,
		Team:           r.Team.StringVal,
		RunID:          r.RunID.StringVal,
		RunURL:         r.RunURL.StringVal,
		LogPath:        r.LogPath.StringVal,
	}
}

// WeeklyFlakeSampleRow is the result row of the weekly aggregation query.
type WeeklyFlakeSampleRow struct {
	WeekStart     time.Time `bigquery:"week_start"`
	TestRuns      int64     `bigquery:"test_runs"`
	FlakeFailures int64     `bigquery:"flake_failures"`
}

func (r WeeklyFlakeSampleRow) ToSample() WeeklyFlakeSample {
	return WeeklyFlakeSample{
		WeekStart:     r.WeekStart.UTC(),
		TestRuns:      int(r.TestRuns),
		FlakeFailures: int(r.FlakeFailures),
	}
}

type PerTestFlakeMetricRow struct {
	ComputedAt   time.Time           `bigquery:"computed_at"`
	TestName     string              `bigquery:"test_name"`
	TotalRuns    int64               `bigquery:"total_runs"`
	FailedRuns   int64               `bigquery:"failed_runs"`
	FlakeRate    float64             `bigquery:"flake_rate"`
	Stability7d  float64             `bigquery:"stability_7d"`
	Stability30d float64             `bigquery:"stability_30d"`
	Platform     bigquery.NullString `bigquery:"platform"`
	Team         bigquery.NullString `bigquery:"team"`
}

func NewPerTestFlakeMetricRow(computedAt time.Time, m PerTestFlakeMetric) *PerTestFlakeMetricRow {
	return &PerTestFlakeMetricRow{
		ComputedAt:   computedAt,
		TestName:     m.TestName,
		TotalRuns:    int64(m.TotalRuns),
		FailedRuns:   int64(m.FailedRuns),
		FlakeRate:    m.FlakeRate,
		Stability7d:  m.Stability7d,
		Stability30d: m.Stability30d,
		Platform:     nullString(m.Platform),
		Team:         nullString(m.Team),
	}
}

type FailureGroupRow struct {
	ComputedAt       time.Time `bigquery:"computed_at"`
	Platform         string    `bigquery:"platform"`
	Team             string    `bigquery:"team"`
	RootCauseGroupID string    `bigquery:"root_cause_group_id"`
	FailureCount     int64     `bigquery:"failure_count"`
	AffectedTests    int64     `bigquery:"affected_tests"`
	LatestFailureAt  time.Time `bigquery:"latest_failure_at"`
}

func NewFailureGroupRow(computedAt time.Time, g FailureGroup) *FailureGroupRow {
	return &FailureGroupRow{
		ComputedAt:       computedAt,
		Platform:         g.Platform,
		Team:             g.Team,
		RootCauseGroupID: g.RootCauseGroupID,
		FailureCount:     int64(g.FailureCount),
		AffectedTests:    int64(g.AffectedTests),
		LatestFailureAt:  g.LatestFailureAt,
	}
}

type FailureGroupRunRow struct {
	ComputedAt       time.Time           `bigquery:"computed_at"`
	RootCauseGroupID string              `bigquery:"root_cause_group_id"`
	TestName         string              `bigquery:"test_name"`
	RunID            bigquery.NullString `bigquery:"run_id"`
	ExecutedAt       time.Time           `bigquery:"executed_at"`
	RunURL           bigquery.NullString `bigquery:"run_url"`
	LogPath          bigquery.NullString `bigquery:"log_path"`
	FailureReason    bigquery.NullString `bigquery:"failure_reason"`
	Platform         string              `bigquery:"platform"`
	Team             string              `bigquery:"team"`
}

func NewFailureGroupRunRow(computedAt time.Time, r FailureGroupRun) *FailureGroupRunRow {
	return &FailureGroupRunRow{
		ComputedAt:       computedAt,
		RootCauseGroupID: r.RootCauseGroupID,
		TestName:         r.TestName,
		RunID:            nullString(r.RunID),
		ExecutedAt:       r.ExecutedAt,
		RunURL:           nullString(r.RunURL),
		LogPath:          nullString(r.LogPath),
		FailureReason:    nullString(r.FailureReason),
		Platform:         r.Platform,
		Team:             r.Team,
	}
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: len(s) > 0}
}
