package weeklyinsights

import (
	"sort"
	"time"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
)

// WeekStart truncates t to Monday 00:00 UTC of its ISO week.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -daysSinceMonday)
}

// AggregateWeeklySamples folds a run history into one sample per week. Weeks are
// returned in chronological order; weeks without runs are not emitted.
func AggregateWeeklySamples(dataset flakeanalyticsapi.RunDataset) ([]flakeanalyticsapi.WeeklyFlakeSample, error) {
	if err := dataset.Schema.Require("weekly aggregation", flakeanalyticsapi.ColumnExecutedAt, flakeanalyticsapi.ColumnStatus); err != nil {
		return nil, err
	}

	byWeek := map[time.Time]*flakeanalyticsapi.WeeklyFlakeSample{}
	for _, record := range dataset.Records {
		week := WeekStart(record.ExecutedAt)
		sample, ok := byWeek[week]
		if !ok {
			sample = &flakeanalyticsapi.WeeklyFlakeSample{WeekStart: week}
			byWeek[week] = sample
		}
		sample.TestRuns++
		if flakeanalyticsapi.IsFailureStatus(record.Status) {
			sample.FlakeFailures++
		}
	}

	ret := make([]flakeanalyticsapi.WeeklyFlakeSample, 0, len(byWeek))
	for _, sample := range byWeek {
		ret = append(ret, *sample)
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].WeekStart.Before(ret[j].WeekStart)
	})
	return ret, nil
}
