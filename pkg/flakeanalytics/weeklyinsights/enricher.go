package weeklyinsights

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
)

const (
	// DefaultZScoreThreshold is the absolute Z-score at which a week is flagged anomalous.
	DefaultZScoreThreshold = 2.5

	// rateTolerance is how close to zero a flake rate must be to be treated as zero.
	rateTolerance = 1e-12

	minimumHistory = 2
)

// EnrichWeeklySamples sorts the samples by week and derives, in chronological order,
// the week-over-week delta, the Z-score against all earlier weeks and the anomaly
// flag of every week. The input slice is not reordered.
func EnrichWeeklySamples(samples []flakeanalyticsapi.WeeklyFlakeSample, zScoreThreshold float64) []flakeanalyticsapi.WeeklyFlakeInsight {
	ordered := make([]flakeanalyticsapi.WeeklyFlakeSample, len(samples))
	copy(ordered, samples)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].WeekStart.Equal(ordered[j].WeekStart) {
			return ordered[i].WeekStart.Before(ordered[j].WeekStart)
		}
		// equal weeks must not depend on input order
		if ordered[i].TestRuns != ordered[j].TestRuns {
			return ordered[i].TestRuns < ordered[j].TestRuns
		}
		return ordered[i].FlakeFailures < ordered[j].FlakeFailures
	})

	ret := make([]flakeanalyticsapi.WeeklyFlakeInsight, 0, len(ordered))
	history := make([]float64, 0, len(ordered))
	for i, sample := range ordered {
		rate := sample.FlakeRate()
		insight := flakeanalyticsapi.WeeklyFlakeInsight{
			WeeklyFlakeSample: sample,
			FlakeRate:         rate,
		}
		if i > 0 {
			delta := weekOverWeekDelta(history[len(history)-1], rate)
			insight.WowDelta = &delta
		}
		if z, ok := zScore(rate, history); ok {
			insight.ZScore = &z
			insight.IsAnomalous = math.Abs(z) >= zScoreThreshold
		}
		ret = append(ret, insight)
		history = append(history, rate)
	}
	return ret
}

func weekOverWeekDelta(previous, current float64) float64 {
	if math.Abs(previous) <= rateTolerance {
		if current > rateTolerance {
			return math.Inf(1)
		}
		return 0
	}
	return (current - previous) / previous
}

// zScore scores rate against the rates of strictly earlier weeks.
func zScore(rate float64, history []float64) (float64, bool) {
	if len(history) < minimumHistory {
		return 0, false
	}
	mean, err := stats.Mean(history)
	if err != nil {
		return 0, false
	}
	stdev, err := stats.StandardDeviationPopulation(history)
	if err != nil || stdev <= rateTolerance {
		return 0, false
	}
	return (rate - mean) / stdev, true
}
