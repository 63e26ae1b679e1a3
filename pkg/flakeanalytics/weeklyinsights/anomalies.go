package weeklyinsights

import (
	"sort"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
)

// DefaultAnomalyLimit bounds how many anomalous weeks accompany an alert.
const DefaultAnomalyLimit = 5

// LatestAnomalies returns up to limit anomalous weeks, most recent first. A
// non-positive limit means DefaultAnomalyLimit.
func LatestAnomalies(insights []flakeanalyticsapi.WeeklyFlakeInsight, limit int) []flakeanalyticsapi.WeeklyFlakeInsight {
	if limit <= 0 {
		limit = DefaultAnomalyLimit
	}
	var ret []flakeanalyticsapi.WeeklyFlakeInsight
	for _, insight := range insights {
		if insight.IsAnomalous {
			ret = append(ret, insight)
		}
	}
	sort.SliceStable(ret, func(i, j int) bool {
		return ret[i].WeekStart.After(ret[j].WeekStart)
	})
	if len(ret) > limit {
		ret = ret[:limit]
	}
	return ret
}

// Latest returns the insight of the most recent week, if any.
func Latest(insights []flakeanalyticsapi.WeeklyFlakeInsight) (flakeanalyticsapi.WeeklyFlakeInsight, bool) {
	if len(insights) == 0 {
		return flakeanalyticsapi.WeeklyFlakeInsight{}, false
	}
	latest := insights[0]
	for _, insight := range insights[1:] {
		if !insight.WeekStart.Before(latest.WeekStart) {
			latest = insight
		}
	}
	return latest, true
}
