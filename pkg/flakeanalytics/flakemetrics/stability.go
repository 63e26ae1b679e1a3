package flakemetrics

import (
	"sort"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
)

// ComputeStabilityWindows computes, for every run, the stability of each trailing
// window in flakeanalyticsapi.StabilityWindowLengths. A window ending at a run
// executed at t covers every run of the same test executed in (t-length, t],
// including runs sharing the timestamp t. Results are ordered by test name and
// then execution time.
func ComputeStabilityWindows(dataset flakeanalyticsapi.RunDataset) ([]flakeanalyticsapi.StabilityWindow, error) {
	if err := dataset.Schema.Require("stability computation",
		flakeanalyticsapi.ColumnTestName, flakeanalyticsapi.ColumnExecutedAt, flakeanalyticsapi.ColumnFailed); err != nil {
		return nil, err
	}

	names, byTest := groupByTest(dataset.Records)
	ret := make([]flakeanalyticsapi.StabilityWindow, 0, len(dataset.Records))
	for _, name := range names {
		ret = append(ret, stabilityForTest(name, byTest[name], flakeanalyticsapi.StabilityWindowLengths)...)
	}
	return ret, nil
}

// groupByTest copies records into per-test slices sorted by execution time. Runs
// with equal timestamps keep their input order.
func groupByTest(records []flakeanalyticsapi.RunRecord) ([]string, map[string][]flakeanalyticsapi.RunRecord) {
	byTest := map[string][]flakeanalyticsapi.RunRecord{}
	for _, record := range records {
		byTest[record.TestName] = append(byTest[record.TestName], record)
	}
	names := make([]string, 0, len(byTest))
	for name, runs := range byTest {
		sort.SliceStable(runs, func(i, j int) bool {
			return runs[i].ExecutedAt.Before(runs[j].ExecutedAt)
		})
		names = append(names, name)
	}
	sort.Strings(names)
	return names, byTest
}

// stabilityForTest expects runs of a single test sorted by execution time.
func stabilityForTest(testName string, runs []flakeanalyticsapi.RunRecord, lengths []flakeanalyticsapi.StabilityWindowLength) []flakeanalyticsapi.StabilityWindow {
	failedPrefix := make([]int, len(runs)+1)
	for i, run := range runs {
		failedPrefix[i+1] = failedPrefix[i]
		if run.Failed {
			failedPrefix[i+1]++
		}
	}

	// tieEnd[i] is the last index executed at the same instant as runs[i]
	tieEnd := make([]int, len(runs))
	for i := len(runs) - 1; i >= 0; i-- {
		if i == len(runs)-1 || !runs[i+1].ExecutedAt.Equal(runs[i].ExecutedAt) {
			tieEnd[i] = i
		} else {
			tieEnd[i] = tieEnd[i+1]
		}
	}

	ret := make([]flakeanalyticsapi.StabilityWindow, len(runs))
	for i, run := range runs {
		ret[i] = flakeanalyticsapi.StabilityWindow{
			TestName:   testName,
			ExecutedAt: run.ExecutedAt,
			Windows:    make([]flakeanalyticsapi.WindowStability, len(lengths)),
		}
	}

	for w, length := range lengths {
		acc := newStabilityAccumulator()
		start := 0
		for i, run := range runs {
			end := tieEnd[i]
			windowStart := run.ExecutedAt.Add(-length.Length)
			for start <= end && !runs[start].ExecutedAt.After(windowStart) {
				start++
			}
			total := end - start + 1
			failed := failedPrefix[end+1] - failedPrefix[start]
			ret[i].Windows[w] = acc.observe(length.Name, failed, total)
		}
	}
	return ret
}

// stabilityAccumulator carries the last known stability of one test forward
// over windows that contain no runs. It starts out perfectly stable.
type stabilityAccumulator struct {
	last float64
}

func newStabilityAccumulator() *stabilityAccumulator {
	return &stabilityAccumulator{last: 1.0}
}

func (a *stabilityAccumulator) observe(name string, failed, total int) flakeanalyticsapi.WindowStability {
	ret := flakeanalyticsapi.WindowStability{
		Name:       name,
		FailedRuns: failed,
		TotalRuns:  total,
		Stability:  a.last,
	}
	if total == 0 {
		return ret
	}
	a.last = 1.0 - float64(failed)/float64(total)
	ret.Stability = a.last
	return ret
}
