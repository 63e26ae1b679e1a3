package flakemetrics

import (
	"sort"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
)

// ComputeFailureGroupSummaries groups the failed records of a dataset, which must
// already carry the failed flag, by platform, team and root cause signature.
// Groups are sorted by failure count, largest first. A dataset without failures
// yields an empty, non-nil slice.
func ComputeFailureGroupSummaries(dataset flakeanalyticsapi.RunDataset) ([]flakeanalyticsapi.FailureGroup, error) {
	if err := dataset.Schema.Require("failure grouping",
		flakeanalyticsapi.ColumnFailed, flakeanalyticsapi.ColumnPlatform, flakeanalyticsapi.ColumnTeam); err != nil {
		return nil, err
	}

	ret := []flakeanalyticsapi.FailureGroup{}
	failed := dataset.FailedRecords()
	if len(failed) == 0 {
		return ret, nil
	}
	ids, err := AssignRootCauseGroupIDs(flakeanalyticsapi.RunDataset{Schema: dataset.Schema, Records: failed})
	if err != nil {
		return nil, err
	}

	type accumulator struct {
		group flakeanalyticsapi.FailureGroup
		tests sets.Set[string]
	}
	byKey := map[flakeanalyticsapi.FailureGroupKey]*accumulator{}
	for i, record := range failed {
		key := flakeanalyticsapi.FailureGroupKey{
			Platform:         record.Platform,
			Team:             record.Team,
			RootCauseGroupID: ids[i],
		}
		acc, ok := byKey[key]
		if !ok {
			acc = &accumulator{
				group: flakeanalyticsapi.FailureGroup{FailureGroupKey: key},
				tests: sets.New[string](),
			}
			byKey[key] = acc
		}
		acc.group.FailureCount++
		acc.tests.Insert(record.TestName)
		if record.ExecutedAt.After(acc.group.LatestFailureAt) {
			acc.group.LatestFailureAt = record.ExecutedAt
		}
	}

	for _, acc := range byKey {
		acc.group.AffectedTests = acc.tests.Len()
		ret = append(ret, acc.group)
	}
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].FailureCount != ret[j].FailureCount {
			return ret[i].FailureCount > ret[j].FailureCount
		}
		return lessKey(ret[i].FailureGroupKey, ret[j].FailureGroupKey)
	})
	return ret, nil
}

func lessKey(a, b flakeanalyticsapi.FailureGroupKey) bool {
	if a.Platform != b.Platform {
		return a.Platform < b.Platform
	}
	if a.Team != b.Team {
		return a.Team < b.Team
	}
	return a.RootCauseGroupID < b.RootCauseGroupID
}

// BuildFailureGroupRuns lists every failed record with its root cause signature,
// most recent first. A dataset without failures yields an empty, non-nil slice.
func BuildFailureGroupRuns(dataset flakeanalyticsapi.RunDataset) ([]flakeanalyticsapi.FailureGroupRun, error) {
	if err := dataset.Schema.Require("failure drill-down", flakeanalyticsapi.ColumnFailed); err != nil {
		return nil, err
	}

	ret := []flakeanalyticsapi.FailureGroupRun{}
	failed := dataset.FailedRecords()
	if len(failed) == 0 {
		return ret, nil
	}
	ids, err := AssignRootCauseGroupIDs(flakeanalyticsapi.RunDataset{Schema: dataset.Schema, Records: failed})
	if err != nil {
		return nil, err
	}

	for i, record := range failed {
		ret = append(ret, flakeanalyticsapi.FailureGroupRun{
			RootCauseGroupID: ids[i],
			TestName:         record.TestName,
			RunID:            record.RunID,
			ExecutedAt:       record.ExecutedAt,
			RunURL:           record.RunURL,
			LogPath:          record.LogPath,
			FailureReason:    record.FailureReason,
			Platform:         record.Platform,
			Team:             record.Team,
		})
	}
	sort.SliceStable(ret, func(i, j int) bool {
		return ret[i].ExecutedAt.After(ret[j].ExecutedAt)
	})
	return ret, nil
}
