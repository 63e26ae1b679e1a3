package escalator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/andygrunwald/go-jira"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"

	clocktesting "k8s.io/utils/clock/testing"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/escalation"
	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/groupstore"
)

type fakeFiler struct {
	summaries []string
}

func (f *fakeFiler) FileIssue(summary, _ string, _ *logrus.Entry) (*jira.Issue, error) {
	f.summaries = append(f.summaries, summary)
	return &jira.Issue{Key: "FLAKE-1", Self: "https://issues.example.com/rest/api/2/issue/FLAKE-1"}, nil
}

func at(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t
}

func observe(t *testing.T, store *groupstore.Store, id, first, latest string) {
	t.Helper()
	key := flakeanalyticsapi.FailureGroupKey{RootCauseGroupID: id, Platform: "linux", Team: "payments"}
	groups := []flakeanalyticsapi.FailureGroup{{FailureGroupKey: key, FailureCount: 2, AffectedTests: 1, LatestFailureAt: at(latest)}}
	runs := []flakeanalyticsapi.FailureGroupRun{
		{RootCauseGroupID: id, Platform: "linux", Team: "payments", TestName: "checkout", ExecutedAt: at(latest), FailureReason: "TimeoutError"},
		{RootCauseGroupID: id, Platform: "linux", Team: "payments", TestName: "checkout", ExecutedAt: at(first), FailureReason: "TimeoutError"},
	}
	if err := store.Observe(context.Background(), groups, runs); err != nil {
		t.Fatalf("failed to observe group %s: %v", id, err)
	}
}

func TestEscalateRun(t *testing.T) {
	ctx := context.Background()
	store, err := groupstore.Open(ctx, filepath.Join(t.TempDir(), "groups.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	observe(t, store, "stale", "2024-01-01T00:00:00Z", "2024-01-05T00:00:00Z")
	observe(t, store, "overdue", "2024-01-08T00:00:00Z", "2024-01-19T00:00:00Z")

	now := at("2024-01-20T00:00:00Z")
	fakeClock := clocktesting.NewFakeClock(now)
	filer := &fakeFiler{}
	o := &EscalateOptions{
		store:        store,
		escalator:    escalation.NewEscalator(filer, fakeClock, escalation.DefaultSLADays, logrus.NewEntry(logrus.StandardLogger())),
		clock:        fakeClock,
		resolveAfter: 7 * 24 * time.Hour,
	}
	if err := o.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"Flake group overdue unresolved"}, filer.summaries); diff != "" {
		t.Errorf("unexpected filed tickets: %s", diff)
	}

	groups, err := store.List(ctx, false)
	if err != nil {
		t.Fatalf("failed to list groups: %v", err)
	}
	byID := map[string]flakeanalyticsapi.RootCauseGroup{}
	for _, group := range groups {
		byID[group.RootCauseGroupID] = group
	}
	if stale := byID["stale"]; stale.IsUnresolved() || stale.JiraTicket != nil {
		t.Errorf("expected the stale group to be resolved without a ticket, got %+v", stale)
	}
	expectedTicket := &flakeanalyticsapi.JiraTicketMetadata{
		Key:       "FLAKE-1",
		CreatedAt: now,
		URL:       "https://issues.example.com/rest/api/2/issue/FLAKE-1",
	}
	if diff := cmp.Diff(expectedTicket, byID["overdue"].JiraTicket); diff != "" {
		t.Errorf("unexpected stored ticket: %s", diff)
	}

	// a second run reuses the stored ticket
	if err := o.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(filer.summaries) != 1 {
		t.Errorf("expected no additional tickets, filed %v", filer.summaries)
	}
}
