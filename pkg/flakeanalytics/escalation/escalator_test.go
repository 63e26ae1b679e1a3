package escalation

import (
	"errors"
	"testing"

	"github.com/andygrunwald/go-jira"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	clocktesting "k8s.io/utils/clock/testing"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
)

type fakeFiler struct {
	summaries []string
	failFor   map[string]bool
	next      int
}

func (f *fakeFiler) FileIssue(summary, description string, _ *logrus.Entry) (*jira.Issue, error) {
	f.summaries = append(f.summaries, summary)
	if f.failFor[summary] {
		return nil, errors.New("jira is down")
	}
	f.next++
	key := []string{"", "FLAKE-1", "FLAKE-2", "FLAKE-3"}[f.next]
	return &jira.Issue{Key: key, Self: "https://jira.example/rest/api/2/issue/" + key}, nil
}

func TestEnsureTickets(t *testing.T) {
	now := day("2024-01-10T00:00:00Z")
	existing := group("ticketed", "2024-01-01T00:00:00Z", false)
	existing.JiraTicket = &flakeanalyticsapi.JiraTicketMetadata{Key: "FLAKE-0", CreatedAt: day("2024-01-06T00:00:00Z")}
	groups := []flakeanalyticsapi.RootCauseGroup{
		group("recent", "2024-01-09T00:00:00Z", false),
		existing,
		group("overdue", "2024-01-02T00:00:00Z", false),
		group("resolved", "2024-01-01T00:00:00Z", true),
	}

	filer := &fakeFiler{}
	escalator := NewEscalator(filer, clocktesting.NewFakeClock(now), 5, logrus.NewEntry(logrus.StandardLogger()))
	tickets, escalated, err := escalator.EnsureTickets(groups)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedTickets := []flakeanalyticsapi.JiraTicketMetadata{
		{Key: "FLAKE-0", CreatedAt: day("2024-01-06T00:00:00Z")},
		{Key: "FLAKE-1", CreatedAt: now, URL: "https://jira.example/rest/api/2/issue/FLAKE-1"},
	}
	if diff := cmp.Diff(expectedTickets, tickets); diff != "" {
		t.Errorf("unexpected tickets: %s", diff)
	}
	if diff := cmp.Diff([]string{"Flake group overdue unresolved"}, filer.summaries); diff != "" {
		t.Errorf("unexpected filed issues: %s", diff)
	}
	if len(escalated) != 2 || escalated[1].JiraTicket == nil || escalated[1].JiraTicket.Key != "FLAKE-1" {
		t.Errorf("expected the overdue group to carry its new ticket, got %#v", escalated)
	}
	if groups[2].JiraTicket != nil {
		t.Error("input groups must not be modified")
	}
}

func TestEnsureTicketsReportsFilingFailures(t *testing.T) {
	now := day("2024-01-10T00:00:00Z")
	groups := []flakeanalyticsapi.RootCauseGroup{
		group("broken", "2024-01-01T00:00:00Z", false),
		group("fine", "2024-01-01T00:00:00Z", false),
	}
	filer := &fakeFiler{failFor: map[string]bool{"Flake group broken unresolved": true}}
	escalator := NewEscalator(filer, clocktesting.NewFakeClock(now), 5, logrus.NewEntry(logrus.StandardLogger()))

	tickets, escalated, err := escalator.EnsureTickets(groups)
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(tickets) != 1 || tickets[0].Key != "FLAKE-1" {
		t.Errorf("expected the remaining group to be filed, got %#v", tickets)
	}
	if len(escalated) != 1 || escalated[0].RootCauseGroupID != "fine" {
		t.Errorf("unexpected escalated groups: %#v", escalated)
	}
}

type fakeJiraClient struct {
	created []*jira.Issue
	err     error
}

func (f *fakeJiraClient) CreateIssue(issue *jira.Issue) (*jira.Issue, *jira.Response, error) {
	f.created = append(f.created, issue)
	if f.err != nil {
		return nil, nil, f.err
	}
	return &jira.Issue{Key: "FLAKE-7"}, nil, nil
}

func TestFileIssue(t *testing.T) {
	client := &fakeJiraClient{}
	f := &filer{jiraClient: client, projectKey: "FLAKE", issueType: IssueTypeBug}
	issue, err := f.FileIssue("summary", "description", logrus.NewEntry(logrus.StandardLogger()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if issue.Key != "FLAKE-7" {
		t.Errorf("unexpected issue: %#v", issue)
	}
	fields := client.created[0].Fields
	assert.Equal(t, "FLAKE", fields.Project.Key)
	assert.Equal(t, "Bug", fields.Type.Name)
	assert.Equal(t, "summary", fields.Summary)
	assert.Equal(t, "description", fields.Description)

	client.err = errors.New("forbidden")
	if _, err := f.FileIssue("summary", "description", logrus.NewEntry(logrus.StandardLogger())); err == nil {
		t.Error("expected an error")
	}
}
