package escalation

import (
	"fmt"

	"github.com/andygrunwald/go-jira"
	"github.com/sirupsen/logrus"
)

const IssueTypeBug = "Bug"

// IssueFiler knows how to file an issue in Jira
type IssueFiler interface {
	FileIssue(summary, description string, logger *logrus.Entry) (*jira.Issue, error)
}

// this adapter is needed since none of the upstream types
// are interfaces
type jiraAdapter struct {
	delegate *jira.Client
}

func (a *jiraAdapter) CreateIssue(issue *jira.Issue) (*jira.Issue, *jira.Response, error) {
	return a.delegate.Issue.Create(issue)
}

type jiraClient interface {
	CreateIssue(issue *jira.Issue) (*jira.Issue, *jira.Response, error)
}

type filer struct {
	jiraClient jiraClient
	projectKey string
	issueType  string
}

// FileIssue files a bug under the configured project.
func (f *filer) FileIssue(summary, description string, logger *logrus.Entry) (*jira.Issue, error) {
	logger.WithFields(logrus.Fields{
		"summary": summary,
		"project": f.projectKey,
		"type":    f.issueType,
	}).Debug("Filing Jira issue.")
	toCreate := &jira.Issue{Fields: &jira.IssueFields{
		Project:     jira.Project{Key: f.projectKey},
		Type:        jira.IssueType{Name: f.issueType},
		Summary:     summary,
		Description: description,
	}}
	issue, response, err := f.jiraClient.CreateIssue(toCreate)
	if err != nil {
		return nil, jira.NewJiraError(response, err)
	}
	return issue, nil
}

// NewIssueFiler authenticates against endpoint with basic auth and files bugs
// under projectKey.
func NewIssueFiler(endpoint, username, password, projectKey string) (IssueFiler, error) {
	transport := jira.BasicAuthTransport{Username: username, Password: password}
	client, err := jira.NewClient(transport.Client(), endpoint)
	if err != nil {
		return nil, fmt.Errorf("could not create Jira client for %s: %w", endpoint, err)
	}
	return &filer{
		jiraClient: &jiraAdapter{delegate: client},
		projectKey: projectKey,
		issueType:  IssueTypeBug,
	}, nil
}
