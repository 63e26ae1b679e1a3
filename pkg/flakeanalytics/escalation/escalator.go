package escalation

import (
	"fmt"

	"github.com/sirupsen/logrus"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/utils/clock"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
)

const unknownIssueKey = "UNKNOWN"

// Escalator makes sure every group past its SLA has a Jira ticket.
type Escalator struct {
	filer   IssueFiler
	clock   clock.PassiveClock
	slaDays int
	logger  *logrus.Entry
}

func NewEscalator(filer IssueFiler, clock clock.PassiveClock, slaDays int, logger *logrus.Entry) *Escalator {
	return &Escalator{filer: filer, clock: clock, slaDays: slaDays, logger: logger}
}

// EnsureTickets returns the ticket of every group exceeding the SLA, filing one
// where the group has none yet, together with the escalated groups carrying
// their ticket references. Groups that could not be filed are skipped and
// reported in the returned error.
func (e *Escalator) EnsureTickets(groups []flakeanalyticsapi.RootCauseGroup) ([]flakeanalyticsapi.JiraTicketMetadata, []flakeanalyticsapi.RootCauseGroup, error) {
	var tickets []flakeanalyticsapi.JiraTicketMetadata
	var escalated []flakeanalyticsapi.RootCauseGroup
	var errs []error
	for _, group := range GroupsExceedingSLA(groups, e.slaDays, e.clock.Now()) {
		logger := e.logger.WithField("group", group.RootCauseGroupID)
		if group.JiraTicket != nil {
			logger.WithField("ticket", group.JiraTicket.Key).Debug("Group already has a ticket.")
			tickets = append(tickets, *group.JiraTicket)
			escalated = append(escalated, group)
			continue
		}

		issue, err := e.filer.FileIssue(TicketSummary(group), TicketDescription(group), logger)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to file ticket for group %s: %w", group.RootCauseGroupID, err))
			continue
		}
		ticket := flakeanalyticsapi.JiraTicketMetadata{
			Key:       unknownIssueKey,
			CreatedAt: e.clock.Now().UTC(),
		}
		if issue != nil {
			if issue.Key != "" {
				ticket.Key = issue.Key
			}
			ticket.URL = issue.Self
		}
		logger.WithField("ticket", ticket.Key).Info("Filed ticket for unresolved group.")
		group.JiraTicket = &ticket
		tickets = append(tickets, ticket)
		escalated = append(escalated, group)
	}
	return tickets, escalated, utilerrors.NewAggregate(errs)
}
