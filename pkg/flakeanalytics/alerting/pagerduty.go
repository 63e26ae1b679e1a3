package alerting

import (
	"context"
	"fmt"

	"github.com/PagerDuty/go-pagerduty"
)

const pagerDutySource = "flake-analytics"

// manageEvent is swapped in tests.
var manageEvent = pagerduty.ManageEvent

// PagerDutyNotifier triggers an Events API v2 incident per alert.
type PagerDutyNotifier struct {
	RoutingKey string
	Severity   string
}

func (n *PagerDutyNotifier) Send(_ context.Context, subject, body string) error {
	severity := n.Severity
	if severity == "" {
		severity = "warning"
	}
	event := pagerduty.V2Event{
		RoutingKey: n.RoutingKey,
		Action:     "trigger",
		Payload: &pagerduty.V2Payload{
			Summary:  subject,
			Source:   pagerDutySource,
			Severity: severity,
			Details:  map[string]string{"body": body},
		},
	}
	if _, err := manageEvent(event); err != nil {
		return fmt.Errorf("failed to trigger pagerduty event: %w", err)
	}
	return nil
}
