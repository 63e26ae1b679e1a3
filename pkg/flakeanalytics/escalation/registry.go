package escalation

import (
	"context"
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
)

// GroupRegistry persists root-cause groups and their ticket references.
type GroupRegistry interface {
	List(ctx context.Context, unresolvedOnly bool) ([]flakeanalyticsapi.RootCauseGroup, error)
	SetTicket(ctx context.Context, key flakeanalyticsapi.FailureGroupKey, ticket flakeanalyticsapi.JiraTicketMetadata) error
}

// TicketEnsurer is implemented by Escalator.
type TicketEnsurer interface {
	EnsureTickets(groups []flakeanalyticsapi.RootCauseGroup) ([]flakeanalyticsapi.JiraTicketMetadata, []flakeanalyticsapi.RootCauseGroup, error)
}

var _ TicketEnsurer = &Escalator{}

// EnsureRecordedTickets ensures tickets for the unresolved groups of the registry
// and stores every ticket reference back onto its group. Tickets that were filed
// are returned even when others failed.
func EnsureRecordedTickets(ctx context.Context, registry GroupRegistry, ensurer TicketEnsurer) ([]flakeanalyticsapi.JiraTicketMetadata, error) {
	groups, err := registry.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list unresolved groups: %w", err)
	}

	tickets, escalated, err := ensurer.EnsureTickets(groups)
	var errs []error
	if err != nil {
		errs = append(errs, err)
	}
	for _, group := range escalated {
		if group.JiraTicket == nil {
			continue
		}
		if err := registry.SetTicket(ctx, group.FailureGroupKey, *group.JiraTicket); err != nil {
			errs = append(errs, fmt.Errorf("failed to record ticket %s for group %s: %w", group.JiraTicket.Key, group.RootCauseGroupID, err))
		}
	}
	return tickets, utilerrors.NewAggregate(errs)
}
