package escalator

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"k8s.io/utils/clock"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/escalation"
	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/groupstore"
)

type EscalateOptions struct {
	store        *groupstore.Store
	escalator    escalation.TicketEnsurer
	clock        clock.PassiveClock
	resolveAfter time.Duration
}

func (o *EscalateOptions) Run(ctx context.Context) error {
	if o.resolveAfter > 0 {
		now := o.clock.Now()
		resolved, err := o.store.ResolveStale(ctx, now.Add(-o.resolveAfter), now)
		if err != nil {
			return fmt.Errorf("failed to resolve stale groups: %w", err)
		}
		logrus.Infof("Resolved %d groups not observed for %s.", resolved, o.resolveAfter)
	}

	tickets, err := escalation.EnsureRecordedTickets(ctx, o.store, o.escalator)
	for _, ticket := range tickets {
		logrus.WithFields(logrus.Fields{"ticket": ticket.Key, "url": ticket.URL}).Info("Group is escalated.")
	}
	return err
}

func (o *EscalateOptions) Close() {
	if err := o.store.Close(); err != nil {
		logrus.WithError(err).Warn("Failed to close group store.")
	}
}
