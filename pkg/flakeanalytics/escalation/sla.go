package escalation

import (
	"fmt"
	"time"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
)

// DefaultSLADays is how long a group may stay unresolved before it is escalated.
const DefaultSLADays = 5

// GroupsExceedingSLA selects the unresolved groups first observed at least slaDays
// before now, preserving input order.
func GroupsExceedingSLA(groups []flakeanalyticsapi.RootCauseGroup, slaDays int, now time.Time) []flakeanalyticsapi.RootCauseGroup {
	deadline := time.Duration(slaDays) * 24 * time.Hour
	var ret []flakeanalyticsapi.RootCauseGroup
	for _, group := range groups {
		if group.IsUnresolved() && now.Sub(group.CreatedAt) >= deadline {
			ret = append(ret, group)
		}
	}
	return ret
}

func TicketSummary(group flakeanalyticsapi.RootCauseGroup) string {
	return fmt.Sprintf("Flake group %s unresolved", group.RootCauseGroupID)
}

func TicketDescription(group flakeanalyticsapi.RootCauseGroup) string {
	return fmt.Sprintf("Automated escalation triggered because the root-cause group '%s' has been unresolved since %s",
		group.Summary, group.CreatedAt.UTC().Format(time.RFC3339))
}
