package flakeanalyticsapi

import "time"

// JiraTicketMetadata references the ticket filed for an unresolved group.
type JiraTicketMetadata struct {
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
	URL       string    `json:"url,omitempty"`
}

// RootCauseGroup is the tracked lifecycle of a failure group across invocations.
type RootCauseGroup struct {
	FailureGroupKey
	Summary      string              `json:"summary"`
	CreatedAt    time.Time           `json:"created_at"`
	LastSeenAt   time.Time           `json:"last_seen_at"`
	FailureCount int                 `json:"failure_count"`
	ResolvedAt   *time.Time          `json:"resolved_at,omitempty"`
	JiraTicket   *JiraTicketMetadata `json:"jira_ticket,omitempty"`
}

func (g RootCauseGroup) IsUnresolved() bool {
	return g.ResolvedAt == nil
}
