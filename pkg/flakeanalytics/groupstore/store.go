package groupstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
)

// timeFormat is fixed width so that stored timestamps order lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}

func parseTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Store is the registry of root cause groups observed across invocations.
type Store struct {
	db *sql.DB
}

// Open opens the SQLite database at path and runs migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type observation struct {
	firstFailure time.Time
	summary      string
}

// observations derives, per group key, the earliest failure and the reason of the
// most recent failure from drill-down rows ordered most recent first.
func observations(runs []flakeanalyticsapi.FailureGroupRun) map[flakeanalyticsapi.FailureGroupKey]observation {
	ret := map[flakeanalyticsapi.FailureGroupKey]observation{}
	for _, run := range runs {
		key := flakeanalyticsapi.FailureGroupKey{Platform: run.Platform, Team: run.Team, RootCauseGroupID: run.RootCauseGroupID}
		o, ok := ret[key]
		if !ok {
			o = observation{firstFailure: run.ExecutedAt, summary: run.FailureReason}
		}
		if run.ExecutedAt.Before(o.firstFailure) {
			o.firstFailure = run.ExecutedAt
		}
		ret[key] = o
	}
	return ret
}

// Observe records the groups of one computation. New groups are first seen at
// their earliest failure; known groups keep their first sighting, take the new
// count and summary, and are reopened if they had been resolved.
func (s *Store) Observe(ctx context.Context, groups []flakeanalyticsapi.FailureGroup, runs []flakeanalyticsapi.FailureGroupRun) error {
	byKey := observations(runs)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, group := range groups {
		o, ok := byKey[group.FailureGroupKey]
		if !ok {
			o = observation{firstFailure: group.LatestFailureAt}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO root_cause_groups (
				root_cause_group_id, platform, team, summary,
				first_seen_at, last_seen_at, failure_count
			) VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(root_cause_group_id, platform, team) DO UPDATE SET
				summary = excluded.summary,
				first_seen_at = MIN(first_seen_at, excluded.first_seen_at),
				last_seen_at = MAX(last_seen_at, excluded.last_seen_at),
				failure_count = excluded.failure_count,
				resolved_at = NULL`,
			group.RootCauseGroupID,
			group.Platform,
			group.Team,
			o.summary,
			formatTime(o.firstFailure),
			formatTime(group.LatestFailureAt),
			group.FailureCount,
		); err != nil {
			return fmt.Errorf("record group %s: %w", group.RootCauseGroupID, err)
		}
	}
	return tx.Commit()
}

// ResolveStale marks unresolved groups last seen before cutoff as resolved at now.
func (s *Store) ResolveStale(ctx context.Context, cutoff, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE root_cause_groups SET resolved_at = ? WHERE resolved_at IS NULL AND last_seen_at < ?`,
		formatTime(now), formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("resolve stale groups: %w", err)
	}
	return result.RowsAffected()
}

// SetTicket stores the ticket filed for a group.
func (s *Store) SetTicket(ctx context.Context, key flakeanalyticsapi.FailureGroupKey, ticket flakeanalyticsapi.JiraTicketMetadata) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE root_cause_groups SET jira_key = ?, jira_url = ?, jira_created_at = ?
		WHERE root_cause_group_id = ? AND platform = ? AND team = ?`,
		ticket.Key, ticket.URL, formatTime(ticket.CreatedAt),
		key.RootCauseGroupID, key.Platform, key.Team)
	if err != nil {
		return fmt.Errorf("set ticket for group %s: %w", key.RootCauseGroupID, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("group %s on %s/%s is not known", key.RootCauseGroupID, key.Platform, key.Team)
	}
	return nil
}

// List returns the stored groups ordered by first sighting, optionally only the
// unresolved ones.
func (s *Store) List(ctx context.Context, unresolvedOnly bool) ([]flakeanalyticsapi.RootCauseGroup, error) {
	query := `SELECT root_cause_group_id, platform, team, summary, first_seen_at, last_seen_at,
		failure_count, resolved_at, jira_key, jira_url, jira_created_at
		FROM root_cause_groups`
	if unresolvedOnly {
		query += ` WHERE resolved_at IS NULL`
	}
	query += ` ORDER BY first_seen_at, root_cause_group_id, platform, team`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var ret []flakeanalyticsapi.RootCauseGroup
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, *group)
	}
	return ret, rows.Err()
}

func scanGroup(row interface{ Scan(...any) error }) (*flakeanalyticsapi.RootCauseGroup, error) {
	var (
		group                     flakeanalyticsapi.RootCauseGroup
		firstSeen, lastSeen       string
		resolvedAt, jiraCreatedAt sql.NullString
		jiraKey, jiraURL          sql.NullString
	)
	if err := row.Scan(&group.RootCauseGroupID, &group.Platform, &group.Team, &group.Summary,
		&firstSeen, &lastSeen, &group.FailureCount, &resolvedAt, &jiraKey, &jiraURL, &jiraCreatedAt); err != nil {
		return nil, fmt.Errorf("scan group: %w", err)
	}

	var err error
	if group.CreatedAt, err = parseTime(firstSeen); err != nil {
		return nil, fmt.Errorf("parse first_seen_at: %w", err)
	}
	if group.LastSeenAt, err = parseTime(lastSeen); err != nil {
		return nil, fmt.Errorf("parse last_seen_at: %w", err)
	}
	if group.ResolvedAt, err = parseTimePtr(resolvedAt); err != nil {
		return nil, fmt.Errorf("parse resolved_at: %w", err)
	}
	if jiraKey.Valid {
		createdAt, err := parseTimePtr(jiraCreatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse jira_created_at: %w", err)
		}
		ticket := &flakeanalyticsapi.JiraTicketMetadata{Key: jiraKey.String, URL: jiraURL.String}
		if createdAt != nil {
			ticket.CreatedAt = *createdAt
		}
		group.JiraTicket = ticket
	}
	return &group, nil
}
