package groupstore

import (
	"context"
	"database/sql"
)

const migrationSQL = `
CREATE TABLE IF NOT EXISTS root_cause_groups (
    root_cause_group_id TEXT NOT NULL,
    platform TEXT NOT NULL,
    team TEXT NOT NULL,
    summary TEXT NOT NULL DEFAULT '',
    first_seen_at TEXT NOT NULL,
    last_seen_at TEXT NOT NULL,
    failure_count INTEGER NOT NULL DEFAULT 0,
    resolved_at TEXT,
    jira_key TEXT,
    jira_url TEXT,
    jira_created_at TEXT,
    PRIMARY KEY (root_cause_group_id, platform, team)
);
CREATE INDEX IF NOT EXISTS idx_root_cause_groups_resolved_at ON root_cause_groups(resolved_at);
`

func runMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, migrationSQL)
	return err
}
