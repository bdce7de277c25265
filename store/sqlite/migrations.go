package sqlite

import (
	"context"
	"fmt"
)

// migration is one versioned schema step, applied in order and recorded in
// soloist_migrations.
type migration struct {
	Name    string
	Version string
	Up      string
}

// Migrations is the ordered schema for the SQLite store.
var Migrations = []migration{
	{
		Name:    "create_soloist_clients",
		Version: "20250301000001",
		Up: `
CREATE TABLE IF NOT EXISTS soloist_clients (
    id         TEXT PRIMARY KEY,
    owner_id   TEXT NOT NULL DEFAULT '',
    name       TEXT NOT NULL DEFAULT '',
    email      TEXT NOT NULL DEFAULT '',
    notes      TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_soloist_clients_owner ON soloist_clients (owner_id);
`,
	},
	{
		Name:    "create_soloist_projects",
		Version: "20250301000002",
		Up: `
CREATE TABLE IF NOT EXISTS soloist_projects (
    id                    TEXT PRIMARY KEY,
    owner_id              TEXT NOT NULL DEFAULT '',
    client_id             TEXT,
    name                  TEXT NOT NULL DEFAULT '',
    description           TEXT NOT NULL DEFAULT '',
    currency              TEXT NOT NULL DEFAULT '',
    default_rate_amount   INTEGER,
    default_rate_currency TEXT,
    public                INTEGER NOT NULL DEFAULT 0,
    status                TEXT NOT NULL DEFAULT 'active',
    created_at            TIMESTAMP NOT NULL,
    updated_at            TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_soloist_projects_owner ON soloist_projects (owner_id);
`,
	},
	{
		Name:    "create_soloist_tasks",
		Version: "20250301000003",
		Up: `
CREATE TABLE IF NOT EXISTS soloist_tasks (
    id                     TEXT PRIMARY KEY,
    project_id             TEXT NOT NULL DEFAULT '',
    name                   TEXT NOT NULL DEFAULT '',
    status_label           TEXT NOT NULL DEFAULT '',
    status_done            INTEGER NOT NULL DEFAULT 0,
    rate_override_amount   INTEGER,
    rate_override_currency TEXT,
    created_at             TIMESTAMP NOT NULL,
    updated_at             TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_soloist_tasks_project ON soloist_tasks (project_id);
`,
	},
	{
		Name:    "create_soloist_memberships",
		Version: "20250301000004",
		Up: `
CREATE TABLE IF NOT EXISTS soloist_memberships (
    id         TEXT PRIMARY KEY,
    project_id TEXT NOT NULL DEFAULT '',
    principal  TEXT NOT NULL DEFAULT '',
    role       TEXT NOT NULL DEFAULT 'viewer',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_soloist_members_project_principal
    ON soloist_memberships (project_id, principal);
`,
	},
	{
		Name:    "create_soloist_entries",
		Version: "20250301000005",
		Up: `
CREATE TABLE IF NOT EXISTS soloist_entries (
    id         TEXT PRIMARY KEY,
    project_id TEXT NOT NULL DEFAULT '',
    task_id    TEXT NOT NULL DEFAULT '',
    author     TEXT NOT NULL DEFAULT '',
    start_at   TIMESTAMP NOT NULL,
    end_at     TIMESTAMP,
    source     TEXT NOT NULL DEFAULT 'manual',
    billable   INTEGER NOT NULL DEFAULT 1,
    note       TEXT NOT NULL DEFAULT '',
    invoice_id TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_soloist_entries_project_start ON soloist_entries (project_id, start_at);
CREATE INDEX IF NOT EXISTS idx_soloist_entries_author_start ON soloist_entries (author, start_at);

CREATE UNIQUE INDEX IF NOT EXISTS idx_soloist_entries_one_running
    ON soloist_entries (author) WHERE end_at IS NULL;
`,
	},
	{
		Name:    "create_soloist_invoices",
		Version: "20250301000006",
		Up: `
CREATE TABLE IF NOT EXISTS soloist_invoices (
    id           TEXT PRIMARY KEY,
    project_id   TEXT NOT NULL DEFAULT '',
    number       TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL DEFAULT 'draft',
    currency     TEXT NOT NULL DEFAULT '',
    period_from  TIMESTAMP NOT NULL,
    period_to    TIMESTAMP NOT NULL,
    line_items   TEXT NOT NULL DEFAULT '[]',
    total_amount INTEGER NOT NULL DEFAULT 0,
    issued_at    TIMESTAMP,
    voided_at    TIMESTAMP,
    void_reason  TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMP NOT NULL,
    updated_at   TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_soloist_invoices_project ON soloist_invoices (project_id, status);
CREATE UNIQUE INDEX IF NOT EXISTS idx_soloist_invoices_number
    ON soloist_invoices (project_id, number) WHERE number <> '';
`,
	},
	{
		Name:    "create_soloist_invoice_sequences",
		Version: "20250301000007",
		Up: `
CREATE TABLE IF NOT EXISTS soloist_invoice_sequences (
    project_id TEXT NOT NULL,
    year       INTEGER NOT NULL,
    value      INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (project_id, year)
);
`,
	},
	{
		Name:    "create_soloist_share_links",
		Version: "20250301000008",
		Up: `
CREATE TABLE IF NOT EXISTS soloist_share_links (
    id         TEXT PRIMARY KEY,
    token      TEXT NOT NULL,
    project_id TEXT NOT NULL DEFAULT '',
    kind       TEXT NOT NULL DEFAULT 'project',
    invoice_id TEXT,
    from_at    TIMESTAMP,
    to_at      TIMESTAMP,
    created_by TEXT NOT NULL DEFAULT '',
    expires_at TIMESTAMP,
    revoked    INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_soloist_share_links_token ON soloist_share_links (token);
CREATE INDEX IF NOT EXISTS idx_soloist_share_links_project ON soloist_share_links (project_id);
`,
	},
	{
		Name:    "create_soloist_audit",
		Version: "20250301000009",
		Up: `
CREATE TABLE IF NOT EXISTS soloist_audit (
    id          TEXT PRIMARY KEY,
    project_id  TEXT NOT NULL DEFAULT '',
    actor       TEXT NOT NULL DEFAULT '',
    action      TEXT NOT NULL DEFAULT '',
    entity_kind TEXT NOT NULL DEFAULT '',
    entity_id   TEXT NOT NULL DEFAULT '',
    at          TIMESTAMP NOT NULL,
    detail      TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_soloist_audit_project_at ON soloist_audit (project_id, at);
`,
	},
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS soloist_migrations (
    version    TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`)
	if err != nil {
		return fmt.Errorf("soloist/sqlite: create migrations table: %w", err)
	}

	for _, m := range Migrations {
		var exists int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM soloist_migrations WHERE version = ?`, m.Version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("soloist/sqlite: check migration %s: %w", m.Version, err)
		}
		if exists > 0 {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, m.Up); err != nil {
			_ = tx.Rollback() //nolint:errcheck // rollback error is secondary
			return fmt.Errorf("soloist/sqlite: migration %s (%s): %w", m.Version, m.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO soloist_migrations (version, name) VALUES (?, ?)`,
			m.Version, m.Name); err != nil {
			_ = tx.Rollback() //nolint:errcheck // rollback error is secondary
			return fmt.Errorf("soloist/sqlite: record migration %s: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
