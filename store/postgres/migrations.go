package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// migration is one versioned schema step. Versions apply in order and are
// recorded in soloist_migrations; a step never runs twice.
type migration struct {
	Name    string
	Version string
	Up      string
}

// Migrations is the ordered schema for the Soloist store.
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
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
    default_rate_amount   BIGINT,
    default_rate_currency TEXT,
    public                BOOLEAN NOT NULL DEFAULT FALSE,
    status                TEXT NOT NULL DEFAULT 'active',
    created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_soloist_projects_owner ON soloist_projects (owner_id);
CREATE INDEX IF NOT EXISTS idx_soloist_projects_status ON soloist_projects (status);
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
    status_done            BOOLEAN NOT NULL DEFAULT FALSE,
    rate_override_amount   BIGINT,
    rate_override_currency TEXT,
    created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
    start_at   TIMESTAMPTZ NOT NULL,
    end_at     TIMESTAMPTZ,
    source     TEXT NOT NULL DEFAULT 'manual',
    billable   BOOLEAN NOT NULL DEFAULT TRUE,
    note       TEXT NOT NULL DEFAULT '',
    invoice_id TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_soloist_entries_project_start ON soloist_entries (project_id, start_at);
CREATE INDEX IF NOT EXISTS idx_soloist_entries_author_start ON soloist_entries (author, start_at);
CREATE INDEX IF NOT EXISTS idx_soloist_entries_invoice ON soloist_entries (invoice_id) WHERE invoice_id IS NOT NULL;

-- One running timer per author, enforced at the index level as a backstop
-- behind the transactional check.
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
    period_from  TIMESTAMPTZ NOT NULL,
    period_to    TIMESTAMPTZ NOT NULL,
    line_items   JSONB NOT NULL DEFAULT '[]',
    total_amount BIGINT NOT NULL DEFAULT 0,
    issued_at    TIMESTAMPTZ,
    voided_at    TIMESTAMPTZ,
    void_reason  TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
    year       INT NOT NULL,
    value      BIGINT NOT NULL DEFAULT 0,
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
    from_at    TIMESTAMPTZ,
    to_at      TIMESTAMPTZ,
    created_by TEXT NOT NULL DEFAULT '',
    expires_at TIMESTAMPTZ,
    revoked    BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
    id          UUID PRIMARY KEY,
    project_id  TEXT NOT NULL DEFAULT '',
    actor       TEXT NOT NULL DEFAULT '',
    action      TEXT NOT NULL DEFAULT '',
    entity_kind TEXT NOT NULL DEFAULT '',
    entity_id   TEXT NOT NULL DEFAULT '',
    at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    detail      JSONB NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_soloist_audit_project_at ON soloist_audit (project_id, at DESC);
`,
	},
}

// migrate applies every pending migration inside one transaction each,
// recording applied versions in soloist_migrations.
func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS soloist_migrations (
    version    TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`)
	if err != nil {
		return fmt.Errorf("soloist/postgres: create migrations table: %w", err)
	}

	for _, m := range Migrations {
		applied, err := s.migrationApplied(ctx, m.Version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.Up); err != nil {
				return err
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO soloist_migrations (version, name) VALUES ($1, $2)`,
				m.Version, m.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("soloist/postgres: migration %s (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

func (s *Store) migrationApplied(ctx context.Context, version string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM soloist_migrations WHERE version = $1)`,
		version).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("soloist/postgres: check migration %s: %w", version, err)
	}
	return exists, nil
}
