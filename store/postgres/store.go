// Package postgres implements the Soloist store on PostgreSQL via pgx.
// The contested invariants (one running timer, author-level non-overlap,
// all-or-nothing claims, atomic ownership transfer) run inside
// serializable transactions, with unique indexes as a second line behind
// the transactional checks.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	soloist "github.com/eduar766/soloist-back"
	"github.com/eduar766/soloist-back/access"
	"github.com/eduar766/soloist-back/audit"
	"github.com/eduar766/soloist-back/id"
	"github.com/eduar766/soloist-back/invoice"
	"github.com/eduar766/soloist-back/project"
	"github.com/eduar766/soloist-back/share"
	soloiststore "github.com/eduar766/soloist-back/store"
	"github.com/eduar766/soloist-back/timeentry"
)

// compile-time interface check
var _ soloiststore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a PostgreSQL store over an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Open connects to databaseURL and returns a store over a fresh pool.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("soloist/postgres: connect: %w", err)
	}
	return New(pool), nil
}

// Pool returns the underlying pgx pool for direct access.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	return s.migrate(ctx)
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// serializable runs fn inside a serializable transaction.
func (s *Store) serializable(ctx context.Context, fn func(pgx.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, fn)
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// ==================== Projects ====================

// CreateProject inserts the project and its owner membership in one
// transaction, so no committed state has a project without an owner.
func (s *Store) CreateProject(ctx context.Context, p *project.Project, owner *project.Membership) error {
	rateAmt, rateCur := moneyCols(p.DefaultRate)
	return s.serializable(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
INSERT INTO soloist_projects (`+projectCols+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			p.ID, p.OwnerID, p.ClientID, p.Name, p.Description, p.Currency,
			rateAmt, rateCur, p.Public, string(p.Status), p.CreatedAt, p.UpdatedAt); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
INSERT INTO soloist_memberships (`+membershipCols+`)
VALUES ($1, $2, $3, $4, $5, $6)`,
			owner.ID, owner.ProjectID, owner.Principal, string(owner.Role),
			owner.CreatedAt, owner.UpdatedAt)
		return err
	})
}

func (s *Store) GetProject(ctx context.Context, projectID id.ProjectID) (*project.Project, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+projectCols+` FROM soloist_projects WHERE id = $1`, projectID)
	p, err := scanProject(row)
	if err != nil {
		if isNoRows(err) {
			return nil, soloist.ErrProjectNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *Store) ListProjects(ctx context.Context, principal string, opts project.ListOpts) ([]*project.Project, error) {
	q := `
SELECT ` + projectCols + ` FROM soloist_projects p
WHERE (p.public OR EXISTS (
    SELECT 1 FROM soloist_memberships m
    WHERE m.project_id = p.id AND m.principal = $1
))`
	args := []any{principal}
	if opts.Status != "" {
		args = append(args, string(opts.Status))
		q += ` AND p.status = $` + strconv.Itoa(len(args))
	}
	q += ` ORDER BY p.id`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		q += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanProject)
}

func (s *Store) UpdateProject(ctx context.Context, p *project.Project) error {
	rateAmt, rateCur := moneyCols(p.DefaultRate)
	tag, err := s.pool.Exec(ctx, `
UPDATE soloist_projects
SET owner_id = $2, client_id = $3, name = $4, description = $5, currency = $6,
    default_rate_amount = $7, default_rate_currency = $8, public = $9,
    status = $10, updated_at = $11
WHERE id = $1`,
		p.ID, p.OwnerID, p.ClientID, p.Name, p.Description, p.Currency,
		rateAmt, rateCur, p.Public, string(p.Status), p.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return soloist.ErrProjectNotFound
	}
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, projectID id.ProjectID) error {
	return s.serializable(ctx, func(tx pgx.Tx) error {
		for _, table := range []string{
			"soloist_share_links", "soloist_entries", "soloist_invoices",
			"soloist_tasks", "soloist_memberships",
		} {
			if _, err := tx.Exec(ctx,
				`DELETE FROM `+table+` WHERE project_id = $1`, projectID); err != nil {
				return err
			}
		}
		tag, err := tx.Exec(ctx, `DELETE FROM soloist_projects WHERE id = $1`, projectID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return soloist.ErrProjectNotFound
		}
		return nil
	})
}

func (s *Store) ProjectHasBillingHistory(ctx context.Context, projectID id.ProjectID) (bool, error) {
	var has bool
	err := s.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM soloist_entries WHERE project_id = $1)
    OR EXISTS (SELECT 1 FROM soloist_invoices WHERE project_id = $1)`,
		projectID).Scan(&has)
	return has, err
}

// ==================== Clients ====================

func (s *Store) CreateClient(ctx context.Context, c *project.Client) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO soloist_clients (`+clientCols+`)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.OwnerID, c.Name, c.Email, c.Notes, c.CreatedAt, c.UpdatedAt)
	return err
}

func (s *Store) GetClient(ctx context.Context, clientID id.ClientID) (*project.Client, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+clientCols+` FROM soloist_clients WHERE id = $1`, clientID)
	c, err := scanClient(row)
	if err != nil {
		if isNoRows(err) {
			return nil, soloist.ErrClientNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *Store) ListClients(ctx context.Context, ownerID string) ([]*project.Client, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+clientCols+` FROM soloist_clients WHERE owner_id = $1 ORDER BY id`, ownerID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanClient)
}

func (s *Store) UpdateClient(ctx context.Context, c *project.Client) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE soloist_clients
SET name = $2, email = $3, notes = $4, updated_at = $5
WHERE id = $1`,
		c.ID, c.Name, c.Email, c.Notes, c.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return soloist.ErrClientNotFound
	}
	return nil
}

func (s *Store) DeleteClient(ctx context.Context, clientID id.ClientID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM soloist_clients WHERE id = $1`, clientID)
	return err
}

// ==================== Tasks ====================

func (s *Store) CreateTask(ctx context.Context, t *project.Task) error {
	rateAmt, rateCur := moneyCols(t.RateOverride)
	_, err := s.pool.Exec(ctx, `
INSERT INTO soloist_tasks (`+taskCols+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.ProjectID, t.Name, t.Status.Label, t.Status.Done,
		rateAmt, rateCur, t.CreatedAt, t.UpdatedAt)
	return err
}

func (s *Store) GetTask(ctx context.Context, taskID id.TaskID) (*project.Task, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+taskCols+` FROM soloist_tasks WHERE id = $1`, taskID)
	t, err := scanTask(row)
	if err != nil {
		if isNoRows(err) {
			return nil, soloist.ErrTaskNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *Store) ListTasks(ctx context.Context, projectID id.ProjectID) ([]*project.Task, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+taskCols+` FROM soloist_tasks WHERE project_id = $1 ORDER BY id`, projectID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTask)
}

func (s *Store) UpdateTask(ctx context.Context, t *project.Task) error {
	rateAmt, rateCur := moneyCols(t.RateOverride)
	tag, err := s.pool.Exec(ctx, `
UPDATE soloist_tasks
SET name = $2, status_label = $3, status_done = $4,
    rate_override_amount = $5, rate_override_currency = $6, updated_at = $7
WHERE id = $1`,
		t.ID, t.Name, t.Status.Label, t.Status.Done, rateAmt, rateCur, t.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return soloist.ErrTaskNotFound
	}
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, taskID id.TaskID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM soloist_tasks WHERE id = $1`, taskID)
	return err
}

// ==================== Memberships ====================

func (s *Store) AddMember(ctx context.Context, m *project.Membership) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO soloist_memberships (`+membershipCols+`)
VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.ProjectID, m.Principal, string(m.Role), m.CreatedAt, m.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return soloist.ErrMemberExists
		}
		return err
	}
	return nil
}

func (s *Store) GetMembership(ctx context.Context, projectID id.ProjectID, principal string) (*project.Membership, error) {
	row := s.pool.QueryRow(ctx, `
SELECT `+membershipCols+` FROM soloist_memberships
WHERE project_id = $1 AND principal = $2`, projectID, principal)
	m, err := scanMembership(row)
	if err != nil {
		if isNoRows(err) {
			return nil, soloist.ErrMemberNotFound
		}
		return nil, err
	}
	return m, nil
}

func (s *Store) ListMembers(ctx context.Context, projectID id.ProjectID) ([]*project.Membership, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+membershipCols+` FROM soloist_memberships
WHERE project_id = $1 ORDER BY principal`, projectID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanMembership)
}

func (s *Store) UpdateMemberRole(ctx context.Context, projectID id.ProjectID, principal string, role access.Role) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE soloist_memberships SET role = $3, updated_at = NOW()
WHERE project_id = $1 AND principal = $2`,
		projectID, principal, string(role))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return soloist.ErrMemberNotFound
	}
	return nil
}

func (s *Store) RemoveMember(ctx context.Context, projectID id.ProjectID, principal string) error {
	tag, err := s.pool.Exec(ctx, `
DELETE FROM soloist_memberships WHERE project_id = $1 AND principal = $2`,
		projectID, principal)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return soloist.ErrMemberNotFound
	}
	return nil
}

// TransferOwnership swaps the owner and the new owner's roles in one
// transaction. Both rows change or neither does.
func (s *Store) TransferOwnership(ctx context.Context, projectID id.ProjectID, newOwner string) error {
	return s.serializable(ctx, func(tx pgx.Tx) error {
		var nextRole string
		err := tx.QueryRow(ctx, `
SELECT role FROM soloist_memberships
WHERE project_id = $1 AND principal = $2 FOR UPDATE`,
			projectID, newOwner).Scan(&nextRole)
		if err != nil {
			if isNoRows(err) {
				return soloist.ErrMemberNotFound
			}
			return err
		}
		if nextRole == string(access.RoleOwner) {
			return nil
		}

		var currentOwner string
		err = tx.QueryRow(ctx, `
SELECT principal FROM soloist_memberships
WHERE project_id = $1 AND role = $2 FOR UPDATE`,
			projectID, string(access.RoleOwner)).Scan(&currentOwner)
		if err != nil {
			if isNoRows(err) {
				return soloist.ErrMemberNotFound
			}
			return err
		}

		if _, err := tx.Exec(ctx, `
UPDATE soloist_memberships SET role = $3, updated_at = NOW()
WHERE project_id = $1 AND principal = $2`,
			projectID, currentOwner, string(access.RoleContributor)); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
UPDATE soloist_memberships SET role = $3, updated_at = NOW()
WHERE project_id = $1 AND principal = $2`,
			projectID, newOwner, string(access.RoleOwner)); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
UPDATE soloist_projects SET owner_id = $2, updated_at = NOW() WHERE id = $1`,
			projectID, newOwner)
		return err
	})
}

// ==================== Time entries ====================

// CreateEntry inserts after checking the author's invariants inside a
// serializable transaction. The partial unique index on running entries
// backs the timer check; the overlap check has no index equivalent and
// relies on the isolation level.
func (s *Store) CreateEntry(ctx context.Context, e *timeentry.Entry) error {
	err := s.serializable(ctx, func(tx pgx.Tx) error {
		if e.Running() {
			var conflict id.EntryID
			err := tx.QueryRow(ctx, `
SELECT id FROM soloist_entries
WHERE author = $1 AND end_at IS NULL LIMIT 1`,
				e.Author).Scan(&conflict)
			if err == nil {
				return soloist.ErrTimerRunning
			}
			if !isNoRows(err) {
				return err
			}
		}

		if err := checkOverlap(ctx, tx, e, id.Nil); err != nil {
			return err
		}

		var endAt *time.Time
		if e.Interval.End != nil {
			endAt = e.Interval.End
		}
		_, err := tx.Exec(ctx, `
INSERT INTO soloist_entries (`+entryCols+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			e.ID, e.ProjectID, e.TaskID, e.Author, e.Interval.Start, endAt,
			string(e.Source), e.Billable, e.Note, e.InvoiceID, e.CreatedAt, e.UpdatedAt)
		return err
	})
	if isUniqueViolation(err) {
		return soloist.ErrTimerRunning
	}
	return err
}

// checkOverlap looks for any entry of the same author sharing an instant
// with e's interval, excluding excludeID. Open intervals extend to
// infinity; zero-length intervals never conflict.
func checkOverlap(ctx context.Context, tx pgx.Tx, e *timeentry.Entry, excludeID id.EntryID) error {
	if e.Interval.End != nil && !e.Interval.Start.Before(*e.Interval.End) {
		return nil
	}

	open := e.Interval.End == nil
	var end time.Time
	if !open {
		end = *e.Interval.End
	}

	var conflict id.EntryID
	err := tx.QueryRow(ctx, `
SELECT id FROM soloist_entries
WHERE author = $1
  AND id <> $2
  AND (end_at IS NULL OR end_at > start_at)
  AND ($3 OR start_at < $4)
  AND (end_at IS NULL OR end_at > $5)
LIMIT 1`,
		e.Author, excludeID.String(), open, end, e.Interval.Start).Scan(&conflict)
	if err == nil {
		return soloist.OverlapError{ConflictingID: conflict}
	}
	if isNoRows(err) {
		return nil
	}
	return err
}

func (s *Store) GetEntry(ctx context.Context, entryID id.EntryID) (*timeentry.Entry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+entryCols+` FROM soloist_entries WHERE id = $1`, entryID)
	e, err := scanEntry(row)
	if err != nil {
		if isNoRows(err) {
			return nil, soloist.ErrEntryNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *Store) GetRunningEntry(ctx context.Context, author string) (*timeentry.Entry, error) {
	row := s.pool.QueryRow(ctx, `
SELECT `+entryCols+` FROM soloist_entries
WHERE author = $1 AND end_at IS NULL`, author)
	e, err := scanEntry(row)
	if err != nil {
		if isNoRows(err) {
			return nil, soloist.ErrTimerNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *Store) CloseEntry(ctx context.Context, entryID id.EntryID, end time.Time) error {
	return s.serializable(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`SELECT `+entryCols+` FROM soloist_entries WHERE id = $1 FOR UPDATE`, entryID)
		e, err := scanEntry(row)
		if err != nil {
			if isNoRows(err) {
				return soloist.ErrEntryNotFound
			}
			return err
		}
		if !e.Running() {
			return soloist.ErrTimerNotFound
		}
		if end.Before(e.Interval.Start) {
			return soloist.ErrInvalidRange
		}

		_, err = tx.Exec(ctx, `
UPDATE soloist_entries SET end_at = $2, updated_at = NOW() WHERE id = $1`,
			entryID, end)
		return err
	})
}

func (s *Store) UpdateEntry(ctx context.Context, e *timeentry.Entry) error {
	return s.serializable(ctx, func(tx pgx.Tx) error {
		// Row lock first: a claim committed after the facade's pre-check
		// must not be overwritten by the stale update.
		if err := lockUnclaimed(ctx, tx, e.ID); err != nil {
			return err
		}
		if err := checkOverlap(ctx, tx, e, e.ID); err != nil {
			return err
		}

		var endAt *time.Time
		if e.Interval.End != nil {
			endAt = e.Interval.End
		}
		_, err := tx.Exec(ctx, `
UPDATE soloist_entries
SET task_id = $2, start_at = $3, end_at = $4, billable = $5, note = $6,
    invoice_id = $7, updated_at = $8
WHERE id = $1`,
			e.ID, e.TaskID, e.Interval.Start, endAt, e.Billable, e.Note,
			e.InvoiceID, e.UpdatedAt)
		return err
	})
}

func (s *Store) DeleteEntry(ctx context.Context, entryID id.EntryID) error {
	return s.serializable(ctx, func(tx pgx.Tx) error {
		if err := lockUnclaimed(ctx, tx, entryID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM soloist_entries WHERE id = $1`, entryID)
		return err
	})
}

// lockUnclaimed row-locks the entry and fails with ErrEntryImmutable when
// an issued invoice holds a claim on it.
func lockUnclaimed(ctx context.Context, tx pgx.Tx, entryID id.EntryID) error {
	var claimedBy id.ID
	err := tx.QueryRow(ctx,
		`SELECT invoice_id FROM soloist_entries WHERE id = $1 FOR UPDATE`, entryID).Scan(&claimedBy)
	if isNoRows(err) {
		return soloist.ErrEntryNotFound
	}
	if err != nil {
		return err
	}
	if !claimedBy.IsNil() {
		return soloist.ErrEntryImmutable
	}
	return nil
}

func (s *Store) ListEntries(ctx context.Context, projectID id.ProjectID, opts timeentry.ListOpts) ([]*timeentry.Entry, error) {
	q := `SELECT ` + entryCols + ` FROM soloist_entries WHERE project_id = $1`
	args := []any{projectID}
	if opts.Author != "" {
		args = append(args, opts.Author)
		q += ` AND author = $` + strconv.Itoa(len(args))
	}
	if !opts.TaskID.IsNil() {
		args = append(args, opts.TaskID)
		q += ` AND task_id = $` + strconv.Itoa(len(args))
	}
	if !opts.From.IsZero() {
		args = append(args, opts.From)
		q += ` AND start_at >= $` + strconv.Itoa(len(args))
	}
	if !opts.To.IsZero() {
		args = append(args, opts.To)
		q += ` AND start_at < $` + strconv.Itoa(len(args))
	}
	q += ` ORDER BY start_at`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		q += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanEntry)
}

func (s *Store) SelectBillable(ctx context.Context, projectID id.ProjectID, from, to time.Time) ([]*timeentry.Entry, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+entryCols+` FROM soloist_entries
WHERE project_id = $1
  AND billable
  AND end_at IS NOT NULL
  AND invoice_id IS NULL
  AND start_at >= $2 AND start_at < $3
ORDER BY start_at`,
		projectID, from, to)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanEntry)
}

// claimEntries flips the claim flag for every listed entry under row
// locks. Any missing or already-claimed entry aborts the whole set.
// Only MarkIssued calls this, inside its transaction.
func claimEntries(ctx context.Context, tx pgx.Tx, invoiceID id.InvoiceID, ids []string) error {
	rows, err := tx.Query(ctx, `
SELECT id, invoice_id FROM soloist_entries
WHERE id = ANY($1) FOR UPDATE`, ids)
	if err != nil {
		return err
	}
	found := 0
	for rows.Next() {
		var entryID, claimedBy id.ID
		if err := rows.Scan(&entryID, &claimedBy); err != nil {
			rows.Close()
			return err
		}
		if !claimedBy.IsNil() && claimedBy != invoiceID {
			rows.Close()
			return soloist.ErrEntryClaimed
		}
		found++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if found != len(ids) {
		return soloist.ErrEntryNotFound
	}

	_, err = tx.Exec(ctx, `
UPDATE soloist_entries SET invoice_id = $1, updated_at = NOW()
WHERE id = ANY($2)`, invoiceID, ids)
	return err
}

// ==================== Invoices ====================

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	lineItems, err := json.Marshal(inv.LineItems)
	if err != nil {
		return fmt.Errorf("soloist/postgres: encode line items: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO soloist_invoices (`+invoiceCols+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		inv.ID, inv.ProjectID, inv.Number, string(inv.Status), inv.Currency,
		inv.PeriodFrom, inv.PeriodTo, lineItems, inv.Total.Amount,
		inv.IssuedAt, inv.VoidedAt, inv.VoidReason, inv.CreatedAt, inv.UpdatedAt)
	return err
}

func (s *Store) GetInvoice(ctx context.Context, invoiceID id.InvoiceID) (*invoice.Invoice, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+invoiceCols+` FROM soloist_invoices WHERE id = $1`, invoiceID)
	inv, err := scanInvoice(row)
	if err != nil {
		if isNoRows(err) {
			return nil, soloist.ErrInvoiceNotFound
		}
		return nil, err
	}
	return inv, nil
}

func (s *Store) ListInvoices(ctx context.Context, projectID id.ProjectID, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	q := `SELECT ` + invoiceCols + ` FROM soloist_invoices WHERE project_id = $1`
	args := []any{projectID}
	if opts.Status != "" {
		args = append(args, string(opts.Status))
		q += ` AND status = $` + strconv.Itoa(len(args))
	}
	q += ` ORDER BY id`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		q += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanInvoice)
}

// MarkIssued transitions draft→issued and claims every referenced entry in
// the same transaction. A claim conflict rolls everything back.
func (s *Store) MarkIssued(ctx context.Context, invoiceID id.InvoiceID, number string, issuedAt time.Time) error {
	return s.serializable(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`SELECT `+invoiceCols+` FROM soloist_invoices WHERE id = $1 FOR UPDATE`, invoiceID)
		inv, err := scanInvoice(row)
		if err != nil {
			if isNoRows(err) {
				return soloist.ErrInvoiceNotFound
			}
			return err
		}
		if !invoice.CanTransition(inv.Status, invoice.StatusIssued) {
			return soloist.ErrInvalidTransition
		}

		entryIDs := inv.EntryIDs()
		ids := make([]string, len(entryIDs))
		for i, entryID := range entryIDs {
			ids[i] = entryID.String()
		}
		if err := claimEntries(ctx, tx, invoiceID, ids); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
UPDATE soloist_invoices
SET status = $2, number = $3, issued_at = $4, updated_at = NOW()
WHERE id = $1`,
			invoiceID, string(invoice.StatusIssued), number, issuedAt)
		return err
	})
}

func (s *Store) MarkVoided(ctx context.Context, invoiceID id.InvoiceID, reason string, voidedAt time.Time) error {
	return s.serializable(ctx, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx,
			`SELECT status FROM soloist_invoices WHERE id = $1 FOR UPDATE`, invoiceID).Scan(&status)
		if err != nil {
			if isNoRows(err) {
				return soloist.ErrInvoiceNotFound
			}
			return err
		}
		if !invoice.CanTransition(invoice.Status(status), invoice.StatusVoid) {
			return soloist.ErrInvalidTransition
		}

		if _, err := tx.Exec(ctx, `
UPDATE soloist_entries SET invoice_id = NULL, updated_at = NOW()
WHERE invoice_id = $1`, invoiceID); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
UPDATE soloist_invoices
SET status = $2, voided_at = $3, void_reason = $4, updated_at = NOW()
WHERE id = $1`,
			invoiceID, string(invoice.StatusVoid), voidedAt, reason)
		return err
	})
}

func (s *Store) DeleteDraft(ctx context.Context, invoiceID id.InvoiceID) error {
	return s.serializable(ctx, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx,
			`SELECT status FROM soloist_invoices WHERE id = $1 FOR UPDATE`, invoiceID).Scan(&status)
		if err != nil {
			if isNoRows(err) {
				return soloist.ErrInvoiceNotFound
			}
			return err
		}
		if invoice.Status(status) != invoice.StatusDraft {
			return soloist.ErrInvoiceNotDraft
		}
		_, err = tx.Exec(ctx, `DELETE FROM soloist_invoices WHERE id = $1`, invoiceID)
		return err
	})
}

func (s *Store) NextInvoiceSequence(ctx context.Context, projectID id.ProjectID, year int) (int64, error) {
	var value int64
	err := s.pool.QueryRow(ctx, `
INSERT INTO soloist_invoice_sequences (project_id, year, value)
VALUES ($1, $2, 1)
ON CONFLICT (project_id, year)
DO UPDATE SET value = soloist_invoice_sequences.value + 1
RETURNING value`,
		projectID, year).Scan(&value)
	return value, err
}

// ==================== Share links ====================

func (s *Store) CreateShareLink(ctx context.Context, l *share.Link) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO soloist_share_links (`+shareLinkCols+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		l.ID, l.Token, l.Target.ProjectID, string(l.Target.Kind), l.Target.InvoiceID,
		nullTime(l.Target.From), nullTime(l.Target.To),
		l.CreatedBy, l.ExpiresAt, l.Revoked, l.CreatedAt, l.UpdatedAt)
	return err
}

func (s *Store) GetShareLink(ctx context.Context, linkID id.ShareLinkID) (*share.Link, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+shareLinkCols+` FROM soloist_share_links WHERE id = $1`, linkID)
	l, err := scanShareLink(row)
	if err != nil {
		if isNoRows(err) {
			return nil, soloist.ErrShareNotFound
		}
		return nil, err
	}
	return l, nil
}

func (s *Store) GetShareLinkByToken(ctx context.Context, token string) (*share.Link, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+shareLinkCols+` FROM soloist_share_links WHERE token = $1`, token)
	l, err := scanShareLink(row)
	if err != nil {
		if isNoRows(err) {
			return nil, soloist.ErrShareNotFound
		}
		return nil, err
	}
	return l, nil
}

func (s *Store) ListShareLinks(ctx context.Context, projectID id.ProjectID) ([]*share.Link, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+shareLinkCols+` FROM soloist_share_links
WHERE project_id = $1 ORDER BY id`, projectID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanShareLink)
}

func (s *Store) RevokeShareLink(ctx context.Context, linkID id.ShareLinkID) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE soloist_share_links SET revoked = TRUE, updated_at = NOW() WHERE id = $1`, linkID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return soloist.ErrShareNotFound
	}
	return nil
}

func (s *Store) DeleteShareLink(ctx context.Context, linkID id.ShareLinkID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM soloist_share_links WHERE id = $1`, linkID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return soloist.ErrShareNotFound
	}
	return nil
}

// ==================== Audit ====================

func (s *Store) AppendAudit(ctx context.Context, rec *audit.Record) error {
	detail, err := json.Marshal(rec.Detail)
	if err != nil {
		return fmt.Errorf("soloist/postgres: encode audit detail: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO soloist_audit (id, project_id, actor, action, entity_kind, entity_id, at, detail)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.ProjectID, rec.Actor, rec.Action, rec.EntityKind, rec.EntityID, rec.At, detail)
	return err
}

func (s *Store) ListAudit(ctx context.Context, projectID id.ProjectID, limit int) ([]*audit.Record, error) {
	q := `
SELECT id, project_id, actor, action, entity_kind, entity_id, at, detail
FROM soloist_audit WHERE project_id = $1 ORDER BY at DESC`
	args := []any{projectID}
	if limit > 0 {
		args = append(args, limit)
		q += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*audit.Record, 0)
	for rows.Next() {
		var (
			rec    audit.Record
			detail []byte
		)
		if err := rows.Scan(&rec.ID, &rec.ProjectID, &rec.Actor, &rec.Action,
			&rec.EntityKind, &rec.EntityID, &rec.At, &detail); err != nil {
			return nil, err
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &rec.Detail); err != nil {
				return nil, fmt.Errorf("soloist/postgres: decode audit detail: %w", err)
			}
		}
		result = append(result, &rec)
	}
	return result, rows.Err()
}
