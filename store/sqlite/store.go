// Package sqlite implements the Soloist store on SQLite for single-binary
// and embedded deployments. SQLite allows one writer at a time; opening the
// database with _txlock=immediate makes every write transaction take the
// write lock up front, which serializes the invariant checks the same way
// the PostgreSQL store's serializable transactions do.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	soloist "github.com/eduar766/soloist-back"
	"github.com/eduar766/soloist-back/access"
	"github.com/eduar766/soloist-back/audit"
	"github.com/eduar766/soloist-back/id"
	"github.com/eduar766/soloist-back/invoice"
	"github.com/eduar766/soloist-back/project"
	"github.com/eduar766/soloist-back/share"
	soloiststore "github.com/eduar766/soloist-back/store"
	"github.com/eduar766/soloist-back/timeentry"
	"github.com/eduar766/soloist-back/types"
)

// compile-time interface check
var _ soloiststore.Store = (*Store)(nil)

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a SQLite store over an existing database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens (or creates) the database at path with the settings the store
// depends on: immediate write transactions and foreign keys on.
func Open(path string) (*Store, error) {
	dsn := path + "?_txlock=immediate&_foreign_keys=on&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("soloist/sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return New(db), nil
}

// DB returns the underlying database handle for direct access.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	return s.migrate(ctx)
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

// inTx runs fn in a write transaction. With _txlock=immediate the write
// lock is held from BEGIN, so check-then-write sequences are atomic.
func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback() //nolint:errcheck // rollback error is secondary
		return err
	}
	return tx.Commit()
}

type scannable interface {
	Scan(dest ...any) error
}

func optMoney(amount *int64, currency *string) *types.Money {
	if amount == nil || currency == nil {
		return nil
	}
	return &types.Money{Amount: *amount, Currency: *currency}
}

func moneyCols(m *types.Money) (*int64, *string) {
	if m == nil {
		return nil, nil
	}
	return &m.Amount, &m.Currency
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// placeholders returns "?, ?, ..." for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// ==================== Projects ====================

const projectCols = `id, owner_id, client_id, name, description, currency,
	default_rate_amount, default_rate_currency, public, status, created_at, updated_at`

func scanProject(row scannable) (*project.Project, error) {
	var (
		p       project.Project
		rateAmt *int64
		rateCur *string
		status  string
	)
	err := row.Scan(&p.ID, &p.OwnerID, &p.ClientID, &p.Name, &p.Description, &p.Currency,
		&rateAmt, &rateCur, &p.Public, &status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.DefaultRate = optMoney(rateAmt, rateCur)
	p.Status = project.Status(status)
	return &p, nil
}

// CreateProject inserts the project and its owner membership in one
// transaction, so no committed state has a project without an owner.
func (s *Store) CreateProject(ctx context.Context, p *project.Project, owner *project.Membership) error {
	rateAmt, rateCur := moneyCols(p.DefaultRate)
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO soloist_projects (`+projectCols+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.OwnerID, p.ClientID, p.Name, p.Description, p.Currency,
			rateAmt, rateCur, p.Public, string(p.Status), p.CreatedAt, p.UpdatedAt); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO soloist_memberships (`+membershipCols+`)
VALUES (?, ?, ?, ?, ?, ?)`,
			owner.ID, owner.ProjectID, owner.Principal, string(owner.Role),
			owner.CreatedAt, owner.UpdatedAt)
		return err
	})
}

func (s *Store) GetProject(ctx context.Context, projectID id.ProjectID) (*project.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+projectCols+` FROM soloist_projects WHERE id = ?`, projectID)
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
    WHERE m.project_id = p.id AND m.principal = ?
))`
	args := []any{principal}
	if opts.Status != "" {
		q += ` AND p.status = ?`
		args = append(args, string(opts.Status))
	}
	q += ` ORDER BY p.id`
	if opts.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		q += ` OFFSET ?`
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*project.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) UpdateProject(ctx context.Context, p *project.Project) error {
	rateAmt, rateCur := moneyCols(p.DefaultRate)
	res, err := s.db.ExecContext(ctx, `
UPDATE soloist_projects
SET owner_id = ?, client_id = ?, name = ?, description = ?, currency = ?,
    default_rate_amount = ?, default_rate_currency = ?, public = ?,
    status = ?, updated_at = ?
WHERE id = ?`,
		p.OwnerID, p.ClientID, p.Name, p.Description, p.Currency,
		rateAmt, rateCur, p.Public, string(p.Status), p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	return mustAffect(res, soloist.ErrProjectNotFound)
}

func (s *Store) DeleteProject(ctx context.Context, projectID id.ProjectID) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{
			"soloist_share_links", "soloist_entries", "soloist_invoices",
			"soloist_tasks", "soloist_memberships",
		} {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM `+table+` WHERE project_id = ?`, projectID); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM soloist_projects WHERE id = ?`, projectID)
		if err != nil {
			return err
		}
		return mustAffect(res, soloist.ErrProjectNotFound)
	})
}

func (s *Store) ProjectHasBillingHistory(ctx context.Context, projectID id.ProjectID) (bool, error) {
	var has bool
	err := s.db.QueryRowContext(ctx, `
SELECT EXISTS (SELECT 1 FROM soloist_entries WHERE project_id = ?)
    OR EXISTS (SELECT 1 FROM soloist_invoices WHERE project_id = ?)`,
		projectID, projectID).Scan(&has)
	return has, err
}

func mustAffect(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// ==================== Clients ====================

const clientCols = `id, owner_id, name, email, notes, created_at, updated_at`

func scanClient(row scannable) (*project.Client, error) {
	var c project.Client
	err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Email, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateClient(ctx context.Context, c *project.Client) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO soloist_clients (`+clientCols+`)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OwnerID, c.Name, c.Email, c.Notes, c.CreatedAt, c.UpdatedAt)
	return err
}

func (s *Store) GetClient(ctx context.Context, clientID id.ClientID) (*project.Client, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+clientCols+` FROM soloist_clients WHERE id = ?`, clientID)
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
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+clientCols+` FROM soloist_clients WHERE owner_id = ? ORDER BY id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*project.Client, 0)
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (s *Store) UpdateClient(ctx context.Context, c *project.Client) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE soloist_clients SET name = ?, email = ?, notes = ?, updated_at = ? WHERE id = ?`,
		c.Name, c.Email, c.Notes, c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}
	return mustAffect(res, soloist.ErrClientNotFound)
}

func (s *Store) DeleteClient(ctx context.Context, clientID id.ClientID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM soloist_clients WHERE id = ?`, clientID)
	return err
}

// ==================== Tasks ====================

const taskCols = `id, project_id, name, status_label, status_done,
	rate_override_amount, rate_override_currency, created_at, updated_at`

func scanTask(row scannable) (*project.Task, error) {
	var (
		t       project.Task
		rateAmt *int64
		rateCur *string
	)
	err := row.Scan(&t.ID, &t.ProjectID, &t.Name, &t.Status.Label, &t.Status.Done,
		&rateAmt, &rateCur, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.RateOverride = optMoney(rateAmt, rateCur)
	return &t, nil
}

func (s *Store) CreateTask(ctx context.Context, t *project.Task) error {
	rateAmt, rateCur := moneyCols(t.RateOverride)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO soloist_tasks (`+taskCols+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, t.Name, t.Status.Label, t.Status.Done,
		rateAmt, rateCur, t.CreatedAt, t.UpdatedAt)
	return err
}

func (s *Store) GetTask(ctx context.Context, taskID id.TaskID) (*project.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskCols+` FROM soloist_tasks WHERE id = ?`, taskID)
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
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskCols+` FROM soloist_tasks WHERE project_id = ? ORDER BY id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*project.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (s *Store) UpdateTask(ctx context.Context, t *project.Task) error {
	rateAmt, rateCur := moneyCols(t.RateOverride)
	res, err := s.db.ExecContext(ctx, `
UPDATE soloist_tasks
SET name = ?, status_label = ?, status_done = ?,
    rate_override_amount = ?, rate_override_currency = ?, updated_at = ?
WHERE id = ?`,
		t.Name, t.Status.Label, t.Status.Done, rateAmt, rateCur, t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	return mustAffect(res, soloist.ErrTaskNotFound)
}

func (s *Store) DeleteTask(ctx context.Context, taskID id.TaskID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM soloist_tasks WHERE id = ?`, taskID)
	return err
}

// ==================== Memberships ====================

const membershipCols = `id, project_id, principal, role, created_at, updated_at`

func scanMembership(row scannable) (*project.Membership, error) {
	var m project.Membership
	err := row.Scan(&m.ID, &m.ProjectID, &m.Principal, &m.Role, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) AddMember(ctx context.Context, m *project.Membership) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO soloist_memberships (`+membershipCols+`)
VALUES (?, ?, ?, ?, ?, ?)`,
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
	row := s.db.QueryRowContext(ctx, `
SELECT `+membershipCols+` FROM soloist_memberships
WHERE project_id = ? AND principal = ?`, projectID, principal)
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
	rows, err := s.db.QueryContext(ctx, `
SELECT `+membershipCols+` FROM soloist_memberships
WHERE project_id = ? ORDER BY principal`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*project.Membership, 0)
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func (s *Store) UpdateMemberRole(ctx context.Context, projectID id.ProjectID, principal string, role access.Role) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE soloist_memberships SET role = ?, updated_at = CURRENT_TIMESTAMP
WHERE project_id = ? AND principal = ?`,
		string(role), projectID, principal)
	if err != nil {
		return err
	}
	return mustAffect(res, soloist.ErrMemberNotFound)
}

func (s *Store) RemoveMember(ctx context.Context, projectID id.ProjectID, principal string) error {
	res, err := s.db.ExecContext(ctx, `
DELETE FROM soloist_memberships WHERE project_id = ? AND principal = ?`,
		projectID, principal)
	if err != nil {
		return err
	}
	return mustAffect(res, soloist.ErrMemberNotFound)
}

func (s *Store) TransferOwnership(ctx context.Context, projectID id.ProjectID, newOwner string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var nextRole string
		err := tx.QueryRowContext(ctx, `
SELECT role FROM soloist_memberships WHERE project_id = ? AND principal = ?`,
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
		err = tx.QueryRowContext(ctx, `
SELECT principal FROM soloist_memberships WHERE project_id = ? AND role = ?`,
			projectID, string(access.RoleOwner)).Scan(&currentOwner)
		if err != nil {
			if isNoRows(err) {
				return soloist.ErrMemberNotFound
			}
			return err
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE soloist_memberships SET role = ?, updated_at = CURRENT_TIMESTAMP
WHERE project_id = ? AND principal = ?`,
			string(access.RoleContributor), projectID, currentOwner); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE soloist_memberships SET role = ?, updated_at = CURRENT_TIMESTAMP
WHERE project_id = ? AND principal = ?`,
			string(access.RoleOwner), projectID, newOwner); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
UPDATE soloist_projects SET owner_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			newOwner, projectID)
		return err
	})
}

// ==================== Time entries ====================

const entryCols = `id, project_id, task_id, author, start_at, end_at,
	source, billable, note, invoice_id, created_at, updated_at`

func scanEntry(row scannable) (*timeentry.Entry, error) {
	var (
		e      timeentry.Entry
		endAt  *time.Time
		source string
	)
	err := row.Scan(&e.ID, &e.ProjectID, &e.TaskID, &e.Author, &e.Interval.Start, &endAt,
		&source, &e.Billable, &e.Note, &e.InvoiceID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Interval.End = endAt
	e.Source = timeentry.Source(source)
	return &e, nil
}

func (s *Store) CreateEntry(ctx context.Context, e *timeentry.Entry) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if e.Running() {
			var conflict string
			err := tx.QueryRowContext(ctx, `
SELECT id FROM soloist_entries WHERE author = ? AND end_at IS NULL LIMIT 1`,
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

		_, err := tx.ExecContext(ctx, `
INSERT INTO soloist_entries (`+entryCols+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.ProjectID, e.TaskID, e.Author, e.Interval.Start, e.Interval.End,
			string(e.Source), e.Billable, e.Note, e.InvoiceID, e.CreatedAt, e.UpdatedAt)
		return err
	})
	if isUniqueViolation(err) {
		return soloist.ErrTimerRunning
	}
	return err
}

func checkOverlap(ctx context.Context, tx *sql.Tx, e *timeentry.Entry, excludeID id.EntryID) error {
	if e.Interval.End != nil && !e.Interval.Start.Before(*e.Interval.End) {
		return nil
	}

	open := e.Interval.End == nil
	var end time.Time
	if !open {
		end = *e.Interval.End
	}

	var conflict id.EntryID
	err := tx.QueryRowContext(ctx, `
SELECT id FROM soloist_entries
WHERE author = ?
  AND id <> ?
  AND (end_at IS NULL OR end_at > start_at)
  AND (? OR start_at < ?)
  AND (end_at IS NULL OR end_at > ?)
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
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryCols+` FROM soloist_entries WHERE id = ?`, entryID)
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
	row := s.db.QueryRowContext(ctx, `
SELECT `+entryCols+` FROM soloist_entries WHERE author = ? AND end_at IS NULL`, author)
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
	return s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+entryCols+` FROM soloist_entries WHERE id = ?`, entryID)
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

		_, err = tx.ExecContext(ctx, `
UPDATE soloist_entries SET end_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			end, entryID)
		return err
	})
}

func (s *Store) UpdateEntry(ctx context.Context, e *timeentry.Entry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		// Re-read inside the immediate transaction: a claim committed
		// after the facade's pre-check must not be overwritten here.
		if err := requireUnclaimed(ctx, tx, e.ID); err != nil {
			return err
		}
		if err := checkOverlap(ctx, tx, e, e.ID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
UPDATE soloist_entries
SET task_id = ?, start_at = ?, end_at = ?, billable = ?, note = ?,
    invoice_id = ?, updated_at = ?
WHERE id = ?`,
			e.TaskID, e.Interval.Start, e.Interval.End, e.Billable, e.Note,
			e.InvoiceID, e.UpdatedAt, e.ID)
		return err
	})
}

func (s *Store) DeleteEntry(ctx context.Context, entryID id.EntryID) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := requireUnclaimed(ctx, tx, entryID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM soloist_entries WHERE id = ?`, entryID)
		return err
	})
}

// requireUnclaimed fails with ErrEntryImmutable when an issued invoice
// holds a claim on the entry.
func requireUnclaimed(ctx context.Context, tx *sql.Tx, entryID id.EntryID) error {
	var claimedBy id.ID
	err := tx.QueryRowContext(ctx,
		`SELECT invoice_id FROM soloist_entries WHERE id = ?`, entryID).Scan(&claimedBy)
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
	q := `SELECT ` + entryCols + ` FROM soloist_entries WHERE project_id = ?`
	args := []any{projectID}
	if opts.Author != "" {
		q += ` AND author = ?`
		args = append(args, opts.Author)
	}
	if !opts.TaskID.IsNil() {
		q += ` AND task_id = ?`
		args = append(args, opts.TaskID)
	}
	if !opts.From.IsZero() {
		q += ` AND start_at >= ?`
		args = append(args, opts.From)
	}
	if !opts.To.IsZero() {
		q += ` AND start_at < ?`
		args = append(args, opts.To)
	}
	q += ` ORDER BY start_at`
	if opts.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		q += ` OFFSET ?`
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*timeentry.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *Store) SelectBillable(ctx context.Context, projectID id.ProjectID, from, to time.Time) ([]*timeentry.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+entryCols+` FROM soloist_entries
WHERE project_id = ?
  AND billable
  AND end_at IS NOT NULL
  AND invoice_id IS NULL
  AND start_at >= ? AND start_at < ?
ORDER BY start_at`,
		projectID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*timeentry.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// claimEntries flips the claim flag for every listed entry. Any missing or
// already-claimed entry aborts the whole set. Only MarkIssued calls this,
// inside its transaction.
func claimEntries(ctx context.Context, tx *sql.Tx, invoiceID id.InvoiceID, entryIDs []id.EntryID) error {
	if len(entryIDs) == 0 {
		return nil
	}

	args := make([]any, len(entryIDs))
	for i, entryID := range entryIDs {
		args[i] = entryID.String()
	}

	rows, err := tx.QueryContext(ctx, `
SELECT id, invoice_id FROM soloist_entries
WHERE id IN (`+placeholders(len(args))+`)`, args...)
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
	if found != len(entryIDs) {
		return soloist.ErrEntryNotFound
	}

	updateArgs := append([]any{invoiceID}, args...)
	_, err = tx.ExecContext(ctx, `
UPDATE soloist_entries SET invoice_id = ?, updated_at = CURRENT_TIMESTAMP
WHERE id IN (`+placeholders(len(args))+`)`, updateArgs...)
	return err
}

// ==================== Invoices ====================

const invoiceCols = `id, project_id, number, status, currency, period_from, period_to,
	line_items, total_amount, issued_at, voided_at, void_reason, created_at, updated_at`

func scanInvoice(row scannable) (*invoice.Invoice, error) {
	var (
		inv       invoice.Invoice
		status    string
		lineItems []byte
		totalAmt  int64
	)
	err := row.Scan(&inv.ID, &inv.ProjectID, &inv.Number, &status, &inv.Currency,
		&inv.PeriodFrom, &inv.PeriodTo, &lineItems, &totalAmt,
		&inv.IssuedAt, &inv.VoidedAt, &inv.VoidReason, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	inv.Status = invoice.Status(status)
	if err := json.Unmarshal(lineItems, &inv.LineItems); err != nil {
		return nil, fmt.Errorf("soloist/sqlite: decode line items for %s: %w", inv.ID, err)
	}
	inv.Total = types.Money{Amount: totalAmt, Currency: inv.Currency}
	return &inv, nil
}

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	lineItems, err := json.Marshal(inv.LineItems)
	if err != nil {
		return fmt.Errorf("soloist/sqlite: encode line items: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO soloist_invoices (`+invoiceCols+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.ProjectID, inv.Number, string(inv.Status), inv.Currency,
		inv.PeriodFrom, inv.PeriodTo, lineItems, inv.Total.Amount,
		inv.IssuedAt, inv.VoidedAt, inv.VoidReason, inv.CreatedAt, inv.UpdatedAt)
	return err
}

func (s *Store) GetInvoice(ctx context.Context, invoiceID id.InvoiceID) (*invoice.Invoice, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+invoiceCols+` FROM soloist_invoices WHERE id = ?`, invoiceID)
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
	q := `SELECT ` + invoiceCols + ` FROM soloist_invoices WHERE project_id = ?`
	args := []any{projectID}
	if opts.Status != "" {
		q += ` AND status = ?`
		args = append(args, string(opts.Status))
	}
	q += ` ORDER BY id`
	if opts.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		q += ` OFFSET ?`
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*invoice.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, inv)
	}
	return result, rows.Err()
}

func (s *Store) MarkIssued(ctx context.Context, invoiceID id.InvoiceID, number string, issuedAt time.Time) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+invoiceCols+` FROM soloist_invoices WHERE id = ?`, invoiceID)
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

		if err := claimEntries(ctx, tx, invoiceID, inv.EntryIDs()); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
UPDATE soloist_invoices
SET status = ?, number = ?, issued_at = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?`,
			string(invoice.StatusIssued), number, issuedAt, invoiceID)
		return err
	})
}

func (s *Store) MarkVoided(ctx context.Context, invoiceID id.InvoiceID, reason string, voidedAt time.Time) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM soloist_invoices WHERE id = ?`, invoiceID).Scan(&status)
		if err != nil {
			if isNoRows(err) {
				return soloist.ErrInvoiceNotFound
			}
			return err
		}
		if !invoice.CanTransition(invoice.Status(status), invoice.StatusVoid) {
			return soloist.ErrInvalidTransition
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE soloist_entries SET invoice_id = NULL, updated_at = CURRENT_TIMESTAMP
WHERE invoice_id = ?`, invoiceID); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
UPDATE soloist_invoices
SET status = ?, voided_at = ?, void_reason = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?`,
			string(invoice.StatusVoid), voidedAt, reason, invoiceID)
		return err
	})
}

func (s *Store) DeleteDraft(ctx context.Context, invoiceID id.InvoiceID) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM soloist_invoices WHERE id = ?`, invoiceID).Scan(&status)
		if err != nil {
			if isNoRows(err) {
				return soloist.ErrInvoiceNotFound
			}
			return err
		}
		if invoice.Status(status) != invoice.StatusDraft {
			return soloist.ErrInvoiceNotDraft
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM soloist_invoices WHERE id = ?`, invoiceID)
		return err
	})
}

func (s *Store) NextInvoiceSequence(ctx context.Context, projectID id.ProjectID, year int) (int64, error) {
	var value int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO soloist_invoice_sequences (project_id, year, value)
VALUES (?, ?, 1)
ON CONFLICT (project_id, year) DO UPDATE SET value = value + 1`,
			projectID, year); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, `
SELECT value FROM soloist_invoice_sequences WHERE project_id = ? AND year = ?`,
			projectID, year).Scan(&value)
	})
	return value, err
}

// ==================== Share links ====================

const shareLinkCols = `id, token, project_id, kind, invoice_id, from_at, to_at,
	created_by, expires_at, revoked, created_at, updated_at`

func scanShareLink(row scannable) (*share.Link, error) {
	var (
		l    share.Link
		kind string
		from *time.Time
		to   *time.Time
	)
	err := row.Scan(&l.ID, &l.Token, &l.Target.ProjectID, &kind, &l.Target.InvoiceID,
		&from, &to, &l.CreatedBy, &l.ExpiresAt, &l.Revoked, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.Target.Kind = share.TargetKind(kind)
	if from != nil {
		l.Target.From = *from
	}
	if to != nil {
		l.Target.To = *to
	}
	return &l, nil
}

func (s *Store) CreateShareLink(ctx context.Context, l *share.Link) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO soloist_share_links (`+shareLinkCols+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Token, l.Target.ProjectID, string(l.Target.Kind), l.Target.InvoiceID,
		nullTime(l.Target.From), nullTime(l.Target.To),
		l.CreatedBy, l.ExpiresAt, l.Revoked, l.CreatedAt, l.UpdatedAt)
	return err
}

func (s *Store) GetShareLink(ctx context.Context, linkID id.ShareLinkID) (*share.Link, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+shareLinkCols+` FROM soloist_share_links WHERE id = ?`, linkID)
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
	row := s.db.QueryRowContext(ctx,
		`SELECT `+shareLinkCols+` FROM soloist_share_links WHERE token = ?`, token)
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
	rows, err := s.db.QueryContext(ctx, `
SELECT `+shareLinkCols+` FROM soloist_share_links
WHERE project_id = ? ORDER BY id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*share.Link, 0)
	for rows.Next() {
		l, err := scanShareLink(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

func (s *Store) RevokeShareLink(ctx context.Context, linkID id.ShareLinkID) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE soloist_share_links SET revoked = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, linkID)
	if err != nil {
		return err
	}
	return mustAffect(res, soloist.ErrShareNotFound)
}

func (s *Store) DeleteShareLink(ctx context.Context, linkID id.ShareLinkID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM soloist_share_links WHERE id = ?`, linkID)
	if err != nil {
		return err
	}
	return mustAffect(res, soloist.ErrShareNotFound)
}

// ==================== Audit ====================

func (s *Store) AppendAudit(ctx context.Context, rec *audit.Record) error {
	detail, err := json.Marshal(rec.Detail)
	if err != nil {
		return fmt.Errorf("soloist/sqlite: encode audit detail: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO soloist_audit (id, project_id, actor, action, entity_kind, entity_id, at, detail)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.ProjectID, rec.Actor, rec.Action,
		rec.EntityKind, rec.EntityID, rec.At, detail)
	return err
}

func (s *Store) ListAudit(ctx context.Context, projectID id.ProjectID, limit int) ([]*audit.Record, error) {
	q := `
SELECT id, project_id, actor, action, entity_kind, entity_id, at, detail
FROM soloist_audit WHERE project_id = ? ORDER BY at DESC`
	args := []any{projectID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
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
				return nil, fmt.Errorf("soloist/sqlite: decode audit detail: %w", err)
			}
		}
		result = append(result, &rec)
	}
	return result, rows.Err()
}
