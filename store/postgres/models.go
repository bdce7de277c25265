package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/eduar766/soloist-back/invoice"
	"github.com/eduar766/soloist-back/project"
	"github.com/eduar766/soloist-back/share"
	"github.com/eduar766/soloist-back/timeentry"
	"github.com/eduar766/soloist-back/types"
)

// scannable is satisfied by both pgx.Row and pgx.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// optMoney reassembles an optional money value from its column pair.
func optMoney(amount *int64, currency *string) *types.Money {
	if amount == nil || currency == nil {
		return nil
	}
	return &types.Money{Amount: *amount, Currency: *currency}
}

// moneyCols splits an optional money value into its column pair.
func moneyCols(m *types.Money) (*int64, *string) {
	if m == nil {
		return nil, nil
	}
	return &m.Amount, &m.Currency
}

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

const clientCols = `id, owner_id, name, email, notes, created_at, updated_at`

func scanClient(row scannable) (*project.Client, error) {
	var c project.Client
	err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Email, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

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

const membershipCols = `id, project_id, principal, role, created_at, updated_at`

func scanMembership(row scannable) (*project.Membership, error) {
	var m project.Membership
	err := row.Scan(&m.ID, &m.ProjectID, &m.Principal, &m.Role, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

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
		return nil, fmt.Errorf("soloist/postgres: decode line items for %s: %w", inv.ID, err)
	}
	inv.Total = types.Money{Amount: totalAmt, Currency: inv.Currency}
	return &inv, nil
}

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

// collect drains rows through one of the scan helpers.
func collect[T any](rows pgx.Rows, scan func(scannable) (*T, error)) ([]*T, error) {
	defer rows.Close()

	result := make([]*T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}
