// Package store declares the unified storage interface for all soloist
// entities. Implementations live in the sibling memory, postgres, and
// sqlite packages.
package store

import (
	"context"
	"time"

	"github.com/eduar766/soloist-back/access"
	"github.com/eduar766/soloist-back/audit"
	"github.com/eduar766/soloist-back/id"
	"github.com/eduar766/soloist-back/invoice"
	"github.com/eduar766/soloist-back/project"
	"github.com/eduar766/soloist-back/share"
	"github.com/eduar766/soloist-back/timeentry"
)

// Store is the unified storage interface. Instead of embedding the
// per-package sub-interfaces, all methods are declared explicitly to avoid
// naming conflicts.
//
// Implementations carry the concurrency contract: the running-timer
// check-then-insert, the closed-interval overlap check, and the
// claim-on-issue flip each execute atomically against concurrent requests
// (mutex, serializable transaction, or conditional update; the facade
// never takes locks of its own).
type Store interface {
	// Project methods

	// CreateProject inserts the project together with its owner membership
	// in one atomic scope, so a project is never observable without an
	// owner.
	CreateProject(ctx context.Context, p *project.Project, owner *project.Membership) error
	GetProject(ctx context.Context, projectID id.ProjectID) (*project.Project, error)
	ListProjects(ctx context.Context, principal string, opts project.ListOpts) ([]*project.Project, error)
	UpdateProject(ctx context.Context, p *project.Project) error
	DeleteProject(ctx context.Context, projectID id.ProjectID) error

	// ProjectHasBillingHistory reports whether any time entry or invoice
	// exists for the project. Once true, the declared currency is locked.
	ProjectHasBillingHistory(ctx context.Context, projectID id.ProjectID) (bool, error)

	// Client methods
	CreateClient(ctx context.Context, c *project.Client) error
	GetClient(ctx context.Context, clientID id.ClientID) (*project.Client, error)
	ListClients(ctx context.Context, ownerID string) ([]*project.Client, error)
	UpdateClient(ctx context.Context, c *project.Client) error
	DeleteClient(ctx context.Context, clientID id.ClientID) error

	// Task methods
	CreateTask(ctx context.Context, t *project.Task) error
	GetTask(ctx context.Context, taskID id.TaskID) (*project.Task, error)
	ListTasks(ctx context.Context, projectID id.ProjectID) ([]*project.Task, error)
	UpdateTask(ctx context.Context, t *project.Task) error
	DeleteTask(ctx context.Context, taskID id.TaskID) error

	// Membership methods
	AddMember(ctx context.Context, m *project.Membership) error
	GetMembership(ctx context.Context, projectID id.ProjectID, principal string) (*project.Membership, error)
	ListMembers(ctx context.Context, projectID id.ProjectID) ([]*project.Membership, error)
	UpdateMemberRole(ctx context.Context, projectID id.ProjectID, principal string, role access.Role) error
	RemoveMember(ctx context.Context, projectID id.ProjectID, principal string) error
	TransferOwnership(ctx context.Context, projectID id.ProjectID, newOwner string) error

	// Time entry methods
	//
	// UpdateEntry and DeleteEntry refuse entries claimed by an issued
	// invoice (ErrEntryImmutable) inside their own atomic scope; the
	// facade's pre-check alone would race a concurrent MarkIssued.
	// Claiming and releasing themselves happen only inside MarkIssued
	// and MarkVoided.
	CreateEntry(ctx context.Context, e *timeentry.Entry) error
	GetEntry(ctx context.Context, entryID id.EntryID) (*timeentry.Entry, error)
	GetRunningEntry(ctx context.Context, author string) (*timeentry.Entry, error)
	CloseEntry(ctx context.Context, entryID id.EntryID, end time.Time) error
	UpdateEntry(ctx context.Context, e *timeentry.Entry) error
	DeleteEntry(ctx context.Context, entryID id.EntryID) error
	ListEntries(ctx context.Context, projectID id.ProjectID, opts timeentry.ListOpts) ([]*timeentry.Entry, error)
	SelectBillable(ctx context.Context, projectID id.ProjectID, from, to time.Time) ([]*timeentry.Entry, error)

	// Invoice methods
	CreateInvoice(ctx context.Context, inv *invoice.Invoice) error
	GetInvoice(ctx context.Context, invoiceID id.InvoiceID) (*invoice.Invoice, error)
	ListInvoices(ctx context.Context, projectID id.ProjectID, opts invoice.ListOpts) ([]*invoice.Invoice, error)
	MarkIssued(ctx context.Context, invoiceID id.InvoiceID, number string, issuedAt time.Time) error
	MarkVoided(ctx context.Context, invoiceID id.InvoiceID, reason string, voidedAt time.Time) error
	DeleteDraft(ctx context.Context, invoiceID id.InvoiceID) error
	NextInvoiceSequence(ctx context.Context, projectID id.ProjectID, year int) (int64, error)

	// Share link methods
	CreateShareLink(ctx context.Context, l *share.Link) error
	GetShareLink(ctx context.Context, linkID id.ShareLinkID) (*share.Link, error)
	GetShareLinkByToken(ctx context.Context, token string) (*share.Link, error)
	ListShareLinks(ctx context.Context, projectID id.ProjectID) ([]*share.Link, error)
	RevokeShareLink(ctx context.Context, linkID id.ShareLinkID) error
	DeleteShareLink(ctx context.Context, linkID id.ShareLinkID) error

	// Audit methods
	AppendAudit(ctx context.Context, rec *audit.Record) error
	ListAudit(ctx context.Context, projectID id.ProjectID, limit int) ([]*audit.Record, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
