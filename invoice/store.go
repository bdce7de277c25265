package invoice

import (
	"context"
	"time"

	"github.com/eduar766/soloist-back/id"
)

// Store is the storage contract for invoices.
type Store interface {
	CreateInvoice(ctx context.Context, inv *Invoice) error
	GetInvoice(ctx context.Context, invoiceID id.InvoiceID) (*Invoice, error)
	ListInvoices(ctx context.Context, projectID id.ProjectID, opts ListOpts) ([]*Invoice, error)

	// MarkIssued transitions draft→issued, records number and timestamp, and
	// claims every referenced entry in the same atomic scope. All-or-nothing:
	// a claim conflict rolls back the transition.
	MarkIssued(ctx context.Context, invoiceID id.InvoiceID, number string, issuedAt time.Time) error

	// MarkVoided transitions issued→void and releases the entry claims.
	MarkVoided(ctx context.Context, invoiceID id.InvoiceID, reason string, voidedAt time.Time) error

	// DeleteDraft removes a draft invoice. Issued and void invoices are
	// permanent and cannot be deleted.
	DeleteDraft(ctx context.Context, invoiceID id.InvoiceID) error

	// NextInvoiceSequence reserves the next per-project sequence number for
	// the given year.
	NextInvoiceSequence(ctx context.Context, projectID id.ProjectID, year int) (int64, error)
}

// ListOpts filters invoice listings.
type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
