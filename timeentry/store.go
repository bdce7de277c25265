package timeentry

import (
	"context"
	"time"

	"github.com/eduar766/soloist-back/id"
)

// Store is the storage contract for the time entry ledger. Implementations
// own the atomicity of the two check-then-write races:
//
//   - CreateEntry for an open interval must reject a second running timer
//     for the same author, and any closed insert must reject author-level
//     overlap, atomically against concurrent requests (lock, serializable
//     transaction, or unique-index backstop, never facade-level locking).
//   - UpdateEntry and DeleteEntry must refuse entries claimed by an issued
//     invoice inside the same atomic scope; a facade-level pre-check alone
//     would race a concurrent issue. Claims flip only when an invoice is
//     issued or voided, all-or-nothing, in the invoice store operations.
type Store interface {
	// CreateEntry inserts an entry after enforcing the per-author invariants.
	// Returns ErrTimerRunning, or an *OverlapError naming the conflicting
	// entry, from the root package.
	CreateEntry(ctx context.Context, e *Entry) error

	GetEntry(ctx context.Context, entryID id.EntryID) (*Entry, error)

	// GetRunningEntry returns the author's open timer, if any.
	GetRunningEntry(ctx context.Context, author string) (*Entry, error)

	// CloseEntry sets the end bound of a running entry.
	CloseEntry(ctx context.Context, entryID id.EntryID, end time.Time) error

	// UpdateEntry rewrites an entry's bounds and fields, re-validating the
	// overlap invariant with the entry itself excluded. Returns
	// ErrEntryImmutable when the stored entry is claimed.
	UpdateEntry(ctx context.Context, e *Entry) error

	// DeleteEntry removes an entry. Returns ErrEntryImmutable when the
	// stored entry is claimed.
	DeleteEntry(ctx context.Context, entryID id.EntryID) error

	ListEntries(ctx context.Context, projectID id.ProjectID, opts ListOpts) ([]*Entry, error)

	// SelectBillable returns the billable, closed, unclaimed entries of a
	// project whose start lies in [from, to), ordered by start time.
	SelectBillable(ctx context.Context, projectID id.ProjectID, from, to time.Time) ([]*Entry, error)
}

// ListOpts filters ledger listings.
type ListOpts struct {
	Author string
	TaskID id.TaskID
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}
