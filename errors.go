package soloist

import (
	"errors"
	"fmt"

	"github.com/eduar766/soloist-back/id"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound     = errors.New("soloist: not found")
	ErrInvalidInput = errors.New("soloist: invalid input")

	// Project errors
	ErrProjectNotFound    = errors.New("soloist: project not found")
	ErrProjectArchived    = errors.New("soloist: project is archived")
	ErrProjectHasInvoices = errors.New("soloist: project has issued invoices")
	ErrCurrencyLocked     = errors.New("soloist: currency is locked once entries or invoices exist")
	ErrClientNotFound     = errors.New("soloist: client not found")
	ErrTaskNotFound       = errors.New("soloist: task not found")

	// Membership errors
	ErrMemberNotFound = errors.New("soloist: membership not found")
	ErrMemberExists   = errors.New("soloist: principal is already a member")
	ErrLastOwner      = errors.New("soloist: project must keep exactly one owner")
	ErrNotOwner       = errors.New("soloist: principal is not the project owner")

	// Time entry errors
	ErrEntryNotFound  = errors.New("soloist: time entry not found")
	ErrTimerRunning   = errors.New("soloist: author already has a running timer")
	ErrTimerNotFound  = errors.New("soloist: no running timer for author")
	ErrInvalidRange   = errors.New("soloist: end precedes start")
	ErrEntryImmutable = errors.New("soloist: entry is claimed by an issued invoice")

	// Invoice errors
	ErrInvoiceNotFound   = errors.New("soloist: invoice not found")
	ErrInvoiceNotDraft   = errors.New("soloist: invoice is not a draft")
	ErrInvoiceNotIssued  = errors.New("soloist: invoice is not issued")
	ErrInvoiceImmutable  = errors.New("soloist: issued invoice is frozen")
	ErrEmptyInvoice      = errors.New("soloist: no billable entries matched")
	ErrEntryClaimed      = errors.New("soloist: entry already claimed by another invoice")
	ErrNoRate            = errors.New("soloist: no rate configured for task or project")
	ErrInvalidTransition = errors.New("soloist: invalid invoice state transition")

	// Share link errors
	ErrShareNotFound = errors.New("soloist: share link not found")
	ErrShareDenied   = errors.New("soloist: share link denied")

	// Collaborator errors
	ErrRendering          = errors.New("soloist: document rendering failed")
	ErrStorageUnavailable = errors.New("soloist: blob storage unavailable")

	// Store errors
	ErrStoreClosed       = errors.New("soloist: store is closed")
	ErrTransactionFailed = errors.New("soloist: transaction failed")
	ErrMigrationFailed   = errors.New("soloist: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("soloist: validation failed for %s: %s", e.Field, e.Message)
}

// Is allows errors.Is(err, ErrInvalidInput) to match validation failures.
func (e ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// AuthzError reports an authorization denial with the role and action that
// produced it. It is returned by every facade method that fails its
// access-control check.
type AuthzError struct {
	Principal string
	Project   id.ProjectID
	Action    string
	Reason    string
}

func (e AuthzError) Error() string {
	return fmt.Sprintf("soloist: %s denied for %s on %s: %s", e.Action, e.Principal, e.Project, e.Reason)
}

// OverlapError reports that a time interval would collide with an existing
// entry belonging to the same author. ConflictingID names the entry that
// already occupies the range.
type OverlapError struct {
	ConflictingID id.EntryID
}

func (e OverlapError) Error() string {
	return fmt.Sprintf("soloist: interval overlaps existing entry %s", e.ConflictingID)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrProjectNotFound) ||
		errors.Is(err, ErrClientNotFound) ||
		errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrMemberNotFound) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrTimerNotFound) ||
		errors.Is(err, ErrInvoiceNotFound) ||
		errors.Is(err, ErrShareNotFound)
}

// IsConflict returns true if the error reports a state invariant that would
// be violated by the attempted write.
func IsConflict(err error) bool {
	var overlap OverlapError
	return errors.Is(err, ErrTimerRunning) ||
		errors.Is(err, ErrEntryClaimed) ||
		errors.Is(err, ErrMemberExists) ||
		errors.As(err, &overlap)
}

// IsAuthz returns true if the error is an authorization denial.
func IsAuthz(err error) bool {
	var authz AuthzError
	return errors.As(err, &authz)
}

// IsImmutable returns true if the error reports an attempted mutation of
// frozen data.
func IsImmutable(err error) bool {
	return errors.Is(err, ErrEntryImmutable) ||
		errors.Is(err, ErrInvoiceImmutable) ||
		errors.Is(err, ErrCurrencyLocked)
}

// IsRetryable returns true if the error is temporary and the operation can
// be retried. Collaborator outages qualify; business conflicts do not.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRendering) ||
		errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrTransactionFailed)
}
