// Package invoice defines the immutable invoice snapshot produced by
// consolidating a project's time entries.
package invoice

import (
	"fmt"
	"time"

	"github.com/eduar766/soloist-back/id"
	"github.com/eduar766/soloist-back/types"
)

// Status is the invoice lifecycle state.
type Status string

const (
	StatusDraft  Status = "draft"
	StatusIssued Status = "issued"
	StatusVoid   Status = "void"
)

// CanTransition is the single place the draft → issued → void machine is
// written down. Drafts may also be discarded outright, which is a deletion,
// not a transition.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusDraft:
		return to == StatusIssued
	case StatusIssued:
		return to == StatusVoid
	default:
		return false
	}
}

// Invoice is a consolidation snapshot over a half-open period [PeriodFrom,
// PeriodTo). Once issued, line items and totals are frozen; changes after
// that point are audit records, never in-place edits. Total is always the
// exact integer sum of line item amounts.
type Invoice struct {
	types.Entity
	ID         id.InvoiceID `json:"id"`
	ProjectID  id.ProjectID `json:"project_id"`
	Number     string       `json:"number,omitempty"` // assigned at issue
	Status     Status       `json:"status"`
	Currency   string       `json:"currency"` // inherited from the project
	PeriodFrom time.Time    `json:"period_from"`
	PeriodTo   time.Time    `json:"period_to"`
	LineItems  []LineItem   `json:"line_items"`
	Total      types.Money  `json:"total"`
	IssuedAt   *time.Time   `json:"issued_at,omitempty"`
	VoidedAt   *time.Time   `json:"voided_at,omitempty"`
	VoidReason string       `json:"void_reason,omitempty"`
}

// LineItem is one (task, rate) group of consolidated entries. Quantity is
// the summed duration in seconds; Amount is quantity × rate with
// round-half-up applied exactly once, at this line.
type LineItem struct {
	ID          id.LineItemID `json:"id"`
	InvoiceID   id.InvoiceID  `json:"invoice_id"`
	TaskID      id.TaskID     `json:"task_id"`
	Description string        `json:"description"`
	Quantity    int64         `json:"quantity"` // seconds
	UnitRate    types.Money   `json:"unit_rate"`
	Amount      types.Money   `json:"amount"`
	EntryIDs    []id.EntryID  `json:"entry_ids"`
}

// Draft reports whether the invoice can still be regenerated or discarded.
func (inv *Invoice) Draft() bool { return inv.Status == StatusDraft }

// Issued reports whether the invoice is frozen and its entries claimed.
func (inv *Invoice) Issued() bool { return inv.Status == StatusIssued }

// Void reports whether the invoice was voided after issue.
func (inv *Invoice) Void() bool { return inv.Status == StatusVoid }

// EntryIDs returns every time entry referenced across all line items.
func (inv *Invoice) EntryIDs() []id.EntryID {
	var out []id.EntryID
	for _, li := range inv.LineItems {
		out = append(out, li.EntryIDs...)
	}
	return out
}

// RecomputeTotal sums the line item amounts. It is idempotent: recomputing
// an unchanged invoice yields an identical total.
func (inv *Invoice) RecomputeTotal() types.Money {
	total := types.Zero(inv.Currency)
	for _, li := range inv.LineItems {
		total = total.Add(li.Amount)
	}
	return total
}

// FormatNumber renders the sequential per-project invoice number, e.g.
// "SOL-2025-0007".
func FormatNumber(year int, seq int64) string {
	return fmt.Sprintf("SOL-%d-%04d", year, seq)
}
