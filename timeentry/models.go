// Package timeentry defines the time entry ledger records.
//
// The load-bearing invariant lives here: for any one author, closed
// intervals never overlap and at most one entry is running. Overlap is a
// property of the person's time, not of the task: a person cannot work two
// intervals at once, whatever they are booked against.
package timeentry

import (
	"time"

	"github.com/eduar766/soloist-back/id"
	"github.com/eduar766/soloist-back/types"
)

// Source records how an entry came to exist.
type Source string

const (
	SourceTimer  Source = "timer"
	SourceManual Source = "manual"
)

// Entry is one tracked interval of work. End is nil while a timer runs.
// InvoiceID is the claim flag: set when an issued invoice bills this entry,
// cleared when that invoice is voided. A claimed entry is immutable.
type Entry struct {
	types.Entity
	ID        id.EntryID     `json:"id"`
	ProjectID id.ProjectID   `json:"project_id"`
	TaskID    id.TaskID      `json:"task_id"`
	Author    string         `json:"author"` // opaque principal
	Interval  types.Interval `json:"interval"`
	Source    Source         `json:"source"`
	Billable  bool           `json:"billable"`
	Note      string         `json:"note,omitempty"`
	InvoiceID id.InvoiceID   `json:"invoice_id,omitempty"`
}

// Running reports whether the entry is an open timer.
func (e *Entry) Running() bool { return e.Interval.IsOpen() }

// Claimed reports whether an issued invoice bills this entry.
func (e *Entry) Claimed() bool { return !e.InvoiceID.IsNil() }

// Seconds returns the closed duration in whole seconds.
func (e *Entry) Seconds() int64 { return e.Interval.Seconds() }

// SelectableFor reports whether the entry belongs on an invoice draft for
// the half-open period [from, to): billable, closed, unclaimed, and starting
// inside the period. An entry straddling the period boundary bills on the
// period containing its start; a single entry never splits across invoices.
func (e *Entry) SelectableFor(from, to time.Time) bool {
	if !e.Billable || e.Running() || e.Claimed() {
		return false
	}
	return !e.Interval.Start.Before(from) && e.Interval.Start.Before(to)
}
