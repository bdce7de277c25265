package soloist

import (
	"context"
	"time"

	"github.com/eduar766/soloist-back/access"
	"github.com/eduar766/soloist-back/audit"
	"github.com/eduar766/soloist-back/id"
	"github.com/eduar766/soloist-back/timeentry"
	"github.com/eduar766/soloist-back/types"
)

// ──────────────────────────────────────────────────
// Time Tracking
// ──────────────────────────────────────────────────

// StartTimer opens a running entry for the principal at the current
// instant. One per author, globally: the store rejects a second running
// timer whatever project it belongs to.
func (s *Soloist) StartTimer(ctx context.Context, principal string, projectID id.ProjectID, taskID id.TaskID, note string) (*timeentry.Entry, error) {
	p, _, err := s.authorize(ctx, principal, projectID, access.ActionTrackTime)
	if err != nil {
		return nil, err
	}
	if !p.Active() {
		return nil, ErrProjectArchived
	}
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.ProjectID != projectID {
		return nil, ErrTaskNotFound
	}

	now := s.now()
	e := &timeentry.Entry{
		Entity:    types.NewEntityAt(now),
		ID:        id.NewEntryID(),
		ProjectID: projectID,
		TaskID:    taskID,
		Author:    principal,
		Interval:  types.OpenInterval(now),
		Source:    timeentry.SourceTimer,
		Billable:  true,
		Note:      note,
	}
	if err := s.store.CreateEntry(ctx, e); err != nil {
		return nil, err
	}

	s.record(ctx, audit.NewRecord(projectID, principal, "timer.start", "entry", e.ID.String(), now))
	s.plugins.EmitTimerStarted(ctx, e)
	return e, nil
}

// StopTimer closes the principal's running timer and returns the finished
// entry. A zero end closes at the current instant; an explicit end lets a
// forgotten timer be closed retroactively, as long as it does not precede
// the start (ErrInvalidRange). Durations are whole seconds; the fraction of
// the final second is dropped here, once, rather than at billing time.
func (s *Soloist) StopTimer(ctx context.Context, principal string, end time.Time) (*timeentry.Entry, error) {
	running, err := s.store.GetRunningEntry(ctx, principal)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.authorize(ctx, principal, running.ProjectID, access.ActionTrackTime); err != nil {
		return nil, err
	}

	now := s.now()
	if end.IsZero() {
		end = now
	}
	if err := s.store.CloseEntry(ctx, running.ID, end.UTC()); err != nil {
		return nil, err
	}

	e, err := s.store.GetEntry(ctx, running.ID)
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.NewRecord(e.ProjectID, principal, "timer.stop", "entry", e.ID.String(), now))
	s.plugins.EmitTimerStopped(ctx, e)
	return e, nil
}

// RunningTimer returns the principal's open timer, or ErrTimerNotFound.
func (s *Soloist) RunningTimer(ctx context.Context, principal string) (*timeentry.Entry, error) {
	return s.store.GetRunningEntry(ctx, principal)
}

// EntryInput carries the fields of a manual entry.
type EntryInput struct {
	ProjectID id.ProjectID
	TaskID    id.TaskID
	Author    string // defaults to the acting principal
	Start     time.Time
	End       time.Time
	Billable  bool
	Note      string
}

// RecordEntry inserts a closed manual entry. Recording on behalf of another
// author requires the edit_others_time grant. The store rejects any overlap
// with the author's existing intervals, a running timer included.
func (s *Soloist) RecordEntry(ctx context.Context, principal string, in EntryInput) (*timeentry.Entry, error) {
	author := in.Author
	if author == "" {
		author = principal
	}
	action := access.ActionTrackTime
	if author != principal {
		action = access.ActionEditOthersTime
	}

	p, _, err := s.authorize(ctx, principal, in.ProjectID, action)
	if err != nil {
		return nil, err
	}
	if !p.Active() {
		return nil, ErrProjectArchived
	}
	t, err := s.store.GetTask(ctx, in.TaskID)
	if err != nil {
		return nil, err
	}
	if t.ProjectID != in.ProjectID {
		return nil, ErrTaskNotFound
	}

	iv, err := types.NewInterval(in.Start, in.End)
	if err != nil {
		return nil, ErrInvalidRange
	}

	now := s.now()
	e := &timeentry.Entry{
		Entity:    types.NewEntityAt(now),
		ID:        id.NewEntryID(),
		ProjectID: in.ProjectID,
		TaskID:    in.TaskID,
		Author:    author,
		Interval:  iv,
		Source:    timeentry.SourceManual,
		Billable:  in.Billable,
		Note:      in.Note,
	}
	if err := s.store.CreateEntry(ctx, e); err != nil {
		return nil, err
	}

	s.record(ctx, audit.NewRecord(in.ProjectID, principal, "entry.record", "entry", e.ID.String(), now).
		WithDetail("author", author))
	s.plugins.EmitEntryRecorded(ctx, e)
	return e, nil
}

// GetEntry retrieves one entry the principal can view.
func (s *Soloist) GetEntry(ctx context.Context, principal string, entryID id.EntryID) (*timeentry.Entry, error) {
	e, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.authorize(ctx, principal, e.ProjectID, access.ActionView); err != nil {
		return nil, err
	}
	return e, nil
}

// ListEntries lists a project's entries with optional filters.
func (s *Soloist) ListEntries(ctx context.Context, principal string, projectID id.ProjectID, opts timeentry.ListOpts) ([]*timeentry.Entry, error) {
	if _, _, err := s.authorize(ctx, principal, projectID, access.ActionView); err != nil {
		return nil, err
	}
	return s.store.ListEntries(ctx, projectID, opts)
}

// EntryUpdate carries the mutable entry fields. Nil pointers leave the
// field untouched.
type EntryUpdate struct {
	TaskID   *id.TaskID
	Start    *time.Time
	End      *time.Time
	Billable *bool
	Note     *string
}

// EditEntry rewrites a closed entry's fields. Entries claimed by an issued
// invoice are immutable until that invoice is voided; entries referenced
// only by a draft remain editable, since drafts hold no claim.
func (s *Soloist) EditEntry(ctx context.Context, principal string, entryID id.EntryID, upd EntryUpdate) (*timeentry.Entry, error) {
	e, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	action := access.ActionTrackTime
	if e.Author != principal {
		action = access.ActionEditOthersTime
	}
	p, _, err := s.authorize(ctx, principal, e.ProjectID, action)
	if err != nil {
		return nil, err
	}
	if !p.Active() {
		return nil, ErrProjectArchived
	}
	if e.Claimed() {
		return nil, ErrEntryImmutable
	}
	if e.Running() {
		return nil, ValidationError{Field: "entry", Message: "stop the timer before editing"}
	}

	if upd.TaskID != nil {
		t, err := s.store.GetTask(ctx, *upd.TaskID)
		if err != nil {
			return nil, err
		}
		if t.ProjectID != e.ProjectID {
			return nil, ErrTaskNotFound
		}
		e.TaskID = *upd.TaskID
	}
	start := e.Interval.Start
	end := *e.Interval.End
	if upd.Start != nil {
		start = *upd.Start
	}
	if upd.End != nil {
		end = *upd.End
	}
	iv, err := types.NewInterval(start, end)
	if err != nil {
		return nil, ErrInvalidRange
	}
	e.Interval = iv
	if upd.Billable != nil {
		e.Billable = *upd.Billable
	}
	if upd.Note != nil {
		e.Note = *upd.Note
	}

	now := s.now()
	e.TouchAt(now)
	if err := s.store.UpdateEntry(ctx, e); err != nil {
		return nil, err
	}

	s.record(ctx, audit.NewRecord(e.ProjectID, principal, "entry.edit", "entry", e.ID.String(), now))
	return e, nil
}

// DeleteEntry removes an entry from the ledger. Claimed entries are
// immutable; void the invoice first.
func (s *Soloist) DeleteEntry(ctx context.Context, principal string, entryID id.EntryID) error {
	e, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}

	action := access.ActionTrackTime
	if e.Author != principal {
		action = access.ActionEditOthersTime
	}
	p, _, err := s.authorize(ctx, principal, e.ProjectID, action)
	if err != nil {
		return err
	}
	if !p.Active() {
		return ErrProjectArchived
	}
	if e.Claimed() {
		return ErrEntryImmutable
	}

	if err := s.store.DeleteEntry(ctx, entryID); err != nil {
		return err
	}

	s.record(ctx, audit.NewRecord(e.ProjectID, principal, "entry.delete", "entry", e.ID.String(), s.now()))
	return nil
}
