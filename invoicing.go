package soloist

import (
	"context"
	"sort"
	"time"

	"github.com/eduar766/soloist-back/access"
	"github.com/eduar766/soloist-back/audit"
	"github.com/eduar766/soloist-back/id"
	"github.com/eduar766/soloist-back/invoice"
	"github.com/eduar766/soloist-back/types"
)

// ──────────────────────────────────────────────────
// Invoice Consolidation
// ──────────────────────────────────────────────────

// GenerateInvoice consolidates the project's billable, closed, unclaimed
// entries with start in [from, to) into a draft. Entries group by (task,
// effective rate); each line sums its durations in whole seconds and
// rounds half-up exactly once, at the line amount. Regenerating the same
// period replaces the previous draft with identical content: consolidation
// is deterministic, so the draft is reproducible from the ledger.
func (s *Soloist) GenerateInvoice(ctx context.Context, principal string, projectID id.ProjectID, from, to time.Time) (*invoice.Invoice, error) {
	p, _, err := s.authorize(ctx, principal, projectID, access.ActionIssueInvoice)
	if err != nil {
		return nil, err
	}
	if !p.Active() {
		return nil, ErrProjectArchived
	}
	if !from.Before(to) {
		return nil, ErrInvalidRange
	}

	entries, err := s.store.SelectBillable(ctx, projectID, from, to)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrEmptyInvoice
	}

	tasks, err := s.store.ListTasks(ctx, projectID)
	if err != nil {
		return nil, err
	}
	taskByID := make(map[id.TaskID]*taskGroupKey, len(tasks))
	for _, t := range tasks {
		rate, ok := t.EffectiveRate(p)
		taskByID[t.ID] = &taskGroupKey{name: t.Name, rate: rate, hasRate: ok}
	}

	// Group entries by (task, effective rate). The rate is resolved once
	// per task here and snapshotted into the line; later rate changes never
	// reach back into an existing draft or issued invoice.
	type group struct {
		taskID  id.TaskID
		name    string
		rate    types.Money
		seconds int64
		entries []id.EntryID
	}
	groups := make(map[id.TaskID]*group)
	for _, e := range entries {
		tk, ok := taskByID[e.TaskID]
		if !ok {
			return nil, ErrTaskNotFound
		}
		if !tk.hasRate {
			return nil, ErrNoRate
		}
		g, ok := groups[e.TaskID]
		if !ok {
			g = &group{taskID: e.TaskID, name: tk.name, rate: tk.rate}
			groups[e.TaskID] = g
		}
		g.seconds += e.Seconds()
		g.entries = append(g.entries, e.ID)
	}

	ordered := make([]*group, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].taskID.String() < ordered[j].taskID.String() })

	now := s.now()
	inv := &invoice.Invoice{
		Entity:     types.NewEntityAt(now),
		ID:         id.NewInvoiceID(),
		ProjectID:  projectID,
		Status:     invoice.StatusDraft,
		Currency:   p.Currency,
		PeriodFrom: from.UTC(),
		PeriodTo:   to.UTC(),
		LineItems:  make([]invoice.LineItem, 0, len(ordered)),
	}
	for _, g := range ordered {
		inv.LineItems = append(inv.LineItems, invoice.LineItem{
			ID:          id.NewLineItemID(),
			InvoiceID:   inv.ID,
			TaskID:      g.taskID,
			Description: g.name,
			Quantity:    g.seconds,
			UnitRate:    g.rate,
			Amount:      types.AmountForSeconds(g.rate, g.seconds),
			EntryIDs:    g.entries,
		})
	}
	inv.Total = inv.RecomputeTotal()

	// Replace any previous draft for the same period.
	drafts, err := s.store.ListInvoices(ctx, projectID, invoice.ListOpts{Status: invoice.StatusDraft})
	if err != nil {
		return nil, err
	}
	for _, d := range drafts {
		if d.PeriodFrom.Equal(inv.PeriodFrom) && d.PeriodTo.Equal(inv.PeriodTo) {
			if err := s.store.DeleteDraft(ctx, d.ID); err != nil {
				return nil, err
			}
		}
	}

	if err := s.store.CreateInvoice(ctx, inv); err != nil {
		return nil, err
	}

	s.record(ctx, audit.NewRecord(projectID, principal, "invoice.generate", "invoice", inv.ID.String(), now))
	s.plugins.EmitInvoiceGenerated(ctx, inv)
	return inv, nil
}

type taskGroupKey struct {
	name    string
	rate    types.Money
	hasRate bool
}

// GetInvoice retrieves an invoice the principal can view.
func (s *Soloist) GetInvoice(ctx context.Context, principal string, invoiceID id.InvoiceID) (*invoice.Invoice, error) {
	inv, err := s.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.authorize(ctx, principal, inv.ProjectID, access.ActionView); err != nil {
		return nil, err
	}
	return inv, nil
}

// ListInvoices lists a project's invoices.
func (s *Soloist) ListInvoices(ctx context.Context, principal string, projectID id.ProjectID, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	if _, _, err := s.authorize(ctx, principal, projectID, access.ActionView); err != nil {
		return nil, err
	}
	return s.store.ListInvoices(ctx, projectID, opts)
}

// IssueInvoice freezes a draft: it gains a sequential number, every
// referenced entry is claimed, and from here on the snapshot never changes.
// The claim and the transition commit together; a concurrent claim on any
// entry leaves the draft untouched with ErrEntryClaimed. Rendering happens
// asynchronously and never blocks or fails the issue itself.
func (s *Soloist) IssueInvoice(ctx context.Context, principal string, invoiceID id.InvoiceID) (*invoice.Invoice, error) {
	inv, err := s.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	p, _, err := s.authorize(ctx, principal, inv.ProjectID, access.ActionIssueInvoice)
	if err != nil {
		return nil, err
	}
	if !p.Active() {
		return nil, ErrProjectArchived
	}
	if !inv.Draft() {
		return nil, ErrInvoiceNotDraft
	}

	now := s.now()
	seq, err := s.store.NextInvoiceSequence(ctx, inv.ProjectID, now.Year())
	if err != nil {
		return nil, err
	}
	number := invoice.FormatNumber(now.Year(), seq)

	if err := s.store.MarkIssued(ctx, invoiceID, number, now); err != nil {
		return nil, err
	}

	issued, err := s.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.NewRecord(issued.ProjectID, principal, "invoice.issue", "invoice", invoiceID.String(), now).
		WithDetail("number", number))
	s.plugins.EmitInvoiceIssued(ctx, issued)
	s.enqueueRender(invoiceID)
	return issued, nil
}

// VoidInvoice cancels an issued invoice. The snapshot stays readable with
// its void marker, and every claimed entry becomes billable again. Voiding
// works on archived projects too: it is a correction, not new work.
func (s *Soloist) VoidInvoice(ctx context.Context, principal string, invoiceID id.InvoiceID, reason string) (*invoice.Invoice, error) {
	inv, err := s.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.authorize(ctx, principal, inv.ProjectID, access.ActionVoidInvoice); err != nil {
		return nil, err
	}
	if !inv.Issued() {
		return nil, ErrInvoiceNotIssued
	}

	now := s.now()
	if err := s.store.MarkVoided(ctx, invoiceID, reason, now); err != nil {
		return nil, err
	}

	voided, err := s.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.NewRecord(voided.ProjectID, principal, "invoice.void", "invoice", invoiceID.String(), now).
		WithDetail("reason", reason))
	s.plugins.EmitInvoiceVoided(ctx, voided, reason)
	return voided, nil
}

// DiscardDraft deletes a draft outright. Nothing was claimed, so nothing
// is released; only the audit record remains.
func (s *Soloist) DiscardDraft(ctx context.Context, principal string, invoiceID id.InvoiceID) error {
	inv, err := s.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	p, _, err := s.authorize(ctx, principal, inv.ProjectID, access.ActionIssueInvoice)
	if err != nil {
		return err
	}
	if !p.Active() {
		return ErrProjectArchived
	}

	if err := s.store.DeleteDraft(ctx, invoiceID); err != nil {
		return err
	}

	s.record(ctx, audit.NewRecord(inv.ProjectID, principal, "invoice.discard", "invoice", invoiceID.String(), s.now()))
	return nil
}

// InvoiceDocument fetches the rendered document for an issued invoice.
func (s *Soloist) InvoiceDocument(ctx context.Context, principal string, invoiceID id.InvoiceID) ([]byte, error) {
	inv, err := s.GetInvoice(ctx, principal, invoiceID)
	if err != nil {
		return nil, err
	}
	if s.blobs == nil {
		return nil, ErrRendering
	}
	data, err := s.blobs.Get(ctx, inv.ID.String())
	if err != nil {
		return nil, ErrStorageUnavailable
	}
	return data, nil
}

// ──────────────────────────────────────────────────
// Async rendering
// ──────────────────────────────────────────────────

// enqueueRender hands an issued invoice to the render worker. Non-blocking:
// a full queue drops the job with a warning rather than stalling issuance.
func (s *Soloist) enqueueRender(invoiceID id.InvoiceID) {
	if s.renderer == nil || s.blobs == nil {
		return
	}
	select {
	case s.renderQueue <- invoiceID:
	default:
		s.logger.Warn("render queue full, dropping job", "invoice_id", invoiceID)
	}
}

// renderWorker renders issued invoices in the background. A failed render
// is retried once; a second failure is logged and reported to plugins, and
// the invoice stays issued either way.
func (s *Soloist) renderWorker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopChan:
			// Drain what's already queued before exiting.
			for {
				select {
				case invoiceID := <-s.renderQueue:
					s.renderOne(ctx, invoiceID)
				default:
					return
				}
			}

		case invoiceID := <-s.renderQueue:
			s.renderOne(ctx, invoiceID)
		}
	}
}

func (s *Soloist) renderOne(ctx context.Context, invoiceID id.InvoiceID) {
	inv, err := s.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		s.logger.Error("render: invoice load failed", "invoice_id", invoiceID, "error", err)
		return
	}

	start := time.Now()
	data, err := s.renderer.Render(ctx, inv)
	if err != nil {
		data, err = s.renderer.Render(ctx, inv)
	}
	if err != nil {
		s.logger.Error("render failed after retry",
			"invoice_id", invoiceID,
			"error", err,
		)
		s.plugins.EmitInvoiceRendered(ctx, inv, "", ErrRendering)
		return
	}

	key := inv.ID.String()
	if err := s.blobs.Put(ctx, key, data); err != nil {
		s.logger.Error("render: blob store failed",
			"invoice_id", invoiceID,
			"error", err,
		)
		s.plugins.EmitInvoiceRendered(ctx, inv, "", ErrStorageUnavailable)
		return
	}

	s.plugins.EmitInvoiceRendered(ctx, inv, key, nil)
	s.logger.Debug("invoice rendered",
		"invoice_id", invoiceID,
		"bytes", len(data),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}
