// Package memory provides an in-process Store used in tests and embedded
// deployments. A single RWMutex is the transaction scope: every invariant
// check and its write happen under one lock acquisition, which gives the
// same atomicity the SQL backends get from serializable transactions.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	soloist "github.com/eduar766/soloist-back"
	"github.com/eduar766/soloist-back/access"
	"github.com/eduar766/soloist-back/audit"
	"github.com/eduar766/soloist-back/id"
	"github.com/eduar766/soloist-back/invoice"
	"github.com/eduar766/soloist-back/project"
	"github.com/eduar766/soloist-back/share"
	"github.com/eduar766/soloist-back/store"
	"github.com/eduar766/soloist-back/timeentry"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	projects    map[string]*project.Project
	clients     map[string]*project.Client
	tasks       map[string]*project.Task
	memberships map[string]*project.Membership // keyed by projectID + "\x00" + principal
	entries     map[string]*timeentry.Entry
	invoices    map[string]*invoice.Invoice
	links       map[string]*share.Link // keyed by link ID
	linkTokens  map[string]string      // token -> link ID
	auditLog    []*audit.Record
	sequences   map[string]int64 // projectID + "\x00" + year
}

func New() *Store {
	return &Store{
		projects:    make(map[string]*project.Project),
		clients:     make(map[string]*project.Client),
		tasks:       make(map[string]*project.Task),
		memberships: make(map[string]*project.Membership),
		entries:     make(map[string]*timeentry.Entry),
		invoices:    make(map[string]*invoice.Invoice),
		links:       make(map[string]*share.Link),
		linkTokens:  make(map[string]string),
		sequences:   make(map[string]int64),
	}
}

func memberKey(projectID id.ProjectID, principal string) string {
	return projectID.String() + "\x00" + principal
}

// ==================== Projects ====================

func (s *Store) CreateProject(_ context.Context, p *project.Project, owner *project.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.projects[p.ID.String()] = &cp
	mcp := *owner
	s.memberships[memberKey(owner.ProjectID, owner.Principal)] = &mcp
	return nil
}

func (s *Store) GetProject(_ context.Context, projectID id.ProjectID) (*project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[projectID.String()]
	if !ok {
		return nil, soloist.ErrProjectNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) ListProjects(_ context.Context, principal string, opts project.ListOpts) ([]*project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*project.Project, 0)
	for _, p := range s.projects {
		if _, ok := s.memberships[memberKey(p.ID, principal)]; !ok && !p.Public {
			continue
		}
		if opts.Status != "" && p.Status != opts.Status {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })

	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdateProject(_ context.Context, p *project.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[p.ID.String()]; !ok {
		return soloist.ErrProjectNotFound
	}
	cp := *p
	s.projects[p.ID.String()] = &cp
	return nil
}

// DeleteProject cascades to every child entity; the facade has already
// verified no non-void issued invoice remains.
func (s *Store) DeleteProject(_ context.Context, projectID id.ProjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := projectID.String()
	if _, ok := s.projects[key]; !ok {
		return soloist.ErrProjectNotFound
	}
	delete(s.projects, key)

	for k, t := range s.tasks {
		if t.ProjectID == projectID {
			delete(s.tasks, k)
		}
	}
	for k, e := range s.entries {
		if e.ProjectID == projectID {
			delete(s.entries, k)
		}
	}
	for k, inv := range s.invoices {
		if inv.ProjectID == projectID {
			delete(s.invoices, k)
		}
	}
	for k, l := range s.links {
		if l.Target.ProjectID == projectID {
			delete(s.linkTokens, l.Token)
			delete(s.links, k)
		}
	}
	for k, m := range s.memberships {
		if m.ProjectID == projectID {
			delete(s.memberships, k)
		}
	}
	return nil
}

func (s *Store) ProjectHasBillingHistory(_ context.Context, projectID id.ProjectID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.ProjectID == projectID {
			return true, nil
		}
	}
	for _, inv := range s.invoices {
		if inv.ProjectID == projectID {
			return true, nil
		}
	}
	return false, nil
}

// ==================== Clients ====================

func (s *Store) CreateClient(_ context.Context, c *project.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	s.clients[c.ID.String()] = &cp
	return nil
}

func (s *Store) GetClient(_ context.Context, clientID id.ClientID) (*project.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients[clientID.String()]
	if !ok {
		return nil, soloist.ErrClientNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) ListClients(_ context.Context, ownerID string) ([]*project.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*project.Client, 0)
	for _, c := range s.clients {
		if c.OwnerID == ownerID {
			cp := *c
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })
	return result, nil
}

func (s *Store) UpdateClient(_ context.Context, c *project.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[c.ID.String()]; !ok {
		return soloist.ErrClientNotFound
	}
	cp := *c
	s.clients[c.ID.String()] = &cp
	return nil
}

func (s *Store) DeleteClient(_ context.Context, clientID id.ClientID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.clients, clientID.String())
	return nil
}

// ==================== Tasks ====================

func (s *Store) CreateTask(_ context.Context, t *project.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *t
	s.tasks[t.ID.String()] = &cp
	return nil
}

func (s *Store) GetTask(_ context.Context, taskID id.TaskID) (*project.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[taskID.String()]
	if !ok {
		return nil, soloist.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *Store) ListTasks(_ context.Context, projectID id.ProjectID) ([]*project.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*project.Task, 0)
	for _, t := range s.tasks {
		if t.ProjectID == projectID {
			cp := *t
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })
	return result, nil
}

func (s *Store) UpdateTask(_ context.Context, t *project.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[t.ID.String()]; !ok {
		return soloist.ErrTaskNotFound
	}
	cp := *t
	s.tasks[t.ID.String()] = &cp
	return nil
}

func (s *Store) DeleteTask(_ context.Context, taskID id.TaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tasks, taskID.String())
	return nil
}

// ==================== Memberships ====================

func (s *Store) AddMember(_ context.Context, m *project.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memberKey(m.ProjectID, m.Principal)
	if _, ok := s.memberships[key]; ok {
		return soloist.ErrMemberExists
	}
	cp := *m
	s.memberships[key] = &cp
	return nil
}

func (s *Store) GetMembership(_ context.Context, projectID id.ProjectID, principal string) (*project.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.memberships[memberKey(projectID, principal)]
	if !ok {
		return nil, soloist.ErrMemberNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *Store) ListMembers(_ context.Context, projectID id.ProjectID) ([]*project.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*project.Membership, 0)
	for _, m := range s.memberships {
		if m.ProjectID == projectID {
			cp := *m
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Principal < result[j].Principal })
	return result, nil
}

func (s *Store) UpdateMemberRole(_ context.Context, projectID id.ProjectID, principal string, role access.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.memberships[memberKey(projectID, principal)]
	if !ok {
		return soloist.ErrMemberNotFound
	}
	m.Role = role
	m.Touch()
	return nil
}

func (s *Store) RemoveMember(_ context.Context, projectID id.ProjectID, principal string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memberKey(projectID, principal)
	if _, ok := s.memberships[key]; !ok {
		return soloist.ErrMemberNotFound
	}
	delete(s.memberships, key)
	return nil
}

// TransferOwnership demotes the current owner and promotes newOwner under
// one lock acquisition: both rows change or neither does.
func (s *Store) TransferOwnership(_ context.Context, projectID id.ProjectID, newOwner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := s.memberships[memberKey(projectID, newOwner)]
	if !ok {
		return soloist.ErrMemberNotFound
	}

	var current *project.Membership
	for _, m := range s.memberships {
		if m.ProjectID == projectID && m.Role == access.RoleOwner {
			current = m
			break
		}
	}
	if current == nil {
		return soloist.ErrMemberNotFound
	}
	if current.Principal == newOwner {
		return nil
	}

	current.Role = access.RoleContributor
	current.Touch()
	next.Role = access.RoleOwner
	next.Touch()

	if p, ok := s.projects[projectID.String()]; ok {
		p.OwnerID = newOwner
		p.Touch()
	}
	return nil
}

// ==================== Time entries ====================

// checkAuthorInvariants enforces the per-author ledger rules against the
// current contents, excluding excludeID (the entry being edited). Callers
// hold the write lock.
func (s *Store) checkAuthorInvariants(e *timeentry.Entry, excludeID id.EntryID) error {
	for _, other := range s.entries {
		if other.Author != e.Author || other.ID == e.ID || other.ID == excludeID {
			continue
		}
		if e.Running() && other.Running() {
			return soloist.ErrTimerRunning
		}
		if e.Interval.Overlaps(other.Interval) {
			return soloist.OverlapError{ConflictingID: other.ID}
		}
	}
	return nil
}

func (s *Store) CreateEntry(_ context.Context, e *timeentry.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkAuthorInvariants(e, id.Nil); err != nil {
		return err
	}
	cp := cloneEntry(e)
	s.entries[e.ID.String()] = cp
	return nil
}

func (s *Store) GetEntry(_ context.Context, entryID id.EntryID) (*timeentry.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[entryID.String()]
	if !ok {
		return nil, soloist.ErrEntryNotFound
	}
	return cloneEntry(e), nil
}

func (s *Store) GetRunningEntry(_ context.Context, author string) (*timeentry.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.Author == author && e.Running() {
			return cloneEntry(e), nil
		}
	}
	return nil, soloist.ErrTimerNotFound
}

func (s *Store) CloseEntry(_ context.Context, entryID id.EntryID, end time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[entryID.String()]
	if !ok {
		return soloist.ErrEntryNotFound
	}
	if !e.Running() {
		return soloist.ErrTimerNotFound
	}

	closed, err := e.Interval.Close(end)
	if err != nil {
		return soloist.ErrInvalidRange
	}
	e.Interval = closed
	e.Touch()
	return nil
}

func (s *Store) UpdateEntry(_ context.Context, e *timeentry.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.entries[e.ID.String()]
	if !ok {
		return soloist.ErrEntryNotFound
	}
	// The claim check runs here, under the lock, not only in the facade:
	// a concurrent MarkIssued must never lose its claim to a stale write.
	if current.Claimed() {
		return soloist.ErrEntryImmutable
	}
	if err := s.checkAuthorInvariants(e, e.ID); err != nil {
		return err
	}
	s.entries[e.ID.String()] = cloneEntry(e)
	return nil
}

func (s *Store) DeleteEntry(_ context.Context, entryID id.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[entryID.String()]
	if !ok {
		return soloist.ErrEntryNotFound
	}
	if e.Claimed() {
		return soloist.ErrEntryImmutable
	}
	delete(s.entries, entryID.String())
	return nil
}

func (s *Store) ListEntries(_ context.Context, projectID id.ProjectID, opts timeentry.ListOpts) ([]*timeentry.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*timeentry.Entry, 0)
	for _, e := range s.entries {
		if e.ProjectID != projectID {
			continue
		}
		if opts.Author != "" && e.Author != opts.Author {
			continue
		}
		if !opts.TaskID.IsNil() && e.TaskID != opts.TaskID {
			continue
		}
		if !opts.From.IsZero() && e.Interval.Start.Before(opts.From) {
			continue
		}
		if !opts.To.IsZero() && !e.Interval.Start.Before(opts.To) {
			continue
		}
		result = append(result, cloneEntry(e))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Interval.Start.Before(result[j].Interval.Start) })
	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) SelectBillable(_ context.Context, projectID id.ProjectID, from, to time.Time) ([]*timeentry.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*timeentry.Entry, 0)
	for _, e := range s.entries {
		if e.ProjectID == projectID && e.SelectableFor(from, to) {
			result = append(result, cloneEntry(e))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Interval.Start.Before(result[j].Interval.Start) })
	return result, nil
}

// ==================== Invoices ====================

func (s *Store) CreateInvoice(_ context.Context, inv *invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.invoices[inv.ID.String()] = cloneInvoice(inv)
	return nil
}

func (s *Store) GetInvoice(_ context.Context, invoiceID id.InvoiceID) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[invoiceID.String()]
	if !ok {
		return nil, soloist.ErrInvoiceNotFound
	}
	return cloneInvoice(inv), nil
}

func (s *Store) ListInvoices(_ context.Context, projectID id.ProjectID, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*invoice.Invoice, 0)
	for _, inv := range s.invoices {
		if inv.ProjectID != projectID {
			continue
		}
		if opts.Status != "" && inv.Status != opts.Status {
			continue
		}
		result = append(result, cloneInvoice(inv))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })
	return page(result, opts.Offset, opts.Limit), nil
}

// MarkIssued transitions draft→issued and claims every referenced entry in
// the same lock acquisition. A claim conflict leaves the invoice a draft.
func (s *Store) MarkIssued(_ context.Context, invoiceID id.InvoiceID, number string, issuedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[invoiceID.String()]
	if !ok {
		return soloist.ErrInvoiceNotFound
	}
	if !invoice.CanTransition(inv.Status, invoice.StatusIssued) {
		return soloist.ErrInvalidTransition
	}

	// Claim check first so a conflict leaves everything untouched.
	targets := make([]*timeentry.Entry, 0)
	for _, entryID := range inv.EntryIDs() {
		e, ok := s.entries[entryID.String()]
		if !ok {
			return soloist.ErrEntryNotFound
		}
		if e.Claimed() {
			return soloist.ErrEntryClaimed
		}
		targets = append(targets, e)
	}

	for _, e := range targets {
		e.InvoiceID = inv.ID
		e.Touch()
	}
	inv.Status = invoice.StatusIssued
	inv.Number = number
	at := issuedAt.UTC()
	inv.IssuedAt = &at
	inv.Touch()
	return nil
}

func (s *Store) MarkVoided(_ context.Context, invoiceID id.InvoiceID, reason string, voidedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[invoiceID.String()]
	if !ok {
		return soloist.ErrInvoiceNotFound
	}
	if !invoice.CanTransition(inv.Status, invoice.StatusVoid) {
		return soloist.ErrInvalidTransition
	}

	for _, e := range s.entries {
		if e.InvoiceID == inv.ID {
			e.InvoiceID = id.Nil
			e.Touch()
		}
	}
	inv.Status = invoice.StatusVoid
	at := voidedAt.UTC()
	inv.VoidedAt = &at
	inv.VoidReason = reason
	inv.Touch()
	return nil
}

func (s *Store) DeleteDraft(_ context.Context, invoiceID id.InvoiceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[invoiceID.String()]
	if !ok {
		return soloist.ErrInvoiceNotFound
	}
	if inv.Status != invoice.StatusDraft {
		return soloist.ErrInvoiceNotDraft
	}
	delete(s.invoices, invoiceID.String())
	return nil
}

func (s *Store) NextInvoiceSequence(_ context.Context, projectID id.ProjectID, year int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := projectID.String() + "\x00" + strconv.Itoa(year)
	s.sequences[key]++
	return s.sequences[key], nil
}

// ==================== Share links ====================

func (s *Store) CreateShareLink(_ context.Context, l *share.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *l
	s.links[l.ID.String()] = &cp
	s.linkTokens[l.Token] = l.ID.String()
	return nil
}

func (s *Store) GetShareLink(_ context.Context, linkID id.ShareLinkID) (*share.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.links[linkID.String()]
	if !ok {
		return nil, soloist.ErrShareNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *Store) GetShareLinkByToken(_ context.Context, token string) (*share.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	linkID, ok := s.linkTokens[token]
	if !ok {
		return nil, soloist.ErrShareNotFound
	}
	l, ok := s.links[linkID]
	if !ok {
		return nil, soloist.ErrShareNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *Store) ListShareLinks(_ context.Context, projectID id.ProjectID) ([]*share.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*share.Link, 0)
	for _, l := range s.links {
		if l.Target.ProjectID == projectID {
			cp := *l
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })
	return result, nil
}

func (s *Store) RevokeShareLink(_ context.Context, linkID id.ShareLinkID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.links[linkID.String()]
	if !ok {
		return soloist.ErrShareNotFound
	}
	l.Revoked = true
	l.Touch()
	return nil
}

func (s *Store) DeleteShareLink(_ context.Context, linkID id.ShareLinkID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.links[linkID.String()]
	if !ok {
		return soloist.ErrShareNotFound
	}
	delete(s.linkTokens, l.Token)
	delete(s.links, linkID.String())
	return nil
}

// ==================== Audit ====================

func (s *Store) AppendAudit(_ context.Context, rec *audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.auditLog = append(s.auditLog, &cp)
	return nil
}

func (s *Store) ListAudit(_ context.Context, projectID id.ProjectID, limit int) ([]*audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*audit.Record, 0)
	for i := len(s.auditLog) - 1; i >= 0; i-- {
		rec := s.auditLog[i]
		if rec.ProjectID != projectID {
			continue
		}
		cp := *rec
		result = append(result, &cp)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// ==================== Store management ====================

func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}

// ==================== Helpers ====================

func cloneEntry(e *timeentry.Entry) *timeentry.Entry {
	cp := *e
	if e.Interval.End != nil {
		end := *e.Interval.End
		cp.Interval.End = &end
	}
	return &cp
}

func cloneInvoice(inv *invoice.Invoice) *invoice.Invoice {
	cp := *inv
	cp.LineItems = make([]invoice.LineItem, len(inv.LineItems))
	copy(cp.LineItems, inv.LineItems)
	for i := range cp.LineItems {
		ids := make([]id.EntryID, len(inv.LineItems[i].EntryIDs))
		copy(ids, inv.LineItems[i].EntryIDs)
		cp.LineItems[i].EntryIDs = ids
	}
	if inv.IssuedAt != nil {
		at := *inv.IssuedAt
		cp.IssuedAt = &at
	}
	if inv.VoidedAt != nil {
		at := *inv.VoidedAt
		cp.VoidedAt = &at
	}
	return &cp
}

func page[T any](items []T, offset, limit int) []T {
	start := offset
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if limit == 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
