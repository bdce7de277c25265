package soloist

import (
	"context"
	"strings"

	"github.com/eduar766/soloist-back/access"
	"github.com/eduar766/soloist-back/audit"
	"github.com/eduar766/soloist-back/id"
	"github.com/eduar766/soloist-back/invoice"
	"github.com/eduar766/soloist-back/project"
	"github.com/eduar766/soloist-back/timeentry"
	"github.com/eduar766/soloist-back/types"
)

// ──────────────────────────────────────────────────
// Project Management
// ──────────────────────────────────────────────────

// CreateProject creates a project and makes the principal its owner.
func (s *Soloist) CreateProject(ctx context.Context, principal string, p *project.Project) error {
	if strings.TrimSpace(p.Name) == "" {
		return ValidationError{Field: "name", Message: "must not be empty"}
	}
	p.Currency = strings.ToLower(p.Currency)
	if !types.ValidCurrency(p.Currency) {
		return ValidationError{Field: "currency", Message: "unknown ISO 4217 code"}
	}
	if p.DefaultRate != nil && p.DefaultRate.Currency != p.Currency {
		return ValidationError{Field: "default_rate", Message: "currency must match the project"}
	}
	if !p.ClientID.IsNil() {
		if _, err := s.store.GetClient(ctx, p.ClientID); err != nil {
			return err
		}
	}

	now := s.now()
	if p.ID.IsNil() {
		p.ID = id.NewProjectID()
	}
	p.Entity = types.NewEntityAt(now)
	p.OwnerID = principal
	p.Status = project.StatusActive

	// The project row and its owner membership land in one store-level
	// atomic scope; there is no instant with a project and no owner.
	owner := &project.Membership{
		Entity:    types.NewEntityAt(now),
		ID:        id.NewMembershipID(),
		ProjectID: p.ID,
		Principal: principal,
		Role:      access.RoleOwner,
	}
	if err := s.store.CreateProject(ctx, p, owner); err != nil {
		return err
	}

	s.record(ctx, audit.NewRecord(p.ID, principal, "project.create", "project", p.ID.String(), now))
	s.plugins.EmitProjectCreated(ctx, p)
	return nil
}

// GetProject retrieves a project the principal can view.
func (s *Soloist) GetProject(ctx context.Context, principal string, projectID id.ProjectID) (*project.Project, error) {
	p, _, err := s.authorize(ctx, principal, projectID, access.ActionView)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListProjects lists the projects visible to the principal.
func (s *Soloist) ListProjects(ctx context.Context, principal string, opts project.ListOpts) ([]*project.Project, error) {
	return s.store.ListProjects(ctx, principal, opts)
}

// ProjectUpdate carries the mutable project fields. Nil pointers leave the
// field untouched.
type ProjectUpdate struct {
	Name        *string
	Description *string
	ClientID    *id.ClientID
	Currency    *string
	DefaultRate *types.Money
	Public      *bool
}

// UpdateProject applies a partial update. The currency may change only
// while the project has no billing history; after the first time entry or
// invoice it is locked for good.
func (s *Soloist) UpdateProject(ctx context.Context, principal string, projectID id.ProjectID, upd ProjectUpdate) (*project.Project, error) {
	p, _, err := s.authorize(ctx, principal, projectID, access.ActionEditTasks)
	if err != nil {
		return nil, err
	}
	if !p.Active() {
		return nil, ErrProjectArchived
	}

	if upd.Currency != nil {
		next := strings.ToLower(*upd.Currency)
		if next != p.Currency {
			if !types.ValidCurrency(next) {
				return nil, ValidationError{Field: "currency", Message: "unknown ISO 4217 code"}
			}
			locked, err := s.store.ProjectHasBillingHistory(ctx, projectID)
			if err != nil {
				return nil, err
			}
			if locked {
				return nil, ErrCurrencyLocked
			}
			p.Currency = next
		}
	}
	if upd.Name != nil {
		if strings.TrimSpace(*upd.Name) == "" {
			return nil, ValidationError{Field: "name", Message: "must not be empty"}
		}
		p.Name = *upd.Name
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.ClientID != nil {
		if !upd.ClientID.IsNil() {
			if _, err := s.store.GetClient(ctx, *upd.ClientID); err != nil {
				return nil, err
			}
		}
		p.ClientID = *upd.ClientID
	}
	if upd.DefaultRate != nil {
		if upd.DefaultRate.Currency != p.Currency {
			return nil, ValidationError{Field: "default_rate", Message: "currency must match the project"}
		}
		p.DefaultRate = upd.DefaultRate
	}
	if upd.Public != nil {
		p.Public = *upd.Public
	}

	now := s.now()
	p.TouchAt(now)
	if err := s.store.UpdateProject(ctx, p); err != nil {
		return nil, err
	}

	s.record(ctx, audit.NewRecord(projectID, principal, "project.update", "project", projectID.String(), now))
	return p, nil
}

// ArchiveProject freezes a project: no new entries, edits, or invoices.
// Existing share links keep resolving and issued invoices stay voidable,
// since both are corrections rather than new work.
func (s *Soloist) ArchiveProject(ctx context.Context, principal string, projectID id.ProjectID) error {
	p, _, err := s.authorize(ctx, principal, projectID, access.ActionDeleteProject)
	if err != nil {
		return err
	}
	if !p.Active() {
		return nil
	}

	now := s.now()
	p.Status = project.StatusArchived
	p.TouchAt(now)
	if err := s.store.UpdateProject(ctx, p); err != nil {
		return err
	}

	s.record(ctx, audit.NewRecord(projectID, principal, "project.archive", "project", projectID.String(), now))
	s.plugins.EmitProjectArchived(ctx, p)
	return nil
}

// UnarchiveProject reopens a frozen project.
func (s *Soloist) UnarchiveProject(ctx context.Context, principal string, projectID id.ProjectID) error {
	p, _, err := s.authorize(ctx, principal, projectID, access.ActionDeleteProject)
	if err != nil {
		return err
	}
	if p.Active() {
		return nil
	}

	now := s.now()
	p.Status = project.StatusActive
	p.TouchAt(now)
	if err := s.store.UpdateProject(ctx, p); err != nil {
		return err
	}

	s.record(ctx, audit.NewRecord(projectID, principal, "project.unarchive", "project", projectID.String(), now))
	return nil
}

// DeleteProject removes a project and everything under it. Blocked while
// any issued, non-void invoice exists: billing records outlive the work
// they bill. Void the invoices first, or archive instead.
func (s *Soloist) DeleteProject(ctx context.Context, principal string, projectID id.ProjectID) error {
	_, _, err := s.authorize(ctx, principal, projectID, access.ActionDeleteProject)
	if err != nil {
		return err
	}

	issued, err := s.store.ListInvoices(ctx, projectID, invoice.ListOpts{Status: invoice.StatusIssued})
	if err != nil {
		return err
	}
	if len(issued) > 0 {
		return ErrProjectHasInvoices
	}

	if err := s.store.DeleteProject(ctx, projectID); err != nil {
		return err
	}

	s.logger.Info("project deleted", "project_id", projectID, "principal", principal)
	return nil
}

// ──────────────────────────────────────────────────
// Client Management
// ──────────────────────────────────────────────────

// CreateClient registers a billing recipient owned by the principal.
func (s *Soloist) CreateClient(ctx context.Context, principal string, c *project.Client) error {
	if strings.TrimSpace(c.Name) == "" {
		return ValidationError{Field: "name", Message: "must not be empty"}
	}

	if c.ID.IsNil() {
		c.ID = id.NewClientID()
	}
	c.Entity = types.NewEntityAt(s.now())
	c.OwnerID = principal

	return s.store.CreateClient(ctx, c)
}

// GetClient retrieves a client owned by the principal.
func (s *Soloist) GetClient(ctx context.Context, principal string, clientID id.ClientID) (*project.Client, error) {
	c, err := s.store.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != principal {
		return nil, ErrClientNotFound
	}
	return c, nil
}

// ListClients lists the principal's clients.
func (s *Soloist) ListClients(ctx context.Context, principal string) ([]*project.Client, error) {
	return s.store.ListClients(ctx, principal)
}

// UpdateClient rewrites a client's contact fields.
func (s *Soloist) UpdateClient(ctx context.Context, principal string, c *project.Client) error {
	existing, err := s.GetClient(ctx, principal, c.ID)
	if err != nil {
		return err
	}
	c.OwnerID = existing.OwnerID
	c.Entity = existing.Entity
	c.TouchAt(s.now())
	return s.store.UpdateClient(ctx, c)
}

// DeleteClient removes a client. Projects referencing it keep their copy of
// the reference; billing snapshots are unaffected.
func (s *Soloist) DeleteClient(ctx context.Context, principal string, clientID id.ClientID) error {
	if _, err := s.GetClient(ctx, principal, clientID); err != nil {
		return err
	}
	return s.store.DeleteClient(ctx, clientID)
}

// ──────────────────────────────────────────────────
// Task Management
// ──────────────────────────────────────────────────

// CreateTask adds a task to an active project.
func (s *Soloist) CreateTask(ctx context.Context, principal string, t *project.Task) error {
	p, _, err := s.authorize(ctx, principal, t.ProjectID, access.ActionEditTasks)
	if err != nil {
		return err
	}
	if !p.Active() {
		return ErrProjectArchived
	}
	if strings.TrimSpace(t.Name) == "" {
		return ValidationError{Field: "name", Message: "must not be empty"}
	}
	if t.RateOverride != nil && t.RateOverride.Currency != p.Currency {
		return ValidationError{Field: "rate_override", Message: "currency must match the project"}
	}

	if t.ID.IsNil() {
		t.ID = id.NewTaskID()
	}
	t.Entity = types.NewEntityAt(s.now())

	return s.store.CreateTask(ctx, t)
}

// GetTask retrieves a task the principal can view.
func (s *Soloist) GetTask(ctx context.Context, principal string, taskID id.TaskID) (*project.Task, error) {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.authorize(ctx, principal, t.ProjectID, access.ActionView); err != nil {
		return nil, err
	}
	return t, nil
}

// ListTasks lists a project's tasks.
func (s *Soloist) ListTasks(ctx context.Context, principal string, projectID id.ProjectID) ([]*project.Task, error) {
	if _, _, err := s.authorize(ctx, principal, projectID, access.ActionView); err != nil {
		return nil, err
	}
	return s.store.ListTasks(ctx, projectID)
}

// UpdateTask rewrites a task's name, status, or rate override. Changing the
// override never touches issued invoices: their line rates are snapshots.
func (s *Soloist) UpdateTask(ctx context.Context, principal string, t *project.Task) error {
	existing, err := s.store.GetTask(ctx, t.ID)
	if err != nil {
		return err
	}
	p, _, err := s.authorize(ctx, principal, existing.ProjectID, access.ActionEditTasks)
	if err != nil {
		return err
	}
	if !p.Active() {
		return ErrProjectArchived
	}
	if t.RateOverride != nil && t.RateOverride.Currency != p.Currency {
		return ValidationError{Field: "rate_override", Message: "currency must match the project"}
	}

	t.ProjectID = existing.ProjectID
	t.Entity = existing.Entity
	t.TouchAt(s.now())
	return s.store.UpdateTask(ctx, t)
}

// DeleteTask removes a task. Blocked while any time entry references it.
func (s *Soloist) DeleteTask(ctx context.Context, principal string, taskID id.TaskID) error {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	p, _, err := s.authorize(ctx, principal, t.ProjectID, access.ActionEditTasks)
	if err != nil {
		return err
	}
	if !p.Active() {
		return ErrProjectArchived
	}

	entries, err := s.store.ListEntries(ctx, t.ProjectID, timeentry.ListOpts{TaskID: taskID, Limit: 1})
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return ValidationError{Field: "task", Message: "time entries reference this task"}
	}

	return s.store.DeleteTask(ctx, taskID)
}

// ──────────────────────────────────────────────────
// Membership Management
// ──────────────────────────────────────────────────

// AddMember grants a principal a role on the project. Owners are not added
// here; ownership moves only through TransferOwnership.
func (s *Soloist) AddMember(ctx context.Context, principal string, projectID id.ProjectID, newPrincipal string, role access.Role) (*project.Membership, error) {
	p, _, err := s.authorize(ctx, principal, projectID, access.ActionManageMembers)
	if err != nil {
		return nil, err
	}
	if !p.Active() {
		return nil, ErrProjectArchived
	}
	if role == access.RoleOwner {
		return nil, ValidationError{Field: "role", Message: "ownership moves only through transfer"}
	}
	if !role.Valid() {
		return nil, ValidationError{Field: "role", Message: "unknown role"}
	}

	now := s.now()
	m := &project.Membership{
		Entity:    types.NewEntityAt(now),
		ID:        id.NewMembershipID(),
		ProjectID: projectID,
		Principal: newPrincipal,
		Role:      role,
	}
	if err := s.store.AddMember(ctx, m); err != nil {
		return nil, err
	}

	s.record(ctx, audit.NewRecord(projectID, principal, "member.add", "membership", m.ID.String(), now).
		WithDetail("member", newPrincipal).
		WithDetail("role", string(role)))
	s.plugins.EmitMemberAdded(ctx, m)
	return m, nil
}

// ListMembers lists a project's memberships.
func (s *Soloist) ListMembers(ctx context.Context, principal string, projectID id.ProjectID) ([]*project.Membership, error) {
	if _, _, err := s.authorize(ctx, principal, projectID, access.ActionView); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, projectID)
}

// UpdateMemberRole changes a member's role between contributor and viewer.
// The owner's role cannot change here: demoting the only owner would strand
// the project, so ownership moves only through TransferOwnership.
func (s *Soloist) UpdateMemberRole(ctx context.Context, principal string, projectID id.ProjectID, member string, role access.Role) error {
	p, _, err := s.authorize(ctx, principal, projectID, access.ActionManageMembers)
	if err != nil {
		return err
	}
	if !p.Active() {
		return ErrProjectArchived
	}
	if role == access.RoleOwner {
		return ValidationError{Field: "role", Message: "ownership moves only through transfer"}
	}
	if !role.Valid() {
		return ValidationError{Field: "role", Message: "unknown role"}
	}

	current, err := s.store.GetMembership(ctx, projectID, member)
	if err != nil {
		return err
	}
	if current.Role == access.RoleOwner {
		return ErrLastOwner
	}

	if err := s.store.UpdateMemberRole(ctx, projectID, member, role); err != nil {
		return err
	}

	s.record(ctx, audit.NewRecord(projectID, principal, "member.role", "membership", current.ID.String(), s.now()).
		WithDetail("member", member).
		WithDetail("role", string(role)))
	return nil
}

// RemoveMember removes a member. The owner cannot be removed.
func (s *Soloist) RemoveMember(ctx context.Context, principal string, projectID id.ProjectID, member string) error {
	p, _, err := s.authorize(ctx, principal, projectID, access.ActionManageMembers)
	if err != nil {
		return err
	}
	if !p.Active() {
		return ErrProjectArchived
	}

	current, err := s.store.GetMembership(ctx, projectID, member)
	if err != nil {
		return err
	}
	if current.Role == access.RoleOwner {
		return ErrLastOwner
	}

	if err := s.store.RemoveMember(ctx, projectID, member); err != nil {
		return err
	}

	s.record(ctx, audit.NewRecord(projectID, principal, "member.remove", "membership", current.ID.String(), s.now()).
		WithDetail("member", member))
	return nil
}

// TransferOwnership atomically makes newOwner the owner and demotes the
// current owner to contributor. There is never a moment with zero or two
// owners; the swap commits whole or not at all.
func (s *Soloist) TransferOwnership(ctx context.Context, principal string, projectID id.ProjectID, newOwner string) error {
	p, role, err := s.authorize(ctx, principal, projectID, access.ActionManageMembers)
	if err != nil {
		return err
	}
	if role != access.RoleOwner {
		return ErrNotOwner
	}
	if !p.Active() {
		return ErrProjectArchived
	}

	oldOwner := p.OwnerID
	if err := s.store.TransferOwnership(ctx, projectID, newOwner); err != nil {
		return err
	}

	s.record(ctx, audit.NewRecord(projectID, principal, "project.transfer", "project", projectID.String(), s.now()).
		WithDetail("from", oldOwner).
		WithDetail("to", newOwner))
	s.plugins.EmitOwnershipTransferred(ctx, projectID.String(), oldOwner, newOwner)
	return nil
}
