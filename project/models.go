// Package project defines projects, billing clients, tasks, and
// project-scoped memberships.
package project

import (
	"github.com/eduar766/soloist-back/access"
	"github.com/eduar766/soloist-back/id"
	"github.com/eduar766/soloist-back/types"
)

// Status is the project lifecycle state.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Project is the tenant boundary: it owns tasks, time entries, invoices,
// memberships, and share links. Currency is declared once and locked as soon
// as any time entry or invoice exists: amounts are recorded and billed in
// this currency with no conversion.
type Project struct {
	types.Entity
	ID          id.ProjectID `json:"id"`
	OwnerID     string       `json:"owner_id"` // opaque principal from the auth collaborator
	ClientID    id.ClientID  `json:"client_id,omitempty"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Currency    string       `json:"currency"` // ISO 4217 lowercase
	DefaultRate *types.Money `json:"default_rate,omitempty"`
	Public      bool         `json:"public"`
	Status      Status       `json:"status"`
}

// Active reports whether the project accepts writes.
func (p *Project) Active() bool { return p.Status == StatusActive }

// Client is the billing recipient a project can be attached to.
type Client struct {
	types.Entity
	ID      id.ClientID `json:"id"`
	OwnerID string      `json:"owner_id"`
	Name    string      `json:"name"`
	Email   string      `json:"email,omitempty"`
	Notes   string      `json:"notes,omitempty"`
}

// Membership binds a principal to a project with one active role. Every
// project has exactly one owner at all times; ownership moves only through
// an atomic transfer.
type Membership struct {
	types.Entity
	ID        id.MembershipID `json:"id"`
	ProjectID id.ProjectID    `json:"project_id"`
	Principal string          `json:"principal"`
	Role      access.Role     `json:"role"`
}

// TaskStatus is a user-defined status label with a terminal flag. The label
// set is per-project; Done marks the "done"-equivalent states.
type TaskStatus struct {
	Label string `json:"label"`
	Done  bool   `json:"done"`
}

// Task groups time entries and can override the project's billable rate.
type Task struct {
	types.Entity
	ID           id.TaskID    `json:"id"`
	ProjectID    id.ProjectID `json:"project_id"`
	Name         string       `json:"name"`
	Status       TaskStatus   `json:"status"`
	RateOverride *types.Money `json:"rate_override,omitempty"`
}

// EffectiveRate resolves the billing rate for this task: the task override
// wins, then the project default. ok is false when neither is set.
func (t *Task) EffectiveRate(p *Project) (types.Money, bool) {
	if t.RateOverride != nil {
		return *t.RateOverride, true
	}
	if p.DefaultRate != nil {
		return *p.DefaultRate, true
	}
	return types.Money{}, false
}
