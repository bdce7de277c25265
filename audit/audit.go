// Package audit keeps the append-only trail of state-changing operations.
// Issued invoices are frozen, so corrections append here instead of editing
// in place; a discarded draft leaves nothing behind except its record.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/eduar766/soloist-back/id"
)

// Record is one append-only audit entry.
type Record struct {
	ID         uuid.UUID         `json:"id"`
	ProjectID  id.ProjectID      `json:"project_id"`
	Actor      string            `json:"actor"`
	Action     string            `json:"action"`
	EntityKind string            `json:"entity_kind"`
	EntityID   string            `json:"entity_id"`
	At         time.Time         `json:"at"`
	Detail     map[string]string `json:"detail,omitempty"`
}

// NewRecord builds a record with a fresh identifier.
func NewRecord(projectID id.ProjectID, actor, action, entityKind, entityID string, at time.Time) *Record {
	return &Record{
		ID:         uuid.New(),
		ProjectID:  projectID,
		Actor:      actor,
		Action:     action,
		EntityKind: entityKind,
		EntityID:   entityID,
		At:         at.UTC(),
	}
}

// WithDetail attaches a key/value pair and returns the record for chaining.
func (r *Record) WithDetail(key, value string) *Record {
	if r.Detail == nil {
		r.Detail = make(map[string]string)
	}
	r.Detail[key] = value
	return r
}

// Store is the storage contract for audit records. Append-only: there is no
// update or delete.
type Store interface {
	AppendAudit(ctx context.Context, rec *Record) error
	ListAudit(ctx context.Context, projectID id.ProjectID, limit int) ([]*Record, error)
}
