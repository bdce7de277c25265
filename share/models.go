// Package share mints scoped capability tokens granting read-only access to
// a project, timesheet query, or invoice without a full identity.
package share

import (
	"crypto/rand"
	"encoding/base32"
	"time"

	"github.com/eduar766/soloist-back/id"
	"github.com/eduar766/soloist-back/types"
)

// TargetKind names what a share link points at.
type TargetKind string

const (
	TargetProject   TargetKind = "project"
	TargetTimesheet TargetKind = "timesheet"
	TargetInvoice   TargetKind = "invoice"
)

// Target references the shared resource. Timesheet targets carry the
// period of the query alongside the project.
type Target struct {
	Kind      TargetKind   `json:"kind"`
	ProjectID id.ProjectID `json:"project_id"`
	InvoiceID id.InvoiceID `json:"invoice_id,omitempty"`
	From      time.Time    `json:"from,omitempty"`
	To        time.Time    `json:"to,omitempty"`
}

// Link is a revocable capability. The token is pure randomness, never
// derived from resource IDs, so flipping Revoked is sufficient: there is no
// token invalidation list to maintain. Resolution re-checks the target's
// existence every time; nothing is cached at issue.
type Link struct {
	types.Entity
	ID        id.ShareLinkID `json:"id"`
	Token     string         `json:"token"`
	Target    Target         `json:"target"`
	CreatedBy string         `json:"created_by"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
	Revoked   bool           `json:"revoked"`
}

// Expired reports whether the link has an expiry in the past.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

// Usable reports whether the link itself still resolves. Target existence
// is checked separately, at resolve time.
func (l *Link) Usable(now time.Time) bool {
	return !l.Revoked && !l.Expired(now)
}

// ResourceRef is what a resolved link grants: a read-only reference, never
// a write capability, regardless of who resolves it.
type ResourceRef struct {
	Kind      TargetKind   `json:"kind"`
	ProjectID id.ProjectID `json:"project_id"`
	InvoiceID id.InvoiceID `json:"invoice_id,omitempty"`
	From      time.Time    `json:"from,omitempty"`
	To        time.Time    `json:"to,omitempty"`
}

var tokenEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewToken returns a 208-bit random URL-safe capability token.
func NewToken() string {
	var buf [26]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failing means the platform RNG is broken; nothing
		// sensible can continue.
		panic("share: reading random bytes: " + err.Error())
	}
	return tokenEncoding.EncodeToString(buf[:])
}
