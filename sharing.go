package soloist

import (
	"context"
	"time"

	"github.com/eduar766/soloist-back/access"
	"github.com/eduar766/soloist-back/audit"
	"github.com/eduar766/soloist-back/id"
	"github.com/eduar766/soloist-back/share"
	"github.com/eduar766/soloist-back/timeentry"
	"github.com/eduar766/soloist-back/types"
)

// ──────────────────────────────────────────────────
// Share Links
// ──────────────────────────────────────────────────

// ShareInput describes the link to mint.
type ShareInput struct {
	Target    share.Target
	ExpiresAt *time.Time // nil means no expiry
}

// CreateShareLink mints a revocable read-only capability for a project,
// timesheet query, or invoice. Viewers cannot mint links: sharing extends
// the audience, which is more than reading.
func (s *Soloist) CreateShareLink(ctx context.Context, principal string, in ShareInput) (*share.Link, error) {
	p, role, err := s.authorize(ctx, principal, in.Target.ProjectID, access.ActionView)
	if err != nil {
		return nil, err
	}
	if role != access.RoleOwner && role != access.RoleContributor {
		return nil, AuthzError{
			Principal: principal,
			Project:   in.Target.ProjectID,
			Action:    "share",
			Reason:    "only owners and contributors mint share links",
		}
	}
	// Archive freezes issuance; links minted earlier keep resolving.
	if !p.Active() {
		return nil, ErrProjectArchived
	}

	switch in.Target.Kind {
	case share.TargetProject:
	case share.TargetTimesheet:
		if !in.Target.From.Before(in.Target.To) {
			return nil, ErrInvalidRange
		}
	case share.TargetInvoice:
		inv, err := s.store.GetInvoice(ctx, in.Target.InvoiceID)
		if err != nil {
			return nil, err
		}
		if inv.ProjectID != p.ID {
			return nil, ErrInvoiceNotFound
		}
	default:
		return nil, ValidationError{Field: "kind", Message: "unknown share target"}
	}

	now := s.now()
	l := &share.Link{
		Entity:    types.NewEntityAt(now),
		ID:        id.NewShareLinkID(),
		Token:     share.NewToken(),
		Target:    in.Target,
		CreatedBy: principal,
		ExpiresAt: in.ExpiresAt,
	}
	if err := s.store.CreateShareLink(ctx, l); err != nil {
		return nil, err
	}

	s.record(ctx, audit.NewRecord(in.Target.ProjectID, principal, "share.create", "share_link", l.ID.String(), now).
		WithDetail("kind", string(in.Target.Kind)))
	s.plugins.EmitShareCreated(ctx, l)
	return l, nil
}

// ListShareLinks lists a project's links, tokens included, for management.
func (s *Soloist) ListShareLinks(ctx context.Context, principal string, projectID id.ProjectID) ([]*share.Link, error) {
	_, role, err := s.authorize(ctx, principal, projectID, access.ActionView)
	if err != nil {
		return nil, err
	}
	if role != access.RoleOwner && role != access.RoleContributor {
		return nil, AuthzError{
			Principal: principal,
			Project:   projectID,
			Action:    "share",
			Reason:    "only owners and contributors manage share links",
		}
	}
	return s.store.ListShareLinks(ctx, projectID)
}

// RevokeShareLink kills a link immediately. The token is pure randomness,
// so flipping the flag is complete: there is nothing else to invalidate.
// Revocation is permanent.
func (s *Soloist) RevokeShareLink(ctx context.Context, principal string, linkID id.ShareLinkID) error {
	l, err := s.store.GetShareLink(ctx, linkID)
	if err != nil {
		return err
	}
	_, role, err := s.authorize(ctx, principal, l.Target.ProjectID, access.ActionView)
	if err != nil {
		return err
	}
	if l.CreatedBy != principal && role != access.RoleOwner {
		return AuthzError{
			Principal: principal,
			Project:   l.Target.ProjectID,
			Action:    "share",
			Reason:    "only the creator or the owner revokes a link",
		}
	}

	if err := s.store.RevokeShareLink(ctx, linkID); err != nil {
		return err
	}

	s.record(ctx, audit.NewRecord(l.Target.ProjectID, principal, "share.revoke", "share_link", linkID.String(), s.now()))
	s.plugins.EmitShareRevoked(ctx, l)
	return nil
}

// ResolveShareLink exchanges a token for a read-only resource reference.
// Everything is re-checked at resolve time (revocation, expiry, and the
// target's current state), so a link that worked yesterday stops working
// the moment its invoice is voided or its project disappears. An unknown
// token is ErrShareNotFound; a known-but-dead link is ErrShareDenied.
func (s *Soloist) ResolveShareLink(ctx context.Context, token string) (*share.ResourceRef, error) {
	l, err := s.store.GetShareLinkByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !l.Usable(s.now()) {
		return nil, ErrShareDenied
	}

	// The target must still exist and still be presentable. Archived
	// projects stay shareable; voided invoices do not.
	if _, err := s.store.GetProject(ctx, l.Target.ProjectID); err != nil {
		return nil, ErrShareDenied
	}
	if l.Target.Kind == share.TargetInvoice {
		inv, err := s.store.GetInvoice(ctx, l.Target.InvoiceID)
		if err != nil {
			return nil, ErrShareDenied
		}
		if inv.Void() {
			return nil, ErrShareDenied
		}
	}

	s.plugins.EmitShareResolved(ctx, l)
	return &share.ResourceRef{
		Kind:      l.Target.Kind,
		ProjectID: l.Target.ProjectID,
		InvoiceID: l.Target.InvoiceID,
		From:      l.Target.From,
		To:        l.Target.To,
	}, nil
}

// TimesheetRow is the read-only projection a shared timesheet exposes.
// No rates, no amounts: anonymous viewers see the time, not the money.
type TimesheetRow struct {
	Start    time.Time  `json:"start"`
	End      *time.Time `json:"end,omitempty"`
	Seconds  int64      `json:"seconds"`
	Billable bool       `json:"billable"`
	Note     string     `json:"note,omitempty"`
}

// SharedTimesheet resolves a timesheet token straight to its rows,
// read-only, without any principal.
func (s *Soloist) SharedTimesheet(ctx context.Context, token string) ([]TimesheetRow, error) {
	ref, err := s.ResolveShareLink(ctx, token)
	if err != nil {
		return nil, err
	}
	if ref.Kind != share.TargetTimesheet && ref.Kind != share.TargetProject {
		return nil, ErrShareDenied
	}

	entries, err := s.store.ListEntries(ctx, ref.ProjectID, timeentry.ListOpts{From: ref.From, To: ref.To})
	if err != nil {
		return nil, err
	}

	rows := make([]TimesheetRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, TimesheetRow{
			Start:    e.Interval.Start,
			End:      e.Interval.End,
			Seconds:  e.Seconds(),
			Billable: e.Billable,
			Note:     e.Note,
		})
	}
	return rows, nil
}
