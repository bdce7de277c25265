// Package access resolves a principal's effective role on a project and
// authorizes an action against a static role→action matrix.
//
// The matrix is data, not a hierarchy: every (role, action) pair has a
// defined outcome, which keeps the decision pure, total, and testable by
// enumeration. Callers must re-evaluate on every mutating call; decisions
// are never cached across requests.
package access

import "fmt"

// Role is a principal's role on a project.
type Role string

const (
	RoleOwner       Role = "owner"
	RoleContributor Role = "contributor"
	RoleViewer      Role = "viewer"

	// RoleNone marks the absence of a membership. Public projects grant it
	// read access; private projects grant it nothing.
	RoleNone Role = ""
)

// Valid reports whether r is one of the three stored roles. RoleNone is a
// computed state, never stored.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleContributor, RoleViewer:
		return true
	default:
		return false
	}
}

// Action is something a principal may attempt on a project.
type Action string

const (
	ActionView           Action = "view"
	ActionEditTasks      Action = "edit_tasks"
	ActionTrackTime      Action = "track_time"
	ActionEditOthersTime Action = "edit_others_time"
	ActionManageMembers  Action = "manage_members"
	ActionIssueInvoice   Action = "issue_invoice"
	ActionVoidInvoice    Action = "void_invoice"
	ActionDeleteProject  Action = "delete_project"
)

// Actions lists every defined action. Kept in one place so the matrix can be
// verified total by enumeration.
var Actions = []Action{
	ActionView,
	ActionEditTasks,
	ActionTrackTime,
	ActionEditOthersTime,
	ActionManageMembers,
	ActionIssueInvoice,
	ActionVoidInvoice,
	ActionDeleteProject,
}

// Roles lists every role, including the no-membership state.
var Roles = []Role{RoleOwner, RoleContributor, RoleViewer, RoleNone}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow is the positive decision.
var Allow = Decision{Allowed: true}

// Deny builds a negative decision with a reason.
func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// matrix is the complete role→action permission table. track_time covers
// only the principal's own entries; edit_others_time is the separate grant
// for touching someone else's.
var matrix = map[Role]map[Action]bool{
	RoleOwner: {
		ActionView:           true,
		ActionEditTasks:      true,
		ActionTrackTime:      true,
		ActionEditOthersTime: true,
		ActionManageMembers:  true,
		ActionIssueInvoice:   true,
		ActionVoidInvoice:    true,
		ActionDeleteProject:  true,
	},
	RoleContributor: {
		ActionView:           true,
		ActionEditTasks:      true,
		ActionTrackTime:      true,
		ActionEditOthersTime: false,
		ActionManageMembers:  false,
		ActionIssueInvoice:   true,
		ActionVoidInvoice:    true,
		ActionDeleteProject:  false,
	},
	RoleViewer: {
		ActionView:           true,
		ActionEditTasks:      false,
		ActionTrackTime:      false,
		ActionEditOthersTime: false,
		ActionManageMembers:  false,
		ActionIssueInvoice:   false,
		ActionVoidInvoice:    false,
		ActionDeleteProject:  false,
	},
}

// Evaluate authorizes an action for a principal holding role on a project.
// public is the project's visibility flag; it only matters for principals
// without a membership, who are treated as viewers on public projects and
// denied outright on private ones.
func Evaluate(role Role, public bool, action Action) Decision {
	if role == RoleNone {
		if !public {
			return Deny("no membership on private project")
		}
		role = RoleViewer
	}

	perms, ok := matrix[role]
	if !ok {
		return Deny(fmt.Sprintf("unknown role %q", role))
	}

	allowed, ok := perms[action]
	if !ok {
		return Deny(fmt.Sprintf("unknown action %q", action))
	}
	if !allowed {
		return Deny(fmt.Sprintf("role %s may not %s", role, action))
	}

	return Allow
}
