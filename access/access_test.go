package access

import "testing"

// The matrix is small enough to check exhaustively: every (role, public,
// action) combination has an expected outcome.
func TestEvaluateEnumeration(t *testing.T) {
	type key struct {
		role   Role
		action Action
	}

	// Expected grants for membership-holding roles.
	allowed := map[key]bool{
		{RoleOwner, ActionView}:           true,
		{RoleOwner, ActionEditTasks}:      true,
		{RoleOwner, ActionTrackTime}:      true,
		{RoleOwner, ActionEditOthersTime}: true,
		{RoleOwner, ActionManageMembers}:  true,
		{RoleOwner, ActionIssueInvoice}:   true,
		{RoleOwner, ActionVoidInvoice}:    true,
		{RoleOwner, ActionDeleteProject}:  true,

		{RoleContributor, ActionView}:           true,
		{RoleContributor, ActionEditTasks}:      true,
		{RoleContributor, ActionTrackTime}:      true,
		{RoleContributor, ActionEditOthersTime}: false,
		{RoleContributor, ActionManageMembers}:  false,
		{RoleContributor, ActionIssueInvoice}:   true,
		{RoleContributor, ActionVoidInvoice}:    true,
		{RoleContributor, ActionDeleteProject}:  false,

		{RoleViewer, ActionView}:           true,
		{RoleViewer, ActionEditTasks}:      false,
		{RoleViewer, ActionTrackTime}:      false,
		{RoleViewer, ActionEditOthersTime}: false,
		{RoleViewer, ActionManageMembers}:  false,
		{RoleViewer, ActionIssueInvoice}:   false,
		{RoleViewer, ActionVoidInvoice}:    false,
		{RoleViewer, ActionDeleteProject}:  false,
	}

	for _, role := range []Role{RoleOwner, RoleContributor, RoleViewer} {
		for _, action := range Actions {
			for _, public := range []bool{true, false} {
				want, ok := allowed[key{role, action}]
				if !ok {
					t.Fatalf("test table missing (%s, %s)", role, action)
				}
				got := Evaluate(role, public, action)
				if got.Allowed != want {
					t.Errorf("Evaluate(%s, public=%v, %s) = %v, want %v", role, public, action, got.Allowed, want)
				}
				if !got.Allowed && got.Reason == "" {
					t.Errorf("Evaluate(%s, public=%v, %s): denial without reason", role, public, action)
				}
			}
		}
	}
}

func TestEvaluateNoMembership(t *testing.T) {
	for _, action := range Actions {
		// Private project: everything denied.
		if got := Evaluate(RoleNone, false, action); got.Allowed {
			t.Errorf("Evaluate(none, private, %s) allowed, want denied", action)
		}

		// Public project: viewer semantics.
		got := Evaluate(RoleNone, true, action)
		want := action == ActionView
		if got.Allowed != want {
			t.Errorf("Evaluate(none, public, %s) = %v, want %v", action, got.Allowed, want)
		}
	}
}

func TestEvaluateUnknownInputs(t *testing.T) {
	if got := Evaluate(Role("admin"), true, ActionView); got.Allowed {
		t.Error("unknown role must be denied")
	}
	if got := Evaluate(RoleOwner, true, Action("drop_tables")); got.Allowed {
		t.Error("unknown action must be denied")
	}
}

func TestRoleValid(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleOwner, true},
		{RoleContributor, true},
		{RoleViewer, true},
		{RoleNone, false},
		{Role("admin"), false},
	}

	for _, tt := range tests {
		if got := tt.role.Valid(); got != tt.want {
			t.Errorf("Role(%q).Valid() = %v, want %v", tt.role, got, tt.want)
		}
	}
}
