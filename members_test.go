package soloist_test

import (
	"context"
	"errors"
	"testing"
	"time"

	soloist "github.com/eduar766/soloist-back"
	"github.com/eduar766/soloist-back/access"
	"github.com/eduar766/soloist-back/timeentry"
)

func TestCreateProjectOwnerMembership(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	// The owner membership lands with the project itself; there is no
	// window in which the project exists unowned.
	p := mustProject(t, app, "fran", "owned")
	members, err := app.ListMembers(ctx, "fran", p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 {
		t.Fatalf("members = %d, want 1", len(members))
	}
	if members[0].Principal != "fran" || members[0].Role != access.RoleOwner {
		t.Fatalf("owner membership = %s/%s", members[0].Principal, members[0].Role)
	}
}

func TestRoleGates(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	p := mustProject(t, app, "fran", "gated")
	task := mustTask(t, app, "fran", p.ID, "a")
	mustEntry(t, app, "fran", p.ID, task.ID, baseTime, time.Hour)

	if _, err := app.AddMember(ctx, "fran", p.ID, "val", access.RoleViewer); err != nil {
		t.Fatal(err)
	}

	// Viewers read everything and change nothing.
	if _, err := app.GetProject(ctx, "val", p.ID); err != nil {
		t.Fatalf("viewer read: %v", err)
	}
	if _, err := app.ListEntries(ctx, "val", p.ID, timeentry.ListOpts{}); err != nil {
		t.Fatalf("viewer listing entries: %v", err)
	}
	if _, err := app.StartTimer(ctx, "val", p.ID, task.ID, ""); !soloist.IsAuthz(err) {
		t.Fatalf("viewer tracking time: %v, want authz denial", err)
	}
	if _, err := app.GenerateInvoice(ctx, "val", p.ID, periodFrom, periodTo); !soloist.IsAuthz(err) {
		t.Fatalf("viewer generating invoice: %v, want authz denial", err)
	}

	// Promotion to contributor unlocks invoicing.
	if err := app.UpdateMemberRole(ctx, "fran", p.ID, "val", access.RoleContributor); err != nil {
		t.Fatal(err)
	}
	if _, err := app.GenerateInvoice(ctx, "val", p.ID, periodFrom, periodTo); err != nil {
		t.Fatalf("contributor generating invoice: %v", err)
	}

	// Contributors still cannot manage members or delete the project.
	if _, err := app.AddMember(ctx, "val", p.ID, "sam", access.RoleViewer); !soloist.IsAuthz(err) {
		t.Fatalf("contributor adding member: %v, want authz denial", err)
	}
	if err := app.DeleteProject(ctx, "val", p.ID); !soloist.IsAuthz(err) {
		t.Fatalf("contributor deleting project: %v, want authz denial", err)
	}
}

func TestNonMemberDenied(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	p := mustProject(t, app, "fran", "private")
	if _, err := app.GetProject(ctx, "stranger", p.ID); !soloist.IsAuthz(err) {
		t.Fatalf("stranger on private project: %v, want authz denial", err)
	}

	// Flipping Public grants view, and only view.
	public := true
	if _, err := app.UpdateProject(ctx, "fran", p.ID, soloist.ProjectUpdate{Public: &public}); err != nil {
		t.Fatal(err)
	}
	if _, err := app.GetProject(ctx, "stranger", p.ID); err != nil {
		t.Fatalf("stranger on public project: %v", err)
	}
	task := mustTask(t, app, "fran", p.ID, "a")
	if _, err := app.StartTimer(ctx, "stranger", p.ID, task.ID, ""); !soloist.IsAuthz(err) {
		t.Fatalf("stranger tracking on public project: %v, want authz denial", err)
	}
}

func TestAddMember(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	p := mustProject(t, app, "fran", "members")

	m, err := app.AddMember(ctx, "fran", p.ID, "sam", access.RoleContributor)
	if err != nil {
		t.Fatal(err)
	}
	if m.Role != access.RoleContributor {
		t.Fatalf("role = %q", m.Role)
	}

	// One membership per principal.
	if _, err := app.AddMember(ctx, "fran", p.ID, "sam", access.RoleViewer); !errors.Is(err, soloist.ErrMemberExists) {
		t.Fatalf("duplicate member: %v, want ErrMemberExists", err)
	}

	// Owners are never added directly.
	var verr soloist.ValidationError
	if _, err := app.AddMember(ctx, "fran", p.ID, "eve", access.RoleOwner); !errors.As(err, &verr) {
		t.Fatalf("adding an owner: %v, want ValidationError", err)
	}
	if _, err := app.AddMember(ctx, "fran", p.ID, "eve", access.Role("admin")); !errors.As(err, &verr) {
		t.Fatalf("unknown role: %v, want ValidationError", err)
	}

	members, err := app.ListMembers(ctx, "fran", p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 2 { // owner + sam
		t.Fatalf("members = %d, want 2", len(members))
	}
}

func TestOwnerCannotBeDemotedOrRemoved(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	p := mustProject(t, app, "fran", "solo")

	if err := app.UpdateMemberRole(ctx, "fran", p.ID, "fran", access.RoleViewer); !errors.Is(err, soloist.ErrLastOwner) {
		t.Fatalf("demoting the owner: %v, want ErrLastOwner", err)
	}
	if err := app.RemoveMember(ctx, "fran", p.ID, "fran"); !errors.Is(err, soloist.ErrLastOwner) {
		t.Fatalf("removing the owner: %v, want ErrLastOwner", err)
	}
}

func TestTransferOwnership(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	p := mustProject(t, app, "fran", "handover")
	if _, err := app.AddMember(ctx, "fran", p.ID, "sam", access.RoleContributor); err != nil {
		t.Fatal(err)
	}

	// Only the owner transfers, membership management grant or not.
	if err := app.TransferOwnership(ctx, "sam", p.ID, "sam"); !soloist.IsAuthz(err) && !errors.Is(err, soloist.ErrNotOwner) {
		t.Fatalf("contributor transferring: %v", err)
	}

	// The new owner must already be a member.
	if err := app.TransferOwnership(ctx, "fran", p.ID, "nobody"); !errors.Is(err, soloist.ErrMemberNotFound) {
		t.Fatalf("transfer to non-member: %v, want ErrMemberNotFound", err)
	}

	if err := app.TransferOwnership(ctx, "fran", p.ID, "sam"); err != nil {
		t.Fatal(err)
	}

	got, err := app.GetProject(ctx, "sam", p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.OwnerID != "sam" {
		t.Fatalf("owner = %q, want sam", got.OwnerID)
	}

	// Exactly one owner, before and after; fran is now a contributor.
	members, err := app.ListMembers(ctx, "sam", p.ID)
	if err != nil {
		t.Fatal(err)
	}
	owners := 0
	roles := make(map[string]access.Role, len(members))
	for _, m := range members {
		roles[m.Principal] = m.Role
		if m.Role == access.RoleOwner {
			owners++
		}
	}
	if owners != 1 {
		t.Fatalf("owners = %d, want 1", owners)
	}
	if roles["sam"] != access.RoleOwner || roles["fran"] != access.RoleContributor {
		t.Fatalf("roles after transfer = %v", roles)
	}

	// The old owner lost the owner-only grants.
	if err := app.TransferOwnership(ctx, "fran", p.ID, "fran"); err == nil {
		t.Fatal("demoted owner transferred ownership back")
	}
	// The new owner can hand it back.
	if err := app.TransferOwnership(ctx, "sam", p.ID, "fran"); err != nil {
		t.Fatal(err)
	}
}
