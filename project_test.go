package soloist_test

import (
	"context"
	"errors"
	"testing"
	"time"

	soloist "github.com/eduar766/soloist-back"
	"github.com/eduar766/soloist-back/access"
	"github.com/eduar766/soloist-back/id"
	"github.com/eduar766/soloist-back/project"
	"github.com/eduar766/soloist-back/types"
)

func TestCreateProjectValidation(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	var verr soloist.ValidationError
	if err := app.CreateProject(ctx, "fran", &project.Project{Currency: "usd"}); !errors.As(err, &verr) {
		t.Fatalf("empty name: %v, want ValidationError", err)
	}
	if err := app.CreateProject(ctx, "fran", &project.Project{Name: "x", Currency: "doubloons"}); !errors.As(err, &verr) {
		t.Fatalf("unknown currency: %v, want ValidationError", err)
	}

	mismatched := types.EUR(5000)
	err := app.CreateProject(ctx, "fran", &project.Project{
		Name:        "x",
		Currency:    "usd",
		DefaultRate: &mismatched,
	})
	if !errors.As(err, &verr) {
		t.Fatalf("rate currency mismatch: %v, want ValidationError", err)
	}

	// Currency codes normalize to lowercase.
	p := &project.Project{Name: "caps", Currency: "USD"}
	if err := app.CreateProject(ctx, "fran", p); err != nil {
		t.Fatal(err)
	}
	if p.Currency != "usd" {
		t.Fatalf("currency = %q, want usd", p.Currency)
	}
}

func TestCurrencyLocksOnFirstEntry(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	p := &project.Project{Name: "fx", Currency: "usd"}
	if err := app.CreateProject(ctx, "fran", p); err != nil {
		t.Fatal(err)
	}

	// No billing history yet: the currency may still change.
	eur := "eur"
	if _, err := app.UpdateProject(ctx, "fran", p.ID, soloist.ProjectUpdate{Currency: &eur}); err != nil {
		t.Fatal(err)
	}

	rate := types.EUR(4000)
	if _, err := app.UpdateProject(ctx, "fran", p.ID, soloist.ProjectUpdate{DefaultRate: &rate}); err != nil {
		t.Fatal(err)
	}
	task := mustTask(t, app, "fran", p.ID, "a")
	mustEntry(t, app, "fran", p.ID, task.ID, baseTime, time.Hour)

	// First entry recorded: locked for good.
	usd := "usd"
	if _, err := app.UpdateProject(ctx, "fran", p.ID, soloist.ProjectUpdate{Currency: &usd}); !errors.Is(err, soloist.ErrCurrencyLocked) {
		t.Fatalf("currency change after entry: %v, want ErrCurrencyLocked", err)
	}

	// Re-stating the same currency is a no-op, not a violation.
	same := "eur"
	if _, err := app.UpdateProject(ctx, "fran", p.ID, soloist.ProjectUpdate{Currency: &same}); err != nil {
		t.Fatalf("same-currency update: %v", err)
	}
}

func TestArchiveFreezesWrites(t *testing.T) {
	app, clock := newTestApp(t)
	ctx := context.Background()

	p := mustProject(t, app, "fran", "frozen")
	task := mustTask(t, app, "fran", p.ID, "a")
	e := mustEntry(t, app, "fran", p.ID, task.ID, baseTime, time.Hour)
	if _, err := app.AddMember(ctx, "fran", p.ID, "sam", access.RoleContributor); err != nil {
		t.Fatal(err)
	}

	draft, err := app.GenerateInvoice(ctx, "fran", p.ID, periodFrom, periodTo)
	if err != nil {
		t.Fatal(err)
	}
	issued, err := app.IssueInvoice(ctx, "fran", draft.ID)
	if err != nil {
		t.Fatal(err)
	}

	// A second draft over a later period, generated before the freeze.
	mustEntry(t, app, "fran", p.ID, task.ID, baseTime.Add(4*time.Hour), time.Hour)
	draft2, err := app.GenerateInvoice(ctx, "fran", p.ID, baseTime.Add(3*time.Hour), baseTime.Add(6*time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	if err := app.ArchiveProject(ctx, "fran", p.ID); err != nil {
		t.Fatal(err)
	}

	// Writes are frozen.
	if _, err := app.StartTimer(ctx, "fran", p.ID, task.ID, ""); !errors.Is(err, soloist.ErrProjectArchived) {
		t.Fatalf("timer on archived project: %v, want ErrProjectArchived", err)
	}
	if _, err := app.RecordEntry(ctx, "fran", soloist.EntryInput{
		ProjectID: p.ID, TaskID: task.ID,
		Start: baseTime.Add(2 * time.Hour), End: baseTime.Add(3 * time.Hour),
	}); !errors.Is(err, soloist.ErrProjectArchived) {
		t.Fatalf("entry on archived project: %v, want ErrProjectArchived", err)
	}
	if _, err := app.GenerateInvoice(ctx, "fran", p.ID, periodFrom, periodTo); !errors.Is(err, soloist.ErrProjectArchived) {
		t.Fatalf("invoice on archived project: %v, want ErrProjectArchived", err)
	}
	if err := app.CreateTask(ctx, "fran", &project.Task{ProjectID: p.ID, Name: "late"}); !errors.Is(err, soloist.ErrProjectArchived) {
		t.Fatalf("task on archived project: %v, want ErrProjectArchived", err)
	}
	if _, err := app.IssueInvoice(ctx, "fran", draft2.ID); !errors.Is(err, soloist.ErrProjectArchived) {
		t.Fatalf("issue on archived project: %v, want ErrProjectArchived", err)
	}
	if err := app.DiscardDraft(ctx, "fran", draft2.ID); !errors.Is(err, soloist.ErrProjectArchived) {
		t.Fatalf("discard on archived project: %v, want ErrProjectArchived", err)
	}

	// Membership is frozen with the rest.
	if _, err := app.AddMember(ctx, "fran", p.ID, "zoe", access.RoleViewer); !errors.Is(err, soloist.ErrProjectArchived) {
		t.Fatalf("add member on archived project: %v, want ErrProjectArchived", err)
	}
	if err := app.UpdateMemberRole(ctx, "fran", p.ID, "sam", access.RoleViewer); !errors.Is(err, soloist.ErrProjectArchived) {
		t.Fatalf("role change on archived project: %v, want ErrProjectArchived", err)
	}
	if err := app.RemoveMember(ctx, "fran", p.ID, "sam"); !errors.Is(err, soloist.ErrProjectArchived) {
		t.Fatalf("remove member on archived project: %v, want ErrProjectArchived", err)
	}
	if err := app.TransferOwnership(ctx, "fran", p.ID, "sam"); !errors.Is(err, soloist.ErrProjectArchived) {
		t.Fatalf("transfer on archived project: %v, want ErrProjectArchived", err)
	}

	// Reads still work.
	if _, err := app.GetEntry(ctx, "fran", e.ID); err != nil {
		t.Fatalf("read on archived project: %v", err)
	}

	// Voiding an issued invoice is a correction, not new work.
	if _, err := app.VoidInvoice(ctx, "fran", issued.ID, "correction"); err != nil {
		t.Fatalf("void on archived project: %v", err)
	}

	// Unarchive reopens writes. The clock moves past all recorded
	// intervals first so the fresh timer cannot overlap them.
	if err := app.UnarchiveProject(ctx, "fran", p.ID); err != nil {
		t.Fatal(err)
	}
	clock.Advance(12 * time.Hour)
	if _, err := app.StartTimer(ctx, "fran", p.ID, task.ID, ""); err != nil {
		t.Fatalf("timer after unarchive: %v", err)
	}
	if _, err := app.IssueInvoice(ctx, "fran", draft2.ID); err != nil {
		t.Fatalf("issue after unarchive: %v", err)
	}
}

func TestDeleteProject(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	p := mustProject(t, app, "fran", "doomed")
	task := mustTask(t, app, "fran", p.ID, "a")
	mustEntry(t, app, "fran", p.ID, task.ID, baseTime, time.Hour)

	draft, err := app.GenerateInvoice(ctx, "fran", p.ID, periodFrom, periodTo)
	if err != nil {
		t.Fatal(err)
	}
	issued, err := app.IssueInvoice(ctx, "fran", draft.ID)
	if err != nil {
		t.Fatal(err)
	}

	// Billing records outlive the work: delete is blocked while an issued
	// invoice stands.
	if err := app.DeleteProject(ctx, "fran", p.ID); !errors.Is(err, soloist.ErrProjectHasInvoices) {
		t.Fatalf("delete with issued invoice: %v, want ErrProjectHasInvoices", err)
	}

	if _, err := app.VoidInvoice(ctx, "fran", issued.ID, "undo"); err != nil {
		t.Fatal(err)
	}
	if err := app.DeleteProject(ctx, "fran", p.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := app.GetProject(ctx, "fran", p.ID); !errors.Is(err, soloist.ErrProjectNotFound) {
		t.Fatalf("get after delete: %v, want ErrProjectNotFound", err)
	}
	if _, err := app.GetTask(ctx, "fran", task.ID); !errors.Is(err, soloist.ErrTaskNotFound) {
		t.Fatalf("task survived project delete: %v", err)
	}
}

func TestDeleteTaskWithEntries(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	p := mustProject(t, app, "fran", "tasks")
	task := mustTask(t, app, "fran", p.ID, "a")
	e := mustEntry(t, app, "fran", p.ID, task.ID, baseTime, time.Hour)

	var verr soloist.ValidationError
	if err := app.DeleteTask(ctx, "fran", task.ID); !errors.As(err, &verr) {
		t.Fatalf("deleting referenced task: %v, want ValidationError", err)
	}

	if err := app.DeleteEntry(ctx, "fran", e.ID); err != nil {
		t.Fatal(err)
	}
	if err := app.DeleteTask(ctx, "fran", task.ID); err != nil {
		t.Fatalf("deleting unreferenced task: %v", err)
	}
}

func TestClientOwnership(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	c := &project.Client{Name: "ACME", Email: "billing@acme.test"}
	if err := app.CreateClient(ctx, "fran", c); err != nil {
		t.Fatal(err)
	}

	// Clients are scoped to their owner.
	if _, err := app.GetClient(ctx, "sam", c.ID); !errors.Is(err, soloist.ErrClientNotFound) {
		t.Fatalf("foreign client read: %v, want ErrClientNotFound", err)
	}

	// Projects can only reference clients that exist.
	bad := &project.Project{Name: "p", Currency: "usd", ClientID: id.NewClientID()}
	if err := app.CreateProject(ctx, "fran", bad); !errors.Is(err, soloist.ErrClientNotFound) {
		t.Fatalf("project with phantom client: %v, want ErrClientNotFound", err)
	}

	good := &project.Project{Name: "p", Currency: "usd", ClientID: c.ID}
	if err := app.CreateProject(ctx, "fran", good); err != nil {
		t.Fatal(err)
	}
}
