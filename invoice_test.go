package soloist_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	soloist "github.com/eduar766/soloist-back"
	"github.com/eduar766/soloist-back/id"
	"github.com/eduar766/soloist-back/invoice"
	"github.com/eduar766/soloist-back/project"
	"github.com/eduar766/soloist-back/store"
	"github.com/eduar766/soloist-back/store/memory"
	"github.com/eduar766/soloist-back/timeentry"
	"github.com/eduar766/soloist-back/types"
)

var (
	periodFrom = baseTime.Add(-24 * time.Hour)
	periodTo   = baseTime.Add(24 * time.Hour)
)

func TestGenerateInvoiceRounding(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	p := mustProject(t, app, "fran", "billing") // $50.00/h
	task := mustTask(t, app, "fran", p.ID, "design")

	// 2.5h at 5000 minor units per hour: 5000*9000/3600 = 12500 exactly.
	mustEntry(t, app, "fran", p.ID, task.ID, baseTime, 150*time.Minute)

	inv, err := app.GenerateInvoice(ctx, "fran", p.ID, periodFrom, periodTo)
	if err != nil {
		t.Fatal(err)
	}
	if !inv.Draft() {
		t.Fatalf("status = %q, want draft", inv.Status)
	}
	if inv.Number != "" {
		t.Fatalf("draft carries number %q", inv.Number)
	}
	if len(inv.LineItems) != 1 {
		t.Fatalf("line items = %d, want 1", len(inv.LineItems))
	}

	li := inv.LineItems[0]
	if li.Quantity != 9000 {
		t.Fatalf("quantity = %ds, want 9000", li.Quantity)
	}
	if li.Amount.Amount != 12500 {
		t.Fatalf("line amount = %d, want 12500", li.Amount.Amount)
	}
	if inv.Total.Amount != 12500 {
		t.Fatalf("total = %d, want 12500", inv.Total.Amount)
	}
	if inv.Total.Currency != "usd" {
		t.Fatalf("total currency = %q, want usd", inv.Total.Currency)
	}
}

func TestGenerateInvoiceRoundsHalfUpOncePerLine(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	p := mustProject(t, app, "fran", "rounding")
	task := mustTask(t, app, "fran", p.ID, "a")

	// Two 30m30s entries on one task: seconds sum first (3660), then one
	// rounding. 5000*3660/3600 = 5083.33 → 5083, not 2*round(2541.66) = 5084.
	mustEntry(t, app, "fran", p.ID, task.ID, baseTime, 30*time.Minute+30*time.Second)
	mustEntry(t, app, "fran", p.ID, task.ID, baseTime.Add(time.Hour), 30*time.Minute+30*time.Second)

	inv, err := app.GenerateInvoice(ctx, "fran", p.ID, periodFrom, periodTo)
	if err != nil {
		t.Fatal(err)
	}
	if len(inv.LineItems) != 1 {
		t.Fatalf("line items = %d, want 1", len(inv.LineItems))
	}
	if got := inv.LineItems[0].Amount.Amount; got != 5083 {
		t.Fatalf("line amount = %d, want 5083", got)
	}
}

func TestGenerateInvoiceGroupsByTaskAndRate(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	p := mustProject(t, app, "fran", "grouping") // default $50/h
	design := mustTask(t, app, "fran", p.ID, "design")

	override := types.USD(8000)
	dev := &project.Task{ProjectID: p.ID, Name: "development", RateOverride: &override}
	if err := app.CreateTask(ctx, "fran", dev); err != nil {
		t.Fatal(err)
	}

	mustEntry(t, app, "fran", p.ID, design.ID, baseTime, time.Hour)
	mustEntry(t, app, "fran", p.ID, design.ID, baseTime.Add(2*time.Hour), time.Hour)
	mustEntry(t, app, "fran", p.ID, dev.ID, baseTime.Add(4*time.Hour), 2*time.Hour)

	// Non-billable time never reaches an invoice.
	if _, err := app.RecordEntry(ctx, "fran", soloist.EntryInput{
		ProjectID: p.ID,
		TaskID:    design.ID,
		Start:     baseTime.Add(7 * time.Hour),
		End:       baseTime.Add(8 * time.Hour),
		Billable:  false,
	}); err != nil {
		t.Fatal(err)
	}

	inv, err := app.GenerateInvoice(ctx, "fran", p.ID, periodFrom, periodTo)
	if err != nil {
		t.Fatal(err)
	}
	if len(inv.LineItems) != 2 {
		t.Fatalf("line items = %d, want 2", len(inv.LineItems))
	}

	byTask := make(map[string]invoice.LineItem, 2)
	for _, li := range inv.LineItems {
		byTask[li.Description] = li
	}

	d := byTask["design"]
	if d.Quantity != 7200 || d.Amount.Amount != 10000 {
		t.Fatalf("design line = %ds / %d, want 7200s / 10000", d.Quantity, d.Amount.Amount)
	}
	if d.UnitRate.Amount != 5000 {
		t.Fatalf("design rate = %d, want project default 5000", d.UnitRate.Amount)
	}

	v := byTask["development"]
	if v.Quantity != 7200 || v.Amount.Amount != 16000 {
		t.Fatalf("development line = %ds / %d, want 7200s / 16000", v.Quantity, v.Amount.Amount)
	}
	if v.UnitRate.Amount != 8000 {
		t.Fatalf("development rate = %d, want override 8000", v.UnitRate.Amount)
	}

	if inv.Total.Amount != 26000 {
		t.Fatalf("total = %d, want 26000", inv.Total.Amount)
	}
}

func TestGenerateInvoiceEmptyPeriod(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	p := mustProject(t, app, "fran", "empty")
	mustTask(t, app, "fran", p.ID, "a")

	if _, err := app.GenerateInvoice(ctx, "fran", p.ID, periodFrom, periodTo); !errors.Is(err, soloist.ErrEmptyInvoice) {
		t.Fatalf("empty period: %v, want ErrEmptyInvoice", err)
	}
	if _, err := app.GenerateInvoice(ctx, "fran", p.ID, periodTo, periodFrom); !errors.Is(err, soloist.ErrInvalidRange) {
		t.Fatalf("inverted period: %v, want ErrInvalidRange", err)
	}
}

func TestGenerateInvoiceNoRate(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	p := &project.Project{Name: "rateless", Currency: "usd"}
	if err := app.CreateProject(ctx, "fran", p); err != nil {
		t.Fatal(err)
	}
	task := mustTask(t, app, "fran", p.ID, "a")
	mustEntry(t, app, "fran", p.ID, task.ID, baseTime, time.Hour)

	if _, err := app.GenerateInvoice(ctx, "fran", p.ID, periodFrom, periodTo); !errors.Is(err, soloist.ErrNoRate) {
		t.Fatalf("no rate anywhere: %v, want ErrNoRate", err)
	}
}

func TestRegenerateReplacesDraft(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	p := mustProject(t, app, "fran", "regen")
	task := mustTask(t, app, "fran", p.ID, "a")
	mustEntry(t, app, "fran", p.ID, task.ID, baseTime, time.Hour)

	first, err := app.GenerateInvoice(ctx, "fran", p.ID, periodFrom, periodTo)
	if err != nil {
		t.Fatal(err)
	}

	mustEntry(t, app, "fran", p.ID, task.ID, baseTime.Add(2*time.Hour), time.Hour)
	second, err := app.GenerateInvoice(ctx, "fran", p.ID, periodFrom, periodTo)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := app.GetInvoice(ctx, "fran", first.ID); !errors.Is(err, soloist.ErrInvoiceNotFound) {
		t.Fatalf("replaced draft still readable: %v", err)
	}

	drafts, err := app.ListInvoices(ctx, "fran", p.ID, invoice.ListOpts{Status: invoice.StatusDraft})
	if err != nil {
		t.Fatal(err)
	}
	if len(drafts) != 1 {
		t.Fatalf("drafts for the period = %d, want 1", len(drafts))
	}
	if second.Total.Amount != 10000 {
		t.Fatalf("regenerated total = %d, want 10000", second.Total.Amount)
	}
}

func TestIssueInvoice(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	p := mustProject(t, app, "fran", "issuing")
	task := mustTask(t, app, "fran", p.ID, "a")
	e := mustEntry(t, app, "fran", p.ID, task.ID, baseTime, time.Hour)

	draft, err := app.GenerateInvoice(ctx, "fran", p.ID, periodFrom, periodTo)
	if err != nil {
		t.Fatal(err)
	}

	issued, err := app.IssueInvoice(ctx, "fran", draft.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !issued.Issued() {
		t.Fatalf("status = %q, want issued", issued.Status)
	}
	if issued.Number != "SOL-2025-0001" {
		t.Fatalf("number = %q, want SOL-2025-0001", issued.Number)
	}
	if issued.IssuedAt == nil {
		t.Fatal("IssuedAt not set")
	}

	// The referenced entry is now claimed and immutable.
	got, err := app.GetEntry(ctx, "fran", e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Claimed() {
		t.Fatal("entry not claimed after issue")
	}
	note := "tweak"
	if _, err := app.EditEntry(ctx, "fran", e.ID, soloist.EntryUpdate{Note: &note}); !errors.Is(err, soloist.ErrEntryImmutable) {
		t.Fatalf("editing claimed entry: %v, want ErrEntryImmutable", err)
	}
	if err := app.DeleteEntry(ctx, "fran", e.ID); !errors.Is(err, soloist.ErrEntryImmutable) {
		t.Fatalf("deleting claimed entry: %v, want ErrEntryImmutable", err)
	}

	// Claimed time never reappears in a later consolidation.
	if _, err := app.GenerateInvoice(ctx, "fran", p.ID, periodFrom, periodTo); !errors.Is(err, soloist.ErrEmptyInvoice) {
		t.Fatalf("regenerating over claimed entries: %v, want ErrEmptyInvoice", err)
	}

	// Issue is not repeatable.
	if _, err := app.IssueInvoice(ctx, "fran", draft.ID); !errors.Is(err, soloist.ErrInvoiceNotDraft) {
		t.Fatalf("issuing twice: %v, want ErrInvoiceNotDraft", err)
	}
}

func TestInvoiceNumberSequence(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	p := mustProject(t, app, "fran", "numbering")
	task := mustTask(t, app, "fran", p.ID, "a")

	for i := 0; i < 3; i++ {
		start := baseTime.Add(time.Duration(i) * 2 * time.Hour)
		mustEntry(t, app, "fran", p.ID, task.ID, start, time.Hour)

		draft, err := app.GenerateInvoice(ctx, "fran", p.ID, start, start.Add(2*time.Hour))
		if err != nil {
			t.Fatal(err)
		}
		issued, err := app.IssueInvoice(ctx, "fran", draft.ID)
		if err != nil {
			t.Fatal(err)
		}
		want := fmt.Sprintf("SOL-2025-%04d", i+1)
		if issued.Number != want {
			t.Fatalf("number = %q, want %q", issued.Number, want)
		}
	}

	// Voiding burns the number; the sequence never reuses it.
	invs, err := app.ListInvoices(ctx, "fran", p.ID, invoice.ListOpts{Status: invoice.StatusIssued})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := app.VoidInvoice(ctx, "fran", invs[0].ID, "test"); err != nil {
		t.Fatal(err)
	}

	start := baseTime.Add(10 * time.Hour)
	mustEntry(t, app, "fran", p.ID, task.ID, start, time.Hour)
	draft, err := app.GenerateInvoice(ctx, "fran", p.ID, start, start.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	issued, err := app.IssueInvoice(ctx, "fran", draft.ID)
	if err != nil {
		t.Fatal(err)
	}
	if issued.Number != "SOL-2025-0004" {
		t.Fatalf("number after void = %q, want SOL-2025-0004", issued.Number)
	}
}

func TestClaimExclusivity(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	p := mustProject(t, app, "fran", "exclusive")
	task := mustTask(t, app, "fran", p.ID, "a")
	mustEntry(t, app, "fran", p.ID, task.ID, baseTime, time.Hour)

	// Two drafts over overlapping periods reference the same entry; only
	// the first issue wins the claim.
	a, err := app.GenerateInvoice(ctx, "fran", p.ID, periodFrom, periodTo)
	if err != nil {
		t.Fatal(err)
	}
	b, err := app.GenerateInvoice(ctx, "fran", p.ID, periodFrom, periodTo.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := app.IssueInvoice(ctx, "fran", a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := app.IssueInvoice(ctx, "fran", b.ID); !errors.Is(err, soloist.ErrEntryClaimed) {
		t.Fatalf("issuing the losing draft: %v, want ErrEntryClaimed", err)
	}

	// The losing draft is untouched, still a draft.
	got, err := app.GetInvoice(ctx, "fran", b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Draft() {
		t.Fatalf("losing draft status = %q, want draft", got.Status)
	}
}

func TestVoidInvoiceReleasesEntries(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	p := mustProject(t, app, "fran", "voiding")
	task := mustTask(t, app, "fran", p.ID, "a")
	e := mustEntry(t, app, "fran", p.ID, task.ID, baseTime, time.Hour)

	draft, err := app.GenerateInvoice(ctx, "fran", p.ID, periodFrom, periodTo)
	if err != nil {
		t.Fatal(err)
	}
	issued, err := app.IssueInvoice(ctx, "fran", draft.ID)
	if err != nil {
		t.Fatal(err)
	}

	voided, err := app.VoidInvoice(ctx, "fran", issued.ID, "client dispute")
	if err != nil {
		t.Fatal(err)
	}
	if !voided.Void() {
		t.Fatalf("status = %q, want void", voided.Status)
	}
	if voided.VoidReason != "client dispute" {
		t.Fatalf("void reason = %q", voided.VoidReason)
	}
	if voided.Number != issued.Number {
		t.Fatal("voiding must keep the invoice number")
	}
	if voided.Total.Amount != issued.Total.Amount {
		t.Fatal("voiding must keep the snapshot")
	}

	// The entry is billable again and editable again.
	got, err := app.GetEntry(ctx, "fran", e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Claimed() {
		t.Fatal("entry still claimed after void")
	}
	redo, err := app.GenerateInvoice(ctx, "fran", p.ID, periodFrom, periodTo)
	if err != nil {
		t.Fatal(err)
	}
	if redo.Total.Amount != issued.Total.Amount {
		t.Fatalf("re-billed total = %d, want %d", redo.Total.Amount, issued.Total.Amount)
	}

	// Void is terminal and only reachable from issued.
	if _, err := app.VoidInvoice(ctx, "fran", issued.ID, "again"); !errors.Is(err, soloist.ErrInvoiceNotIssued) {
		t.Fatalf("voiding twice: %v, want ErrInvoiceNotIssued", err)
	}
	if _, err := app.VoidInvoice(ctx, "fran", redo.ID, "draft"); !errors.Is(err, soloist.ErrInvoiceNotIssued) {
		t.Fatalf("voiding a draft: %v, want ErrInvoiceNotIssued", err)
	}
}

func TestDiscardDraft(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	p := mustProject(t, app, "fran", "discard")
	task := mustTask(t, app, "fran", p.ID, "a")
	mustEntry(t, app, "fran", p.ID, task.ID, baseTime, time.Hour)

	draft, err := app.GenerateInvoice(ctx, "fran", p.ID, periodFrom, periodTo)
	if err != nil {
		t.Fatal(err)
	}
	if err := app.DiscardDraft(ctx, "fran", draft.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := app.GetInvoice(ctx, "fran", draft.ID); !errors.Is(err, soloist.ErrInvoiceNotFound) {
		t.Fatalf("get after discard: %v", err)
	}

	// Issued invoices cannot be discarded.
	redraft, err := app.GenerateInvoice(ctx, "fran", p.ID, periodFrom, periodTo)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := app.IssueInvoice(ctx, "fran", redraft.ID); err != nil {
		t.Fatal(err)
	}
	if err := app.DiscardDraft(ctx, "fran", redraft.ID); !errors.Is(err, soloist.ErrInvoiceNotDraft) {
		t.Fatalf("discarding issued: %v, want ErrInvoiceNotDraft", err)
	}
}

// stubRenderer fails the first failures renders, then produces bytes.
type stubRenderer struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (r *stubRenderer) Render(_ context.Context, inv *invoice.Invoice) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.calls <= r.failures {
		return nil, errors.New("layout engine unavailable")
	}
	return []byte("PDF " + inv.Number), nil
}

// memBlobs is an in-memory BlobStore that signals every Put.
type memBlobs struct {
	mu   sync.Mutex
	m    map[string][]byte
	puts chan string
}

func newMemBlobs() *memBlobs {
	return &memBlobs{m: make(map[string][]byte), puts: make(chan string, 8)}
}

func (b *memBlobs) Put(_ context.Context, key string, data []byte) error {
	b.mu.Lock()
	b.m[key] = data
	b.mu.Unlock()
	b.puts <- key
	return nil
}

func (b *memBlobs) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.m[key]
	if !ok {
		return nil, errors.New("no such blob")
	}
	return data, nil
}

func TestIssueRendersInBackground(t *testing.T) {
	renderer := &stubRenderer{failures: 1} // first attempt fails, retry succeeds
	blobs := newMemBlobs()
	app, _ := newTestApp(t,
		soloist.WithRenderer(renderer),
		soloist.WithBlobStore(blobs),
	)
	ctx := context.Background()

	p := mustProject(t, app, "fran", "rendered")
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

	select {
	case key := <-blobs.puts:
		if key != issued.ID.String() {
			t.Fatalf("blob key = %q, want %q", key, issued.ID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("render worker never stored the document")
	}

	doc, err := app.InvoiceDocument(ctx, "fran", issued.ID)
	if err != nil {
		t.Fatal(err)
	}
	if string(doc) != "PDF "+issued.Number {
		t.Fatalf("document = %q", doc)
	}
}

// issueDuring wraps a store and issues a prepared draft right before the
// first guarded entry write reaches the backend, reproducing a claim that
// commits between the facade's immutability pre-check and the store write.
type issueDuring struct {
	store.Store
	issue func()
	once  sync.Once
}

func (s *issueDuring) UpdateEntry(ctx context.Context, e *timeentry.Entry) error {
	s.once.Do(s.issue)
	return s.Store.UpdateEntry(ctx, e)
}

func (s *issueDuring) DeleteEntry(ctx context.Context, entryID id.EntryID) error {
	s.once.Do(s.issue)
	return s.Store.DeleteEntry(ctx, entryID)
}

func TestClaimWinsRaceAgainstDelete(t *testing.T) {
	ws := &issueDuring{Store: memory.New()}
	app, _ := newTestAppOn(t, ws)
	ctx := context.Background()

	p := mustProject(t, app, "fran", "raced-delete")
	task := mustTask(t, app, "fran", p.ID, "a")
	e := mustEntry(t, app, "fran", p.ID, task.ID, baseTime, time.Hour)

	draft, err := app.GenerateInvoice(ctx, "fran", p.ID, periodFrom, periodTo)
	if err != nil {
		t.Fatal(err)
	}
	ws.issue = func() {
		if _, err := app.IssueInvoice(ctx, "fran", draft.ID); err != nil {
			t.Errorf("interleaved issue: %v", err)
		}
	}

	if err := app.DeleteEntry(ctx, "fran", e.ID); !errors.Is(err, soloist.ErrEntryImmutable) {
		t.Fatalf("delete raced by issue: %v, want ErrEntryImmutable", err)
	}
	got, err := app.GetEntry(ctx, "fran", e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Claimed() {
		t.Fatal("issued invoice lost its claim to the raced delete")
	}
}

func TestClaimWinsRaceAgainstEdit(t *testing.T) {
	ws := &issueDuring{Store: memory.New()}
	app, _ := newTestAppOn(t, ws)
	ctx := context.Background()

	p := mustProject(t, app, "fran", "raced-edit")
	task := mustTask(t, app, "fran", p.ID, "a")
	e := mustEntry(t, app, "fran", p.ID, task.ID, baseTime, time.Hour)

	draft, err := app.GenerateInvoice(ctx, "fran", p.ID, periodFrom, periodTo)
	if err != nil {
		t.Fatal(err)
	}
	ws.issue = func() {
		if _, err := app.IssueInvoice(ctx, "fran", draft.ID); err != nil {
			t.Errorf("interleaved issue: %v", err)
		}
	}

	newEnd := baseTime.Add(3 * time.Hour)
	if _, err := app.EditEntry(ctx, "fran", e.ID, soloist.EntryUpdate{End: &newEnd}); !errors.Is(err, soloist.ErrEntryImmutable) {
		t.Fatalf("edit raced by issue: %v, want ErrEntryImmutable", err)
	}
	got, err := app.GetEntry(ctx, "fran", e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Claimed() {
		t.Fatal("issued invoice lost its claim to the raced edit")
	}
	if got.Seconds() != 3600 {
		t.Fatalf("claimed entry rewritten: %ds, want 3600", got.Seconds())
	}
}

func TestIssueAllOrNothing(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	p := mustProject(t, app, "fran", "atomic-claims")
	task := mustTask(t, app, "fran", p.ID, "a")
	mustEntry(t, app, "fran", p.ID, task.ID, baseTime, time.Hour)
	second := mustEntry(t, app, "fran", p.ID, task.ID, baseTime.Add(2*time.Hour), time.Hour)

	// A narrow draft claims only the first entry.
	narrow, err := app.GenerateInvoice(ctx, "fran", p.ID, baseTime, baseTime.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	// A wide draft references both.
	wide, err := app.GenerateInvoice(ctx, "fran", p.ID, periodFrom, periodTo)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := app.IssueInvoice(ctx, "fran", narrow.ID); err != nil {
		t.Fatal(err)
	}

	// The wide issue hits the claimed first entry and commits nothing.
	if _, err := app.IssueInvoice(ctx, "fran", wide.ID); !errors.Is(err, soloist.ErrEntryClaimed) {
		t.Fatalf("conflicting issue: %v, want ErrEntryClaimed", err)
	}
	got, err := app.GetEntry(ctx, "fran", second.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Claimed() {
		t.Fatal("failed issue left a partial claim behind")
	}
	inv, err := app.GetInvoice(ctx, "fran", wide.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !inv.Draft() {
		t.Fatalf("failed issue moved the draft to %s", inv.Status)
	}
}
