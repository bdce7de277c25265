package invoice

import (
	"testing"

	"github.com/eduar766/soloist-back/id"
	"github.com/eduar766/soloist-back/types"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusDraft, StatusIssued, true},
		{StatusIssued, StatusVoid, true},
		{StatusDraft, StatusVoid, false},
		{StatusIssued, StatusDraft, false},
		{StatusVoid, StatusIssued, false},
		{StatusVoid, StatusDraft, false},
		{StatusDraft, StatusDraft, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	if got := FormatNumber(2025, 7); got != "SOL-2025-0007" {
		t.Errorf("FormatNumber(2025, 7) = %q", got)
	}
	if got := FormatNumber(2026, 12345); got != "SOL-2026-12345" {
		t.Errorf("FormatNumber(2026, 12345) = %q", got)
	}
}

func TestRecomputeTotal(t *testing.T) {
	inv := &Invoice{
		Currency: "usd",
		LineItems: []LineItem{
			{Amount: types.USD(12500)},
			{Amount: types.USD(16000)},
		},
	}
	total := inv.RecomputeTotal()
	if total.Amount != 28500 || total.Currency != "usd" {
		t.Fatalf("total = %v", total)
	}

	// Idempotent on an unchanged invoice.
	inv.Total = total
	if again := inv.RecomputeTotal(); !again.Equal(total) {
		t.Fatalf("recompute changed the total: %v", again)
	}
}

func TestEntryIDs(t *testing.T) {
	a, b, c := id.NewEntryID(), id.NewEntryID(), id.NewEntryID()
	inv := &Invoice{
		LineItems: []LineItem{
			{EntryIDs: []id.EntryID{a, b}},
			{EntryIDs: []id.EntryID{c}},
		},
	}
	ids := inv.EntryIDs()
	if len(ids) != 3 {
		t.Fatalf("entry IDs = %d, want 3", len(ids))
	}
}
