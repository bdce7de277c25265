// Package soloist provides an embeddable operations backend for independent
// freelancers: project and client management, time tracking, and invoice
// generation in one consistent engine.
//
// Soloist is designed as a library, not a service. Import it directly into
// your Go application and put your own transport in front of it. It provides:
//
//   - Projects with per-project membership roles (owner, contributor, viewer)
//   - A running timer plus manual time entries, with overlap protection
//   - Period-based invoice generation grouped by task, with line-item detail
//   - A draft → issued → void invoice lifecycle that locks billed time
//   - Revocable share links for read-only access without an account
//   - Pluggable PDF rendering with background workers
//   - Audit trail for every mutating operation
//
// # Quick Start
//
// Create a soloist instance with your preferred store:
//
//	import (
//	    "github.com/eduar766/soloist-back"
//	    "github.com/eduar766/soloist-back/store/postgres"
//	)
//
//	// Initialize store
//	store, err := postgres.Open(ctx, databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Create the engine
//	s := soloist.New(store)
//
//	// Start it (runs migrations, begins background workers)
//	if err := s.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Stop()
//
// For tests and single-user tools the in-memory and SQLite stores work the
// same way; the facade never sees which backend it runs on.
//
// # Core Concepts
//
// Every operation takes the acting principal; access is decided by the
// principal's role on the project, never globally:
//
//	p := &project.Project{
//	    Name:        "Marketing site",
//	    Currency:    "usd",
//	    DefaultRate: &soloist.Money{Amount: 5000, Currency: "usd"},
//	}
//	err := s.CreateProject(ctx, "fran", p)
//
// Time accumulates against tasks, by timer or by hand:
//
//	entry, err := s.StartTimer(ctx, "fran", p.ID, taskID, "wireframes")
//	...
//	entry, err = s.StopTimer(ctx, "fran", time.Time{}) // zero end = now
//
// Invoices consolidate the unbilled billable time of a period:
//
//	inv, err := s.GenerateInvoice(ctx, "fran", p.ID, from, to)
//	inv, err = s.IssueInvoice(ctx, "fran", inv.ID)
//
// Issuing assigns the invoice number and claims every referenced entry, so
// the same minute of work can never appear on two invoices.
//
// # Money
//
// All monetary calculations use integer arithmetic to avoid floating-point
// precision issues. The Money type represents amounts in the smallest
// currency unit (cents for USD, whole pesos for CLP). Line item amounts are
// rounded half-up exactly once, from the exact product of seconds and hourly
// rate; totals are sums of already-rounded line items.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	proj_01h2xcejqtf2nbrexx3vqjhp41   // Project ID
//	entry_01h2xcejqtf2nbrexx3vqjhp41 // Time entry ID
//	inv_01h455vb4pex5vsknk084sn02q   // Invoice ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package soloist
