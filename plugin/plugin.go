// Package plugin provides an extensible plugin system for Soloist.
// Plugins can hook into various lifecycle events to extend functionality.
package plugin

import (
	"context"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, app interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Project lifecycle hooks
// ──────────────────────────────────────────────────

// OnProjectCreated is called when a new project is created.
type OnProjectCreated interface {
	Plugin
	OnProjectCreated(ctx context.Context, p interface{}) error
}

// OnProjectArchived is called when a project is archived.
type OnProjectArchived interface {
	Plugin
	OnProjectArchived(ctx context.Context, p interface{}) error
}

// OnMemberAdded is called when a principal joins a project.
type OnMemberAdded interface {
	Plugin
	OnMemberAdded(ctx context.Context, m interface{}) error
}

// OnOwnershipTransferred is called after an atomic ownership swap.
type OnOwnershipTransferred interface {
	Plugin
	OnOwnershipTransferred(ctx context.Context, projectID, oldOwner, newOwner string) error
}

// ──────────────────────────────────────────────────
// Time tracking hooks
// ──────────────────────────────────────────────────

// OnTimerStarted is called when an author starts a running timer.
type OnTimerStarted interface {
	Plugin
	OnTimerStarted(ctx context.Context, entry interface{}) error
}

// OnTimerStopped is called when a running timer is closed.
type OnTimerStopped interface {
	Plugin
	OnTimerStopped(ctx context.Context, entry interface{}) error
}

// OnEntryRecorded is called when a manual entry lands in the ledger.
type OnEntryRecorded interface {
	Plugin
	OnEntryRecorded(ctx context.Context, entry interface{}) error
}

// ──────────────────────────────────────────────────
// Invoice lifecycle hooks
// ──────────────────────────────────────────────────

// OnInvoiceGenerated is called when a draft invoice is generated.
type OnInvoiceGenerated interface {
	Plugin
	OnInvoiceGenerated(ctx context.Context, inv interface{}) error
}

// OnInvoiceIssued is called when a draft is issued and its entries claimed.
type OnInvoiceIssued interface {
	Plugin
	OnInvoiceIssued(ctx context.Context, inv interface{}) error
}

// OnInvoiceVoided is called when an issued invoice is voided.
type OnInvoiceVoided interface {
	Plugin
	OnInvoiceVoided(ctx context.Context, inv interface{}, reason string) error
}

// OnInvoiceRendered is called when the async render of an issued invoice
// completes, successfully or not.
type OnInvoiceRendered interface {
	Plugin
	OnInvoiceRendered(ctx context.Context, inv interface{}, location string, renderErr error) error
}

// ──────────────────────────────────────────────────
// Share link hooks
// ──────────────────────────────────────────────────

// OnShareCreated is called when a share link is issued.
type OnShareCreated interface {
	Plugin
	OnShareCreated(ctx context.Context, link interface{}) error
}

// OnShareRevoked is called when a share link is revoked.
type OnShareRevoked interface {
	Plugin
	OnShareRevoked(ctx context.Context, link interface{}) error
}

// OnShareResolved is called on every successful token resolution.
type OnShareResolved interface {
	Plugin
	OnShareResolved(ctx context.Context, link interface{}) error
}
