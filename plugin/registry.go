package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit                 []OnInit
	onShutdown             []OnShutdown
	onProjectCreated       []OnProjectCreated
	onProjectArchived      []OnProjectArchived
	onMemberAdded          []OnMemberAdded
	onOwnershipTransferred []OnOwnershipTransferred
	onTimerStarted         []OnTimerStarted
	onTimerStopped         []OnTimerStopped
	onEntryRecorded        []OnEntryRecorded
	onInvoiceGenerated     []OnInvoiceGenerated
	onInvoiceIssued        []OnInvoiceIssued
	onInvoiceVoided        []OnInvoiceVoided
	onInvoiceRendered      []OnInvoiceRendered
	onShareCreated         []OnShareCreated
	onShareRevoked         []OnShareRevoked
	onShareResolved        []OnShareResolved
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnProjectCreated); ok {
		r.onProjectCreated = append(r.onProjectCreated, v)
	}
	if v, ok := p.(OnProjectArchived); ok {
		r.onProjectArchived = append(r.onProjectArchived, v)
	}
	if v, ok := p.(OnMemberAdded); ok {
		r.onMemberAdded = append(r.onMemberAdded, v)
	}
	if v, ok := p.(OnOwnershipTransferred); ok {
		r.onOwnershipTransferred = append(r.onOwnershipTransferred, v)
	}
	if v, ok := p.(OnTimerStarted); ok {
		r.onTimerStarted = append(r.onTimerStarted, v)
	}
	if v, ok := p.(OnTimerStopped); ok {
		r.onTimerStopped = append(r.onTimerStopped, v)
	}
	if v, ok := p.(OnEntryRecorded); ok {
		r.onEntryRecorded = append(r.onEntryRecorded, v)
	}
	if v, ok := p.(OnInvoiceGenerated); ok {
		r.onInvoiceGenerated = append(r.onInvoiceGenerated, v)
	}
	if v, ok := p.(OnInvoiceIssued); ok {
		r.onInvoiceIssued = append(r.onInvoiceIssued, v)
	}
	if v, ok := p.(OnInvoiceVoided); ok {
		r.onInvoiceVoided = append(r.onInvoiceVoided, v)
	}
	if v, ok := p.(OnInvoiceRendered); ok {
		r.onInvoiceRendered = append(r.onInvoiceRendered, v)
	}
	if v, ok := p.(OnShareCreated); ok {
		r.onShareCreated = append(r.onShareCreated, v)
	}
	if v, ok := p.(OnShareRevoked); ok {
		r.onShareRevoked = append(r.onShareRevoked, v)
	}
	if v, ok := p.(OnShareResolved); ok {
		r.onShareResolved = append(r.onShareResolved, v)
	}

	r.logger.Info("plugin registered", "name", p.Name())

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, app interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, app)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitProjectCreated emits a project created event.
func (r *Registry) EmitProjectCreated(ctx context.Context, p interface{}) {
	r.mu.RLock()
	plugins := r.onProjectCreated
	r.mu.RUnlock()

	for _, pl := range plugins {
		if err := r.callWithTimeout(ctx, pl.Name(), func() error {
			return pl.OnProjectCreated(ctx, p)
		}); err != nil {
			r.logger.Warn("plugin OnProjectCreated failed",
				"plugin", pl.Name(),
				"error", err,
			)
		}
	}
}

// EmitProjectArchived emits a project archived event.
func (r *Registry) EmitProjectArchived(ctx context.Context, p interface{}) {
	r.mu.RLock()
	plugins := r.onProjectArchived
	r.mu.RUnlock()

	for _, pl := range plugins {
		if err := r.callWithTimeout(ctx, pl.Name(), func() error {
			return pl.OnProjectArchived(ctx, p)
		}); err != nil {
			r.logger.Warn("plugin OnProjectArchived failed",
				"plugin", pl.Name(),
				"error", err,
			)
		}
	}
}

// EmitMemberAdded emits a member added event.
func (r *Registry) EmitMemberAdded(ctx context.Context, m interface{}) {
	r.mu.RLock()
	plugins := r.onMemberAdded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnMemberAdded(ctx, m)
		}); err != nil {
			r.logger.Warn("plugin OnMemberAdded failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitOwnershipTransferred emits an ownership transferred event.
func (r *Registry) EmitOwnershipTransferred(ctx context.Context, projectID, oldOwner, newOwner string) {
	r.mu.RLock()
	plugins := r.onOwnershipTransferred
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnOwnershipTransferred(ctx, projectID, oldOwner, newOwner)
		}); err != nil {
			r.logger.Warn("plugin OnOwnershipTransferred failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitTimerStarted emits a timer started event.
func (r *Registry) EmitTimerStarted(ctx context.Context, entry interface{}) {
	r.mu.RLock()
	plugins := r.onTimerStarted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTimerStarted(ctx, entry)
		}); err != nil {
			r.logger.Warn("plugin OnTimerStarted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitTimerStopped emits a timer stopped event.
func (r *Registry) EmitTimerStopped(ctx context.Context, entry interface{}) {
	r.mu.RLock()
	plugins := r.onTimerStopped
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTimerStopped(ctx, entry)
		}); err != nil {
			r.logger.Warn("plugin OnTimerStopped failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitEntryRecorded emits an entry recorded event.
func (r *Registry) EmitEntryRecorded(ctx context.Context, entry interface{}) {
	r.mu.RLock()
	plugins := r.onEntryRecorded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnEntryRecorded(ctx, entry)
		}); err != nil {
			r.logger.Warn("plugin OnEntryRecorded failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInvoiceGenerated emits an invoice generated event.
func (r *Registry) EmitInvoiceGenerated(ctx context.Context, inv interface{}) {
	r.mu.RLock()
	plugins := r.onInvoiceGenerated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInvoiceGenerated(ctx, inv)
		}); err != nil {
			r.logger.Warn("plugin OnInvoiceGenerated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInvoiceIssued emits an invoice issued event.
func (r *Registry) EmitInvoiceIssued(ctx context.Context, inv interface{}) {
	r.mu.RLock()
	plugins := r.onInvoiceIssued
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInvoiceIssued(ctx, inv)
		}); err != nil {
			r.logger.Warn("plugin OnInvoiceIssued failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInvoiceVoided emits an invoice voided event.
func (r *Registry) EmitInvoiceVoided(ctx context.Context, inv interface{}, reason string) {
	r.mu.RLock()
	plugins := r.onInvoiceVoided
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInvoiceVoided(ctx, inv, reason)
		}); err != nil {
			r.logger.Warn("plugin OnInvoiceVoided failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInvoiceRendered emits an invoice rendered event.
func (r *Registry) EmitInvoiceRendered(ctx context.Context, inv interface{}, location string, renderErr error) {
	r.mu.RLock()
	plugins := r.onInvoiceRendered
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInvoiceRendered(ctx, inv, location, renderErr)
		}); err != nil {
			r.logger.Warn("plugin OnInvoiceRendered failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShareCreated emits a share created event.
func (r *Registry) EmitShareCreated(ctx context.Context, link interface{}) {
	r.mu.RLock()
	plugins := r.onShareCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShareCreated(ctx, link)
		}); err != nil {
			r.logger.Warn("plugin OnShareCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShareRevoked emits a share revoked event.
func (r *Registry) EmitShareRevoked(ctx context.Context, link interface{}) {
	r.mu.RLock()
	plugins := r.onShareRevoked
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShareRevoked(ctx, link)
		}); err != nil {
			r.logger.Warn("plugin OnShareRevoked failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShareResolved emits a share resolved event.
func (r *Registry) EmitShareResolved(ctx context.Context, link interface{}) {
	r.mu.RLock()
	plugins := r.onShareResolved
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShareResolved(ctx, link)
		}); err != nil {
			r.logger.Warn("plugin OnShareResolved failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the tracking or billing pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
