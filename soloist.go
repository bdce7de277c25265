package soloist

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/eduar766/soloist-back/access"
	"github.com/eduar766/soloist-back/audit"
	"github.com/eduar766/soloist-back/id"
	"github.com/eduar766/soloist-back/plugin"
	"github.com/eduar766/soloist-back/project"
	"github.com/eduar766/soloist-back/render"
	"github.com/eduar766/soloist-back/store"
)

// Soloist is the operations engine: time tracking, invoice consolidation,
// project access control, and share links, behind one facade.
type Soloist struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	renderer render.Renderer
	blobs    render.BlobStore

	// Background render worker
	renderQueue chan id.InvoiceID
	stopChan    chan struct{}
	wg          sync.WaitGroup

	// Configuration
	renderQueueSize int
	clock           func() time.Time
}

// New creates a new Soloist instance.
func New(s store.Store, opts ...Option) *Soloist {
	app := &Soloist{
		store:           s,
		plugins:         plugin.NewRegistry(),
		logger:          slog.Default(),
		stopChan:        make(chan struct{}),
		renderQueueSize: 256,
		clock:           time.Now,
	}

	for _, opt := range opts {
		opt(app)
	}

	app.renderQueue = make(chan id.InvoiceID, app.renderQueueSize)

	return app
}

// Option configures a Soloist instance.
type Option func(*Soloist)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Soloist) {
		s.logger = logger
		s.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(s *Soloist) {
		_ = s.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithRenderer sets the document layout collaborator. Without one, issued
// invoices skip rendering.
func WithRenderer(r render.Renderer) Option {
	return func(s *Soloist) {
		s.renderer = r
	}
}

// WithBlobStore sets the rendered-document store.
func WithBlobStore(b render.BlobStore) Option {
	return func(s *Soloist) {
		s.blobs = b
	}
}

// WithRenderQueueSize bounds the async render queue.
func WithRenderQueueSize(n int) Option {
	return func(s *Soloist) {
		if n > 0 {
			s.renderQueueSize = n
		}
	}
}

// WithClock overrides the time source. Tests use this to pin timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Soloist) {
		s.clock = clock
	}
}

// Start migrates the store and begins background workers.
func (s *Soloist) Start(ctx context.Context) error {
	if err := s.store.Migrate(ctx); err != nil {
		return err
	}

	s.plugins.EmitInit(ctx, s)

	s.wg.Add(1)
	go s.renderWorker(ctx)

	s.logger.Info("soloist started",
		"render_queue_size", s.renderQueueSize,
		"renderer", s.renderer != nil,
	)

	return nil
}

// Stop shuts down Soloist, draining the render queue first.
func (s *Soloist) Stop() error {
	close(s.stopChan)
	s.wg.Wait()

	ctx := context.Background()
	s.plugins.EmitShutdown(ctx)

	return s.store.Close()
}

// Plugins exposes the plugin registry.
func (s *Soloist) Plugins() *plugin.Registry { return s.plugins }

// now returns the engine's current instant in UTC.
func (s *Soloist) now() time.Time { return s.clock().UTC() }

// ──────────────────────────────────────────────────
// Authorization
// ──────────────────────────────────────────────────

// roleOn resolves the principal's effective role on a project. A missing
// membership is RoleNone, which Evaluate maps through the project's
// visibility.
func (s *Soloist) roleOn(ctx context.Context, p *project.Project, principal string) (access.Role, error) {
	m, err := s.store.GetMembership(ctx, p.ID, principal)
	if err != nil {
		if IsNotFound(err) {
			return access.RoleNone, nil
		}
		return access.RoleNone, err
	}
	return m.Role, nil
}

// authorize loads the project and checks one action for the principal.
// Every mutating facade method calls this; decisions are never cached
// between calls.
func (s *Soloist) authorize(ctx context.Context, principal string, projectID id.ProjectID, action access.Action) (*project.Project, access.Role, error) {
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, access.RoleNone, err
	}

	role, err := s.roleOn(ctx, p, principal)
	if err != nil {
		return nil, access.RoleNone, err
	}

	decision := access.Evaluate(role, p.Public, action)
	if !decision.Allowed {
		return nil, role, AuthzError{
			Principal: principal,
			Project:   projectID,
			Action:    string(action),
			Reason:    decision.Reason,
		}
	}
	return p, role, nil
}

// ──────────────────────────────────────────────────
// Audit
// ──────────────────────────────────────────────────

// record appends an audit record. Best-effort: a failed append is logged
// and never fails the operation it trails.
func (s *Soloist) record(ctx context.Context, rec *audit.Record) {
	if err := s.store.AppendAudit(ctx, rec); err != nil {
		s.logger.Warn("audit append failed",
			"action", rec.Action,
			"project_id", rec.ProjectID,
			"error", err,
		)
	}
}

// AuditTrail lists the most recent audit records for a project.
func (s *Soloist) AuditTrail(ctx context.Context, principal string, projectID id.ProjectID, limit int) ([]*audit.Record, error) {
	if _, _, err := s.authorize(ctx, principal, projectID, access.ActionView); err != nil {
		return nil, err
	}
	return s.store.ListAudit(ctx, projectID, limit)
}
