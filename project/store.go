package project

import (
	"context"

	"github.com/eduar766/soloist-back/access"
	"github.com/eduar766/soloist-back/id"
)

// Store is the storage contract for projects and their direct children.
// The unified store interface re-declares these methods; this interface
// exists so callers that only touch projects can depend on less.
type Store interface {
	// CreateProject inserts the project with its owner membership in one
	// atomic step; no committed state has a project without an owner.
	CreateProject(ctx context.Context, p *Project, owner *Membership) error
	GetProject(ctx context.Context, projectID id.ProjectID) (*Project, error)
	ListProjects(ctx context.Context, principal string, opts ListOpts) ([]*Project, error)
	UpdateProject(ctx context.Context, p *Project) error
	DeleteProject(ctx context.Context, projectID id.ProjectID) error

	CreateClient(ctx context.Context, c *Client) error
	GetClient(ctx context.Context, clientID id.ClientID) (*Client, error)
	ListClients(ctx context.Context, ownerID string) ([]*Client, error)
	UpdateClient(ctx context.Context, c *Client) error
	DeleteClient(ctx context.Context, clientID id.ClientID) error

	CreateTask(ctx context.Context, t *Task) error
	GetTask(ctx context.Context, taskID id.TaskID) (*Task, error)
	ListTasks(ctx context.Context, projectID id.ProjectID) ([]*Task, error)
	UpdateTask(ctx context.Context, t *Task) error
	DeleteTask(ctx context.Context, taskID id.TaskID) error

	AddMember(ctx context.Context, m *Membership) error
	GetMembership(ctx context.Context, projectID id.ProjectID, principal string) (*Membership, error)
	ListMembers(ctx context.Context, projectID id.ProjectID) ([]*Membership, error)
	UpdateMemberRole(ctx context.Context, projectID id.ProjectID, principal string, role access.Role) error
	RemoveMember(ctx context.Context, projectID id.ProjectID, principal string) error

	// TransferOwnership demotes the current owner to contributor and promotes
	// newOwner in one atomic step. Both rows change or neither does.
	TransferOwnership(ctx context.Context, projectID id.ProjectID, newOwner string) error
}

// ListOpts filters project listings.
type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
