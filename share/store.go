package share

import (
	"context"

	"github.com/eduar766/soloist-back/id"
)

// Store is the storage contract for share links.
type Store interface {
	CreateShareLink(ctx context.Context, l *Link) error
	GetShareLink(ctx context.Context, linkID id.ShareLinkID) (*Link, error)
	GetShareLinkByToken(ctx context.Context, token string) (*Link, error)
	ListShareLinks(ctx context.Context, projectID id.ProjectID) ([]*Link, error)
	RevokeShareLink(ctx context.Context, linkID id.ShareLinkID) error
	DeleteShareLink(ctx context.Context, linkID id.ShareLinkID) error
}
