// Package render declares the external collaborator contracts for document
// rendering and blob storage. The engine never renders documents itself: a
// layout engine consumes a structured invoice and returns bytes, and a blob
// store keeps them keyed by invoice ID.
package render

import (
	"context"

	"github.com/eduar766/soloist-back/invoice"
)

// Renderer turns a structured invoice into document bytes. Failures are
// reported to callers as ErrRendering; the facade retries a failed render
// exactly once and never lets rendering block invoice issuance.
type Renderer interface {
	Render(ctx context.Context, inv *invoice.Invoice) ([]byte, error)
}

// BlobStore persists rendered documents keyed by invoice ID. Failures are
// reported as ErrStorageUnavailable, distinct from business errors.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}
