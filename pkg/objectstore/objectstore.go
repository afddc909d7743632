// Package objectstore defines the capability interface over the durable
// archive bucket: cursor-paginated listing and whole-object reads. The
// bucket is the authoritative copy of every document; everything written to
// the index store must be recoverable from here.
package objectstore

import (
	"context"

	apperrors "github.com/calmhive/content-archive/pkg/errors"
)

// ErrObjectNotFound is returned by Get when the key does not exist.
var ErrObjectNotFound = apperrors.ErrObjectNotFound

// ListOptions controls a single listing page.
type ListOptions struct {
	// Cursor is an opaque continuation token from a previous Page. Empty
	// means start from the beginning.
	Cursor string
	// Prefix restricts the listing to keys under the given prefix.
	Prefix string
	// Limit bounds the page size. Implementations may return fewer keys.
	Limit int
}

// Page is one bounded slice of the listing. Truncated is true iff NextCursor
// is non-empty; a false Truncated signals the end of the listing.
type Page struct {
	Keys       []string
	NextCursor string
	Truncated  bool
}

// Store is the object-store capability consumed by the ingestion pipeline.
type Store interface {
	// List returns one page of object keys. The cursor must be passed back
	// unmodified to fetch the following page.
	List(ctx context.Context, opts ListOptions) (Page, error)
	// Get returns the full object bytes, or ErrObjectNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
}
