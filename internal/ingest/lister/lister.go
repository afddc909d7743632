// Package lister enumerates the archive bucket one bounded page at a time.
package lister

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "github.com/calmhive/content-archive/pkg/errors"
	"github.com/calmhive/content-archive/pkg/objectstore"
)

// Lister wraps the object store with the configured prefix and page size.
type Lister struct {
	store    objectstore.Store
	prefix   string
	pageSize int
	logger   *slog.Logger
}

// New creates a Lister. pageSize is clamped to the store's 1000-item bound.
func New(store objectstore.Store, prefix string, pageSize int) *Lister {
	if pageSize <= 0 || pageSize > 1000 {
		pageSize = 1000
	}
	return &Lister{
		store:    store,
		prefix:   prefix,
		pageSize: pageSize,
		logger:   slog.Default().With("component", "lister"),
	}
}

// ListPage fetches one page of object keys starting at cursor. A listing
// failure aborts the page; nothing from a failed page is ever enqueued.
func (l *Lister) ListPage(ctx context.Context, cursor string) (objectstore.Page, error) {
	page, err := l.store.List(ctx, objectstore.ListOptions{
		Cursor: cursor,
		Prefix: l.prefix,
		Limit:  l.pageSize,
	})
	if err != nil {
		return objectstore.Page{}, fmt.Errorf("%w: %v", apperrors.ErrListingFailed, err)
	}
	l.logger.Debug("page listed",
		"count", len(page.Keys),
		"truncated", page.Truncated,
	)
	return page, nil
}
