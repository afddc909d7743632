package pager

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/calmhive/content-archive/pkg/redis"
)

// CursorGuard is the Redis-backed Guard: each run keeps a hash of the cursors
// it has listed and the page depth each one was first seen at. Hashes expire
// so abandoned runs clean themselves up.
type CursorGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCursorGuard creates a CursorGuard with the given per-run hash TTL.
func NewCursorGuard(client *redis.Client, ttl time.Duration) *CursorGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CursorGuard{client: client, ttl: ttl}
}

// MarkCursor records cursor at the given page depth and reports whether the
// cursor has previously appeared at a different depth. A cursor recurring at
// the same page is a redelivered continuation (the queue is at-least-once) and
// must be reprocessed, not halted; only a cursor recurring at another page
// means the listing has stopped making progress.
func (g *CursorGuard) MarkCursor(ctx context.Context, runID, cursor string, page int) (bool, error) {
	key := fmt.Sprintf("ingest:run:%s:cursors", runID)
	depth := strconv.Itoa(page)
	added, err := g.client.SetFieldNX(ctx, key, cursor, depth, g.ttl)
	if err != nil {
		return false, fmt.Errorf("marking cursor for run %s: %w", runID, err)
	}
	if added {
		return false, nil
	}
	stored, err := g.client.GetField(ctx, key, cursor)
	if err != nil {
		return false, fmt.Errorf("reading cursor depth for run %s: %w", runID, err)
	}
	return stored != depth, nil
}
