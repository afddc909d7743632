// Package pager implements the self-pagination controller. Continuation is
// expressed as data, not control flow: after each page, a single continuation
// message carrying the next cursor is sent back through the queue, so one
// external trigger drains an arbitrarily large listing without any process
// holding a loop open. The controller is a one-state machine: receive
// continuation → list → enqueue → maybe emit the next continuation.
package pager

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/calmhive/content-archive/internal/ingest"
	"github.com/calmhive/content-archive/internal/ingest/enqueuer"
	apperrors "github.com/calmhive/content-archive/pkg/errors"
	"github.com/calmhive/content-archive/pkg/kafka"
	"github.com/calmhive/content-archive/pkg/metrics"
	"github.com/calmhive/content-archive/pkg/objectstore"
)

// Lister lists one bounded page of object keys.
type Lister interface {
	ListPage(ctx context.Context, cursor string) (objectstore.Page, error)
}

// Enqueuer fans a page of keys out to the queue.
type Enqueuer interface {
	EnqueueKeys(ctx context.Context, keys []string) enqueuer.Result
}

// Publisher sends a single continuation message.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Guard records each listing cursor per run together with the page depth it
// was seen at, and reports a cursor recurring at a different depth. That
// recurrence means the listing is not making progress and the run must stop.
// A cursor recurring at the same depth is a redelivered continuation and is
// not reported; redelivery must reprocess the page, not halt the run.
type Guard interface {
	MarkCursor(ctx context.Context, runID, cursor string, page int) (looped bool, err error)
}

// Halt reasons reported in Result.Halted and run metrics.
const (
	HaltMaxPages       = "max_pages"
	HaltRepeatedCursor = "repeated_cursor"
)

// Result summarises one processed page.
type Result struct {
	RunID        string
	Page         int
	Queued       int
	FailedChunks int
	HasMore      bool
	// Halted names the guard that stopped the run, or "" if the run may
	// continue (or ended normally).
	Halted string
}

// Pager drives one page of a pagination run.
type Pager struct {
	lister    Lister
	enqueuer  Enqueuer
	publisher Publisher
	guard     Guard
	maxPages  int
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a Pager. guard may be nil, in which case only the page-depth
// bound applies.
func New(l Lister, e Enqueuer, p Publisher, guard Guard, maxPages int, m *metrics.Metrics) *Pager {
	if maxPages <= 0 {
		maxPages = 1000
	}
	return &Pager{
		lister:    l,
		enqueuer:  e,
		publisher: p,
		guard:     guard,
		maxPages:  maxPages,
		metrics:   m,
		logger:    slog.Default().With("component", "pager"),
	}
}

// ProcessPage lists one page at cursor, enqueues its keys, and emits exactly
// one continuation message iff the listing is truncated and no guard trips.
// An empty runID starts a fresh run at page zero. A listing failure aborts
// the page with nothing enqueued.
//
// Re-processing the same continuation twice re-lists and re-enqueues the same
// page; that is wasted work, not an error, because document ingestion is
// idempotent.
func (p *Pager) ProcessPage(ctx context.Context, cursor, runID string, page int) (Result, error) {
	if runID == "" {
		runID = newRunID()
		page = 0
	}
	log := p.logger.With("run_id", runID, "page", page)

	if cursor != "" && p.guard != nil {
		looped, err := p.guard.MarkCursor(ctx, runID, cursor, page)
		if err != nil {
			// The depth bound still holds without the guard.
			log.Warn("cursor guard unavailable, continuing on depth bound alone", "error", err)
		} else if looped {
			p.metrics.RunHalted(HaltRepeatedCursor)
			log.Error("cursor recurred at a different page depth, halting", "cursor", cursor)
			return Result{RunID: runID, Page: page, Halted: HaltRepeatedCursor},
				fmt.Errorf("%w: cursor repeated at page %d", apperrors.ErrRunGuard, page)
		}
	}

	listed, err := p.lister.ListPage(ctx, cursor)
	if err != nil {
		return Result{RunID: runID, Page: page}, err
	}

	enq := p.enqueuer.EnqueueKeys(ctx, listed.Keys)
	p.metrics.PageListed(enq.Queued, enq.FailedChunks)

	res := Result{
		RunID:        runID,
		Page:         page,
		Queued:       enq.Queued,
		FailedChunks: enq.FailedChunks,
		HasMore:      listed.Truncated,
	}
	if !listed.Truncated {
		log.Info("final page processed", "queued", enq.Queued)
		return res, nil
	}

	if page+1 >= p.maxPages {
		res.Halted = HaltMaxPages
		p.metrics.RunHalted(HaltMaxPages)
		log.Error("page bound reached, not continuing",
			"max_pages", p.maxPages,
			"next_cursor", listed.NextCursor,
		)
		return res, nil
	}

	cont := ingest.NewContinuation(listed.NextCursor, runID, page+1)
	if err := p.publisher.Publish(ctx, kafka.Event{Key: runID, Value: cont}); err != nil {
		// The page itself was enqueued; the run just stops here.
		return res, fmt.Errorf("%w: continuation for page %d: %v", apperrors.ErrEnqueueFailed, page+1, err)
	}
	p.metrics.ContinuationEmitted()
	log.Info("page processed, continuation emitted", "queued", enq.Queued)
	return res, nil
}

func newRunID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "run-unknown"
	}
	return hex.EncodeToString(b[:])
}
