// Package dispatcher consumes ingest-topic batches, classifies each message
// by shape, and routes documents through validation, projection, and the
// idempotent upsert. All per-message failures are contained here: one bad
// document never aborts a batch or a pagination run.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/calmhive/content-archive/internal/archive"
	"github.com/calmhive/content-archive/internal/ingest"
	"github.com/calmhive/content-archive/internal/ingest/pager"
	"github.com/calmhive/content-archive/internal/ingest/projector"
	apperrors "github.com/calmhive/content-archive/pkg/errors"
	"github.com/calmhive/content-archive/pkg/kafka"
	"github.com/calmhive/content-archive/pkg/metrics"
	"github.com/calmhive/content-archive/pkg/objectstore"
	"github.com/calmhive/content-archive/pkg/resilience"
)

// Message outcomes recorded per processed message.
const (
	OutcomeInserted        = "inserted"
	OutcomeAlreadyPresent  = "already_present"
	OutcomeContinuation    = "continuation"
	OutcomeInvalidMessage  = "invalid_message"
	OutcomeInvalidEnvelope = "invalid_envelope"
	OutcomeRoutingError    = "routing_error"
	OutcomeValidationError = "validation_error"
	OutcomeObjectMissing   = "object_missing"
	OutcomeFetchError      = "fetch_error"
	OutcomeStoreError      = "store_error"
	OutcomeRunHalted       = "run_halted"
)

// Upserter writes one projected record idempotently.
type Upserter interface {
	Upsert(ctx context.Context, rec *projector.Record) (bool, error)
}

// Pager processes one listing page for a continuation message.
type Pager interface {
	ProcessPage(ctx context.Context, cursor, runID string, page int) (pager.Result, error)
}

// Dispatcher routes queue messages to their handlers.
type Dispatcher struct {
	objects      objectstore.Store
	registry     *projector.Registry
	store        Upserter
	pager        Pager
	batchTimeout time.Duration
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// New creates a Dispatcher.
func New(objects objectstore.Store, registry *projector.Registry, store Upserter, pg Pager, batchTimeout time.Duration, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		objects:      objects,
		registry:     registry,
		store:        store,
		pager:        pg,
		batchTimeout: batchTimeout,
		metrics:      m,
		logger:       slog.Default().With("component", "dispatcher"),
	}
}

// HandleBatch processes one consumed batch under the invocation time bound.
// Messages are independent; no transaction spans the batch. It returns an
// error only when at least one message failed transiently, leaving the batch
// uncommitted so the queue redelivers it — safe because every handler is
// idempotent.
func (d *Dispatcher) HandleBatch(ctx context.Context, msgs []kafka.Message) error {
	d.metrics.BatchConsumed(len(msgs))
	return resilience.WithTimeout(ctx, d.batchTimeout, "ingest-batch", func(ctx context.Context) error {
		transient := 0
		for _, msg := range msgs {
			outcome, retry := d.handleOne(ctx, msg.Value)
			d.metrics.MessageProcessed(outcome)
			if retry {
				transient++
			}
		}
		if transient > 0 {
			return fmt.Errorf("%d of %d messages failed transiently", transient, len(msgs))
		}
		return nil
	})
}

// handleOne processes a single message and reports its outcome plus whether
// the failure is transient (worth a queue redelivery). Permanent failures —
// malformed messages, unroutable types, invalid payloads — are dropped after
// logging, since retrying would only reproduce the same error.
func (d *Dispatcher) handleOne(ctx context.Context, value []byte) (string, bool) {
	msg, err := ingest.DecodeMessage(value)
	if err != nil {
		d.logger.Error("skipping malformed message", "error", err)
		return OutcomeInvalidMessage, false
	}
	if msg.Continuation != nil {
		return d.handleContinuation(ctx, msg.Continuation)
	}
	return d.handleDocument(ctx, msg.Document.ObjectKey)
}

func (d *Dispatcher) handleContinuation(ctx context.Context, cont *ingest.ContinuationMessage) (string, bool) {
	res, err := d.pager.ProcessPage(ctx, cont.Cursor, cont.RunID, cont.Page)
	if err != nil {
		if errors.Is(err, apperrors.ErrRunGuard) {
			d.logger.Error("pagination run halted",
				"run_id", cont.RunID,
				"page", cont.Page,
				"cursor", cont.Cursor,
				"error", err,
			)
			return OutcomeRunHalted, false
		}
		d.logger.Error("continuation processing failed",
			"run_id", cont.RunID,
			"page", cont.Page,
			"cursor", cont.Cursor,
			"error", err,
		)
		return OutcomeFetchError, true
	}
	d.logger.Info("continuation processed",
		"run_id", res.RunID,
		"page", res.Page,
		"queued", res.Queued,
		"has_more", res.HasMore,
	)
	return OutcomeContinuation, false
}

func (d *Dispatcher) handleDocument(ctx context.Context, objectKey string) (string, bool) {
	log := d.logger.With("object_key", objectKey)

	raw, err := d.objects.Get(ctx, objectKey)
	if err != nil {
		if errors.Is(err, objectstore.ErrObjectNotFound) {
			log.Error("document vanished from object store")
			return OutcomeObjectMissing, false
		}
		log.Error("failed to fetch document", "error", err)
		return OutcomeFetchError, true
	}

	env, err := archive.ParseEnvelope(raw)
	if err != nil {
		log.Error("skipping undecodable document", "error", err)
		return OutcomeInvalidEnvelope, false
	}
	if ok, err := env.Verify(); err != nil {
		log.Warn("content id verification failed", "id", env.ID, "error", err)
	} else if !ok {
		// Legacy documents may predate canonicalization fixes; note and move on.
		log.Warn("content id does not match payload", "id", env.ID)
	}

	rec, err := d.registry.Project(env, objectKey)
	if err != nil {
		var routeErr *projector.RoutingError
		if errors.As(err, &routeErr) {
			log.Error("no projector for document", "type", env.Type, "error", err)
			return OutcomeRoutingError, false
		}
		var valErr *projector.ValidationError
		if errors.As(err, &valErr) {
			log.Error("document failed validation",
				"type", env.Type,
				"field", valErr.Field,
				"error", err,
			)
			return OutcomeValidationError, false
		}
		log.Error("projection failed", "type", env.Type, "error", err)
		return OutcomeValidationError, false
	}

	inserted, err := d.store.Upsert(ctx, rec)
	if err != nil {
		log.Error("index write failed", "type", rec.Type, "id", rec.ID, "error", err)
		return OutcomeStoreError, true
	}
	if !inserted {
		return OutcomeAlreadyPresent, false
	}
	log.Info("document ingested", "type", rec.Type, "id", rec.ID)
	return OutcomeInserted, false
}
