// Package enqueuer fans one listing page out to the ingest topic in chunks no
// larger than the queue's batch-submit limit.
package enqueuer

import (
	"context"
	"log/slog"

	"github.com/calmhive/content-archive/internal/ingest"
	"github.com/calmhive/content-archive/pkg/kafka"
)

// Producer is the queue capability the enqueuer needs.
type Producer interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Result summarises one page's fan-out.
type Result struct {
	Queued       int
	FailedChunks int
	FailedKeys   int
}

// Enqueuer partitions object keys into contiguous chunks and submits each
// chunk as one batch-send.
type Enqueuer struct {
	producer  Producer
	chunkSize int
	logger    *slog.Logger
}

// New creates an Enqueuer with the given queue batch-submit limit.
func New(producer Producer, chunkSize int) *Enqueuer {
	if chunkSize <= 0 {
		chunkSize = 100
	}
	return &Enqueuer{
		producer:  producer,
		chunkSize: chunkSize,
		logger:    slog.Default().With("component", "enqueuer"),
	}
}

// EnqueueKeys submits document messages for all keys, in listing order, in
// chunks of at most the configured size. A failed chunk is counted and
// logged but does not stop the remaining chunks.
func (e *Enqueuer) EnqueueKeys(ctx context.Context, keys []string) Result {
	var res Result
	for start := 0; start < len(keys); start += e.chunkSize {
		end := start + e.chunkSize
		if end > len(keys) {
			end = len(keys)
		}
		chunk := keys[start:end]

		events := make([]kafka.Event, len(chunk))
		for i, key := range chunk {
			events[i] = kafka.Event{
				Key:   key,
				Value: ingest.DocumentMessage{ObjectKey: key},
			}
		}
		if err := e.producer.PublishBatch(ctx, events); err != nil {
			res.FailedChunks++
			res.FailedKeys += len(chunk)
			e.logger.Error("chunk enqueue failed",
				"chunk_start", start,
				"chunk_size", len(chunk),
				"error", err,
			)
			continue
		}
		res.Queued += len(chunk)
	}
	e.logger.Info("page enqueued",
		"queued", res.Queued,
		"failed_chunks", res.FailedChunks,
	)
	return res
}
