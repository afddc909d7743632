// Package kafka provides Kafka producer and consumer clients backed by
// segmentio/kafka-go. The producer serialises events as JSON; the consumer
// accumulates fetched messages into bounded batches and hands each batch to a
// pluggable BatchHandler, committing offsets only after the whole batch has
// been handled.
package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/calmhive/content-archive/pkg/config"
	"github.com/segmentio/kafka-go"
)

// Message is a single consumed queue message.
type Message struct {
	Key   []byte
	Value []byte
}

// BatchHandler is invoked with up to maxBatch messages at a time. Returning
// an error leaves the batch uncommitted so the broker redelivers it; handlers
// must therefore be idempotent.
type BatchHandler func(ctx context.Context, msgs []Message) error

// Consumer reads messages from a Kafka topic and dispatches them in batches.
type Consumer struct {
	reader        *kafka.Reader
	logger        *slog.Logger
	handler       BatchHandler
	maxBatch      int
	flushInterval time.Duration
}

// NewConsumer creates a Consumer for the given topic. maxBatch bounds the
// number of messages per handler call; flushInterval bounds how long a
// partial batch may wait before being dispatched.
func NewConsumer(cfg config.KafkaConfig, topic string, maxBatch int, flushInterval time.Duration, handler BatchHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})
	if maxBatch <= 0 {
		maxBatch = 100
	}
	if flushInterval <= 0 {
		flushInterval = 500 * time.Millisecond
	}
	return &Consumer{
		reader:        r,
		logger:        slog.Default().With("component", "kafka-consumer", "topic", topic),
		handler:       handler,
		maxBatch:      maxBatch,
		flushInterval: flushInterval,
	}
}

// Start enters the consume loop, fetching and dispatching batches until ctx
// is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started", "max_batch", c.maxBatch)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping", "reason", ctx.Err())
			return c.reader.Close()
		default:
		}

		batch, err := c.fetchBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return c.reader.Close()
			}
			c.logger.Error("failed to fetch messages", "error", err)
			continue
		}
		if len(batch) == 0 {
			continue
		}

		msgs := make([]Message, len(batch))
		for i, m := range batch {
			msgs[i] = Message{Key: m.Key, Value: m.Value}
		}
		if err := c.handler(ctx, msgs); err != nil {
			// Leave the batch uncommitted; the broker redelivers it.
			c.logger.Error("batch handler failed, batch will be redelivered",
				"count", len(batch),
				"error", err,
			)
			continue
		}
		if err := c.reader.CommitMessages(ctx, batch...); err != nil {
			c.logger.Error("failed to commit batch",
				"count", len(batch),
				"error", err,
			)
		}
	}
}

// fetchBatch blocks for the first message, then keeps accumulating until
// maxBatch messages are buffered or flushInterval elapses.
func (c *Consumer) fetchBatch(ctx context.Context) ([]kafka.Message, error) {
	first, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	batch := []kafka.Message{first}

	deadline, cancel := context.WithTimeout(ctx, c.flushInterval)
	defer cancel()
	for len(batch) < c.maxBatch {
		msg, err := c.reader.FetchMessage(deadline)
		if err != nil {
			// Deadline reached: dispatch what we have. Any other error is
			// surfaced after the buffered messages are handled.
			break
		}
		batch = append(batch, msg)
	}
	c.logger.Debug("batch fetched",
		"count", len(batch),
		"first_offset", first.Offset,
		"partition", first.Partition,
	)
	return batch, nil
}

// Close closes the underlying Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
