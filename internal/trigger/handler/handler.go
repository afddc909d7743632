// Package handler implements the HTTP trigger endpoints that start bulk
// ingestion runs and enqueue single documents. The response reports only what
// was observed at enqueue time; validation outcomes happen asynchronously in
// the dispatcher and are not waited for.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/calmhive/content-archive/internal/ingest"
	"github.com/calmhive/content-archive/internal/ingest/pager"
	apperrors "github.com/calmhive/content-archive/pkg/errors"
	"github.com/calmhive/content-archive/pkg/kafka"
	"github.com/calmhive/content-archive/pkg/logger"
)

// Pager processes one listing page synchronously for the bulk trigger.
type Pager interface {
	ProcessPage(ctx context.Context, cursor, runID string, page int) (pager.Result, error)
}

// Publisher enqueues a single document message.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Handler serves the trigger endpoints.
type Handler struct {
	pager     Pager
	publisher Publisher
	logger    *slog.Logger
}

// New creates a Handler.
func New(pg Pager, pub Publisher) *Handler {
	return &Handler{
		pager:     pg,
		publisher: pub,
		logger:    slog.Default().With("component", "trigger-handler"),
	}
}

// IngestAll handles POST /ingest/all[?cursor=...]: it lists one page,
// enqueues it, and lets the self-emitted continuation drain the rest of the
// listing through the queue.
func (h *Handler) IngestAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	cursor := r.URL.Query().Get("cursor")

	res, err := h.pager.ProcessPage(ctx, cursor, "", 0)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("bulk ingestion trigger failed",
			"cursor", cursor,
			"status_code", statusCode,
			"error", err,
		)
		h.writeError(w, statusCode, "bulk ingestion failed")
		return
	}
	log.Info("bulk ingestion page triggered",
		"run_id", res.RunID,
		"queued", res.Queued,
		"failed_chunks", res.FailedChunks,
		"has_more", res.HasMore,
	)
	h.writeJSON(w, http.StatusAccepted, map[string]any{
		"queued":  res.Queued,
		"hasMore": res.HasMore,
	})
}

// IngestOne handles POST /ingest/{objectKey...}: it enqueues exactly one
// document message for the given object-store key.
func (h *Handler) IngestOne(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	objectKey := r.PathValue("objectKey")
	if objectKey == "" {
		h.writeError(w, http.StatusBadRequest, "missing object key")
		return
	}

	event := kafka.Event{
		Key:   objectKey,
		Value: ingest.DocumentMessage{ObjectKey: objectKey},
	}
	if err := h.publisher.Publish(ctx, event); err != nil {
		log.Error("single-document enqueue failed",
			"object_key", objectKey,
			"error", err,
		)
		h.writeError(w, http.StatusBadGateway, "enqueue failed")
		return
	}
	log.Info("document enqueued", "object_key", objectKey)
	h.writeJSON(w, http.StatusAccepted, map[string]any{
		"queued":    1,
		"objectKey": objectKey,
	})
}

// Health serves a plain liveness response.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
