// Package ingest defines the queue message union used by the bulk ingestion
// pipeline. Every message on the ingest topic is exactly one of two shapes: a
// document pointer into the object store, or a pagination continuation that
// re-invokes the lister with the next cursor.
package ingest

import (
	"encoding/json"
	"fmt"

	apperrors "github.com/calmhive/content-archive/pkg/errors"
)

// KindPagination tags the continuation variant on the wire.
const KindPagination = "pagination"

// DocumentMessage points at one stored document awaiting ingestion.
// Wire shape: {"objectKey": "..."}.
type DocumentMessage struct {
	ObjectKey string `json:"objectKey"`
}

// ContinuationMessage carries the opaque cursor of the next listing page.
// Wire shape: {"kind":"pagination","cursor":"..."} plus the additive runId
// and page guard fields; decoders that predate them ignore them, and absent
// fields mean a fresh run at depth zero.
type ContinuationMessage struct {
	Kind   string `json:"kind"`
	Cursor string `json:"cursor"`
	RunID  string `json:"runId,omitempty"`
	Page   int    `json:"page,omitempty"`
}

// NewContinuation builds a continuation message for the next page of a run.
func NewContinuation(cursor, runID string, page int) ContinuationMessage {
	return ContinuationMessage{
		Kind:   KindPagination,
		Cursor: cursor,
		RunID:  runID,
		Page:   page,
	}
}

// Message is the decoded union: exactly one of Document or Continuation is
// non-nil.
type Message struct {
	Document     *DocumentMessage
	Continuation *ContinuationMessage
}

// DecodeMessage classifies raw message bytes by shape. A value matching
// neither variant returns ErrInvalidMessage so the dispatcher can skip it
// without failing the batch.
func DecodeMessage(value []byte) (Message, error) {
	var probe struct {
		Kind      string `json:"kind"`
		Cursor    string `json:"cursor"`
		RunID     string `json:"runId"`
		Page      int    `json:"page"`
		ObjectKey string `json:"objectKey"`
	}
	if err := json.Unmarshal(value, &probe); err != nil {
		return Message{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidMessage, err)
	}

	if probe.Kind == KindPagination {
		if probe.Cursor == "" {
			return Message{}, fmt.Errorf("%w: pagination message without cursor", apperrors.ErrInvalidMessage)
		}
		return Message{Continuation: &ContinuationMessage{
			Kind:   probe.Kind,
			Cursor: probe.Cursor,
			RunID:  probe.RunID,
			Page:   probe.Page,
		}}, nil
	}
	if probe.ObjectKey != "" {
		return Message{Document: &DocumentMessage{ObjectKey: probe.ObjectKey}}, nil
	}
	return Message{}, fmt.Errorf("%w: neither document nor continuation shape", apperrors.ErrInvalidMessage)
}
