package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/calmhive/content-archive/internal/ingest"
	"github.com/calmhive/content-archive/internal/ingest/pager"
	apperrors "github.com/calmhive/content-archive/pkg/errors"
	"github.com/calmhive/content-archive/pkg/kafka"
)

type fakePager struct {
	cursor string
	result pager.Result
	err    error
}

func (f *fakePager) ProcessPage(ctx context.Context, cursor, runID string, page int) (pager.Result, error) {
	f.cursor = cursor
	return f.result, f.err
}

type fakePublisher struct {
	events []kafka.Event
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, event kafka.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return body
}

func TestIngestAll(t *testing.T) {
	pg := &fakePager{result: pager.Result{RunID: "r1", Queued: 1000, HasMore: true}}
	h := New(pg, &fakePublisher{})

	req := httptest.NewRequest(http.MethodPost, "/ingest/all?cursor=tok-1", nil)
	rec := httptest.NewRecorder()
	h.IngestAll(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if pg.cursor != "tok-1" {
		t.Errorf("cursor passed to pager = %q, want tok-1", pg.cursor)
	}
	body := decodeBody(t, rec)
	if body["queued"] != float64(1000) {
		t.Errorf("queued = %v, want 1000", body["queued"])
	}
	if body["hasMore"] != true {
		t.Errorf("hasMore = %v, want true", body["hasMore"])
	}
}

func TestIngestAllListingFailure(t *testing.T) {
	pg := &fakePager{err: fmt.Errorf("%w: bucket unavailable", apperrors.ErrListingFailed)}
	h := New(pg, &fakePublisher{})

	rec := httptest.NewRecorder()
	h.IngestAll(rec, httptest.NewRequest(http.MethodPost, "/ingest/all", nil))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestIngestOne(t *testing.T) {
	pub := &fakePublisher{}
	h := New(&fakePager{}, pub)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /ingest/{objectKey...}", h.IngestOne)

	req := httptest.NewRequest(http.MethodPost, "/ingest/quotes/seneca-1.json", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if len(pub.events) != 1 {
		t.Fatalf("published events = %d, want 1", len(pub.events))
	}
	doc, ok := pub.events[0].Value.(ingest.DocumentMessage)
	if !ok {
		t.Fatalf("event value = %T, want DocumentMessage", pub.events[0].Value)
	}
	if doc.ObjectKey != "quotes/seneca-1.json" {
		t.Errorf("ObjectKey = %q, want quotes/seneca-1.json", doc.ObjectKey)
	}
	body := decodeBody(t, rec)
	if body["queued"] != float64(1) {
		t.Errorf("queued = %v, want 1", body["queued"])
	}
	if body["objectKey"] != "quotes/seneca-1.json" {
		t.Errorf("objectKey = %v", body["objectKey"])
	}
}

func TestIngestOnePublishFailure(t *testing.T) {
	pub := &fakePublisher{err: fmt.Errorf("broker unavailable")}
	h := New(&fakePager{}, pub)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /ingest/{objectKey...}", h.IngestOne)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ingest/quotes/x.json", nil))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}
