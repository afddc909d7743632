package dispatcher

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/calmhive/content-archive/internal/ingest/pager"
	"github.com/calmhive/content-archive/internal/ingest/projector"
	apperrors "github.com/calmhive/content-archive/pkg/errors"
	"github.com/calmhive/content-archive/pkg/kafka"
	"github.com/calmhive/content-archive/pkg/objectstore"
)

// fakeObjects serves documents from a map.
type fakeObjects struct {
	docs     map[string][]byte
	fetchErr error
}

func (f *fakeObjects) List(ctx context.Context, opts objectstore.ListOptions) (objectstore.Page, error) {
	return objectstore.Page{}, nil
}

func (f *fakeObjects) Get(ctx context.Context, key string) ([]byte, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	doc, ok := f.docs[key]
	if !ok {
		return nil, objectstore.ErrObjectNotFound
	}
	return doc, nil
}

// fakeUpserter records upserted records.
type fakeUpserter struct {
	records  []*projector.Record
	inserted bool
	err      error
}

func (f *fakeUpserter) Upsert(ctx context.Context, rec *projector.Record) (bool, error) {
	f.records = append(f.records, rec)
	if f.err != nil {
		return false, f.err
	}
	return f.inserted, nil
}

// fakePager records continuation invocations.
type fakePager struct {
	cursors []string
	err     error
}

func (f *fakePager) ProcessPage(ctx context.Context, cursor, runID string, page int) (pager.Result, error) {
	f.cursors = append(f.cursors, cursor)
	if f.err != nil {
		return pager.Result{}, f.err
	}
	return pager.Result{RunID: runID, Page: page}, nil
}

const quoteDoc = `{
	"type": "quotes",
	"id": "sha256:abc",
	"data": {
		"author": "Seneca",
		"date_added": "2020-01-01",
		"year": 2020,
		"month": "2020-01",
		"slug": "seneca-1",
		"text": "We suffer more often in imagination than in reality."
	}
}`

func newDispatcher(objects *fakeObjects, up *fakeUpserter, pg *fakePager) *Dispatcher {
	return New(objects, projector.Builtin(), up, pg, 30*time.Second, nil)
}

func docMsg(key string) kafka.Message {
	return kafka.Message{Value: []byte(fmt.Sprintf(`{"objectKey":%q}`, key))}
}

func TestHandleBatchIngestsDocument(t *testing.T) {
	objects := &fakeObjects{docs: map[string][]byte{"quotes/seneca-1.json": []byte(quoteDoc)}}
	up := &fakeUpserter{inserted: true}
	d := newDispatcher(objects, up, &fakePager{})

	err := d.HandleBatch(context.Background(), []kafka.Message{docMsg("quotes/seneca-1.json")})
	if err != nil {
		t.Fatalf("HandleBatch: %v", err)
	}
	if len(up.records) != 1 {
		t.Fatalf("upserts = %d, want 1", len(up.records))
	}
	if up.records[0].Table != "quotes" {
		t.Errorf("record table = %q, want quotes", up.records[0].Table)
	}
}

func TestHandleBatchMalformedMessageDoesNotAbortBatch(t *testing.T) {
	objects := &fakeObjects{docs: map[string][]byte{"quotes/seneca-1.json": []byte(quoteDoc)}}
	up := &fakeUpserter{inserted: true}
	d := newDispatcher(objects, up, &fakePager{})

	msgs := []kafka.Message{
		{Value: []byte(`not json`)},
		docMsg("quotes/seneca-1.json"),
	}
	if err := d.HandleBatch(context.Background(), msgs); err != nil {
		t.Fatalf("HandleBatch: %v", err)
	}
	if len(up.records) != 1 {
		t.Errorf("upserts = %d, the valid message should still be processed", len(up.records))
	}
}

func TestHandleBatchDropsUnroutableDocument(t *testing.T) {
	doc := `{"type":"scribbles","id":"sha256:x","data":{"slug":"s"}}`
	objects := &fakeObjects{docs: map[string][]byte{"scribbles/s.json": []byte(doc)}}
	up := &fakeUpserter{}
	d := newDispatcher(objects, up, &fakePager{})

	if err := d.HandleBatch(context.Background(), []kafka.Message{docMsg("scribbles/s.json")}); err != nil {
		t.Fatalf("HandleBatch: %v", err)
	}
	if len(up.records) != 0 {
		t.Errorf("upserts = %d, unroutable document must never reach the store", len(up.records))
	}
}

func TestHandleBatchDropsInvalidDocument(t *testing.T) {
	// Missing the required slug field.
	doc := `{"type":"quotes","id":"sha256:x","data":{"author":"Seneca","date_added":"2020-01-01","year":2020,"month":"2020-01","text":"t"}}`
	objects := &fakeObjects{docs: map[string][]byte{"quotes/bad.json": []byte(doc)}}
	up := &fakeUpserter{}
	d := newDispatcher(objects, up, &fakePager{})

	if err := d.HandleBatch(context.Background(), []kafka.Message{docMsg("quotes/bad.json")}); err != nil {
		t.Fatalf("HandleBatch: %v", err)
	}
	if len(up.records) != 0 {
		t.Errorf("upserts = %d, invalid document must never reach the store", len(up.records))
	}
}

func TestHandleBatchDropsVanishedObject(t *testing.T) {
	objects := &fakeObjects{docs: map[string][]byte{}}
	d := newDispatcher(objects, &fakeUpserter{}, &fakePager{})

	if err := d.HandleBatch(context.Background(), []kafka.Message{docMsg("quotes/gone.json")}); err != nil {
		t.Errorf("HandleBatch = %v, a vanished object is not a transient failure", err)
	}
}

func TestHandleBatchFetchFailureIsTransient(t *testing.T) {
	objects := &fakeObjects{fetchErr: fmt.Errorf("network unreachable")}
	d := newDispatcher(objects, &fakeUpserter{}, &fakePager{})

	if err := d.HandleBatch(context.Background(), []kafka.Message{docMsg("quotes/seneca-1.json")}); err == nil {
		t.Error("HandleBatch succeeded, fetch failure must leave the batch uncommitted")
	}
}

func TestHandleBatchStoreFailureIsTransient(t *testing.T) {
	objects := &fakeObjects{docs: map[string][]byte{"quotes/seneca-1.json": []byte(quoteDoc)}}
	up := &fakeUpserter{err: fmt.Errorf("connection refused")}
	d := newDispatcher(objects, up, &fakePager{})

	if err := d.HandleBatch(context.Background(), []kafka.Message{docMsg("quotes/seneca-1.json")}); err == nil {
		t.Error("HandleBatch succeeded, store failure must leave the batch uncommitted")
	}
}

func TestHandleBatchRedeliveryIsIdempotent(t *testing.T) {
	objects := &fakeObjects{docs: map[string][]byte{"quotes/seneca-1.json": []byte(quoteDoc)}}
	up := &fakeUpserter{inserted: false} // conflict: row already present
	d := newDispatcher(objects, up, &fakePager{})

	msgs := []kafka.Message{docMsg("quotes/seneca-1.json")}
	if err := d.HandleBatch(context.Background(), msgs); err != nil {
		t.Fatalf("HandleBatch: %v", err)
	}
	if err := d.HandleBatch(context.Background(), msgs); err != nil {
		t.Fatalf("redelivered HandleBatch: %v", err)
	}
	if len(up.records) != 2 {
		t.Errorf("upserts = %d, want 2 idempotent attempts", len(up.records))
	}
}

func TestHandleBatchRoutesContinuation(t *testing.T) {
	pg := &fakePager{}
	d := newDispatcher(&fakeObjects{}, &fakeUpserter{}, pg)

	msg := kafka.Message{Value: []byte(`{"kind":"pagination","cursor":"tok-2","runId":"r1","page":2}`)}
	if err := d.HandleBatch(context.Background(), []kafka.Message{msg}); err != nil {
		t.Fatalf("HandleBatch: %v", err)
	}
	if len(pg.cursors) != 1 || pg.cursors[0] != "tok-2" {
		t.Errorf("pager cursors = %v, want [tok-2]", pg.cursors)
	}
}

func TestHandleBatchDropsHaltedContinuation(t *testing.T) {
	pg := &fakePager{err: fmt.Errorf("%w: cursor repeated", apperrors.ErrRunGuard)}
	d := newDispatcher(&fakeObjects{}, &fakeUpserter{}, pg)

	msg := kafka.Message{Value: []byte(`{"kind":"pagination","cursor":"tok-2","runId":"r1","page":2}`)}
	if err := d.HandleBatch(context.Background(), []kafka.Message{msg}); err != nil {
		t.Errorf("HandleBatch = %v, a halted run must not be redelivered", err)
	}
}

func TestHandleBatchContinuationFailureIsTransient(t *testing.T) {
	pg := &fakePager{err: fmt.Errorf("listing backend down")}
	d := newDispatcher(&fakeObjects{}, &fakeUpserter{}, pg)

	msg := kafka.Message{Value: []byte(`{"kind":"pagination","cursor":"tok-2","runId":"r1","page":2}`)}
	if err := d.HandleBatch(context.Background(), []kafka.Message{msg}); err == nil {
		t.Error("HandleBatch succeeded, failed continuation must leave the batch uncommitted")
	}
}
