package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/calmhive/content-archive/internal/ingest/projector"
)

type fakeResult struct {
	affected int64
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.affected, nil }

// fakeExecer captures the query and args it receives.
type fakeExecer struct {
	query    string
	args     []any
	affected int64
	err      error
}

func (f *fakeExecer) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	f.query = query
	f.args = args
	if f.err != nil {
		return nil, f.err
	}
	return fakeResult{affected: f.affected}, nil
}

func quoteRecord() *projector.Record {
	return &projector.Record{
		Type:        "quotes",
		ID:          "sha256:abc",
		Table:       "quotes",
		ConflictKey: "slug",
		Columns: map[string]any{
			"id":         "sha256:abc",
			"object_key": "quotes/seneca-1.json",
			"slug":       "seneca-1",
			"author":     "Seneca",
			"year":       float64(2020),
		},
	}
}

func TestUpsertBuildsConflictIgnoringInsert(t *testing.T) {
	db := &fakeExecer{affected: 1}
	s := New(db, nil)

	inserted, err := s.Upsert(context.Background(), quoteRecord())
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if !inserted {
		t.Error("inserted = false for a fresh row")
	}

	if !strings.HasPrefix(db.query, "INSERT INTO quotes (") {
		t.Errorf("query targets wrong table: %s", db.query)
	}
	if !strings.HasSuffix(db.query, "ON CONFLICT (slug) DO NOTHING") {
		t.Errorf("query missing conflict clause: %s", db.query)
	}

	// Columns are sorted for a stable statement shape, ingested_at appended.
	wantColumns := "author, id, object_key, slug, year, ingested_at"
	if !strings.Contains(db.query, "("+wantColumns+")") {
		t.Errorf("column list = %s, want %s", db.query, wantColumns)
	}
	if len(db.args) != 6 {
		t.Fatalf("args = %d, want 6", len(db.args))
	}
	if db.args[0] != "Seneca" {
		t.Errorf("first arg = %v, want author value", db.args[0])
	}
	if _, ok := db.args[5].(time.Time); !ok {
		t.Errorf("last arg = %T, want ingested_at time.Time", db.args[5])
	}
}

func TestUpsertConflictIsSuccess(t *testing.T) {
	db := &fakeExecer{affected: 0}
	s := New(db, nil)

	inserted, err := s.Upsert(context.Background(), quoteRecord())
	if err != nil {
		t.Fatalf("Upsert on conflict: %v", err)
	}
	if inserted {
		t.Error("inserted = true when the row already existed")
	}
}

func TestUpsertExecFailure(t *testing.T) {
	db := &fakeExecer{err: fmt.Errorf("connection refused")}
	s := New(db, nil)

	_, err := s.Upsert(context.Background(), quoteRecord())
	if err == nil {
		t.Fatal("Upsert succeeded despite exec failure")
	}
	if !strings.Contains(err.Error(), "sha256:abc") {
		t.Errorf("error %q should name the record id", err)
	}
}
