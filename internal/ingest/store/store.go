// Package store writes projected index records into PostgreSQL under each
// type's uniqueness constraint. Writes are "insert, ignore on conflict": the
// object store is authoritative, so a conflicting re-ingestion is evidence of
// an unchanged record, not a newer one, and overwrite semantics are
// deliberately avoided.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/calmhive/content-archive/internal/ingest/projector"
	"github.com/calmhive/content-archive/pkg/metrics"
)

// Execer is the subset of *sql.DB the store needs.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store performs idempotent upserts of index records.
type Store struct {
	db      Execer
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Store.
func New(db Execer, m *metrics.Metrics) *Store {
	return &Store{
		db:      db,
		metrics: m,
		logger:  slog.Default().With("component", "index-store"),
	}
}

// Upsert inserts rec into its table and reports whether a new row was
// written. A uniqueness conflict means the record was already ingested; both
// outcomes are success. Table and column identifiers come only from the
// static schema registry, never from document data.
func (s *Store) Upsert(ctx context.Context, rec *projector.Record) (bool, error) {
	columns := make([]string, 0, len(rec.Columns)+1)
	for col := range rec.Columns {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	columns = append(columns, "ingested_at")

	args := make([]any, 0, len(columns))
	placeholders := make([]string, 0, len(columns))
	for i, col := range columns {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		if col == "ingested_at" {
			args = append(args, time.Now().UTC())
			continue
		}
		args = append(args, rec.Columns[col])
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING`,
		rec.Table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		rec.ConflictKey,
	)

	start := time.Now()
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("upserting %s record %s: %w", rec.Type, rec.ID, err)
	}
	s.metrics.UpsertObserved(time.Since(start))

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected for %s record %s: %w", rec.Type, rec.ID, err)
	}
	if affected == 0 {
		s.logger.Info("already ingested",
			"type", rec.Type,
			"id", rec.ID,
			"conflict_key", rec.ConflictKey,
		)
		return false, nil
	}
	s.logger.Debug("record inserted", "type", rec.Type, "id", rec.ID)
	return true, nil
}
