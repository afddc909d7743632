// Package projector validates content envelopes and projects them into the
// narrow index records the filter store keeps. Each content type is described
// by a data-driven Schema (field name, kind, required/optional, default)
// evaluated by one generic projector, so adding a type is a schema entry, not
// a new function.
package projector

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/calmhive/content-archive/internal/archive"
	apperrors "github.com/calmhive/content-archive/pkg/errors"
)

// Kind is the primitive type a schema field must hold.
type Kind int

const (
	String Kind = iota
	Number
	Bool
	// Timestamp accepts ISO-8601 strings or Unix seconds and normalizes to
	// a UTC time.Time.
	Timestamp
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Number:
		return "number"
	case Bool:
		return "bool"
	case Timestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// Field describes one payload field. Column is the index-store column the
// value lands in; an empty Column means the field is validated but not
// stored (content fields stay retrievable from the object store only).
type Field struct {
	Name     string
	Column   string
	Kind     Kind
	Required bool
	Default  any
}

// Schema describes one content type: its discriminator, its index table, the
// uniqueness column the idempotent upsert keys on, and its payload fields.
type Schema struct {
	Type        string
	Table       string
	ConflictKey string
	Fields      []Field
}

// Record is the minimal index projection of one envelope. Columns holds only
// fields needed for filtering and sorting plus the object-store back-pointer;
// everything in it is recoverable from the stored document.
type Record struct {
	Type        string
	ID          string
	ObjectKey   string
	Table       string
	ConflictKey string
	Columns     map[string]any
}

// RoutingError reports an envelope handed to the wrong projector or carrying
// an unrecognized type. It is distinct from ValidationError: the payload was
// never inspected.
type RoutingError struct {
	Type     string
	Expected string
}

func (e *RoutingError) Error() string {
	if e.Expected == "" {
		return fmt.Sprintf("no projector registered for type %q", e.Type)
	}
	return fmt.Sprintf("envelope type %q routed to projector for %q", e.Type, e.Expected)
}

func (e *RoutingError) Unwrap() error { return apperrors.ErrRoutingMismatch }

// ValidationError names the first payload field that failed validation.
type ValidationError struct {
	Type   string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: field %q %s", e.Type, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return apperrors.ErrValidation }

// Project validates env against the schema and builds its index record.
// Validation aborts at the first failing field; no partial projection is
// produced.
func (s *Schema) Project(env *archive.Envelope, objectKey string) (*Record, error) {
	if env.Type != s.Type {
		return nil, &RoutingError{Type: env.Type, Expected: s.Type}
	}

	columns := map[string]any{
		"id":         env.ID,
		"object_key": objectKey,
	}
	for _, f := range s.Fields {
		raw, ok := env.Data[f.Name]
		if !ok || raw == nil {
			if f.Required {
				return nil, &ValidationError{Type: s.Type, Field: f.Name, Reason: "is required"}
			}
			if f.Column != "" && f.Default != nil {
				columns[f.Column] = f.Default
			}
			continue
		}
		value, err := coerce(raw, f.Kind)
		if err != nil {
			return nil, &ValidationError{Type: s.Type, Field: f.Name, Reason: err.Error()}
		}
		if f.Column != "" {
			columns[f.Column] = value
		}
	}

	return &Record{
		Type:        s.Type,
		ID:          env.ID,
		ObjectKey:   objectKey,
		Table:       s.Table,
		ConflictKey: s.ConflictKey,
		Columns:     columns,
	}, nil
}

// coerce checks raw against kind and normalizes it.
func coerce(raw any, kind Kind) (any, error) {
	switch kind {
	case String:
		v, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("must be a string, got %T", raw)
		}
		return v, nil
	case Number:
		return toFloat(raw)
	case Bool:
		v, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("must be a boolean, got %T", raw)
		}
		return v, nil
	case Timestamp:
		return toTimestamp(raw)
	default:
		return nil, fmt.Errorf("unsupported field kind %v", kind)
	}
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("must be a number: %v", err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("must be a number, got %T", raw)
	}
}

// timestampLayouts are the accepted ISO-8601 string forms, most to least
// specific.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// toTimestamp normalizes ISO-8601 strings and Unix-second numbers to a UTC
// time.Time.
func toTimestamp(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case string:
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("must be an ISO-8601 timestamp, got %q", v)
	case float64:
		return time.Unix(int64(v), 0).UTC(), nil
	case int:
		return time.Unix(int64(v), 0).UTC(), nil
	case int64:
		return time.Unix(v, 0).UTC(), nil
	case json.Number:
		secs, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil {
				return time.Time{}, fmt.Errorf("must be Unix seconds: %v", err)
			}
			secs = int64(f)
		}
		return time.Unix(secs, 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("must be an ISO-8601 string or Unix seconds, got %T", raw)
	}
}
