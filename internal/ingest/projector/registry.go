package projector

import "github.com/calmhive/content-archive/internal/archive"

// Registry routes envelopes to the schema registered for their type.
type Registry struct {
	schemas map[string]*Schema
}

// NewRegistry builds a Registry from the given schemas.
func NewRegistry(schemas ...*Schema) *Registry {
	r := &Registry{schemas: make(map[string]*Schema, len(schemas))}
	for _, s := range schemas {
		r.schemas[s.Type] = s
	}
	return r
}

// Project routes env to its schema and projects it. An unregistered type
// yields a RoutingError, never a crash.
func (r *Registry) Project(env *archive.Envelope, objectKey string) (*Record, error) {
	s, ok := r.schemas[env.Type]
	if !ok {
		return nil, &RoutingError{Type: env.Type}
	}
	return s.Project(env, objectKey)
}

// Types returns the registered discriminators.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.schemas))
	for t := range r.schemas {
		types = append(types, t)
	}
	return types
}

// Builtin returns the registry of all archive content types. Each type has
// exactly one canonical discriminator; historical alias spellings are not
// routed.
func Builtin() *Registry {
	return NewRegistry(
		&Schema{
			Type:        "posts",
			Table:       "posts",
			ConflictKey: "slug",
			Fields: []Field{
				{Name: "title", Kind: String, Required: true},
				{Name: "slug", Column: "slug", Kind: String, Required: true},
				{Name: "date", Column: "date", Kind: Timestamp, Required: true},
				{Name: "year", Column: "year", Kind: Number, Required: true},
				{Name: "month", Column: "month", Kind: String, Required: true},
				{Name: "content", Kind: String, Required: true},
				{Name: "publish", Column: "publish", Kind: Bool, Default: true},
			},
		},
		&Schema{
			Type:        "checkins",
			Table:       "checkins",
			ConflictKey: "id",
			Fields: []Field{
				{Name: "place_name", Column: "place_name", Kind: String, Required: true},
				{Name: "latitude", Column: "latitude", Kind: Number, Required: true},
				{Name: "longitude", Column: "longitude", Kind: Number, Required: true},
				{Name: "date", Column: "date", Kind: Timestamp, Required: true},
				{Name: "year", Column: "year", Kind: Number, Required: true},
				{Name: "month", Column: "month", Kind: String, Required: true},
				{Name: "private", Column: "private", Kind: Bool, Default: false},
			},
		},
		&Schema{
			Type:        "quotes",
			Table:       "quotes",
			ConflictKey: "slug",
			Fields: []Field{
				{Name: "author", Column: "author", Kind: String, Required: true},
				{Name: "date_added", Column: "date_added", Kind: Timestamp, Required: true},
				{Name: "year", Column: "year", Kind: Number, Required: true},
				{Name: "month", Column: "month", Kind: String, Required: true},
				{Name: "slug", Column: "slug", Kind: String, Required: true},
				{Name: "text", Kind: String, Required: true},
				{Name: "publish", Column: "publish", Kind: Bool, Default: true},
			},
		},
		&Schema{
			Type:        "films",
			Table:       "films",
			ConflictKey: "id",
			Fields: []Field{
				{Name: "title", Kind: String, Required: true},
				{Name: "imdb_id", Column: "imdb_id", Kind: String, Required: true},
				{Name: "date_watched", Column: "date_watched", Kind: Timestamp, Required: true},
				{Name: "year", Column: "year", Kind: Number, Required: true},
				{Name: "month", Column: "month", Kind: String, Required: true},
				{Name: "rating", Column: "rating", Kind: Number},
				{Name: "rewatch", Column: "rewatch", Kind: Bool, Default: false},
			},
		},
		&Schema{
			Type:        "paragraphs",
			Table:       "paragraphs",
			ConflictKey: "slug",
			Fields: []Field{
				{Name: "work", Column: "work", Kind: String, Required: true},
				{Name: "position", Column: "position", Kind: Number, Required: true},
				{Name: "slug", Column: "slug", Kind: String, Required: true},
				{Name: "text", Kind: String, Required: true},
			},
		},
		&Schema{
			Type:        "lists",
			Table:       "lists",
			ConflictKey: "slug",
			Fields: []Field{
				{Name: "title", Kind: String, Required: true},
				{Name: "slug", Column: "slug", Kind: String, Required: true},
				{Name: "date", Column: "date", Kind: Timestamp, Required: true},
				{Name: "year", Column: "year", Kind: Number, Required: true},
				{Name: "month", Column: "month", Kind: String, Required: true},
				{Name: "publish", Column: "publish", Kind: Bool, Default: true},
			},
		},
		&Schema{
			Type:        "chatter",
			Table:       "chatter",
			ConflictKey: "id",
			Fields: []Field{
				{Name: "author", Column: "author", Kind: String, Required: true},
				{Name: "channel", Column: "channel", Kind: String, Required: true},
				{Name: "date", Column: "date", Kind: Timestamp, Required: true},
				{Name: "year", Column: "year", Kind: Number, Required: true},
				{Name: "month", Column: "month", Kind: String, Required: true},
				{Name: "text", Kind: String, Required: true},
			},
		},
	)
}
