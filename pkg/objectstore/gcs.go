package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/calmhive/content-archive/pkg/config"
)

// GCS implements Store on top of a Google Cloud Storage bucket. Listing
// cursors are GCS page tokens and are opaque to callers.
type GCS struct {
	client *storage.Client
	bucket string
	logger *slog.Logger
}

// NewGCS creates a GCS-backed Store. When cfg.EmulatorHost is set the client
// talks to a local emulator without credentials.
func NewGCS(ctx context.Context, cfg config.ObjectStoreConfig) (*GCS, error) {
	var opts []option.ClientOption
	switch {
	case cfg.EmulatorHost != "":
		opts = append(opts,
			option.WithEndpoint("http://"+cfg.EmulatorHost+"/storage/v1/"),
			option.WithoutAuthentication(),
		)
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &GCS{
		client: client,
		bucket: cfg.Bucket,
		logger: slog.Default().With("component", "objectstore", "bucket", cfg.Bucket),
	}, nil
}

// List returns one page of keys under opts.Prefix, resuming from opts.Cursor.
func (g *GCS) List(ctx context.Context, opts ListOptions) (Page, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{Prefix: opts.Prefix})
	pager := iterator.NewPager(it, limit, opts.Cursor)

	var attrs []*storage.ObjectAttrs
	nextToken, err := pager.NextPage(&attrs)
	if err != nil {
		return Page{}, fmt.Errorf("listing bucket %s: %w", g.bucket, err)
	}

	keys := make([]string, 0, len(attrs))
	for _, a := range attrs {
		keys = append(keys, a.Name)
	}
	g.logger.Debug("listed page",
		"prefix", opts.Prefix,
		"count", len(keys),
		"truncated", nextToken != "",
	)
	return Page{
		Keys:       keys,
		NextCursor: nextToken,
		Truncated:  nextToken != "",
	}, nil
}

// Get reads the full object at key.
func (g *GCS) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("object %s: %w", key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("opening object %s: %w", key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading object %s: %w", key, err)
	}
	return data, nil
}

// Close closes the underlying storage client.
func (g *GCS) Close() error {
	return g.client.Close()
}
