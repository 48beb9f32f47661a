package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"filedrop/internal/config"
)

type gcsStorage struct {
	client *gcs.Client
	bucket string
	prefix string
}

// NewGCS returns a Storage backed by a Google Cloud Storage bucket. Credentials
// come from Application Default Credentials.
func NewGCS(ctx context.Context, cfg config.GCSConfig) (Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	cli, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &gcsStorage{client: cli, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Put streams r into the object. GCS only makes the object visible once the
// writer is closed, and an aborted writer leaves nothing behind.
func (g *gcsStorage) Put(ctx context.Context, name string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	if err := ValidateName(name); err != nil {
		return ObjectInfo{}, err
	}

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := g.client.Bucket(g.bucket).Object(g.prefix + name).NewWriter(wctx)
	w.ContentType = opt.ContentType
	if _, err := io.Copy(w, r); err != nil {
		cancel()
		_ = w.Close()
		return ObjectInfo{}, fmt.Errorf("write object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return ObjectInfo{}, fmt.Errorf("close object %s: %w", name, err)
	}

	attrs := w.Attrs()
	return ObjectInfo{
		Name:         name,
		Size:         attrs.Size,
		ContentType:  attrs.ContentType,
		LastModified: attrs.Updated,
	}, nil
}

func (g *gcsStorage) Latest(ctx context.Context) (io.ReadCloser, ObjectInfo, error) {
	it := g.client.Bucket(g.bucket).Objects(ctx, &gcs.Query{Prefix: g.prefix, Delimiter: "/"})

	var items []ObjectInfo
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, ObjectInfo{}, fmt.Errorf("list objects: %w", err)
		}
		// Synthetic directory entries carry only Prefix.
		if attrs.Prefix != "" {
			continue
		}
		name := strings.TrimPrefix(attrs.Name, g.prefix)
		if name == "" {
			continue
		}
		items = append(items, ObjectInfo{
			Name:         name,
			Size:         attrs.Size,
			ContentType:  attrs.ContentType,
			LastModified: attrs.Updated,
		})
	}

	info, ok := newest(items)
	if !ok {
		return nil, ObjectInfo{}, ErrEmpty
	}

	rc, err := g.client.Bucket(g.bucket).Object(g.prefix + info.Name).NewReader(ctx)
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("open object %s: %w", info.Name, err)
	}
	info.Size = rc.Attrs.Size
	return rc, info, nil
}
