package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"filedrop/internal/config"
)

// minioStorage keeps drop files as objects under a key prefix in an
// S3-compatible bucket (MinIO, AWS S3, etc.). S3 PUTs are atomic per key,
// so a listing never returns a half-written object.
type minioStorage struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinIO creates a new S3-compatible storage client backed by MinIO.
// It validates connectivity and ensures the bucket exists (creates it if missing).
func NewMinIO(cfg config.MinIOConfig) (Storage, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &minioStorage{client: cli, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (m *minioStorage) Put(ctx context.Context, name string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	if err := ValidateName(name); err != nil {
		return ObjectInfo{}, err
	}
	size := opt.Size
	if size <= 0 {
		size = -1
	}
	info, err := m.client.PutObject(ctx, m.bucket, m.prefix+name, r, size, minio.PutObjectOptions{
		ContentType: opt.ContentType,
	})
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("put object %s: %w", name, err)
	}
	lastModified := info.LastModified
	if lastModified.IsZero() {
		lastModified = time.Now()
	}
	return ObjectInfo{
		Name:         name,
		Size:         info.Size,
		ContentType:  opt.ContentType,
		LastModified: lastModified,
	}, nil
}

// Latest lists the prefix and streams the newest object. Keys below a
// further "/" are not part of the flat drop and are skipped.
func (m *minioStorage) Latest(ctx context.Context) (io.ReadCloser, ObjectInfo, error) {
	var items []ObjectInfo
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: m.prefix}) {
		if obj.Err != nil {
			return nil, ObjectInfo{}, fmt.Errorf("list objects: %w", obj.Err)
		}
		name := strings.TrimPrefix(obj.Key, m.prefix)
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		items = append(items, ObjectInfo{
			Name:         name,
			Size:         obj.Size,
			ContentType:  obj.ContentType,
			LastModified: obj.LastModified,
		})
	}

	info, ok := newest(items)
	if !ok {
		return nil, ObjectInfo{}, ErrEmpty
	}

	obj, err := m.client.GetObject(ctx, m.bucket, m.prefix+info.Name, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("get object %s: %w", info.Name, err)
	}
	// Stat forces the request so a missing key fails here and not mid-stream.
	st, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, ObjectInfo{}, fmt.Errorf("stat object %s: %w", info.Name, err)
	}
	info.Size = st.Size
	info.ContentType = st.ContentType
	info.LastModified = st.LastModified
	return obj, info, nil
}
