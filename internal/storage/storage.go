package storage

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"time"
)

// Package storage holds the drop store: a capability that accepts a named
// file and hands back the most recently written one. Backends live side by
// side (local disk, memory, MinIO/S3, GCS, Azure Blob) behind Storage.

var (
	// ErrEmpty is returned by Latest when the store holds no files, including
	// when the backing directory or bucket prefix has never been written.
	ErrEmpty = errors.New("storage is empty")
	// ErrTooLarge is returned by Put when the content exceeds the configured size policy.
	ErrTooLarge = errors.New("object exceeds size limit")
	// ErrInvalidName is returned by Put for names that cannot address a single flat entry.
	ErrInvalidName = errors.New("invalid object name")
)

// PutObjectOptions define optional parameters for storing objects.
// Size should be the exact number of bytes if known; if unknown, set to -1.
// ContentType is informational.
type PutObjectOptions struct {
	Size        int64
	ContentType string
}

// ObjectInfo contains basic information about a stored file.
type ObjectInfo struct {
	Name         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// Storage is the drop store. Implementations must be safe for concurrent use
// and must never expose a partially written object to Latest.
type Storage interface {
	// Put stores the content of r under name, replacing any object of the same name.
	Put(ctx context.Context, name string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Latest opens the object with the newest modification time.
	// It returns ErrEmpty when there is nothing to return.
	Latest(ctx context.Context) (io.ReadCloser, ObjectInfo, error)
}

// ValidateName checks that name addresses a single flat entry.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return ErrInvalidName
	case strings.ContainsAny(name, "/\\\x00"):
		return ErrInvalidName
	}
	return nil
}

// newest orders items by LastModified descending and returns the first.
// Equal timestamps fall back to ascending name so a listing always yields
// the same pick.
func newest(items []ObjectInfo) (ObjectInfo, bool) {
	if len(items) == 0 {
		return ObjectInfo{}, false
	}
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].LastModified.Equal(items[j].LastModified) {
			return items[i].LastModified.After(items[j].LastModified)
		}
		return items[i].Name < items[j].Name
	})
	return items[0], true
}

// countingReader records how many bytes were read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// contextReader fails reads once ctx is done so long copies stop with the request.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
