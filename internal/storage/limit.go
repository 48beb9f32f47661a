package storage

import (
	"context"
	"errors"
	"io"
)

// WithMaxBytes wraps s so that Put rejects content larger than maxBytes with
// ErrTooLarge. Nothing is stored for a rejected Put. A maxBytes of zero or
// less returns s unchanged.
func WithMaxBytes(s Storage, maxBytes int64) Storage {
	if maxBytes <= 0 {
		return s
	}
	return &limitedStorage{Storage: s, maxBytes: maxBytes}
}

type limitedStorage struct {
	Storage
	maxBytes int64
}

func (l *limitedStorage) Put(ctx context.Context, name string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	if opt.Size > l.maxBytes {
		return ObjectInfo{}, ErrTooLarge
	}
	lr := &limitReader{r: r, remaining: l.maxBytes}
	info, err := l.Storage.Put(ctx, name, lr, opt)
	if lr.exceeded || errors.Is(err, ErrTooLarge) {
		return ObjectInfo{}, ErrTooLarge
	}
	return info, err
}

// limitReader passes through at most remaining bytes and fails with
// ErrTooLarge as soon as one more byte shows up.
type limitReader struct {
	r         io.Reader
	remaining int64
	exceeded  bool
}

func (l *limitReader) Read(p []byte) (int, error) {
	if l.exceeded {
		return 0, ErrTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		l.exceeded = true
		return n, ErrTooLarge
	}
	return n, err
}
