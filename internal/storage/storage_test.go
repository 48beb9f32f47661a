package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// putAt stores content under name so that its modification time is ts.
type putAt func(t *testing.T, name, content string, ts time.Time)

type backendCase struct {
	name string
	open func(t *testing.T) (Storage, putAt)
}

func localCase(name string, newFs func(t *testing.T) (afero.Fs, string)) backendCase {
	return backendCase{
		name: name,
		open: func(t *testing.T) (Storage, putAt) {
			fsys, dir := newFs(t)
			s, err := NewLocal(fsys, dir)
			require.NoError(t, err)
			return s, func(t *testing.T, name, content string, ts time.Time) {
				_, err := s.Put(context.Background(), name, strings.NewReader(content), PutObjectOptions{Size: int64(len(content))})
				require.NoError(t, err)
				require.NoError(t, fsys.Chtimes(filepath.Join(dir, name), ts, ts))
			}
		},
	}
}

func backends() []backendCase {
	return []backendCase{
		localCase("local_memfs", func(t *testing.T) (afero.Fs, string) {
			return afero.NewMemMapFs(), "/app/temp"
		}),
		localCase("local_osfs", func(t *testing.T) (afero.Fs, string) {
			return afero.NewOsFs(), filepath.Join(t.TempDir(), "temp")
		}),
		{
			name: "memory",
			open: func(t *testing.T) (Storage, putAt) {
				s, err := NewMemory()
				require.NoError(t, err)
				ms := s.(*memoryStorage)
				return s, func(t *testing.T, name, content string, ts time.Time) {
					ms.now = func() time.Time { return ts }
					_, err := s.Put(context.Background(), name, strings.NewReader(content), PutObjectOptions{Size: int64(len(content))})
					require.NoError(t, err)
				}
			},
		},
	}
}

func readLatest(t *testing.T, s Storage) (string, ObjectInfo) {
	t.Helper()
	rc, info, err := s.Latest(context.Background())
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b), info
}

func TestStorage_LatestEmpty(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			s, _ := bc.open(t)
			rc, _, err := s.Latest(context.Background())
			assert.Nil(t, rc)
			assert.ErrorIs(t, err, ErrEmpty)
		})
	}
}

func TestStorage_PutThenLatest(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			s, _ := bc.open(t)
			info, err := s.Put(context.Background(), "a.txt", strings.NewReader("hello"), PutObjectOptions{Size: 5, ContentType: "text/plain"})
			require.NoError(t, err)
			assert.Equal(t, "a.txt", info.Name)
			assert.Equal(t, int64(5), info.Size)

			body, latest := readLatest(t, s)
			assert.Equal(t, "hello", body)
			assert.Equal(t, "a.txt", latest.Name)
			assert.Equal(t, int64(5), latest.Size)
		})
	}
}

func TestStorage_EmptyContent(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			s, _ := bc.open(t)
			_, err := s.Put(context.Background(), "empty.bin", strings.NewReader(""), PutObjectOptions{})
			require.NoError(t, err)

			body, info := readLatest(t, s)
			assert.Equal(t, "", body)
			assert.Equal(t, "empty.bin", info.Name)
			assert.Equal(t, int64(0), info.Size)
		})
	}
}

func TestStorage_NewestWins(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			s, put := bc.open(t)
			put(t, "a.txt", "AAA", base)
			put(t, "b.txt", "BB", base.Add(time.Minute))

			body, info := readLatest(t, s)
			assert.Equal(t, "BB", body)
			assert.Equal(t, "b.txt", info.Name)

			// Writing a name again makes it the newest.
			put(t, "a.txt", "AAAA", base.Add(2*time.Minute))
			body, info = readLatest(t, s)
			assert.Equal(t, "AAAA", body)
			assert.Equal(t, "a.txt", info.Name)
			assert.Equal(t, int64(4), info.Size)
		})
	}
}

func TestStorage_ReplaceSameName(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			s, _ := bc.open(t)
			ctx := context.Background()
			_, err := s.Put(ctx, "x.txt", strings.NewReader("first version"), PutObjectOptions{})
			require.NoError(t, err)
			_, err = s.Put(ctx, "x.txt", strings.NewReader("v2"), PutObjectOptions{})
			require.NoError(t, err)

			body, info := readLatest(t, s)
			assert.Equal(t, "v2", body)
			assert.Equal(t, int64(2), info.Size)
		})
	}
}

func TestStorage_InvalidNames(t *testing.T) {
	names := []string{"", ".", "..", "a/b.txt", `a\b.txt`, "nul\x00.txt"}
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			s, _ := bc.open(t)
			for _, n := range names {
				_, err := s.Put(context.Background(), n, strings.NewReader("x"), PutObjectOptions{})
				assert.ErrorIs(t, err, ErrInvalidName, "name %q", n)
			}
			_, _, err := s.Latest(context.Background())
			assert.ErrorIs(t, err, ErrEmpty)
		})
	}
}

type failingReader struct {
	sent bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if !f.sent {
		f.sent = true
		return copy(p, "partial"), nil
	}
	return 0, errors.New("connection reset")
}

func TestStorage_FailedPutLeavesNothing(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			s, _ := bc.open(t)
			_, err := s.Put(context.Background(), "broken.bin", &failingReader{}, PutObjectOptions{Size: -1})
			require.Error(t, err)

			_, _, err = s.Latest(context.Background())
			assert.ErrorIs(t, err, ErrEmpty)
		})
	}
}

func TestStorage_CanceledContext(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			s, _ := bc.open(t)
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := s.Put(ctx, "a.txt", strings.NewReader("data"), PutObjectOptions{})
			assert.ErrorIs(t, err, context.Canceled)
			_, _, err = s.Latest(ctx)
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}

func TestLocal_IgnoresPartialsAndDirectories(t *testing.T) {
	fsys := afero.NewMemMapFs()
	dir := "/app/temp"
	s, err := NewLocal(fsys, dir)
	require.NoError(t, err)

	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = s.Put(context.Background(), "real.txt", strings.NewReader("real"), PutObjectOptions{})
	require.NoError(t, err)
	require.NoError(t, fsys.Chtimes(filepath.Join(dir, "real.txt"), old, old))

	future := old.Add(24 * time.Hour)
	partial := filepath.Join(dir, ".filedrop-123.part")
	require.NoError(t, afero.WriteFile(fsys, partial, []byte("half"), 0o644))
	require.NoError(t, fsys.Chtimes(partial, future, future))
	require.NoError(t, fsys.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, fsys.Chtimes(filepath.Join(dir, "nested"), future, future))

	body, info := readLatest(t, s)
	assert.Equal(t, "real", body)
	assert.Equal(t, "real.txt", info.Name)

	_, err = s.Put(context.Background(), ".filedrop-9.part", strings.NewReader("x"), PutObjectOptions{})
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestLocal_TieBreakByName(t *testing.T) {
	fsys := afero.NewMemMapFs()
	dir := "/drop"
	s, err := NewLocal(fsys, dir)
	require.NoError(t, err)

	ts := time.Date(2024, 5, 5, 5, 5, 5, 0, time.UTC)
	for _, n := range []string{"c.txt", "a.txt", "b.txt"} {
		_, err := s.Put(context.Background(), n, strings.NewReader(n), PutObjectOptions{})
		require.NoError(t, err)
		require.NoError(t, fsys.Chtimes(filepath.Join(dir, n), ts, ts))
	}

	for i := 0; i < 3; i++ {
		body, info := readLatest(t, s)
		assert.Equal(t, "a.txt", info.Name)
		assert.Equal(t, "a.txt", body)
	}
}

func TestLocal_FailedPutRemovesTempFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s, err := NewLocal(fsys, "/drop")
	require.NoError(t, err)

	_, err = s.Put(context.Background(), "x.bin", &failingReader{}, PutObjectOptions{})
	require.Error(t, err)

	entries, err := afero.ReadDir(fsys, "/drop")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocal_ConcurrentFirstUploads(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "temp")
	fsys := afero.NewOsFs()
	s, err := NewLocal(fsys, dir)
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			content := fmt.Sprintf("file-%d", i)
			_, err := s.Put(context.Background(), content+".txt", strings.NewReader(content), PutObjectOptions{})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	entries, err := afero.ReadDir(fsys, dir)
	require.NoError(t, err)
	assert.Len(t, entries, n)

	body, info := readLatest(t, s)
	assert.Equal(t, strings.TrimSuffix(info.Name, ".txt"), body)
}

func TestLocal_RequiresDir(t *testing.T) {
	_, err := NewLocal(afero.NewMemMapFs(), "")
	assert.Error(t, err)
}

func TestMemory_MonotonicTimestamps(t *testing.T) {
	s, err := NewMemory()
	require.NoError(t, err)
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.(*memoryStorage).now = func() time.Time { return fixed }

	first, err := s.Put(context.Background(), "b.txt", strings.NewReader("1"), PutObjectOptions{})
	require.NoError(t, err)
	second, err := s.Put(context.Background(), "a.txt", strings.NewReader("2"), PutObjectOptions{})
	require.NoError(t, err)
	assert.True(t, second.LastModified.After(first.LastModified))

	_, info := readLatest(t, s)
	assert.Equal(t, "a.txt", info.Name)
}

func TestNewest(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, ok := newest(nil)
	assert.False(t, ok)

	got, ok := newest([]ObjectInfo{
		{Name: "old", LastModified: t0},
		{Name: "zeta", LastModified: t0.Add(time.Second)},
		{Name: "alpha", LastModified: t0.Add(time.Second)},
	})
	require.True(t, ok)
	assert.Equal(t, "alpha", got.Name)
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("report.pdf"))
	assert.NoError(t, ValidateName("with space.txt"))
	assert.NoError(t, ValidateName(".hidden"))
	assert.ErrorIs(t, ValidateName(".."), ErrInvalidName)
	assert.ErrorIs(t, ValidateName("dir/file"), ErrInvalidName)
}
