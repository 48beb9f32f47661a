package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const (
	partialPrefix = ".filedrop-"
	partialSuffix = ".part"
)

// localStorage keeps files in a single flat drop directory. Writes go to a
// temporary file in the same directory and are renamed over the final name,
// so readers see either the previous or the new content, never a prefix of it.
type localStorage struct {
	fs  afero.Fs
	dir string
}

// NewLocal returns a Storage backed by dir on fs. The directory is created
// lazily on the first Put. A nil fs means the operating system filesystem.
func NewLocal(fsys afero.Fs, dir string) (Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("drop directory is required")
	}
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &localStorage{fs: fsys, dir: dir}, nil
}

func isPartial(name string) bool {
	return strings.HasPrefix(name, partialPrefix) && strings.HasSuffix(name, partialSuffix)
}

// Put writes r to <dir>/<name>, replacing an existing file of that name.
func (l *localStorage) Put(ctx context.Context, name string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	if err := ValidateName(name); err != nil {
		return ObjectInfo{}, err
	}
	if isPartial(name) {
		return ObjectInfo{}, ErrInvalidName
	}

	// MkdirAll succeeds when the directory already exists, including when a
	// concurrent upload created it first.
	if err := l.fs.MkdirAll(l.dir, 0o755); err != nil {
		return ObjectInfo{}, fmt.Errorf("create drop directory: %w", err)
	}

	tmp, err := afero.TempFile(l.fs, l.dir, partialPrefix+"*"+partialSuffix)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = l.fs.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, contextReader{ctx: ctx, r: r}); err != nil {
		return ObjectInfo{}, fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		return ObjectInfo{}, fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return ObjectInfo{}, fmt.Errorf("close %s: %w", name, err)
	}

	final := filepath.Join(l.dir, name)
	if err := l.fs.Rename(tmpName, final); err != nil {
		return ObjectInfo{}, fmt.Errorf("rename %s: %w", name, err)
	}
	committed = true

	st, err := l.fs.Stat(final)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("stat %s: %w", name, err)
	}
	return ObjectInfo{
		Name:         name,
		Size:         st.Size(),
		ContentType:  opt.ContentType,
		LastModified: st.ModTime(),
	}, nil
}

// Latest opens the most recently modified file in the drop directory.
func (l *localStorage) Latest(ctx context.Context) (io.ReadCloser, ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, ObjectInfo{}, err
	}

	entries, err := afero.ReadDir(l.fs, l.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ObjectInfo{}, ErrEmpty
		}
		return nil, ObjectInfo{}, fmt.Errorf("list drop directory: %w", err)
	}

	items := make([]ObjectInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || isPartial(e.Name()) {
			continue
		}
		items = append(items, ObjectInfo{
			Name:         e.Name(),
			Size:         e.Size(),
			LastModified: e.ModTime(),
		})
	}

	info, ok := newest(items)
	if !ok {
		return nil, ObjectInfo{}, ErrEmpty
	}

	f, err := l.fs.Open(filepath.Join(l.dir, info.Name))
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("open %s: %w", info.Name, err)
	}
	// Size can move if the name was replaced between listing and opening.
	if st, err := f.Stat(); err == nil {
		info.Size = st.Size()
		info.LastModified = st.ModTime()
	}
	return f, info, nil
}
