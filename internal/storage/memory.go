package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	memdb "github.com/hashicorp/go-memdb"
)

const memoryTable = "object"

var memorySchema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		memoryTable: {
			Name: memoryTable,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Name"},
				},
			},
		},
	},
}

// memoryObject is immutable once inserted; a Put replaces the whole record.
type memoryObject struct {
	Name         string
	ContentType  string
	Contents     []byte
	LastModified time.Time
}

type memoryStorage struct {
	db  *memdb.MemDB
	now func() time.Time
	// last is only touched inside write transactions, which memdb serializes.
	last time.Time
}

// NewMemory returns a Storage that keeps files in process memory. It is used
// for tests and single-process deployments that do not need durability.
func NewMemory() (Storage, error) {
	db, err := memdb.NewMemDB(memorySchema)
	if err != nil {
		return nil, fmt.Errorf("create memdb: %w", err)
	}
	return &memoryStorage{db: db, now: time.Now}, nil
}

func (m *memoryStorage) Put(ctx context.Context, name string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	if err := ValidateName(name); err != nil {
		return ObjectInfo{}, err
	}

	// Read everything before touching the table so a failed read stores nothing.
	data, err := io.ReadAll(contextReader{ctx: ctx, r: r})
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("read %s: %w", name, err)
	}

	txn := m.db.Txn(true)
	defer txn.Abort()

	ts := m.now()
	if !ts.After(m.last) {
		ts = m.last.Add(time.Nanosecond)
	}
	m.last = ts

	obj := &memoryObject{
		Name:         name,
		ContentType:  opt.ContentType,
		Contents:     data,
		LastModified: ts,
	}
	if err := txn.Insert(memoryTable, obj); err != nil {
		return ObjectInfo{}, fmt.Errorf("insert %s: %w", name, err)
	}
	txn.Commit()

	return obj.info(), nil
}

func (m *memoryStorage) Latest(ctx context.Context) (io.ReadCloser, ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, ObjectInfo{}, err
	}

	txn := m.db.Txn(false)
	it, err := txn.Get(memoryTable, "id")
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("list objects: %w", err)
	}

	objects := make(map[string]*memoryObject)
	var items []ObjectInfo
	for raw := it.Next(); raw != nil; raw = it.Next() {
		obj := raw.(*memoryObject)
		objects[obj.Name] = obj
		items = append(items, obj.info())
	}

	info, ok := newest(items)
	if !ok {
		return nil, ObjectInfo{}, ErrEmpty
	}
	return io.NopCloser(bytes.NewReader(objects[info.Name].Contents)), info, nil
}

func (o *memoryObject) info() ObjectInfo {
	return ObjectInfo{
		Name:         o.Name,
		Size:         int64(len(o.Contents)),
		ContentType:  o.ContentType,
		LastModified: o.LastModified,
	}
}
