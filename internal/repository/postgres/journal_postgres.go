package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"filedrop/internal/model"
	"filedrop/internal/repository"
)

// JournalPostgres is a PostgreSQL implementation of repository.UploadJournal.
type JournalPostgres struct {
	db *sql.DB
}

// NewJournalPostgres creates a new JournalPostgres repository.
func NewJournalPostgres(db *sql.DB) *JournalPostgres {
	return &JournalPostgres{db: db}
}

var _ repository.UploadJournal = (*JournalPostgres)(nil)

func (r *JournalPostgres) Record(ctx context.Context, entry *model.JournalEntry) error {
	const q = `
		INSERT INTO upload_journal (id, filename, size, file_id, request_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	row := r.db.QueryRowContext(ctx, q,
		entry.ID,
		entry.Filename,
		entry.Size,
		entry.FileID,
		entry.RequestID,
	)
	if err := row.Scan(&entry.CreatedAt); err != nil {
		return fmt.Errorf("insert upload_journal: %w", err)
	}
	return nil
}
