package repository

import (
	"context"

	"filedrop/internal/model"
)

// UploadJournal persists a diagnostic trail of accepted uploads.
// The drop store never reads it back.
type UploadJournal interface {
	// Record inserts entry. CreatedAt is filled from the database clock.
	Record(ctx context.Context, entry *model.JournalEntry) error
}
