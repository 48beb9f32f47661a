package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"filedrop/internal/model"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestJournalPostgres_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewJournalPostgres(db)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
		entry := &model.JournalEntry{
			ID:        "8f0c2f52-7c43-4a41-9d7e-5d1b2a6c9e10",
			Filename:  "report.pdf",
			Size:      1024,
			FileID:    "browser-token",
			RequestID: "rid-1",
		}

		mock.ExpectQuery("INSERT INTO upload_journal").
			WithArgs(entry.ID, entry.Filename, entry.Size, entry.FileID, entry.RequestID).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

		err := repo.Record(ctx, entry)

		assert.NoError(t, err)
		assert.Equal(t, now, entry.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO upload_journal").
			WillReturnError(errors.New("connection refused"))

		err := repo.Record(ctx, &model.JournalEntry{ID: "x", Filename: "a.txt"})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
