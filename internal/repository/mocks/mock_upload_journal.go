package mocks

import (
	"context"

	"filedrop/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockUploadJournal struct {
	mock.Mock
}

func (m *MockUploadJournal) Record(ctx context.Context, entry *model.JournalEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}
