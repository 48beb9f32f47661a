package mocks

import (
	"context"
	"io"

	"filedrop/internal/model"
	"filedrop/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockDropService struct {
	mock.Mock
}

func (m *MockDropService) Upload(ctx context.Context, req service.UploadRequest) (*model.StoredFile, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StoredFile), args.Error(1)
}

func (m *MockDropService) Download(ctx context.Context) (io.ReadCloser, *model.StoredFile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Get(1).(*model.StoredFile), args.Error(2)
}
