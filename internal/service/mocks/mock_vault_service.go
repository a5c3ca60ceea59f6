package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"vaultapi/internal/model"
	"vaultapi/internal/service"
)

type MockVaultService struct {
	mock.Mock
}

func (m *MockVaultService) Upload(ctx context.Context, r io.Reader, originalFilename, contentType, sender string, fields []model.FormField) (*model.Document, error) {
	args := m.Called(ctx, r, originalFilename, contentType, sender, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockVaultService) Download(ctx context.Context, id, viewer string) (*service.DownloadResult, error) {
	args := m.Called(ctx, id, viewer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DownloadResult), args.Error(1)
}

func (m *MockVaultService) List(ctx context.Context, viewer string) ([]service.DocumentEntry, error) {
	args := m.Called(ctx, viewer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.DocumentEntry), args.Error(1)
}

func (m *MockVaultService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
