package mocks

import (
	"context"

	"vaultapi/internal/model"
	"vaultapi/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockMetadataRepository struct {
	mock.Mock
}

func (m *MockMetadataRepository) RecordUpload(ctx context.Context, meta *model.DocumentMeta) error {
	args := m.Called(ctx, meta)
	return args.Error(0)
}

func (m *MockMetadataRepository) RecordAccess(ctx context.Context, docID, filename, sender, viewer string) error {
	args := m.Called(ctx, docID, filename, sender, viewer)
	return args.Error(0)
}

func (m *MockMetadataRepository) ListWithAcks(ctx context.Context, ids []string, viewer string) (map[string]repository.DocumentStatus, error) {
	args := m.Called(ctx, ids, viewer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]repository.DocumentStatus), args.Error(1)
}

func (m *MockMetadataRepository) DeleteForDocument(ctx context.Context, docID string) error {
	args := m.Called(ctx, docID)
	return args.Error(0)
}
