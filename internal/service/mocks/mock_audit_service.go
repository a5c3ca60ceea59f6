package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"vaultapi/internal/model"
	"vaultapi/internal/repository"
)

type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) WriteAsync(rec *model.AuditRecord) {
	m.Called(rec)
}

func (m *MockAuditService) List(ctx context.Context, q repository.AuditQuery) ([]model.AuditRecord, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AuditRecord), args.Error(1)
}

func (m *MockAuditService) ExportCSV(ctx context.Context, q repository.AuditQuery) ([]byte, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
