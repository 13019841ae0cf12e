package mocks

import (
	"context"

	"docvault/internal/model"
	"docvault/internal/repository"
	"docvault/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) doc(args mock.Arguments) (*model.Document, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) list(args mock.Arguments) (*service.DocumentListResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentListResult), args.Error(1)
}

func (m *MockDocumentService) content(args mock.Arguments) (*service.Content, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Content), args.Error(1)
}

func (m *MockDocumentService) Ingest(ctx context.Context, req service.IngestRequest) (*service.IngestResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IngestResult), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, q service.ListQuery) (*service.DocumentListResult, error) {
	return m.list(m.Called(ctx, q))
}

func (m *MockDocumentService) Get(ctx context.Context, id string) (*model.Document, error) {
	return m.doc(m.Called(ctx, id))
}

func (m *MockDocumentService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentService) Move(ctx context.Context, id, folderPath string) (*model.Document, error) {
	return m.doc(m.Called(ctx, id, folderPath))
}

func (m *MockDocumentService) Original(ctx context.Context, id string) (*service.Content, error) {
	return m.content(m.Called(ctx, id))
}

func (m *MockDocumentService) Thumbnail(ctx context.Context, id string) (*service.Content, error) {
	return m.content(m.Called(ctx, id))
}

func (m *MockDocumentService) ReOCR(ctx context.Context, id, engine string) (*model.Document, error) {
	return m.doc(m.Called(ctx, id, engine))
}

func (m *MockDocumentService) Search(ctx context.Context, q repository.SearchQuery) (*service.DocumentListResult, error) {
	return m.list(m.Called(ctx, q))
}

func (m *MockDocumentService) Folders(ctx context.Context) ([]model.Folder, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Folder), args.Error(1)
}

func (m *MockDocumentService) CreateFolder(ctx context.Context, p string) (model.Folder, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(model.Folder), args.Error(1)
}

func (m *MockDocumentService) FolderContents(ctx context.Context, p string, limit, offset int) (*service.FolderContents, error) {
	args := m.Called(ctx, p, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.FolderContents), args.Error(1)
}

func (m *MockDocumentService) StorageInfo(ctx context.Context) (*service.StorageInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.StorageInfo), args.Error(1)
}
