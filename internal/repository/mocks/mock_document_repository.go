package mocks

import (
	"context"

	"docvault/internal/model"
	"docvault/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockDocumentIndex struct {
	mock.Mock
}

func (m *MockDocumentIndex) doc(args mock.Arguments) (*model.Document, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentIndex) tag(args mock.Arguments) (*model.Tag, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Tag), args.Error(1)
}

func (m *MockDocumentIndex) page(args mock.Arguments) (*repository.PageResult[model.Document], error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Document]), args.Error(1)
}

func (m *MockDocumentIndex) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	return m.doc(m.Called(ctx, doc))
}

func (m *MockDocumentIndex) Get(ctx context.Context, id string) (*model.Document, error) {
	return m.doc(m.Called(ctx, id))
}

func (m *MockDocumentIndex) Update(ctx context.Context, id string, patch repository.DocumentPatch) (*model.Document, error) {
	return m.doc(m.Called(ctx, id, patch))
}

func (m *MockDocumentIndex) Delete(ctx context.Context, id string) (*model.Document, error) {
	return m.doc(m.Called(ctx, id))
}

func (m *MockDocumentIndex) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	return m.page(m.Called(ctx, pq))
}

func (m *MockDocumentIndex) Search(ctx context.Context, q repository.SearchQuery) (*repository.PageResult[model.Document], error) {
	return m.page(m.Called(ctx, q))
}

func (m *MockDocumentIndex) FolderCounts(ctx context.Context) (map[string]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *MockDocumentIndex) Stats(ctx context.Context) (repository.Stats, error) {
	args := m.Called(ctx)
	return args.Get(0).(repository.Stats), args.Error(1)
}

func (m *MockDocumentIndex) EnsureTags(ctx context.Context, names []string) ([]model.Tag, error) {
	args := m.Called(ctx, names)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Tag), args.Error(1)
}

func (m *MockDocumentIndex) CreateTag(ctx context.Context, tag model.Tag) (*model.Tag, error) {
	return m.tag(m.Called(ctx, tag))
}

func (m *MockDocumentIndex) GetTag(ctx context.Context, id string) (*model.Tag, error) {
	return m.tag(m.Called(ctx, id))
}

func (m *MockDocumentIndex) GetTagByName(ctx context.Context, name string) (*model.Tag, error) {
	return m.tag(m.Called(ctx, name))
}

func (m *MockDocumentIndex) ListTags(ctx context.Context) ([]model.Tag, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Tag), args.Error(1)
}

func (m *MockDocumentIndex) UpdateTag(ctx context.Context, id string, patch repository.TagPatch) (*model.Tag, error) {
	return m.tag(m.Called(ctx, id, patch))
}

func (m *MockDocumentIndex) DeleteTag(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentIndex) AddTag(ctx context.Context, docID, tagID string) (*model.Document, error) {
	return m.doc(m.Called(ctx, docID, tagID))
}

func (m *MockDocumentIndex) RemoveTag(ctx context.Context, docID, tagID string) (*model.Document, error) {
	return m.doc(m.Called(ctx, docID, tagID))
}
