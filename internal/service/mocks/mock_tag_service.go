package mocks

import (
	"context"

	"docvault/internal/config"
	"docvault/internal/model"
	"docvault/internal/ocr"
	"github.com/stretchr/testify/mock"
)

type MockTagService struct {
	mock.Mock
}

func (m *MockTagService) tag(args mock.Arguments) (*model.Tag, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Tag), args.Error(1)
}

func (m *MockTagService) doc(args mock.Arguments) (*model.Document, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockTagService) Create(ctx context.Context, name, color string) (*model.Tag, error) {
	return m.tag(m.Called(ctx, name, color))
}

func (m *MockTagService) List(ctx context.Context) ([]model.Tag, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Tag), args.Error(1)
}

func (m *MockTagService) Update(ctx context.Context, id, name, color string) (*model.Tag, error) {
	return m.tag(m.Called(ctx, id, name, color))
}

func (m *MockTagService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTagService) Attach(ctx context.Context, docID, tagID string) (*model.Document, error) {
	return m.doc(m.Called(ctx, docID, tagID))
}

func (m *MockTagService) Detach(ctx context.Context, docID, tagID string) (*model.Document, error) {
	return m.doc(m.Called(ctx, docID, tagID))
}

type MockSystemService struct {
	mock.Mock
}

func (m *MockSystemService) Engines(ctx context.Context) []ocr.EngineInfo {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]ocr.EngineInfo)
}

func (m *MockSystemService) Settings(ctx context.Context) config.Settings {
	args := m.Called(ctx)
	return args.Get(0).(config.Settings)
}

func (m *MockSystemService) UpdateSettings(ctx context.Context, next config.Settings) (config.Settings, error) {
	args := m.Called(ctx, next)
	return args.Get(0).(config.Settings), args.Error(1)
}
