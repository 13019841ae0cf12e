package mocks

import (
	"context"
	"io"
	"time"

	"docvault/internal/storage"

	"github.com/stretchr/testify/mock"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Save(ctx context.Context, r io.Reader, originalFilename string, opt storage.SaveOptions) (storage.ObjectInfo, error) {
	args := m.Called(ctx, r, originalFilename, opt)
	if f, ok := args.Get(0).(func(context.Context, io.Reader, string, storage.SaveOptions) storage.ObjectInfo); ok {
		return f(ctx, r, originalFilename, opt), args.Error(1)
	}
	return args.Get(0).(storage.ObjectInfo), args.Error(1)
}

func (m *MockStorage) Fetch(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	args := m.Called(ctx, key)
	var rc io.ReadCloser
	if v := args.Get(0); v != nil {
		rc = v.(io.ReadCloser)
	}
	return rc, args.Get(1).(storage.ObjectInfo), args.Error(2)
}

func (m *MockStorage) Delete(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, key, expiry)
	return args.String(0), args.Error(1)
}

func (m *MockStorage) Location() string {
	args := m.Called()
	return args.String(0)
}
