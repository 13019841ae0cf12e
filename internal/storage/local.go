package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docvault/internal/model"
)

// localStorage keeps objects as plain files below a root directory.
// Keys are slash-separated paths relative to the root, so they survive restarts
// and relocation of the root.
type localStorage struct {
	root string
}

// NewLocal creates a filesystem backend rooted at root, creating the documents
// and thumbnails subdirectories if missing.
func NewLocal(root string) (Storage, error) {
	if root == "" {
		return nil, fmt.Errorf("local storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	for _, class := range []Class{ClassDocument, ClassThumbnail} {
		if err := os.MkdirAll(filepath.Join(abs, string(class)), 0o755); err != nil {
			return nil, fmt.Errorf("create %s directory: %w", class, err)
		}
	}
	return &localStorage{root: abs}, nil
}

func (l *localStorage) Location() string { return l.root }

// Save streams r into a temp file next to its destination and renames it into place,
// so a partially written object is never visible under its key.
func (l *localStorage) Save(ctx context.Context, r io.Reader, originalFilename string, opt SaveOptions) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	key := NewKey(opt.Class, originalFilename)
	dst := filepath.Join(l.root, filepath.FromSlash(key))

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return ObjectInfo{}, fmt.Errorf("write object: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return ObjectInfo{}, fmt.Errorf("commit object: %w", err)
	}

	ct := opt.ContentType
	if ct == "" {
		ct = contentTypeFor(key)
	}
	return ObjectInfo{
		Key:          key,
		Size:         n,
		ContentType:  ct,
		LastModified: time.Now().UTC(),
		Metadata:     map[string]string{"original-filename": originalFilename},
	}, nil
}

func (l *localStorage) Fetch(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, ObjectInfo{}, err
	}
	full, err := l.resolve(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ObjectInfo{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, ObjectInfo{}, fmt.Errorf("open object: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, fmt.Errorf("stat object: %w", err)
	}
	if st.IsDir() {
		f.Close()
		return nil, ObjectInfo{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return f, ObjectInfo{
		Key:          key,
		Size:         st.Size(),
		ContentType:  contentTypeFor(key),
		LastModified: st.ModTime(),
	}, nil
}

func (l *localStorage) Delete(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	full, err := l.resolve(key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("remove object: %w", err)
	}
	return true, nil
}

func (l *localStorage) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "", ErrPresignUnsupported
}

// resolve maps a key to a file below the root. Keys that escape the root do not resolve.
func (l *localStorage) resolve(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || filepath.IsAbs(key) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	full := filepath.Join(l.root, filepath.FromSlash(key))
	if !strings.HasPrefix(full, l.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return full, nil
}

func contentTypeFor(key string) string {
	if mt := model.MimeByFilename(key); mt != "" {
		return mt
	}
	return model.MimeOctetStream
}
