package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"docvault/internal/config"
)

const metaOriginalFilename = "original-filename"

const bucketCheckTimeout = 10 * time.Second

// minioStorage keeps objects in one bucket of an S3-compatible server. The
// minio client is safe for concurrent use, so is minioStorage.
type minioStorage struct {
	client *minio.Client
	bucket string
}

// NewMinIO connects to the configured server and creates the bucket on first
// use. Settings are validated before any network call.
func NewMinIO(cfg config.MinIOConfig) (Storage, error) {
	var missing []string
	for name, v := range map[string]string{
		"endpoint":   cfg.Endpoint,
		"access key": cfg.AccessKey,
		"secret key": cfg.SecretKey,
		"bucket":     cfg.Bucket,
	} {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("minio settings incomplete: missing %s", strings.Join(missing, ", "))
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), bucketCheckTimeout)
	defer cancel()
	if err := ensureBucket(ctx, client, cfg.Bucket); err != nil {
		return nil, err
	}
	return &minioStorage{client: client, bucket: cfg.Bucket}, nil
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	ok, err := client.BucketExists(ctx, bucket)
	switch {
	case err != nil:
		return fmt.Errorf("bucket %s: %w", bucket, err)
	case ok:
		return nil
	}
	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("make bucket %s: %w", bucket, err)
	}
	return nil
}

func (m *minioStorage) Location() string { return "s3://" + m.bucket }

// Save uploads an object using streaming I/O only (no local disk).
func (m *minioStorage) Save(ctx context.Context, r io.Reader, originalFilename string, opt SaveOptions) (ObjectInfo, error) {
	key := NewKey(opt.Class, originalFilename)
	ct := opt.ContentType
	if ct == "" {
		ct = contentTypeFor(key)
	}
	size := opt.Size
	if size == 0 {
		size = -1
	}
	// user metadata travels as HTTP headers and must stay ASCII
	meta := map[string]string{metaOriginalFilename: url.QueryEscape(originalFilename)}

	info, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  ct,
		UserMetadata: meta,
	})
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("put object: %w", err)
	}
	return ObjectInfo{
		Key:          key,
		Size:         info.Size,
		ETag:         info.ETag,
		ContentType:  ct,
		LastModified: time.Now().UTC(), // PutObject does not report LastModified
		Metadata:     map[string]string{metaOriginalFilename: originalFilename},
	}, nil
}

// Fetch streams the object at key. GetObject is lazy, so the object is
// stat'ed up front to surface a missing key as ErrNotFound.
func (m *minioStorage) Fetch(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, m.wrap(key, err)
	}
	st, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, ObjectInfo{}, m.wrap(key, err)
	}

	info := ObjectInfo{Key: key, Size: st.Size, ETag: st.ETag, ContentType: st.ContentType, LastModified: st.LastModified}
	// minio canonicalises header names, e.g. Original-Filename.
	for k, v := range st.UserMetadata {
		if !strings.EqualFold(k, metaOriginalFilename) {
			continue
		}
		if decoded, err := url.QueryUnescape(v); err == nil {
			v = decoded
		}
		info.Metadata = map[string]string{metaOriginalFilename: v}
	}
	return obj, info, nil
}

// Delete removes an object by key. RemoveObject succeeds for missing keys,
// so the object is stat'ed first to report whether anything was removed.
func (m *minioStorage) Delete(ctx context.Context, key string) (bool, error) {
	if _, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat object: %w", err)
	}
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return false, fmt.Errorf("remove object: %w", err)
	}
	return true, nil
}

// PresignGet signs a GET for key valid for expiry.
func (m *minioStorage) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	signed, err := m.client.PresignedGetObject(ctx, m.bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return signed.String(), nil
}

func (m *minioStorage) wrap(key string, err error) error {
	if isNoSuchKey(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return fmt.Errorf("get object: %w", err)
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchObject"
}
