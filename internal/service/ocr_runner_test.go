package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/logging"
	"docvault/internal/model"
	"docvault/internal/ocr"
	"docvault/internal/repository"
	"docvault/internal/storage"
)

// seed stores data and records a PENDING document for it.
func (f *fixture) seed(t *testing.T, filename, mimeType string, data []byte) *model.Document {
	t.Helper()
	ctx := context.Background()
	obj, err := f.store(t).Save(ctx, bytes.NewReader(data), filename, storage.SaveOptions{
		Class:       storage.ClassDocument,
		Size:        int64(len(data)),
		ContentType: mimeType,
	})
	require.NoError(t, err)

	doc, err := f.index.Create(ctx, &model.Document{
		ID:          uuid.NewString(),
		Filename:    filename,
		MimeType:    mimeType,
		Size:        obj.Size,
		StoragePath: obj.Key,
		FolderPath:  "/",
		UploadDate:  time.Now().UTC(),
		OCRStatus:   model.OCRStatusPending,
		Metadata:    map[string]any{},
	})
	require.NoError(t, err)
	return doc
}

func TestOCRRunner_Run(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		filename    string
		mimeType    string
		engine      string
		setup       func(f *fixture)
		wantStatus  model.OCRStatus
		wantText    string
		wantEngine  string
		wantErrPart string
		wantLabel   string
	}{
		{
			name:       "image completes with engine identity",
			filename:   "a.png",
			mimeType:   "image/png",
			wantStatus: model.OCRStatusCompleted,
			wantText:   "extracted text",
			wantEngine: "stub",
		},
		{
			name:       "pdf pages are joined",
			filename:   "a.pdf",
			mimeType:   model.MimePDF,
			wantStatus: model.OCRStatusCompleted,
			wantText:   "page one\n\npage two",
			wantEngine: "stub",
		},
		{
			name:     "engine failure is recorded",
			filename: "a.png",
			mimeType: "image/png",
			setup: func(f *fixture) {
				f.engine.err = errors.New("unreadable image")
			},
			wantStatus:  model.OCRStatusFailed,
			wantErrPart: "ocr engine stub: unreadable image",
		},
		{
			name:        "unknown engine fails the run",
			filename:    "a.png",
			mimeType:    "image/png",
			engine:      "nope",
			wantStatus:  model.OCRStatusFailed,
			wantErrPart: "unavailable",
			wantLabel:   "unknown",
		},
		{
			name:     "requested engine overrides the default",
			filename: "a.png",
			mimeType: "image/png",
			engine:   "other",
			setup: func(f *fixture) {
				other := &stubEngine{name: "other", version: "2.1", text: "from other"}
				f.engines.Register("other", func() (ocr.Engine, error) { return other, nil })
			},
			wantStatus: model.OCRStatusCompleted,
			wantText:   "from other",
			wantEngine: "other",
		},
		{
			name:     "engine timeout fails the run",
			filename: "a.png",
			mimeType: "image/png",
			setup: func(f *fixture) {
				f.runner.timeout = 20 * time.Millisecond
				f.engine.hook = func(ctx context.Context) { <-ctx.Done() }
			},
			wantStatus:  model.OCRStatusFailed,
			wantErrPart: "deadline exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}
			doc := f.seed(t, tt.filename, tt.mimeType, []byte("content"))

			f.runner.Run(ctx, doc.ID, tt.engine, "")

			got, err := f.index.Get(ctx, doc.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.OCRStatus)
			assert.Equal(t, tt.wantText, got.OCRText)
			assert.Equal(t, tt.wantEngine, got.OCREngine)

			if tt.wantStatus == model.OCRStatusFailed {
				assert.Empty(t, got.OCREngineVersion)
				assert.Contains(t, got.Metadata[model.MetadataErrorKey], tt.wantErrPart)
			} else {
				assert.NotEmpty(t, got.OCREngineVersion)
				assert.NotContains(t, got.Metadata, model.MetadataErrorKey)
			}

			label := tt.engine
			switch {
			case tt.wantLabel != "":
				label = tt.wantLabel
			case label == "":
				label = "stub"
			}
			assert.Equal(t, 1.0, testutil.ToFloat64(f.runner.runs.WithLabelValues(label, string(tt.wantStatus))))
		})
	}
}

func TestOCRRunner_MarksProcessingBeforeEngineCall(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.seed(t, "a.png", "image/png", []byte("x"))

	var during model.OCRStatus
	f.engine.hook = func(context.Context) {
		d, err := f.index.Get(ctx, doc.ID)
		require.NoError(t, err)
		during = d.OCRStatus
	}

	f.runner.Run(ctx, doc.ID, "", "")
	assert.Equal(t, model.OCRStatusProcessing, during)
}

func TestOCRRunner_SuccessClearsPreviousError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.seed(t, "a.png", "image/png", []byte("x"))

	f.engine.err = errors.New("boom")
	f.runner.Run(ctx, doc.ID, "", "")
	failed, err := f.index.Get(ctx, doc.ID)
	require.NoError(t, err)
	require.Equal(t, model.OCRStatusFailed, failed.OCRStatus)
	require.Contains(t, failed.Metadata, model.MetadataErrorKey)

	f.engine.err = nil
	f.runner.Run(ctx, doc.ID, "", "")
	done, err := f.index.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OCRStatusCompleted, done.OCRStatus)
	assert.NotContains(t, done.Metadata, model.MetadataErrorKey)
	assert.Equal(t, "extracted text", done.OCRText)
}

func TestOCRRunner_FailureClearsPreviousText(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.seed(t, "a.png", "image/png", []byte("x"))

	f.runner.Run(ctx, doc.ID, "", "")
	f.engine.err = errors.New("boom")
	f.runner.Run(ctx, doc.ID, "", "")

	got, err := f.index.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OCRStatusFailed, got.OCRStatus)
	assert.Empty(t, got.OCRText)
	assert.Empty(t, got.OCREngine)
	assert.Empty(t, got.OCREngineVersion)
}

func TestOCRRunner_MissingDocumentIsIgnored(t *testing.T) {
	f := newFixture(t)
	assert.NotPanics(t, func() { f.runner.Run(context.Background(), "missing", "", "") })
	assert.Zero(t, f.engine.Calls())
	assert.Zero(t, testutil.CollectAndCount(f.runner.runs))
}

func TestOCRRunner_DeletedMidRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.seed(t, "a.png", "image/png", []byte("x"))

	f.engine.hook = func(context.Context) {
		_, err := f.index.Delete(ctx, doc.ID)
		require.NoError(t, err)
	}
	f.runner.Run(ctx, doc.ID, "", "")

	_, err := f.index.Get(ctx, doc.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestOCRRunner_MissingStoredObject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.seed(t, "a.png", "image/png", []byte("x"))

	_, err := f.store(t).Delete(ctx, doc.StoragePath)
	require.NoError(t, err)

	f.runner.Run(ctx, doc.ID, "", "")
	got, err := f.index.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OCRStatusFailed, got.OCRStatus)
	msg, _ := got.Metadata[model.MetadataErrorKey].(string)
	assert.True(t, strings.HasPrefix(msg, "storage failure: fetch original"), msg)
	assert.Zero(t, f.engine.Calls())
}

func TestOCRRunner_DefaultEngineReadAtCallTime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	other := &stubEngine{name: "other", version: "9", text: "other text"}
	f.engines.Register("other", func() (ocr.Engine, error) { return other, nil })
	doc := f.seed(t, "a.png", "image/png", []byte("x"))

	s := f.settings.Get()
	s.DefaultOCREngine = "other"
	_, err := f.settings.Update(s)
	require.NoError(t, err)

	f.runner.Run(ctx, doc.ID, "", "")
	got, err := f.index.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "other", got.OCREngine)
	assert.Equal(t, 1, other.Calls())
	assert.Zero(t, f.engine.Calls())
}

func TestNewOCRRunner_DuplicateRegistration(t *testing.T) {
	f := newFixture(t)
	reg := prometheus.NewRegistry()
	_, err := NewOCRRunner(f.index, f.provider, f.engines, f.settings, time.Second, logging.Discard(), reg)
	require.NoError(t, err)
	_, err = NewOCRRunner(f.index, f.provider, f.engines, f.settings, time.Second, logging.Discard(), reg)
	assert.Error(t, err)
}

func TestOCRRunner_SupersededRunIsDiscarded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	started, release := make(chan struct{}), make(chan struct{})
	slow := &stubEngine{name: "slow", version: "1", err: errors.New("old run failed")}
	slow.hook = func(context.Context) {
		close(started)
		<-release
	}
	f.engines.Register("slow", func() (ocr.Engine, error) { return slow, nil })

	res, err := f.svc.Ingest(ctx, upload(pngBytes(t, 10, 10), "a.png", "image/png"))
	require.NoError(t, err)
	id := res.Documents[0].ID

	// The first run is still inside the engine when the document is re-submitted.
	doc, err := f.index.Update(ctx, id, repository.DocumentPatch{
		OCRStatus:   repository.StatusPtr(model.OCRStatusPending),
		SetMetadata: map[string]any{model.MetadataOCRRunKey: "first"},
	})
	require.NoError(t, err)
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.runner.Run(ctx, doc.ID, "slow", "first")
	}()
	<-started

	_, err = f.svc.ReOCR(ctx, id, "stub")
	require.NoError(t, err)
	close(release)
	<-done

	got, err := f.index.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.OCRStatusCompleted, got.OCRStatus)
	assert.Equal(t, "extracted text", got.OCRText)
	assert.Equal(t, "stub", got.OCREngine)
	assert.NotContains(t, got.Metadata, model.MetadataErrorKey)
}

func TestOCRRunner_SupersededBeforeStart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.seed(t, "a.png", "image/png", []byte("x"))

	_, err := f.index.Update(ctx, doc.ID, repository.DocumentPatch{
		SetMetadata: map[string]any{model.MetadataOCRRunKey: "newer"},
	})
	require.NoError(t, err)

	f.runner.Run(ctx, doc.ID, "", "older")

	got, err := f.index.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OCRStatusPending, got.OCRStatus)
	assert.Zero(t, f.engine.Calls())
}
