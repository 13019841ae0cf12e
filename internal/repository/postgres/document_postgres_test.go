package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/model"
	"docvault/internal/repository"
)

var docCols = []string{
	"id", "filename", "mime_type", "size", "storage_path", "thumbnail_path", "folder_path",
	"upload_date", "ocr_status", "ocr_text", "ocr_engine", "ocr_engine_version", "metadata", "tags",
}

func newRepo(t *testing.T) (*DocumentPostgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewDocumentPostgres(db), mock
}

func docRow(id string, now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(docCols).AddRow(
		id, "scan.png", "image/png", 120, "documents/"+id+".png", "", "/inbox/",
		now, "completed", "hello", "tesseract", "5.3.0",
		[]byte(`{"source":"upload"}`),
		[]byte(`[{"id":"t1","name":"Invoice","color":"#808080"}]`),
	)
}

func TestDocumentPostgres_Create(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	doc := &model.Document{
		ID:          "d1",
		Filename:    "scan.png",
		MimeType:    "image/png",
		Size:        120,
		StoragePath: "documents/d1.png",
		FolderPath:  "inbox",
		UploadDate:  now,
		OCRStatus:   model.OCRStatusPending,
		Tags:        []model.Tag{{ID: "t1", Name: "Invoice"}},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO documents").
		WithArgs("d1", "scan.png", "image/png", int64(120), "documents/d1.png", "", "/inbox/",
			now, "pending", "", "", "", "{}").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO document_tags").
		WithArgs("d1", "t1", 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT (.+) FROM documents d WHERE d.id = ").
		WithArgs("d1").
		WillReturnRows(docRow("d1", now))

	result, err := repo.Create(ctx, doc)

	require.NoError(t, err)
	assert.Equal(t, "d1", result.ID)
	assert.Equal(t, "Invoice", result.Tags[0].Name)
	assert.Equal(t, "upload", result.Metadata["source"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_CreateUnknownTagRollsBack(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO documents").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO document_tags").
		WillReturnError(&pgconn.PgError{Code: pgForeignKeyViolation, ConstraintName: "document_tags_tag_id_fkey"})
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), &model.Document{ID: "d1", Tags: []model.Tag{{ID: "ghost"}}})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_Get(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM documents d WHERE d.id = ").
			WithArgs("d1").
			WillReturnRows(docRow("d1", time.Now()))

		doc, err := repo.Get(ctx, "d1")

		require.NoError(t, err)
		assert.Equal(t, model.OCRStatusCompleted, doc.OCRStatus)
		assert.Equal(t, "/inbox/", doc.FolderPath)
		assert.Len(t, doc.Tags, 1)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM documents d WHERE d.id = ").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		doc, err := repo.Get(ctx, "missing")

		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.Nil(t, doc)
	})
}

func TestDocumentPostgres_Update(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()

	t.Run("single statement", func(t *testing.T) {
		q := regexp.QuoteMeta(`UPDATE documents SET ocr_status = $1, ocr_text = $2, metadata = ((metadata - $3::text) || $4::jsonb) WHERE id = $5`)
		mock.ExpectExec(q).
			WithArgs("failed", "", "error", `{"reason":"x"}`, "d1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT (.+) FROM documents d WHERE d.id = ").
			WithArgs("d1").
			WillReturnRows(docRow("d1", time.Now()))

		_, err := repo.Update(ctx, "d1", repository.DocumentPatch{
			OCRStatus:      repository.StatusPtr(model.OCRStatusFailed),
			OCRText:        repository.StringPtr(""),
			DeleteMetadata: []string{"error"},
			SetMetadata:    map[string]any{"reason": "x"},
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		mock.ExpectExec("UPDATE documents SET ocr_status").
			WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := repo.Update(ctx, "gone", repository.DocumentPatch{OCRStatus: repository.StatusPtr(model.OCRStatusProcessing)})
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	conditional := regexp.QuoteMeta(`UPDATE documents SET ocr_status = $1 WHERE id = $2 AND metadata->>'ocr_run' = $3`)
	patch := repository.DocumentPatch{OCRStatus: repository.StatusPtr(model.OCRStatusCompleted), IfOCRRun: "run-1"}

	t.Run("run token matches", func(t *testing.T) {
		mock.ExpectExec(conditional).
			WithArgs("completed", "d1", "run-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT (.+) FROM documents d WHERE d.id = ").
			WithArgs("d1").
			WillReturnRows(docRow("d1", time.Now()))

		_, err := repo.Update(ctx, "d1", patch)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("superseded run", func(t *testing.T) {
		mock.ExpectExec(conditional).
			WithArgs("completed", "d1", "run-1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT (.+) FROM documents d WHERE d.id = ").
			WithArgs("d1").
			WillReturnRows(docRow("d1", time.Now()))

		_, err := repo.Update(ctx, "d1", patch)
		assert.ErrorIs(t, err, repository.ErrStaleRun)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("conditional on deleted document", func(t *testing.T) {
		mock.ExpectExec(conditional).
			WithArgs("completed", "gone", "run-1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT (.+) FROM documents d WHERE d.id = ").
			WithArgs("gone").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.Update(ctx, "gone", patch)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDocumentPostgres_Delete(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM documents d WHERE d.id = ").
		WithArgs("d1").
		WillReturnRows(docRow("d1", time.Now()))
	mock.ExpectExec("DELETE FROM documents WHERE id = ").
		WithArgs("d1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	removed, err := repo.Delete(context.Background(), "d1")

	require.NoError(t, err)
	assert.Equal(t, "documents/d1.png", removed.StoragePath)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_List(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM documents d WHERE d.folder_path = $1")).
		WithArgs("/inbox/").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT (.+) FROM documents d WHERE d.folder_path = \\$1 ORDER BY d.upload_date DESC, d.id DESC LIMIT \\$2 OFFSET \\$3").
		WithArgs("/inbox/", 10, 0).
		WillReturnRows(docRow("d1", time.Now()))

	res, err := repo.List(context.Background(), repository.PageQuery{Limit: 10, FolderPath: "inbox"})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Len(t, res.Items, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_Search(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(`%100\%%`, "invoice", "image/png").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("ORDER BY d.size ASC, d.id ASC LIMIT \\$4 OFFSET \\$5").
		WithArgs(`%100\%%`, "invoice", "image/png", 5, 10).
		WillReturnRows(sqlmock.NewRows(docCols))

	res, err := repo.Search(context.Background(), repository.SearchQuery{
		Text:      "100%",
		Tags:      []string{"Invoice"},
		MimeTypes: []string{"IMAGE/PNG"},
		SortBy:    "size",
		SortOrder: "asc",
		Limit:     5,
		Offset:    10,
	})

	require.NoError(t, err)
	assert.Equal(t, 0, res.Total)
	assert.Empty(t, res.Items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchWhere(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	where, args := searchWhere(repository.SearchQuery{
		Text:       "tax",
		FolderPath: "/finance/",
		DateFrom:   &from,
	}.Normalize())

	assert.True(t, strings.HasPrefix(where, " WHERE "))
	assert.Contains(t, where, "(d.filename ILIKE $1 OR d.ocr_text ILIKE $1)")
	assert.Contains(t, where, "d.folder_path = $2")
	assert.Contains(t, where, "d.upload_date >= $3")
	assert.Equal(t, []any{"%tax%", "/finance/", from}, args)

	where, args = searchWhere(repository.SearchQuery{}.Normalize())
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestDocumentPostgres_FolderCountsAndStats(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT folder_path, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"folder_path", "count"}).AddRow("/", 2).AddRow("/a/b/", 1))
	counts, err := repo.FolderCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"/": 2, "/a/b/": 1}, counts)

	mock.ExpectQuery("SELECT ocr_status, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"ocr_status", "count", "sum"}).
			AddRow("completed", 2, 300).
			AddRow("failed", 1, 50))
	st, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.DocumentCount)
	assert.EqualValues(t, 350, st.TotalSize)
	assert.Equal(t, 1, st.ByStatus[model.OCRStatusFailed])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_EnsureTags(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO tags").
		WithArgs(sqlmock.AnyArg(), "Invoice", model.DefaultTagColor).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id, name, color FROM tags WHERE lower\\(name\\) = ").
		WithArgs("invoice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "color"}).AddRow("t1", "invoice", "#808080"))
	mock.ExpectCommit()

	tags, err := repo.EnsureTags(context.Background(), []string{"Invoice", "INVOICE", " "})

	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "t1", tags[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_TagErrors(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()

	t.Run("create duplicate", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO tags").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "color"}))
		_, err := repo.CreateTag(ctx, model.Tag{Name: "Invoice"})
		assert.ErrorIs(t, err, repository.ErrTagExists)
	})

	t.Run("rename onto existing", func(t *testing.T) {
		mock.ExpectQuery("UPDATE tags").
			WithArgs("t1", "Tax", "").
			WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})
		_, err := repo.UpdateTag(ctx, "t1", repository.TagPatch{Name: "Tax"})
		assert.ErrorIs(t, err, repository.ErrTagExists)
	})

	t.Run("delete missing", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM tags WHERE id = ").
			WithArgs("nope").
			WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, repo.DeleteTag(ctx, "nope"), repository.ErrNotFound)
	})

	t.Run("attach to missing document", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO document_tags").
			WithArgs("nope", "t1").
			WillReturnError(&pgconn.PgError{Code: pgForeignKeyViolation})
		_, err := repo.AddTag(ctx, "nope", "t1")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		boom := errors.New("boom")
		mock.ExpectQuery("SELECT id, name, color FROM tags ORDER BY").WillReturnError(boom)
		_, err := repo.ListTags(ctx)
		assert.ErrorIs(t, err, boom)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
