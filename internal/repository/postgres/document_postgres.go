package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"docvault/internal/model"
	"docvault/internal/repository"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	defaultListLimit = 100
)

// docColumns selects a document row with its tags aggregated as a JSON array in attach order.
const docColumns = `d.id, d.filename, d.mime_type, d.size, d.storage_path, d.thumbnail_path,
		d.folder_path, d.upload_date, d.ocr_status, d.ocr_text, d.ocr_engine, d.ocr_engine_version,
		d.metadata,
		COALESCE((
			SELECT json_agg(json_build_object('id', t.id, 'name', t.name, 'color', t.color) ORDER BY dt.position)
			FROM document_tags dt JOIN tags t ON t.id = dt.tag_id
			WHERE dt.document_id = d.id
		), '[]'::json) AS tags`

var sortColumns = map[string]string{
	repository.SortUploadDate: "d.upload_date",
	repository.SortFilename:   "d.filename",
	repository.SortSize:       "d.size",
}

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentIndex.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres index.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentIndex = (*DocumentPostgres)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(s rowScanner) (*model.Document, error) {
	var (
		d        model.Document
		status   string
		metadata []byte
		tags     []byte
	)
	if err := s.Scan(
		&d.ID,
		&d.Filename,
		&d.MimeType,
		&d.Size,
		&d.StoragePath,
		&d.ThumbnailPath,
		&d.FolderPath,
		&d.UploadDate,
		&status,
		&d.OCRText,
		&d.OCREngine,
		&d.OCREngineVersion,
		&metadata,
		&tags,
	); err != nil {
		return nil, err
	}
	d.OCRStatus = model.OCRStatus(status)
	d.Metadata = map[string]any{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &d.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	d.Tags = []model.Tag{}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &d.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	return &d, nil
}

// Create inserts a document row and its tag links in one transaction.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	metadata, err := json.Marshal(nonNil(doc.Metadata))
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
		INSERT INTO documents (id, filename, mime_type, size, storage_path, thumbnail_path, folder_path,
			upload_date, ocr_status, ocr_text, ocr_engine, ocr_engine_version, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::jsonb)
	`
	if _, err := tx.ExecContext(ctx, q,
		doc.ID,
		doc.Filename,
		doc.MimeType,
		doc.Size,
		doc.StoragePath,
		doc.ThumbnailPath,
		model.NormalizeFolderPath(doc.FolderPath),
		doc.UploadDate,
		string(doc.OCRStatus),
		doc.OCRText,
		doc.OCREngine,
		doc.OCREngineVersion,
		string(metadata),
	); err != nil {
		return nil, err
	}

	const qTag = `INSERT INTO document_tags (document_id, tag_id, position) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`
	for i, t := range doc.Tags {
		if _, err := tx.ExecContext(ctx, qTag, doc.ID, t.ID, i); err != nil {
			return nil, translate(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r.Get(ctx, doc.ID)
}

// Get fetches a single document by its ID.
func (r *DocumentPostgres) Get(ctx context.Context, id string) (*model.Document, error) {
	q := `SELECT ` + docColumns + ` FROM documents d WHERE d.id = $1`
	d, err := scanDocument(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// Update applies the patch in a single UPDATE statement.
func (r *DocumentPostgres) Update(ctx context.Context, id string, patch repository.DocumentPatch) (*model.Document, error) {
	var (
		sets []string
		args []any
	)
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.FolderPath != nil {
		set("folder_path", model.NormalizeFolderPath(*patch.FolderPath))
	}
	if patch.ThumbnailPath != nil {
		set("thumbnail_path", *patch.ThumbnailPath)
	}
	if patch.OCRStatus != nil {
		set("ocr_status", string(*patch.OCRStatus))
	}
	if patch.OCRText != nil {
		set("ocr_text", *patch.OCRText)
	}
	if patch.OCREngine != nil {
		set("ocr_engine", *patch.OCREngine)
	}
	if patch.OCREngineVersion != nil {
		set("ocr_engine_version", *patch.OCREngineVersion)
	}
	if len(patch.DeleteMetadata) > 0 || len(patch.SetMetadata) > 0 {
		expr := "metadata"
		for _, k := range patch.DeleteMetadata {
			args = append(args, k)
			expr = fmt.Sprintf("(%s - $%d::text)", expr, len(args))
		}
		if len(patch.SetMetadata) > 0 {
			b, err := json.Marshal(patch.SetMetadata)
			if err != nil {
				return nil, fmt.Errorf("encode metadata: %w", err)
			}
			args = append(args, string(b))
			expr = fmt.Sprintf("(%s || $%d::jsonb)", expr, len(args))
		}
		sets = append(sets, "metadata = "+expr)
	}
	if len(sets) == 0 {
		return r.Get(ctx, id)
	}

	args = append(args, id)
	where := fmt.Sprintf("id = $%d", len(args))
	if patch.IfOCRRun != "" {
		args = append(args, patch.IfOCRRun)
		where += fmt.Sprintf(" AND metadata->>'%s' = $%d", model.MetadataOCRRunKey, len(args))
	}
	q := fmt.Sprintf(`UPDATE documents SET %s WHERE %s`, strings.Join(sets, ", "), where)
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if patch.IfOCRRun == "" {
			return nil, repository.ErrNotFound
		}
		// Tell a deleted document apart from a superseded run.
		if _, err := r.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, repository.ErrStaleRun
	}
	return r.Get(ctx, id)
}

// Delete removes a document by ID and returns the removed record.
// Tag links go with it through ON DELETE CASCADE.
func (r *DocumentPostgres) Delete(ctx context.Context, id string) (*model.Document, error) {
	doc, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	const q = `DELETE FROM documents WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, repository.ErrNotFound
	}
	return doc, nil
}

// List returns documents using LIMIT/OFFSET pagination and a total count.
func (r *DocumentPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	var (
		where string
		args  []any
	)
	if pq.FolderPath != "" {
		args = append(args, model.NormalizeFolderPath(pq.FolderPath))
		where = ` WHERE d.folder_path = $1`
	}
	limit := pq.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	return r.page(ctx, where, args, "d.upload_date DESC, d.id DESC", limit, pq.Offset)
}

// Search applies every criterion of q joined with AND.
func (r *DocumentPostgres) Search(ctx context.Context, q repository.SearchQuery) (*repository.PageResult[model.Document], error) {
	q = q.Normalize()
	where, args := searchWhere(q)
	dir := "DESC"
	if q.SortOrder == repository.SortAsc {
		dir = "ASC"
	}
	order := fmt.Sprintf("%s %s, d.id %s", sortColumns[q.SortBy], dir, dir)
	return r.page(ctx, where, args, order, q.Limit, q.Offset)
}

func searchWhere(q repository.SearchQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	in := func(values []string) string {
		ph := make([]string, 0, len(values))
		for _, v := range values {
			ph = append(ph, arg(v))
		}
		return strings.Join(ph, ", ")
	}

	if q.Text != "" {
		p := arg("%" + escapeLike(q.Text) + "%")
		conds = append(conds, fmt.Sprintf("(d.filename ILIKE %s OR d.ocr_text ILIKE %s)", p, p))
	}
	if len(q.Tags) > 0 {
		keys := make([]string, 0, len(q.Tags))
		for _, t := range q.Tags {
			keys = append(keys, model.TagKey(t))
		}
		conds = append(conds, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM document_tags dt JOIN tags t ON t.id = dt.tag_id
			WHERE dt.document_id = d.id AND lower(t.name) IN (%s))`, in(keys)))
	}
	if q.FolderPath != "" {
		conds = append(conds, "d.folder_path = "+arg(q.FolderPath))
	}
	if len(q.MimeTypes) > 0 {
		conds = append(conds, fmt.Sprintf("d.mime_type IN (%s)", in(q.MimeTypes)))
	}
	if q.DateFrom != nil {
		conds = append(conds, "d.upload_date >= "+arg(*q.DateFrom))
	}
	if q.DateTo != nil {
		conds = append(conds, "d.upload_date <= "+arg(*q.DateTo))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *DocumentPostgres) page(ctx context.Context, where string, args []any, order string, limit, offset int) (*repository.PageResult[model.Document], error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents d`+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	if offset < 0 {
		offset = 0
	}
	n := len(args)
	q := fmt.Sprintf(`SELECT %s FROM documents d%s ORDER BY %s LIMIT $%d OFFSET $%d`, docColumns, where, order, n+1, n+2)
	rows, err := r.db.QueryContext(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Document]{
		Items: items,
		Total: total,
	}, nil
}

func (r *DocumentPostgres) FolderCounts(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT folder_path, COUNT(*) FROM documents GROUP BY folder_path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			path string
			n    int
		)
		if err := rows.Scan(&path, &n); err != nil {
			return nil, err
		}
		counts[path] = n
	}
	return counts, rows.Err()
}

func (r *DocumentPostgres) Stats(ctx context.Context) (repository.Stats, error) {
	st := repository.Stats{ByStatus: make(map[model.OCRStatus]int)}
	rows, err := r.db.QueryContext(ctx, `SELECT ocr_status, COUNT(*), COALESCE(SUM(size), 0) FROM documents GROUP BY ocr_status`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			n      int
			size   int64
		)
		if err := rows.Scan(&status, &n, &size); err != nil {
			return st, err
		}
		st.ByStatus[model.OCRStatus(status)] = n
		st.DocumentCount += n
		st.TotalSize += size
	}
	return st, rows.Err()
}

// EnsureTags inserts missing tags and reads back every requested one in a single transaction.
func (r *DocumentPostgres) EnsureTags(ctx context.Context, names []string) ([]model.Tag, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	const qInsert = `INSERT INTO tags (id, name, color) VALUES ($1, $2, $3) ON CONFLICT ((lower(name))) DO NOTHING`
	const qSelect = `SELECT id, name, color FROM tags WHERE lower(name) = $1`

	out := make([]model.Tag, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		key := model.TagKey(name)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if _, err := tx.ExecContext(ctx, qInsert, uuid.NewString(), name, model.DefaultTagColor); err != nil {
			return nil, err
		}
		var t model.Tag
		if err := tx.QueryRowContext(ctx, qSelect, key).Scan(&t.ID, &t.Name, &t.Color); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *DocumentPostgres) CreateTag(ctx context.Context, tag model.Tag) (*model.Tag, error) {
	tag.Name = strings.TrimSpace(tag.Name)
	if tag.Name == "" {
		return nil, fmt.Errorf("tag name is required")
	}
	if tag.ID == "" {
		tag.ID = uuid.NewString()
	}
	if tag.Color == "" {
		tag.Color = model.DefaultTagColor
	}
	const q = `INSERT INTO tags (id, name, color) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING RETURNING id, name, color`
	var out model.Tag
	if err := r.db.QueryRowContext(ctx, q, tag.ID, tag.Name, tag.Color).Scan(&out.ID, &out.Name, &out.Color); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrTagExists
		}
		return nil, err
	}
	return &out, nil
}

func (r *DocumentPostgres) GetTag(ctx context.Context, id string) (*model.Tag, error) {
	return r.oneTag(ctx, `SELECT id, name, color FROM tags WHERE id = $1`, id)
}

func (r *DocumentPostgres) GetTagByName(ctx context.Context, name string) (*model.Tag, error) {
	return r.oneTag(ctx, `SELECT id, name, color FROM tags WHERE lower(name) = $1`, model.TagKey(name))
}

func (r *DocumentPostgres) oneTag(ctx context.Context, q string, arg string) (*model.Tag, error) {
	var t model.Tag
	if err := r.db.QueryRowContext(ctx, q, arg).Scan(&t.ID, &t.Name, &t.Color); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *DocumentPostgres) ListTags(ctx context.Context) ([]model.Tag, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, color FROM tags ORDER BY lower(name), id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Tag, 0)
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *DocumentPostgres) UpdateTag(ctx context.Context, id string, patch repository.TagPatch) (*model.Tag, error) {
	const q = `
		UPDATE tags
		SET name = COALESCE(NULLIF($2, ''), name), color = COALESCE(NULLIF($3, ''), color)
		WHERE id = $1
		RETURNING id, name, color
	`
	var t model.Tag
	err := r.db.QueryRowContext(ctx, q, id, strings.TrimSpace(patch.Name), patch.Color).Scan(&t.ID, &t.Name, &t.Color)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, translate(err)
	}
	return &t, nil
}

func (r *DocumentPostgres) DeleteTag(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *DocumentPostgres) AddTag(ctx context.Context, docID, tagID string) (*model.Document, error) {
	const q = `
		INSERT INTO document_tags (document_id, tag_id, position)
		SELECT $1, $2, COALESCE(MAX(position) + 1, 0) FROM document_tags WHERE document_id = $1
		ON CONFLICT DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, q, docID, tagID); err != nil {
		return nil, translate(err)
	}
	return r.Get(ctx, docID)
}

func (r *DocumentPostgres) RemoveTag(ctx context.Context, docID, tagID string) (*model.Document, error) {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM document_tags WHERE document_id = $1 AND tag_id = $2`, docID, tagID); err != nil {
		return nil, err
	}
	return r.Get(ctx, docID)
}

// translate maps constraint violations onto repository errors.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return repository.ErrTagExists
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %s", repository.ErrNotFound, pgErr.ConstraintName)
		}
	}
	return err
}

// escapeLike escapes LIKE wildcards so user text matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
