// Package memory is the in-process DocumentIndex used by default and in tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"docvault/internal/model"
	"docvault/internal/repository"
)

const defaultListLimit = 100

// record is the stored form of a document. Tags are kept as ids and resolved on
// read so tag renames show up everywhere.
type record struct {
	doc    model.Document
	tagIDs []string
}

// Index keeps documents and tags in maps guarded by a single RWMutex.
type Index struct {
	mu       sync.RWMutex
	docs     map[string]*record
	tags     map[string]model.Tag
	tagByKey map[string]string
}

// New creates an empty Index.
func New() *Index {
	return &Index{
		docs:     make(map[string]*record),
		tags:     make(map[string]model.Tag),
		tagByKey: make(map[string]string),
	}
}

var _ repository.DocumentIndex = (*Index)(nil)

func (ix *Index) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	if doc == nil || doc.ID == "" {
		return nil, fmt.Errorf("document id is required")
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, ok := ix.docs[doc.ID]; ok {
		return nil, fmt.Errorf("document %s already exists", doc.ID)
	}
	rec := &record{doc: *doc.Clone()}
	for _, t := range doc.Tags {
		if _, ok := ix.tags[t.ID]; !ok {
			return nil, fmt.Errorf("tag %s: %w", t.ID, repository.ErrNotFound)
		}
		if !contains(rec.tagIDs, t.ID) {
			rec.tagIDs = append(rec.tagIDs, t.ID)
		}
	}
	rec.doc.FolderPath = model.NormalizeFolderPath(rec.doc.FolderPath)
	rec.doc.Tags = nil
	ix.docs[doc.ID] = rec
	return ix.view(rec), nil
}

func (ix *Index) Get(ctx context.Context, id string) (*model.Document, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	rec, ok := ix.docs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return ix.view(rec), nil
}

func (ix *Index) Update(ctx context.Context, id string, patch repository.DocumentPatch) (*model.Document, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	rec, ok := ix.docs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	d := &rec.doc
	if patch.IfOCRRun != "" {
		if run, _ := d.Metadata[model.MetadataOCRRunKey].(string); run != patch.IfOCRRun {
			return nil, repository.ErrStaleRun
		}
	}
	if patch.FolderPath != nil {
		d.FolderPath = model.NormalizeFolderPath(*patch.FolderPath)
	}
	if patch.ThumbnailPath != nil {
		d.ThumbnailPath = *patch.ThumbnailPath
	}
	if patch.OCRStatus != nil {
		d.OCRStatus = *patch.OCRStatus
	}
	if patch.OCRText != nil {
		d.OCRText = *patch.OCRText
	}
	if patch.OCREngine != nil {
		d.OCREngine = *patch.OCREngine
	}
	if patch.OCREngineVersion != nil {
		d.OCREngineVersion = *patch.OCREngineVersion
	}
	if len(patch.DeleteMetadata) > 0 || len(patch.SetMetadata) > 0 {
		md := make(map[string]any, len(d.Metadata)+len(patch.SetMetadata))
		for k, v := range d.Metadata {
			md[k] = v
		}
		for _, k := range patch.DeleteMetadata {
			delete(md, k)
		}
		for k, v := range patch.SetMetadata {
			md[k] = v
		}
		d.Metadata = md
	}
	return ix.view(rec), nil
}

func (ix *Index) Delete(ctx context.Context, id string) (*model.Document, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	rec, ok := ix.docs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(ix.docs, id)
	return ix.view(rec), nil
}

func (ix *Index) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	folder := ""
	if pq.FolderPath != "" {
		folder = model.NormalizeFolderPath(pq.FolderPath)
	}
	limit := pq.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	matched := make([]*record, 0, len(ix.docs))
	for _, rec := range ix.docs {
		if folder != "" && rec.doc.FolderPath != folder {
			continue
		}
		matched = append(matched, rec)
	}
	sortRecords(matched, repository.SortUploadDate, repository.SortDesc)
	return ix.page(matched, pq.Offset, limit), nil
}

func (ix *Index) Search(ctx context.Context, q repository.SearchQuery) (*repository.PageResult[model.Document], error) {
	q = q.Normalize()
	text := strings.ToLower(q.Text)
	tagKeys := make(map[string]struct{}, len(q.Tags))
	for _, t := range q.Tags {
		tagKeys[model.TagKey(t)] = struct{}{}
	}
	mimes := make(map[string]struct{}, len(q.MimeTypes))
	for _, m := range q.MimeTypes {
		mimes[m] = struct{}{}
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	matched := make([]*record, 0)
	for _, rec := range ix.docs {
		d := &rec.doc
		if text != "" &&
			!strings.Contains(strings.ToLower(d.Filename), text) &&
			!strings.Contains(strings.ToLower(d.OCRText), text) {
			continue
		}
		if len(tagKeys) > 0 && !ix.hasAnyTag(rec, tagKeys) {
			continue
		}
		if q.FolderPath != "" && d.FolderPath != q.FolderPath {
			continue
		}
		if len(mimes) > 0 {
			if _, ok := mimes[d.MimeType]; !ok {
				continue
			}
		}
		if q.DateFrom != nil && d.UploadDate.Before(*q.DateFrom) {
			continue
		}
		if q.DateTo != nil && d.UploadDate.After(*q.DateTo) {
			continue
		}
		matched = append(matched, rec)
	}
	sortRecords(matched, q.SortBy, q.SortOrder)
	return ix.page(matched, q.Offset, q.Limit), nil
}

func (ix *Index) FolderCounts(ctx context.Context) (map[string]int, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	counts := make(map[string]int)
	for _, rec := range ix.docs {
		counts[rec.doc.FolderPath]++
	}
	return counts, nil
}

func (ix *Index) Stats(ctx context.Context) (repository.Stats, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	st := repository.Stats{ByStatus: make(map[model.OCRStatus]int)}
	for _, rec := range ix.docs {
		st.DocumentCount++
		st.TotalSize += rec.doc.Size
		st.ByStatus[rec.doc.OCRStatus]++
	}
	return st, nil
}

func (ix *Index) EnsureTags(ctx context.Context, names []string) ([]model.Tag, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
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
		if id, ok := ix.tagByKey[key]; ok {
			out = append(out, ix.tags[id])
			continue
		}
		t := model.Tag{ID: uuid.NewString(), Name: name, Color: model.DefaultTagColor}
		ix.tags[t.ID] = t
		ix.tagByKey[key] = t.ID
		out = append(out, t)
	}
	return out, nil
}

func (ix *Index) CreateTag(ctx context.Context, tag model.Tag) (*model.Tag, error) {
	tag.Name = strings.TrimSpace(tag.Name)
	key := model.TagKey(tag.Name)
	if key == "" {
		return nil, fmt.Errorf("tag name is required")
	}
	if tag.ID == "" {
		tag.ID = uuid.NewString()
	}
	if tag.Color == "" {
		tag.Color = model.DefaultTagColor
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.tagByKey[key]; ok {
		return nil, repository.ErrTagExists
	}
	if _, ok := ix.tags[tag.ID]; ok {
		return nil, repository.ErrTagExists
	}
	ix.tags[tag.ID] = tag
	ix.tagByKey[key] = tag.ID
	return &tag, nil
}

func (ix *Index) GetTag(ctx context.Context, id string) (*model.Tag, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	t, ok := ix.tags[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (ix *Index) GetTagByName(ctx context.Context, name string) (*model.Tag, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	id, ok := ix.tagByKey[model.TagKey(name)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	t := ix.tags[id]
	return &t, nil
}

func (ix *Index) ListTags(ctx context.Context) ([]model.Tag, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]model.Tag, 0, len(ix.tags))
	for _, t := range ix.tags {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		ki, kj := model.TagKey(out[i].Name), model.TagKey(out[j].Name)
		if ki != kj {
			return ki < kj
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (ix *Index) UpdateTag(ctx context.Context, id string, patch repository.TagPatch) (*model.Tag, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	t, ok := ix.tags[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if name := strings.TrimSpace(patch.Name); name != "" {
		oldKey, newKey := model.TagKey(t.Name), model.TagKey(name)
		if other, taken := ix.tagByKey[newKey]; taken && other != id {
			return nil, repository.ErrTagExists
		}
		delete(ix.tagByKey, oldKey)
		ix.tagByKey[newKey] = id
		t.Name = name
	}
	if patch.Color != "" {
		t.Color = patch.Color
	}
	ix.tags[id] = t
	return &t, nil
}

func (ix *Index) DeleteTag(ctx context.Context, id string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	t, ok := ix.tags[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(ix.tags, id)
	delete(ix.tagByKey, model.TagKey(t.Name))
	for _, rec := range ix.docs {
		rec.tagIDs = remove(rec.tagIDs, id)
	}
	return nil
}

func (ix *Index) AddTag(ctx context.Context, docID, tagID string) (*model.Document, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	rec, ok := ix.docs[docID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if _, ok := ix.tags[tagID]; !ok {
		return nil, repository.ErrNotFound
	}
	if !contains(rec.tagIDs, tagID) {
		rec.tagIDs = append(rec.tagIDs, tagID)
	}
	return ix.view(rec), nil
}

func (ix *Index) RemoveTag(ctx context.Context, docID, tagID string) (*model.Document, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	rec, ok := ix.docs[docID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	rec.tagIDs = remove(rec.tagIDs, tagID)
	return ix.view(rec), nil
}

// view builds a detached copy with resolved tags. Callers hold the lock.
func (ix *Index) view(rec *record) *model.Document {
	out := rec.doc.Clone()
	out.Tags = make([]model.Tag, 0, len(rec.tagIDs))
	for _, id := range rec.tagIDs {
		if t, ok := ix.tags[id]; ok {
			out.Tags = append(out.Tags, t)
		}
	}
	return out
}

func (ix *Index) hasAnyTag(rec *record, keys map[string]struct{}) bool {
	for _, id := range rec.tagIDs {
		if t, ok := ix.tags[id]; ok {
			if _, hit := keys[model.TagKey(t.Name)]; hit {
				return true
			}
		}
	}
	return false
}

func (ix *Index) page(recs []*record, offset, limit int) *repository.PageResult[model.Document] {
	res := &repository.PageResult[model.Document]{Items: []model.Document{}, Total: len(recs)}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(recs) {
		return res
	}
	end := min(offset+limit, len(recs))
	for _, rec := range recs[offset:end] {
		res.Items = append(res.Items, *ix.view(rec))
	}
	return res
}

// sortRecords orders by field, breaking ties by id in the same direction.
func sortRecords(recs []*record, field, order string) {
	desc := order == repository.SortDesc
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := &recs[i].doc, &recs[j].doc
		var c int
		switch field {
		case repository.SortFilename:
			c = strings.Compare(a.Filename, b.Filename)
		case repository.SortSize:
			c = cmpInt64(a.Size, b.Size)
		default:
			c = a.UploadDate.Compare(b.UploadDate)
		}
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
