package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"docvault/internal/logging"
	"docvault/internal/model"
	"docvault/internal/repository"
)

// TagService manages tags and their association with documents.
type TagService interface {
	Create(ctx context.Context, name, color string) (*model.Tag, error)
	List(ctx context.Context) ([]model.Tag, error)
	Update(ctx context.Context, id, name, color string) (*model.Tag, error)
	// Delete removes the tag from every document as well.
	Delete(ctx context.Context, id string) error
	Attach(ctx context.Context, docID, tagID string) (*model.Document, error)
	Detach(ctx context.Context, docID, tagID string) (*model.Document, error)
}

type tagService struct {
	index repository.DocumentIndex
	log   *logging.Logger
}

func NewTagService(index repository.DocumentIndex, log *logging.Logger) TagService {
	if log == nil {
		log = logging.Discard()
	}
	return &tagService{index: index, log: log.With("tags")}
}

func (s *tagService) Create(ctx context.Context, name, color string) (*model.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrTagNameRequired
	}
	color = strings.TrimSpace(color)
	if color == "" {
		color = model.DefaultTagColor
	}
	tag, err := s.index.CreateTag(ctx, model.Tag{ID: uuid.NewString(), Name: name, Color: color})
	if err != nil {
		return nil, translate(err)
	}
	s.log.Info("tag_created", logging.Fields{"tag_id": tag.ID, "name": tag.Name})
	return tag, nil
}

func (s *tagService) List(ctx context.Context) ([]model.Tag, error) {
	return s.index.ListTags(ctx)
}

func (s *tagService) Update(ctx context.Context, id, name, color string) (*model.Tag, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	tag, err := s.index.UpdateTag(ctx, id, repository.TagPatch{
		Name:  strings.TrimSpace(name),
		Color: strings.TrimSpace(color),
	})
	if err != nil {
		return nil, translate(err)
	}
	return tag, nil
}

func (s *tagService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrIDRequired
	}
	if err := s.index.DeleteTag(ctx, id); err != nil {
		return translate(err)
	}
	s.log.Info("tag_deleted", logging.Fields{"tag_id": id})
	return nil
}

func (s *tagService) Attach(ctx context.Context, docID, tagID string) (*model.Document, error) {
	if docID == "" || tagID == "" {
		return nil, ErrIDRequired
	}
	doc, err := s.index.AddTag(ctx, docID, tagID)
	if err != nil {
		return nil, translate(err)
	}
	return doc, nil
}

func (s *tagService) Detach(ctx context.Context, docID, tagID string) (*model.Document, error) {
	if docID == "" || tagID == "" {
		return nil, ErrIDRequired
	}
	doc, err := s.index.RemoveTag(ctx, docID, tagID)
	if err != nil {
		return nil, translate(err)
	}
	return doc, nil
}
