package service

import (
	"context"
	"errors"
	"io"

	"disasterwatch/api/internal/apperr"
	"disasterwatch/api/internal/models"
	"disasterwatch/api/internal/repository"
	"disasterwatch/api/internal/storage"
)

type RetrievalService struct {
	uploads *repository.UploadRepository
	store   storage.ContentStore
}

func NewRetrievalService(uploads *repository.UploadRepository, store storage.ContentStore) *RetrievalService {
	return &RetrievalService{uploads: uploads, store: store}
}

func (s *RetrievalService) Metadata(ctx context.Context, id int64) (models.Upload, error) {
	upload, err := s.uploads.GetByID(ctx, id)
	if err != nil {
		return models.Upload{}, notFoundOr("RetrievalService.Metadata", err)
	}
	return upload, nil
}

func (s *RetrievalService) List(ctx context.Context) ([]models.Upload, error) {
	uploads, err := s.uploads.List(ctx)
	if err != nil {
		return nil, apperr.E(apperr.CodeInternal, "RetrievalService.List", "list uploads", err)
	}
	return uploads, nil
}

// OpenFile only serves plain names from the content store; anything that
// looks like a path is reported as not found.
func (s *RetrievalService) OpenFile(ctx context.Context, filename string) (io.ReadCloser, storage.Info, error) {
	const op = "RetrievalService.OpenFile"

	if !storage.ValidName(filename) {
		return nil, storage.Info{}, apperr.E(apperr.CodeNotFound, op, "File not found", apperr.ErrFileNotFound)
	}

	rc, info, err := s.store.Open(ctx, filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, storage.Info{}, apperr.E(apperr.CodeNotFound, op, "File not found", apperr.ErrFileNotFound)
		}
		return nil, storage.Info{}, apperr.E(apperr.CodeInternal, op, "open file", err)
	}
	return rc, info, nil
}
