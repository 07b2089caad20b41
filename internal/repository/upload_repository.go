package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"disasterwatch/api/internal/models"
)

var ErrUploadNotFound = errors.New("upload not found")

// UploadRepository keeps upload records in process memory. Ids start at 1,
// increase monotonically and are never reused. All methods are safe for
// concurrent use and hand out copies of the stored records.
type UploadRepository struct {
	mu      sync.RWMutex
	nextID  int64
	uploads map[int64]models.Upload
	order   []int64
	now     func() time.Time
}

func NewUploadRepository(now func() time.Time) *UploadRepository {
	if now == nil {
		now = time.Now
	}
	return &UploadRepository{
		nextID:  1,
		uploads: make(map[int64]models.Upload),
		now:     now,
	}
}

func (r *UploadRepository) Create(ctx context.Context, in models.NewUpload) (models.Upload, error) {
	if err := ctx.Err(); err != nil {
		return models.Upload{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	upload := models.Upload{
		ID:           r.nextID,
		Filename:     in.Filename,
		OriginalName: in.OriginalName,
		MimeType:     in.MimeType,
		Format:       in.Format,
		SizeBytes:    in.SizeBytes,
		UserID:       cloneInt64(in.UserID),
		CreatedAt:    r.now().UTC(),
	}
	r.nextID++
	r.uploads[upload.ID] = upload
	r.order = append(r.order, upload.ID)

	return clone(upload), nil
}

func (r *UploadRepository) GetByID(ctx context.Context, id int64) (models.Upload, error) {
	if err := ctx.Err(); err != nil {
		return models.Upload{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	upload, ok := r.uploads[id]
	if !ok {
		return models.Upload{}, ErrUploadNotFound
	}
	return clone(upload), nil
}

// UpdateAnalysis replaces both analysis fields together. Repeated calls
// overwrite the previous verdict; the last writer wins.
func (r *UploadRepository) UpdateAnalysis(ctx context.Context, id int64, result bool, details string) (models.Upload, error) {
	if err := ctx.Err(); err != nil {
		return models.Upload{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	upload, ok := r.uploads[id]
	if !ok {
		return models.Upload{}, ErrUploadNotFound
	}
	upload.AnalysisResult = &result
	upload.AnalysisDetails = &details
	r.uploads[id] = upload

	return clone(upload), nil
}

// List returns every record in insertion order.
func (r *UploadRepository) List(ctx context.Context) ([]models.Upload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	uploads := make([]models.Upload, 0, len(r.order))
	for _, id := range r.order {
		uploads = append(uploads, clone(r.uploads[id]))
	}
	return uploads, nil
}

func (r *UploadRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func clone(u models.Upload) models.Upload {
	u.UserID = cloneInt64(u.UserID)
	if u.AnalysisResult != nil {
		v := *u.AnalysisResult
		u.AnalysisResult = &v
	}
	if u.AnalysisDetails != nil {
		v := *u.AnalysisDetails
		u.AnalysisDetails = &v
	}
	return u
}

func cloneInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
