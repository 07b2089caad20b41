package models

import "time"

type UploadStatus string

const (
	UploadStatusPending  UploadStatus = "pending"
	UploadStatusAnalyzed UploadStatus = "analyzed"
)

// Upload is the stored metadata and verdict for one submitted image.
// AnalysisResult and AnalysisDetails are either both nil or both set.
type Upload struct {
	ID              int64
	Filename        string
	OriginalName    string
	MimeType        string
	Format          string
	SizeBytes       int64
	UserID          *int64
	AnalysisResult  *bool
	AnalysisDetails *string
	CreatedAt       time.Time
}

func (u Upload) Status() UploadStatus {
	if u.AnalysisResult != nil && u.AnalysisDetails != nil {
		return UploadStatusAnalyzed
	}
	return UploadStatusPending
}

// NewUpload holds the caller-supplied fields of an upload. The store
// assigns ID and CreatedAt.
type NewUpload struct {
	Filename     string
	OriginalName string
	MimeType     string
	Format       string
	SizeBytes    int64
	UserID       *int64
}

type Verdict struct {
	IsAlert bool
	Details string
}
