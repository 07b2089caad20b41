package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"disasterwatch/api/internal/models"
)

type recordResponse struct {
	ID              int64     `json:"id"`
	Filename        string    `json:"filename"`
	OriginalName    string    `json:"originalname"`
	MimeType        string    `json:"mimetype"`
	Format          string    `json:"format,omitempty"`
	Size            int64     `json:"size"`
	UserID          *int64    `json:"userId"`
	AnalysisResult  *bool     `json:"analysisResult"`
	AnalysisDetails *string   `json:"analysisDetails"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
}

func toRecord(u models.Upload) recordResponse {
	return recordResponse{
		ID:              u.ID,
		Filename:        u.Filename,
		OriginalName:    u.OriginalName,
		MimeType:        u.MimeType,
		Format:          u.Format,
		Size:            u.SizeBytes,
		UserID:          u.UserID,
		AnalysisResult:  u.AnalysisResult,
		AnalysisDetails: u.AnalysisDetails,
		Status:          string(u.Status()),
		CreatedAt:       u.CreatedAt,
	}
}

func (h HandlerSet) ListRecords(c *gin.Context) {
	uploads, err := h.retrievalService.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "Error listing uploads")
		return
	}

	items := make([]recordResponse, 0, len(uploads))
	for _, u := range uploads {
		items = append(items, toRecord(u))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h HandlerSet) GetRecord(c *gin.Context) {
	id, ok := h.parseID(c, "handlers.GetRecord")
	if !ok {
		return
	}

	upload, err := h.retrievalService.Metadata(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "Error loading upload")
		return
	}
	c.JSON(http.StatusOK, toRecord(upload))
}
