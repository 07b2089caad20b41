package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"disasterwatch/api/internal/apperr"
)

// isoMillis matches the millisecond precision JavaScript clients expect.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

type analyzeResponse struct {
	UploadID int64  `json:"uploadId"`
	Filename string `json:"filename"`
	IsAlert  bool   `json:"isAlert"`
	Details  string `json:"details"`
	Date     string `json:"date"`
}

func (h HandlerSet) Analyze(c *gin.Context) {
	id, ok := h.parseID(c, "handlers.Analyze")
	if !ok {
		return
	}

	result, err := h.analysisService.Analyze(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "Error analyzing image")
		return
	}

	c.JSON(http.StatusOK, analyzeResponse{
		UploadID: result.UploadID,
		Filename: result.Filename,
		IsAlert:  result.IsAlert,
		Details:  result.Details,
		Date:     result.AnalyzedAt.UTC().Format(isoMillis),
	})
}

func (h HandlerSet) parseID(c *gin.Context, op string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.writeError(c, apperr.E(apperr.CodeInvalidArgument, op, "Invalid upload ID", apperr.ErrInvalidID), "")
		return 0, false
	}
	return id, true
}
