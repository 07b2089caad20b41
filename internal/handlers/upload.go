package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"disasterwatch/api/internal/apperr"
	"disasterwatch/api/internal/service"
)

// multipartOverhead allows for boundaries and part headers on top of the
// payload itself.
const multipartOverhead = 1 << 20

type uploadResponse struct {
	Message  string `json:"message"`
	UploadID int64  `json:"uploadId"`
	Filename string `json:"filename"`
}

func (h HandlerSet) Upload(c *gin.Context) {
	const op = "handlers.Upload"

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.uploadService.MaxBytes()+multipartOverhead)

	file, header, err := c.Request.FormFile(h.cfg.Content.FieldName)
	if err != nil {
		switch {
		case isBodyTooLarge(err):
			h.writeError(c, h.uploadService.TooLarge(op), "")
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			h.writeError(c, apperr.E(apperr.CodeInvalidArgument, op, "No file uploaded", apperr.ErrNoFileProvided), "")
		default:
			h.writeError(c, apperr.E(apperr.CodeInvalidArgument, op, "No file uploaded", errors.Join(apperr.ErrNoFileProvided, err)), "")
		}
		return
	}
	defer file.Close()

	result, err := h.uploadService.Upload(c.Request.Context(), service.UploadInput{
		File:         file,
		FieldName:    h.cfg.Content.FieldName,
		OriginalName: header.Filename,
		MimeType:     header.Header.Get("Content-Type"),
		Size:         header.Size,
	})
	if err != nil {
		h.writeError(c, err, "Error uploading file")
		return
	}

	c.JSON(http.StatusCreated, uploadResponse{
		Message:  "File uploaded successfully",
		UploadID: result.Upload.ID,
		Filename: result.Upload.Filename,
	})
}
