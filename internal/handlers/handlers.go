package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"disasterwatch/api/internal/analysis"
	"disasterwatch/api/internal/apperr"
	"disasterwatch/api/internal/config"
	"disasterwatch/api/internal/events"
	"disasterwatch/api/internal/ids"
	"disasterwatch/api/internal/metrics"
	"disasterwatch/api/internal/middleware"
	"disasterwatch/api/internal/repository"
	"disasterwatch/api/internal/service"
	"disasterwatch/api/internal/storage"
)

// Deps are the collaborators shared by every handler. Evaluator, Namer and
// Now may be left zero to get the production defaults.
type Deps struct {
	Uploads   *repository.UploadRepository
	Store     storage.ContentStore
	Publisher events.Publisher
	Evaluator analysis.Evaluator
	Metrics   *metrics.Collector
	Namer     ids.Namer
	Now       func() time.Time
}

type HandlerSet struct {
	log              zerolog.Logger
	cfg              *config.AppConfig
	uploadService    *service.UploadService
	analysisService  *service.AnalysisService
	retrievalService *service.RetrievalService
	store            storage.ContentStore
	publisher        events.Publisher
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, deps Deps) HandlerSet {
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}

	upload := service.NewUploadService(deps.Uploads, deps.Store, service.UploadOptions{
		MaxBytes:  cfg.Content.MaxBytes,
		FieldName: cfg.Content.FieldName,
		Namer:     deps.Namer,
		Publisher: deps.Publisher,
		Metrics:   deps.Metrics,
	}, log.With().Str("component", "intake").Logger())

	analyze := service.NewAnalysisService(deps.Uploads, deps.Evaluator, service.AnalysisOptions{
		Now:       deps.Now,
		Publisher: deps.Publisher,
		Metrics:   deps.Metrics,
	}, log.With().Str("component", "analysis").Logger())

	return HandlerSet{
		log:              log,
		cfg:              cfg,
		uploadService:    upload,
		analysisService:  analyze,
		retrievalService: service.NewRetrievalService(deps.Uploads, deps.Store),
		store:            deps.Store,
		publisher:        deps.Publisher,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	router.POST("/upload", h.Upload)
	router.POST("/analyze/:id", h.Analyze)
	router.GET("/uploads/:filename", h.GetFile)

	records := router.Group("/records")
	records.GET("", h.ListRecords)
	records.GET("/:id", h.GetRecord)
}

type errorResponse struct {
	Message string      `json:"message"`
	Code    apperr.Code `json:"code"`
}

// writeError renders err with the status its code maps to. Internal errors
// are logged and replaced by fallback.
func (h HandlerSet) writeError(c *gin.Context, err error, fallback string) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().
			Err(err).
			Str("path", c.Request.URL.Path).
			Str("request_id", c.GetString(middleware.RequestIDHeader)).
			Msg("request failed")
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorResponse{
		Message: apperr.PublicMessage(err, fallback),
		Code:    apperr.CodeOf(err),
	})
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
