package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"disasterwatch/api/internal/analysis"
	"disasterwatch/api/internal/apperr"
	"disasterwatch/api/internal/events"
	"disasterwatch/api/internal/metrics"
	"disasterwatch/api/internal/repository"
)

type AnalysisResult struct {
	UploadID   int64
	Filename   string
	IsAlert    bool
	Details    string
	AnalyzedAt time.Time
}

type AnalysisOptions struct {
	Now       func() time.Time
	Publisher events.Publisher
	Metrics   *metrics.Collector
}

type AnalysisService struct {
	uploads   *repository.UploadRepository
	evaluator analysis.Evaluator
	publisher events.Publisher
	metrics   *metrics.Collector
	now       func() time.Time
	log       zerolog.Logger
}

func NewAnalysisService(uploads *repository.UploadRepository, evaluator analysis.Evaluator, opts AnalysisOptions, log zerolog.Logger) *AnalysisService {
	if evaluator == nil {
		evaluator = analysis.NewRandomEvaluator()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NopPublisher{}
	}
	return &AnalysisService{
		uploads:   uploads,
		evaluator: evaluator,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		now:       opts.Now,
		log:       log,
	}
}

// Analyze evaluates the upload and overwrites any earlier verdict. A
// failure leaves the stored record untouched.
func (s *AnalysisService) Analyze(ctx context.Context, uploadID int64) (AnalysisResult, error) {
	const op = "AnalysisService.Analyze"

	upload, err := s.uploads.GetByID(ctx, uploadID)
	if err != nil {
		return AnalysisResult{}, notFoundOr(op, err)
	}

	verdict, err := s.evaluator.Evaluate(ctx, upload)
	if err != nil {
		return AnalysisResult{}, apperr.E(apperr.CodeInternal, op, "evaluate upload", err)
	}
	if verdict.Details == "" {
		return AnalysisResult{}, apperr.E(apperr.CodeInternal, op, "evaluator returned empty details", nil)
	}

	updated, err := s.uploads.UpdateAnalysis(ctx, uploadID, verdict.IsAlert, verdict.Details)
	if err != nil {
		return AnalysisResult{}, notFoundOr(op, err)
	}

	result := AnalysisResult{
		UploadID:   updated.ID,
		Filename:   updated.Filename,
		IsAlert:    verdict.IsAlert,
		Details:    verdict.Details,
		AnalyzedAt: s.now().UTC(),
	}

	s.metrics.VerdictRecorded(result.IsAlert)
	s.log.Info().
		Int64("upload_id", result.UploadID).
		Bool("is_alert", result.IsAlert).
		Msg("upload analyzed")

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.publisher.Publish(publishCtx, events.Event{
		Type:       events.TypeUploadAnalyzed,
		UploadID:   result.UploadID,
		Filename:   result.Filename,
		OccurredAt: result.AnalyzedAt,
		Data:       map[string]any{"isAlert": result.IsAlert},
	}); err != nil {
		s.log.Warn().Err(err).Str("op", op).Int64("upload_id", result.UploadID).Msg("publish event failed")
	}

	return result, nil
}

func notFoundOr(op string, err error) error {
	if errors.Is(err, repository.ErrUploadNotFound) {
		return apperr.E(apperr.CodeNotFound, op, "Upload not found", apperr.ErrUploadNotFound)
	}
	return apperr.E(apperr.CodeInternal, op, "load upload", err)
}
