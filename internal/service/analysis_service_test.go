package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disasterwatch/api/internal/analysis"
	"disasterwatch/api/internal/apperr"
	"disasterwatch/api/internal/events"
	"disasterwatch/api/internal/models"
)

func fixedEvaluator(alert bool) analysis.Evaluator {
	return analysis.EvaluatorFunc(func(context.Context, models.Upload) (models.Verdict, error) {
		return analysis.VerdictFor(alert), nil
	})
}

func newAnalysis(f fixture, e analysis.Evaluator) *AnalysisService {
	return NewAnalysisService(f.uploads, e, AnalysisOptions{
		Now:       func() time.Time { return testNow.Add(time.Minute) },
		Publisher: f.publisher,
	}, zerolog.Nop())
}

func TestUploadThenAnalyzeScenario(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	res, err := f.intake.Upload(ctx, pngInput("test.png", 2048))
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Upload.ID)

	pending, err := f.uploads.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.UploadStatusPending, pending.Status())

	out, err := newAnalysis(f, fixedEvaluator(true)).Analyze(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.UploadID)
	assert.Equal(t, res.Upload.Filename, out.Filename)
	assert.True(t, out.IsAlert)
	assert.Equal(t, analysis.AlertDetails, out.Details)
	assert.Equal(t, testNow.Add(time.Minute), out.AnalyzedAt)

	analyzed, err := f.uploads.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.UploadStatusAnalyzed, analyzed.Status())
	require.NotNil(t, analyzed.AnalysisResult)
	require.NotNil(t, analyzed.AnalysisDetails)
	assert.Equal(t, out.IsAlert, *analyzed.AnalysisResult)
	assert.Equal(t, out.Details, *analyzed.AnalysisDetails)

	assert.Equal(t, []events.Type{events.TypeUploadCreated, events.TypeUploadAnalyzed}, f.publisher.types())
}

func TestAnalyzeUnknownID(t *testing.T) {
	f := newFixture(t, 0)

	_, err := newAnalysis(f, nil).Analyze(context.Background(), 999)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrUploadNotFound)
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
	assert.Equal(t, 0, f.uploads.Count())
}

func TestAnalyzeDefaultEvaluatorPairsFields(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	_, err := f.intake.Upload(ctx, pngInput("a.png", 32))
	require.NoError(t, err)

	svc := newAnalysis(f, nil)
	for i := 0; i < 20; i++ {
		out, err := svc.Analyze(ctx, 1)
		require.NoError(t, err)
		assert.NotEmpty(t, out.Details)

		got, err := f.uploads.GetByID(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, got.AnalysisResult)
		require.NotNil(t, got.AnalysisDetails)
		assert.Equal(t, analysis.VerdictFor(*got.AnalysisResult).Details, *got.AnalysisDetails)
	}
}

func TestAnalyzeOverwritesPreviousVerdict(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	_, err := f.intake.Upload(ctx, pngInput("a.png", 32))
	require.NoError(t, err)

	_, err = newAnalysis(f, fixedEvaluator(true)).Analyze(ctx, 1)
	require.NoError(t, err)
	_, err = newAnalysis(f, fixedEvaluator(false)).Analyze(ctx, 1)
	require.NoError(t, err)

	got, err := f.uploads.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.False(t, *got.AnalysisResult)
	assert.Equal(t, analysis.NormalDetails, *got.AnalysisDetails)
}

func TestAnalyzeEvaluatorFailureLeavesRecordUnchanged(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	_, err := f.intake.Upload(ctx, pngInput("a.png", 32))
	require.NoError(t, err)

	broken := analysis.EvaluatorFunc(func(context.Context, models.Upload) (models.Verdict, error) {
		return models.Verdict{}, errors.New("model offline")
	})
	_, err = newAnalysis(f, broken).Analyze(ctx, 1)
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeInternal))

	got, err := f.uploads.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.UploadStatusPending, got.Status())
}

func TestAnalyzeRejectsEmptyDetails(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	_, err := f.intake.Upload(ctx, pngInput("a.png", 32))
	require.NoError(t, err)

	blank := analysis.EvaluatorFunc(func(context.Context, models.Upload) (models.Verdict, error) {
		return models.Verdict{IsAlert: true}, nil
	})
	_, err = newAnalysis(f, blank).Analyze(ctx, 1)
	require.Error(t, err)

	got, err := f.uploads.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got.AnalysisResult)
	assert.Nil(t, got.AnalysisDetails)
}

func TestConcurrentAnalyzeIsLastWriteWins(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	_, err := f.intake.Upload(ctx, pngInput("a.png", 32))
	require.NoError(t, err)

	svc := newAnalysis(f, nil)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Analyze(ctx, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := f.uploads.GetByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got.AnalysisResult)
	assert.Equal(t, analysis.VerdictFor(*got.AnalysisResult).Details, *got.AnalysisDetails)
}
