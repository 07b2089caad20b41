// Package analysis produces verdicts for uploaded images.
package analysis

import (
	"context"
	"math/rand"

	"disasterwatch/api/internal/models"
)

const (
	AlertDetails  = "Our ML model has detected patterns consistent with a potential flood risk in the analyzed area. The satellite imagery shows signs of excessive water accumulation and terrain vulnerabilities."
	NormalDetails = "Our ML model analysis indicates normal conditions in the captured area. No signs of imminent natural disasters were detected in the satellite imagery."
)

// Evaluator turns a stored upload into a verdict. Implementations must
// return a non-empty Details string whenever err is nil.
type Evaluator interface {
	Evaluate(ctx context.Context, upload models.Upload) (models.Verdict, error)
}

type EvaluatorFunc func(ctx context.Context, upload models.Upload) (models.Verdict, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, upload models.Upload) (models.Verdict, error) {
	return f(ctx, upload)
}

// RandomEvaluator is a placeholder for real inference: it raises an alert
// when Source() > 0.5 and is not reproducible with the default source.
type RandomEvaluator struct {
	Source func() float64
}

func NewRandomEvaluator() *RandomEvaluator {
	return &RandomEvaluator{Source: rand.Float64}
}

func (e *RandomEvaluator) Evaluate(ctx context.Context, _ models.Upload) (models.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return models.Verdict{}, err
	}

	source := e.Source
	if source == nil {
		source = rand.Float64
	}
	return VerdictFor(source() > 0.5), nil
}

func VerdictFor(isAlert bool) models.Verdict {
	if isAlert {
		return models.Verdict{IsAlert: true, Details: AlertDetails}
	}
	return models.Verdict{IsAlert: false, Details: NormalDetails}
}
