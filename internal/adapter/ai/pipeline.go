package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fairyhunter13/ai-survey-analyzer/internal/adapter/observability"
	"github.com/fairyhunter13/ai-survey-analyzer/internal/domain"
)

// completionEndpoint tags LLM telemetry emitted by pipeline runs.
const completionEndpoint = "survey_analysis"

// Pipeline runs one survey through prompt construction, the completion
// service, JSON extraction, and structural validation. It implements
// domain.AnalysisRunner.
type Pipeline struct {
	Client domain.CompletionClient
}

// NewPipeline wires the pipeline around a completion client. The client is
// expected to carry its own retry policy.
func NewPipeline(client domain.CompletionClient) Pipeline {
	return Pipeline{Client: client}
}

// Run executes one full pipeline pass. No partial result is ever returned:
// on any failure the zero AnalysisResult accompanies the classified error.
func (p Pipeline) Run(ctx context.Context, in domain.SurveyInput) (domain.AnalysisResult, error) {
	lg := observability.LoggerFromContext(ctx)
	start := time.Now()

	observability.AnalysesProcessing.Inc()
	defer observability.AnalysesProcessing.Dec()

	systemPrompt, userPrompt := BuildPrompts(in)

	completion, err := p.Client.Complete(ctx, systemPrompt, userPrompt, completionEndpoint)
	if err != nil {
		return domain.AnalysisResult{}, classify(err)
	}

	parsed, err := ExtractJSON(completion.Text)
	if err != nil {
		return domain.AnalysisResult{}, classify(err)
	}

	if v := ValidateAnalysis(parsed); !v.Valid {
		lg.Warn("analysis result rejected",
			slog.Any("reasons", v.Reasons),
			slog.String("model", completion.Model))
		return domain.AnalysisResult{}, fmt.Errorf("%w: %v", domain.ErrValidationFailed, v.Reasons)
	}

	categories, overall := MapAnalysis(parsed)
	elapsed := time.Since(start)
	lg.Info("survey analysis pipeline completed",
		slog.Int("categories", len(categories)),
		slog.Int("tokens_used", completion.TotalTokens),
		slog.Duration("processing_time", elapsed))

	return domain.AnalysisResult{
		Categories:     categories,
		OverallSummary: overall,
		Model:          completion.Model,
		TokensUsed:     completion.TotalTokens,
		ProcessingTime: elapsed,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// classify maps any pipeline-internal error onto the failure taxonomy,
// defaulting to ErrInternal for anything unrecognized.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errorIsAny(err, domain.ErrCompletionFailed, domain.ErrExtractionFailed, domain.ErrValidationFailed):
		return err
	default:
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}
}

func errorIsAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}
