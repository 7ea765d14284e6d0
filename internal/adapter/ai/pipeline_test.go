package ai_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-survey-analyzer/internal/adapter/ai"
	"github.com/fairyhunter13/ai-survey-analyzer/internal/domain"
)

const goodCompletion = `{"categories":[{"category":"Communication","strengths":["clear"],"weaknesses":[],"recommendations":["keep it up"],"category_score":90,"analysis_summary":"ok"}],"overall_summary":"solid"}`

// stubCompleter returns a fixed completion or error.
type stubCompleter struct {
	text string
	err  error
}

func (s stubCompleter) Complete(context.Context, string, string, string) (domain.Completion, error) {
	if s.err != nil {
		return domain.Completion{}, s.err
	}
	return domain.Completion{Text: s.text, Model: "stub-model", PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150}, nil
}

func TestPipeline_Success(t *testing.T) {
	t.Parallel()
	p := ai.NewPipeline(stubCompleter{text: goodCompletion})
	res, err := p.Run(context.Background(), sampleInput())
	require.NoError(t, err)
	assert.Len(t, res.Categories, 1)
	assert.Equal(t, "solid", res.OverallSummary)
	assert.Equal(t, "stub-model", res.Model)
	assert.Equal(t, 150, res.TokensUsed)
	assert.False(t, res.CreatedAt.IsZero())
}

func TestPipeline_SuccessWithProseWrapper(t *testing.T) {
	t.Parallel()
	p := ai.NewPipeline(stubCompleter{text: "Here you go:\n" + goodCompletion + "\nHope that helps!"})
	res, err := p.Run(context.Background(), sampleInput())
	require.NoError(t, err)
	assert.Len(t, res.Categories, 1)
}

func TestPipeline_CompletionFailure(t *testing.T) {
	t.Parallel()
	cause := fmt.Errorf("%w: upstream exploded", domain.ErrCompletionFailed)
	p := ai.NewPipeline(stubCompleter{err: cause})
	_, err := p.Run(context.Background(), sampleInput())
	assert.ErrorIs(t, err, domain.ErrCompletionFailed)
}

func TestPipeline_ExtractionFailure(t *testing.T) {
	t.Parallel()
	p := ai.NewPipeline(stubCompleter{text: "I cannot produce JSON today."})
	_, err := p.Run(context.Background(), sampleInput())
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
}

func TestPipeline_ValidationFailure(t *testing.T) {
	t.Parallel()
	p := ai.NewPipeline(stubCompleter{text: `{"categories":[{"category":"X"}]}`})
	_, err := p.Run(context.Background(), sampleInput())
	assert.ErrorIs(t, err, domain.ErrValidationFailed)
}

func TestPipeline_UnknownFailureClassifiedInternal(t *testing.T) {
	t.Parallel()
	p := ai.NewPipeline(stubCompleter{err: errors.New("something odd")})
	_, err := p.Run(context.Background(), sampleInput())
	assert.ErrorIs(t, err, domain.ErrInternal)
	assert.NotErrorIs(t, err, domain.ErrCompletionFailed)
}
