package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/fairyhunter13/ai-survey-analyzer/internal/adapter/observability"
	"github.com/fairyhunter13/ai-survey-analyzer/internal/domain"
)

// RetryClient decorates a CompletionClient with the retry policy: up to
// MaxAttempts total attempts, waiting BaseDelay * 2^i after failed attempt i.
// No jitter and no per-error differentiation; every failure is retried the
// same way and the last error is surfaced when attempts run out.
type RetryClient struct {
	Inner       domain.CompletionClient
	MaxAttempts int
	BaseDelay   time.Duration
}

// NewRetryClient wires the retry policy around inner. Non-positive
// maxAttempts falls back to a single attempt.
func NewRetryClient(inner domain.CompletionClient, maxAttempts int, baseDelay time.Duration) *RetryClient {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryClient{Inner: inner, MaxAttempts: maxAttempts, BaseDelay: baseDelay}
}

// Complete performs the call with retries. All attempts share the same
// prompts. Context cancellation aborts the wait between attempts.
func (c *RetryClient) Complete(ctx context.Context, systemPrompt, userPrompt, endpoint string) (domain.Completion, error) {
	lg := observability.LoggerFromContext(ctx)

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.BaseDelay
	expo.Multiplier = 2.0
	expo.RandomizationFactor = 0 // deterministic schedule, no jitter
	expo.MaxInterval = c.BaseDelay << 16
	expo.MaxElapsedTime = 0
	expo.Reset()

	var out domain.Completion
	attempt := 0
	op := func() error {
		attempt++
		res, err := c.Inner.Complete(ctx, systemPrompt, userPrompt, endpoint)
		if err != nil {
			lg.Warn("completion attempt failed",
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", c.MaxAttempts),
				slog.String("endpoint", endpoint),
				slog.Any("error", err))
			return err
		}
		out = res
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(c.MaxAttempts-1)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		lg.Error("completion failed after all retries",
			slog.Int("attempts", attempt),
			slog.String("endpoint", endpoint),
			slog.Any("error", err))
		return domain.Completion{}, fmt.Errorf("%w: %v", domain.ErrCompletionFailed, err)
	}
	return out, nil
}
