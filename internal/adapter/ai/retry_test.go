package ai_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-survey-analyzer/internal/adapter/ai"
	"github.com/fairyhunter13/ai-survey-analyzer/internal/domain"
)

// fakeCompleter fails a configured number of times before succeeding and
// records the instant of every attempt.
type fakeCompleter struct {
	failures int
	calls    int
	at       []time.Time
}

func (f *fakeCompleter) Complete(_ context.Context, _, _, _ string) (domain.Completion, error) {
	f.calls++
	f.at = append(f.at, time.Now())
	if f.calls <= f.failures {
		return domain.Completion{}, errors.New("upstream unavailable")
	}
	return domain.Completion{Text: `{"ok":true}`, Model: "fake", TotalTokens: 7}, nil
}

func TestRetryClient_SucceedsAfterTwoFailures(t *testing.T) {
	t.Parallel()
	base := 40 * time.Millisecond
	fake := &fakeCompleter{failures: 2}
	rc := ai.NewRetryClient(fake, 3, base)

	out, err := rc.Complete(context.Background(), "sys", "user", "survey_analysis")
	require.NoError(t, err)
	assert.Equal(t, "fake", out.Model)
	require.Equal(t, 3, fake.calls)

	// delay[i] ~= base * 2^i between consecutive attempts
	d0 := fake.at[1].Sub(fake.at[0])
	d1 := fake.at[2].Sub(fake.at[1])
	assert.GreaterOrEqual(t, d0, base)
	assert.Less(t, d0, 2*base)
	assert.GreaterOrEqual(t, d1, 2*base)
	assert.Less(t, d1, 4*base)
}

func TestRetryClient_AllAttemptsFail(t *testing.T) {
	t.Parallel()
	fake := &fakeCompleter{failures: 10}
	rc := ai.NewRetryClient(fake, 3, time.Millisecond)

	_, err := rc.Complete(context.Background(), "sys", "user", "survey_analysis")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCompletionFailed)
	assert.Equal(t, 3, fake.calls)
}

func TestRetryClient_NoBackoffBeforeFirstAttempt(t *testing.T) {
	t.Parallel()
	fake := &fakeCompleter{}
	rc := ai.NewRetryClient(fake, 3, time.Second)

	start := time.Now()
	_, err := rc.Complete(context.Background(), "sys", "user", "tag")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, 1, fake.calls)
}

func TestRetryClient_ContextCancelled(t *testing.T) {
	t.Parallel()
	fake := &fakeCompleter{failures: 10}
	rc := ai.NewRetryClient(fake, 3, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := rc.Complete(ctx, "sys", "user", "tag")
	require.Error(t, err)
	assert.Equal(t, 1, fake.calls)
}

func TestNewRetryClient_ClampsAttempts(t *testing.T) {
	t.Parallel()
	fake := &fakeCompleter{failures: 10}
	rc := ai.NewRetryClient(fake, 0, time.Millisecond)
	_, err := rc.Complete(context.Background(), "s", "u", "t")
	require.Error(t, err)
	assert.Equal(t, 1, fake.calls)
}
