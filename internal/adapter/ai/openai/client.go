// Package openai implements the completion client against an
// OpenAI-compatible chat completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/ai-survey-analyzer/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-survey-analyzer/internal/adapter/observability"
	"github.com/fairyhunter13/ai-survey-analyzer/internal/config"
	"github.com/fairyhunter13/ai-survey-analyzer/internal/domain"
)

// Client calls the configured chat completions endpoint. One Complete call
// is one network request; retries live in the ai.RetryClient decorator.
type Client struct {
	cfg     config.Config
	hc      *http.Client
	counter *tokencount.Counter
}

// New constructs a completion client with the configured timeout and an
// OTel-instrumented transport.
func New(cfg config.Config) *Client {
	return &Client{
		cfg: cfg,
		hc: &http.Client{
			Timeout:   cfg.OpenAITimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		counter: tokencount.NewCounter(),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// readSnippet returns up to n bytes of r for error messages.
func readSnippet(r io.Reader, n int64) string {
	b, _ := io.ReadAll(io.LimitReader(r, n))
	return string(b)
}

// Complete performs one chat completion call. Timing and token telemetry are
// emitted for both success and failure, tagged by model and endpoint.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt, endpoint string) (domain.Completion, error) {
	if c.cfg.OpenAIAPIKey == "" {
		return domain.Completion{}, fmt.Errorf("%w: OPENAI_API_KEY missing", domain.ErrInvalidArgument)
	}

	lg := observability.LoggerFromContext(ctx)
	start := time.Now()
	out, err := c.complete(ctx, systemPrompt, userPrompt)
	dur := time.Since(start)

	model := c.cfg.OpenAIModel
	if out.Model != "" {
		model = out.Model
	}
	if err != nil {
		observability.RecordLLMRequest(model, endpoint, "error", dur)
		lg.Error("llm completion failed",
			slog.String("model", model),
			slog.String("endpoint", endpoint),
			slog.Duration("duration", dur),
			slog.Any("error", err))
		return domain.Completion{}, err
	}

	observability.RecordLLMRequest(model, endpoint, "success", dur)
	observability.RecordLLMTokens(model, endpoint, out.PromptTokens, out.CompletionTokens, out.TotalTokens)
	lg.Info("llm completion successful",
		slog.String("model", model),
		slog.String("endpoint", endpoint),
		slog.Duration("duration", dur),
		slog.Int("total_tokens", out.TotalTokens))
	return out, nil
}

func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string) (domain.Completion, error) {
	body := chatRequest{
		Model: c.cfg.OpenAIModel,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: c.cfg.OpenAITemperature,
		MaxTokens:   c.cfg.OpenAIMaxTokens,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return domain.Completion{}, fmt.Errorf("op=openai.marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OpenAIBaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return domain.Completion{}, fmt.Errorf("op=openai.request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.OpenAIAPIKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return domain.Completion{}, fmt.Errorf("op=openai.call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return domain.Completion{}, fmt.Errorf("op=openai.call: status=%d body=%s", resp.StatusCode, readSnippet(resp.Body, 512))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return domain.Completion{}, fmt.Errorf("op=openai.decode: %w", err)
	}
	if len(cr.Choices) == 0 {
		return domain.Completion{}, fmt.Errorf("op=openai.decode: no choices in response")
	}

	out := domain.Completion{
		Text:             cr.Choices[0].Message.Content,
		Model:            cr.Model,
		PromptTokens:     cr.Usage.PromptTokens,
		CompletionTokens: cr.Usage.CompletionTokens,
		TotalTokens:      cr.Usage.TotalTokens,
	}
	if out.Model == "" {
		out.Model = c.cfg.OpenAIModel
	}
	// Some OpenAI-compatible providers omit usage; estimate with tiktoken so
	// token telemetry and persisted counts stay meaningful.
	if out.TotalTokens == 0 {
		out.PromptTokens = c.counter.CountChatTokens(systemPrompt, userPrompt, out.Model)
		out.CompletionTokens = c.counter.CountTokens(out.Text, out.Model)
		out.TotalTokens = out.PromptTokens + out.CompletionTokens
	}
	return out, nil
}
