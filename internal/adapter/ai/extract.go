package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fairyhunter13/ai-survey-analyzer/internal/domain"
)

// ExtractJSON locates and parses the JSON object embedded in raw completion
// output. It first attempts a direct parse; if that fails it slices from the
// first '{' to the last '}' and parses the slice. Models that wrap JSON in
// prose or code fences are handled by the slice step.
//
// Known limitation: the slice is positional, not brace-balanced. Stray '{'
// or '}' literals outside the real JSON block can mis-slice the candidate.
func ExtractJSON(raw string) (map[string]any, error) {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
		return parsed, nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("%w: no valid JSON found in response", domain.ErrExtractionFailed)
	}
	candidate := raw[start : end+1]
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return nil, fmt.Errorf("%w: no valid JSON found in response", domain.ErrExtractionFailed)
	}
	return parsed, nil
}
