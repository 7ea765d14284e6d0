package ai

import (
	"fmt"

	"github.com/fairyhunter13/ai-survey-analyzer/internal/domain"
)

// Verdict is the outcome of structural validation of an extracted analysis
// object. Reasons list every defect found, not just the first.
type Verdict struct {
	Valid   bool
	Reasons []string
}

func (v *Verdict) reject(format string, args ...any) {
	v.Valid = false
	v.Reasons = append(v.Reasons, fmt.Sprintf(format, args...))
}

// ValidateAnalysis checks an extracted object against the shape requested by
// the prompt: a non-empty "categories" array whose elements each carry
// "category" and "analysis_summary", plus a top-level "overall_summary".
// Validation is structural only; value ranges are not checked here.
func ValidateAnalysis(parsed map[string]any) Verdict {
	v := Verdict{Valid: true}
	if parsed == nil {
		v.reject("analysis result is empty")
		return v
	}

	if _, ok := parsed["overall_summary"]; !ok {
		v.reject("missing required field: overall_summary")
	}

	raw, ok := parsed["categories"]
	if !ok {
		v.reject("missing required field: categories")
		return v
	}
	cats, ok := raw.([]any)
	if !ok || len(cats) == 0 {
		v.reject("categories must be a non-empty array")
		return v
	}
	for i, c := range cats {
		obj, ok := c.(map[string]any)
		if !ok {
			v.reject("categories[%d] is not an object", i)
			continue
		}
		if _, ok := obj["category"]; !ok {
			v.reject("categories[%d] missing required field: category", i)
		}
		if _, ok := obj["analysis_summary"]; !ok {
			v.reject("categories[%d] missing required field: analysis_summary", i)
		}
	}
	return v
}

// MapAnalysis converts a validated object into domain category results.
// Optional fields default to empty; ValidateAnalysis must have passed first.
func MapAnalysis(parsed map[string]any) ([]domain.CategoryAnalysis, string) {
	cats, _ := parsed["categories"].([]any)
	out := make([]domain.CategoryAnalysis, 0, len(cats))
	for _, c := range cats {
		obj, ok := c.(map[string]any)
		if !ok {
			continue
		}
		ca := domain.CategoryAnalysis{
			Category:        stringField(obj, "category"),
			Strengths:       stringSlice(obj, "strengths"),
			Weaknesses:      stringSlice(obj, "weaknesses"),
			Recommendations: stringSlice(obj, "recommendations"),
			AnalysisSummary: stringField(obj, "analysis_summary"),
		}
		if f, ok := obj["category_score"].(float64); ok {
			ca.CategoryScore = &f
		}
		out = append(out, ca)
	}
	overall, _ := parsed["overall_summary"].(string)
	return out, overall
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func stringSlice(obj map[string]any, key string) []string {
	raw, ok := obj[key].([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
