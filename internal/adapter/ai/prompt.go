// Package ai contains the analysis pipeline: prompt construction, response
// extraction, response validation, and the composition that runs them against
// the completion client, plus the retry decorator for that client.
package ai

import (
	"fmt"
	"strings"

	"github.com/fairyhunter13/ai-survey-analyzer/internal/domain"
)

// systemPrompt sets the analyst persona and the output contract. The JSON
// shape requested here must stay in sync with ValidateAnalysis.
const systemPrompt = `You are an expert performance analyst specializing in survey data analysis.
Your task is to analyze survey responses and provide insights about the respondent's strengths and weaknesses across different categories.

Key responsibilities:
1. Analyze survey questions and answers objectively
2. Identify patterns in responses
3. Categorize findings by question categories
4. Provide actionable insights and recommendations
5. Maintain a professional and constructive tone

Analysis guidelines:
- Focus on behavioral and performance patterns
- Consider question weights and answer weights
- Provide specific, actionable feedback
- Balance strengths and areas for improvement
- Use evidence from the survey responses to support conclusions

Output format:
- Provide analysis in JSON format
- Include strengths, weaknesses, and recommendations for each category
- Provide an overall summary
- Be specific and actionable in recommendations`

// BuildPrompts turns an accepted survey into the system and user prompts for
// the completion service. Pure and deterministic: categories appear in
// first-seen question order, questions in submission order within each.
//
// A question whose order index has no matching answer is omitted from the
// prompt. Acceptance validation already guarantees a 1:1 mapping, so the
// omission only matters for inputs constructed in code.
func BuildPrompts(in domain.SurveyInput) (string, string) {
	answers := make(map[int]domain.AnswerInput, len(in.Answers))
	for _, a := range in.Answers {
		if _, ok := answers[a.QuestionIndex]; !ok {
			answers[a.QuestionIndex] = a
		}
	}

	order := make([]string, 0)
	grouped := make(map[string][]string)
	for _, q := range in.Questions {
		a, ok := answers[q.OrderIndex]
		if !ok {
			continue
		}
		if _, seen := grouped[q.Category]; !seen {
			order = append(order, q.Category)
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "- Question: %s\n", q.Text)
		fmt.Fprintf(&sb, "  Type: %s | Question weight: %.1f\n", q.Type, q.Weight)
		if len(q.Options) > 0 {
			sb.WriteString("  Options:")
			for _, opt := range q.Options {
				fmt.Fprintf(&sb, " [%s: %s (weight %.1f)]", opt.Value, opt.Label, opt.Weight)
			}
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "  Selected answer: %s (answer weight %.1f)", a.SelectedAnswer, a.Weight)
		grouped[q.Category] = append(grouped[q.Category], sb.String())
	}

	var b strings.Builder
	b.WriteString("Please analyze the following survey data and provide a comprehensive performance analysis.\n\n")
	b.WriteString("Survey Information:\n")
	fmt.Fprintf(&b, "- Title: %s\n", in.Title)
	if in.Description != "" {
		fmt.Fprintf(&b, "- Description: %s\n", in.Description)
	}
	fmt.Fprintf(&b, "- Total Questions: %d\n", len(in.Questions))
	fmt.Fprintf(&b, "- Categories: %s\n\n", strings.Join(order, ", "))

	b.WriteString("Responses by category:\n\n")
	for _, cat := range order {
		fmt.Fprintf(&b, "Category: %s\n", cat)
		for _, line := range grouped[cat] {
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(`Analysis Requirements:
1. Group findings by the categories listed above.
2. For each category, consider question weights, answer weights, and response patterns.
3. For each category provide strengths, weaknesses, specific recommendations, a numerical score (0-100), and a detailed analysis summary.
4. Provide an overall summary highlighting the strongest and weakest areas with prioritized improvement suggestions.

Please format your response as valid JSON with the following structure:
{
  "categories": [
    {
      "category": "category_name",
      "strengths": ["strength1", "strength2"],
      "weaknesses": ["weakness1", "weakness2"],
      "recommendations": ["rec1", "rec2"],
      "category_score": 85.5,
      "analysis_summary": "Detailed analysis of this category..."
    }
  ],
  "overall_summary": "Comprehensive summary across all categories..."
}`)

	return systemPrompt, b.String()
}
