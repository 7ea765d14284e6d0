// Package domain defines the core entities, error taxonomy, and ports of the
// survey analysis service.
package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNotFound         = errors.New("not found")
	ErrInvalidState     = errors.New("invalid state")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrCompletionFailed = errors.New("completion failed")
	ErrExtractionFailed = errors.New("extraction failed")
	ErrValidationFailed = errors.New("validation failed")
	ErrAuthUnavailable  = errors.New("auth unavailable")
	ErrInternal         = errors.New("internal error")
)

// Question types accepted on submission.
const (
	QuestionTypeMultipleChoice = "multiple_choice"
	QuestionTypeText           = "text"
	QuestionTypeRating         = "rating"
)

// SurveyStatus is the lifecycle state of a submitted survey.
type SurveyStatus string

// Lifecycle states. Completed and Failed are terminal.
const (
	SurveyPending    SurveyStatus = "pending"
	SurveyProcessing SurveyStatus = "processing"
	SurveyCompleted  SurveyStatus = "completed"
	SurveyFailed     SurveyStatus = "failed"
)

// QuestionOption is one selectable option of a multiple-choice question.
type QuestionOption struct {
	Value  string  `json:"value"`
	Label  string  `json:"label"`
	Weight float64 `json:"weight"`
}

// QuestionInput is a question as submitted by the client.
// Invariant: Type == multiple_choice implies non-empty Options.
type QuestionInput struct {
	Text       string
	Type       string
	Category   string
	Weight     float64
	Options    []QuestionOption
	OrderIndex int
}

// AnswerInput references a question by its order index. The order index is
// the join key between questions and answers for the whole submission.
type AnswerInput struct {
	QuestionIndex  int
	SelectedAnswer string
	Weight         float64
}

// SurveyInput is an accepted submission. Immutable once validated: every
// answer maps to an existing question index and counts match 1:1.
type SurveyInput struct {
	Title       string
	Description string
	Questions   []QuestionInput
	Answers     []AnswerInput
}

// Survey is the persisted survey entity, owned by the submitting user.
type Survey struct {
	ID          string
	Title       string
	Description string
	UserID      string
	Status      SurveyStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CategoryAnalysis holds the per-category output of one pipeline run.
type CategoryAnalysis struct {
	Category        string
	Strengths       []string
	Weaknesses      []string
	Recommendations []string
	CategoryScore   *float64
	AnalysisSummary string
}

// AnalysisResult is the validated outcome of a full pipeline run, including
// run metadata. Persisted as a batch: all categories or none.
type AnalysisResult struct {
	Categories     []CategoryAnalysis
	OverallSummary string
	Model          string
	TokensUsed     int
	ProcessingTime time.Duration
	CreatedAt      time.Time
}

// Completion is one response from the external text-completion service.
type Completion struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionClient is the port to the external text-completion service.
// Implementations record timing and token telemetry regardless of outcome.
type CompletionClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt, endpoint string) (Completion, error)
}

// AnalysisRunner executes the full analysis pipeline for one accepted
// submission. Failures come back classified by the error taxonomy:
// ErrCompletionFailed, ErrExtractionFailed, ErrValidationFailed, or
// ErrInternal.
type AnalysisRunner interface {
	Run(ctx context.Context, in SurveyInput) (AnalysisResult, error)
}

// SurveyRepository persists surveys with their questions and answers.
type SurveyRepository interface {
	// Create inserts the survey, its questions, and its answers in a single
	// transaction and returns the new survey id.
	Create(ctx context.Context, in SurveyInput, userID string) (Survey, error)
	Get(ctx context.Context, id, userID string) (Survey, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Survey, error)
	UpdateStatus(ctx context.Context, id string, status SurveyStatus, userID string) error
	// Delete removes the survey; questions, answers, and analysis rows go
	// with it via cascade. Reports ErrNotFound when nothing matched.
	Delete(ctx context.Context, id, userID string) error
}

// AnalysisRepository persists pipeline results.
type AnalysisRepository interface {
	// CompleteWithResults writes all category rows and flips the survey to
	// completed in one transaction. Either everything commits or nothing.
	CompleteWithResults(ctx context.Context, surveyID string, res AnalysisResult) error
	GetBySurvey(ctx context.Context, surveyID string) (AnalysisResult, error)
}

// Principal is the authenticated caller extracted from a bearer credential.
type Principal struct {
	Subject string
	Email   string
	Scopes  []string
}

// HasScope reports whether the principal carries the given scope.
func (p Principal) HasScope(scope string) bool {
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
