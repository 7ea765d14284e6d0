// Package usecase contains application business logic services.
package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fairyhunter13/ai-survey-analyzer/internal/domain"
)

// Pagination bounds for listing surveys.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// SurveyService orchestrates persistence and the analysis pipeline,
// implementing the status state machine:
//
//	pending -> processing -> {completed | failed}
//
// Completed and failed are terminal; a fresh submission always creates a new
// survey entity.
type SurveyService struct {
	Surveys  domain.SurveyRepository
	Analyses domain.AnalysisRepository
	Pipeline domain.AnalysisRunner
}

// NewSurveyService constructs a SurveyService with its dependencies.
func NewSurveyService(s domain.SurveyRepository, a domain.AnalysisRepository, p domain.AnalysisRunner) *SurveyService {
	return &SurveyService{Surveys: s, Analyses: a, Pipeline: p}
}

// ValidateInput enforces the acceptance invariants before anything is
// persisted: non-empty bounded title, at least one question, a 1:1 mapping
// between answers and question order indexes with no duplicates, and options
// present on every multiple-choice question.
func ValidateInput(in domain.SurveyInput) error {
	if in.Title == "" || len(in.Title) > 255 {
		return fmt.Errorf("%w: title must be non-empty and at most 255 characters", domain.ErrInvalidArgument)
	}
	if len(in.Questions) == 0 {
		return fmt.Errorf("%w: at least one question required", domain.ErrInvalidArgument)
	}
	if len(in.Answers) != len(in.Questions) {
		return fmt.Errorf("%w: number of answers must match number of questions", domain.ErrInvalidArgument)
	}

	indexes := make(map[int]bool, len(in.Questions))
	for _, q := range in.Questions {
		if q.Text == "" {
			return fmt.Errorf("%w: question text must be non-empty", domain.ErrInvalidArgument)
		}
		switch q.Type {
		case domain.QuestionTypeMultipleChoice, domain.QuestionTypeText, domain.QuestionTypeRating:
		default:
			return fmt.Errorf("%w: unknown question type %q", domain.ErrInvalidArgument, q.Type)
		}
		if q.Category == "" {
			return fmt.Errorf("%w: question category must be non-empty", domain.ErrInvalidArgument)
		}
		if q.Weight < 0 {
			return fmt.Errorf("%w: question weight must be >= 0", domain.ErrInvalidArgument)
		}
		if q.Type == domain.QuestionTypeMultipleChoice && len(q.Options) == 0 {
			return fmt.Errorf("%w: options are required for multiple choice questions", domain.ErrInvalidArgument)
		}
		indexes[q.OrderIndex] = true
	}

	seen := make(map[int]bool, len(in.Answers))
	for _, a := range in.Answers {
		if !indexes[a.QuestionIndex] {
			return fmt.Errorf("%w: answer references unknown question index %d", domain.ErrInvalidArgument, a.QuestionIndex)
		}
		if seen[a.QuestionIndex] {
			return fmt.Errorf("%w: duplicate answer for question index %d", domain.ErrInvalidArgument, a.QuestionIndex)
		}
		seen[a.QuestionIndex] = true
		if a.SelectedAnswer == "" {
			return fmt.Errorf("%w: selected answer must be non-empty", domain.ErrInvalidArgument)
		}
		if a.Weight < 0 {
			return fmt.Errorf("%w: answer weight must be >= 0", domain.ErrInvalidArgument)
		}
	}
	return nil
}

// Analyze accepts a submission, persists it, and drives it through the state
// machine. On pipeline success the analysis rows and the completed status
// commit together; on failure the survey is marked failed with no rows.
// The classified pipeline error is returned alongside the failed survey so
// the transport layer can map it.
func (s *SurveyService) Analyze(ctx context.Context, in domain.SurveyInput, userID string) (domain.Survey, domain.AnalysisResult, error) {
	if err := ValidateInput(in); err != nil {
		return domain.Survey{}, domain.AnalysisResult{}, err
	}

	survey, err := s.Surveys.Create(ctx, in, userID)
	if err != nil {
		return domain.Survey{}, domain.AnalysisResult{}, fmt.Errorf("op=survey.create: %w", err)
	}

	if err := s.Surveys.UpdateStatus(ctx, survey.ID, domain.SurveyProcessing, userID); err != nil {
		return domain.Survey{}, domain.AnalysisResult{}, fmt.Errorf("op=survey.mark_processing: %w", err)
	}
	survey.Status = domain.SurveyProcessing

	result, runErr := s.Pipeline.Run(ctx, in)
	if runErr != nil {
		s.markFailed(ctx, survey.ID, userID, runErr)
		survey.Status = domain.SurveyFailed
		return survey, domain.AnalysisResult{}, runErr
	}

	if err := s.Analyses.CompleteWithResults(ctx, survey.ID, result); err != nil {
		// Partial persistence must never leave a completed survey with
		// missing rows; the whole batch rolled back, so mark failed.
		s.markFailed(ctx, survey.ID, userID, err)
		survey.Status = domain.SurveyFailed
		return survey, domain.AnalysisResult{}, fmt.Errorf("%w: persist analysis: %v", domain.ErrInternal, err)
	}
	survey.Status = domain.SurveyCompleted
	return survey, result, nil
}

// markFailed records the failed status even when the request context is
// already cancelled. A client disconnect or deadline during the pipeline must
// not strand the survey in processing, so the bookkeeping runs on a context
// detached from cancellation.
func (s *SurveyService) markFailed(ctx context.Context, surveyID, userID string, cause error) {
	ctx = context.WithoutCancel(ctx)
	slog.ErrorContext(ctx, "survey analysis failed",
		slog.String("survey_id", surveyID),
		slog.String("user_id", userID),
		slog.Any("error", cause))
	if err := s.Surveys.UpdateStatus(ctx, surveyID, domain.SurveyFailed, userID); err != nil {
		slog.ErrorContext(ctx, "failed to mark survey failed",
			slog.String("survey_id", surveyID), slog.Any("error", err))
	}
}

// Get returns a completed survey's analysis. Surveys in any other state
// yield ErrInvalidState; unknown or foreign ids yield ErrNotFound.
func (s *SurveyService) Get(ctx context.Context, id, userID string) (domain.Survey, domain.AnalysisResult, error) {
	survey, err := s.Surveys.Get(ctx, id, userID)
	if err != nil {
		return domain.Survey{}, domain.AnalysisResult{}, err
	}
	if survey.Status != domain.SurveyCompleted {
		return domain.Survey{}, domain.AnalysisResult{}, fmt.Errorf("%w: survey analysis is not complete, current status: %s", domain.ErrInvalidState, survey.Status)
	}
	result, err := s.Analyses.GetBySurvey(ctx, id)
	if err != nil {
		return domain.Survey{}, domain.AnalysisResult{}, err
	}
	return survey, result, nil
}

// StatusInfo describes a survey's progress through the state machine.
type StatusInfo struct {
	SurveyID string
	Status   domain.SurveyStatus
	Progress float64
	Message  string
}

// Status reports progress for a survey: 0 pending, 50 processing, 100
// completed, 0 failed.
func (s *SurveyService) Status(ctx context.Context, id, userID string) (StatusInfo, error) {
	survey, err := s.Surveys.Get(ctx, id, userID)
	if err != nil {
		return StatusInfo{}, err
	}
	info := StatusInfo{SurveyID: survey.ID, Status: survey.Status, Message: statusMessage(survey.Status)}
	switch survey.Status {
	case domain.SurveyProcessing:
		info.Progress = 50
	case domain.SurveyCompleted:
		info.Progress = 100
	}
	return info, nil
}

func statusMessage(status domain.SurveyStatus) string {
	switch status {
	case domain.SurveyPending:
		return "Survey is queued for analysis"
	case domain.SurveyProcessing:
		return "Survey is being analyzed by AI"
	case domain.SurveyCompleted:
		return "Survey analysis is complete"
	case domain.SurveyFailed:
		return "Survey analysis failed"
	default:
		return "Unknown status"
	}
}

// List returns the caller's surveys, newest first. Limit is clamped to
// [1, MaxListLimit]; negative offsets are treated as zero.
func (s *SurveyService) List(ctx context.Context, userID string, limit, offset int) ([]domain.Survey, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.Surveys.ListByUser(ctx, userID, limit, offset)
}

// Delete removes a survey and, via cascade, its questions, answers, and
// analysis rows.
func (s *SurveyService) Delete(ctx context.Context, id, userID string) error {
	return s.Surveys.Delete(ctx, id, userID)
}
