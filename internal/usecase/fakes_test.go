package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/ai-survey-analyzer/internal/domain"
)

func twoQuestionInput() domain.SurveyInput {
	return domain.SurveyInput{
		Title: "Self Assessment",
		Questions: []domain.QuestionInput{
			{Text: "Q1", Type: domain.QuestionTypeText, Category: "Communication", Weight: 1, OrderIndex: 0},
			{Text: "Q2", Type: domain.QuestionTypeText, Category: "Problem Solving", Weight: 1, OrderIndex: 1},
		},
		Answers: []domain.AnswerInput{
			{QuestionIndex: 0, SelectedAnswer: "A1", Weight: 1},
			{QuestionIndex: 1, SelectedAnswer: "A2", Weight: 1},
		},
	}
}

// fakeSurveyRepo is an in-memory SurveyRepository. Writes honor context
// cancellation the way a real connection would.
type fakeSurveyRepo struct {
	mu      sync.Mutex
	surveys map[string]domain.Survey

	createErr error
	statusErr error
}

func newFakeSurveyRepo() *fakeSurveyRepo {
	return &fakeSurveyRepo{surveys: map[string]domain.Survey{}}
}

func (r *fakeSurveyRepo) Create(_ context.Context, in domain.SurveyInput, userID string) (domain.Survey, error) {
	if r.createErr != nil {
		return domain.Survey{}, r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s := domain.Survey{
		ID:          uuid.New().String(),
		Title:       in.Title,
		Description: in.Description,
		UserID:      userID,
		Status:      domain.SurveyPending,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	r.surveys[s.ID] = s
	return s, nil
}

func (r *fakeSurveyRepo) Get(_ context.Context, id, userID string) (domain.Survey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.surveys[id]
	if !ok || s.UserID != userID {
		return domain.Survey{}, fmt.Errorf("op=survey.get: %w", domain.ErrNotFound)
	}
	return s, nil
}

func (r *fakeSurveyRepo) ListByUser(_ context.Context, userID string, limit, offset int) ([]domain.Survey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Survey
	for _, s := range r.surveys {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeSurveyRepo) UpdateStatus(ctx context.Context, id string, status domain.SurveyStatus, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.statusErr != nil {
		return r.statusErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.surveys[id]
	if !ok || s.UserID != userID {
		return fmt.Errorf("op=survey.update_status: %w", domain.ErrNotFound)
	}
	s.Status = status
	s.UpdatedAt = time.Now().UTC()
	r.surveys[id] = s
	return nil
}

func (r *fakeSurveyRepo) Delete(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.surveys[id]
	if !ok || s.UserID != userID {
		return fmt.Errorf("op=survey.delete: %w", domain.ErrNotFound)
	}
	delete(r.surveys, id)
	return nil
}

// fakeAnalysisRepo is an in-memory AnalysisRepository tied to a survey repo
// so CompleteWithResults can flip the status atomically like the real one.
type fakeAnalysisRepo struct {
	mu      sync.Mutex
	results map[string]domain.AnalysisResult
	surveys *fakeSurveyRepo

	completeErr error
}

func newFakeAnalysisRepo(s *fakeSurveyRepo) *fakeAnalysisRepo {
	return &fakeAnalysisRepo{results: map[string]domain.AnalysisResult{}, surveys: s}
}

func (r *fakeAnalysisRepo) CompleteWithResults(_ context.Context, surveyID string, res domain.AnalysisResult) error {
	if r.completeErr != nil {
		return r.completeErr
	}
	r.mu.Lock()
	r.results[surveyID] = res
	r.mu.Unlock()

	r.surveys.mu.Lock()
	defer r.surveys.mu.Unlock()
	s := r.surveys.surveys[surveyID]
	s.Status = domain.SurveyCompleted
	r.surveys.surveys[surveyID] = s
	return nil
}

func (r *fakeAnalysisRepo) GetBySurvey(_ context.Context, surveyID string) (domain.AnalysisResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[surveyID]
	if !ok {
		return domain.AnalysisResult{}, fmt.Errorf("op=analysis.get: %w", domain.ErrNotFound)
	}
	return res, nil
}

func (r *fakeAnalysisRepo) rowCount(surveyID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[surveyID]
	if !ok {
		return 0
	}
	return len(res.Categories)
}

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
