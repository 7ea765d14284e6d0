package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/ai-survey-analyzer/internal/config"
	"github.com/fairyhunter13/ai-survey-analyzer/internal/domain"
	"github.com/fairyhunter13/ai-survey-analyzer/internal/usecase"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg     config.Config
	Surveys *usecase.SurveyService
	DBCheck func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers wired.
func NewServer(cfg config.Config, surveys *usecase.SurveyService, dbCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Surveys: surveys, DBCheck: dbCheck}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

type questionOptionDTO struct {
	Value  string  `json:"value" validate:"required"`
	Label  string  `json:"label" validate:"required"`
	Weight float64 `json:"weight"`
}

type questionDTO struct {
	QuestionText string              `json:"question_text" validate:"required"`
	QuestionType string              `json:"question_type" validate:"required"`
	Category     string              `json:"category" validate:"required"`
	Weight       float64             `json:"weight" validate:"gte=0"`
	Options      []questionOptionDTO `json:"options"`
	OrderIndex   int                 `json:"order_index"`
}

type answerDTO struct {
	QuestionIndex  int     `json:"question_index"`
	SelectedAnswer string  `json:"selected_answer" validate:"required"`
	Weight         float64 `json:"weight" validate:"gte=0"`
}

type analyzeRequest struct {
	Title       string        `json:"title" validate:"required,max=255"`
	Description string        `json:"description"`
	Questions   []questionDTO `json:"questions" validate:"required,min=1,dive"`
	Answers     []answerDTO   `json:"answers" validate:"required,min=1,dive"`
}

func (req analyzeRequest) toInput() domain.SurveyInput {
	in := domain.SurveyInput{Title: req.Title, Description: req.Description}
	for _, q := range req.Questions {
		opts := make([]domain.QuestionOption, 0, len(q.Options))
		for _, o := range q.Options {
			opts = append(opts, domain.QuestionOption{Value: o.Value, Label: o.Label, Weight: o.Weight})
		}
		in.Questions = append(in.Questions, domain.QuestionInput{
			Text:       q.QuestionText,
			Type:       q.QuestionType,
			Category:   q.Category,
			Weight:     q.Weight,
			Options:    opts,
			OrderIndex: q.OrderIndex,
		})
	}
	for _, a := range req.Answers {
		in.Answers = append(in.Answers, domain.AnswerInput{
			QuestionIndex:  a.QuestionIndex,
			SelectedAnswer: a.SelectedAnswer,
			Weight:         a.Weight,
		})
	}
	return in
}

type categoryAnalysisDTO struct {
	Category        string   `json:"category"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	Recommendations []string `json:"recommendations"`
	CategoryScore   *float64 `json:"category_score"`
	AnalysisSummary string   `json:"analysis_summary"`
}

type analysisResponse struct {
	SurveyID           string                `json:"survey_id"`
	Status             string                `json:"status"`
	CategoriesAnalyzed int                   `json:"categories_analyzed"`
	CategoryAnalyses   []categoryAnalysisDTO `json:"category_analyses"`
	OverallSummary     string                `json:"overall_summary"`
	ProcessingTime     float64               `json:"processing_time"`
	LLMModelUsed       string                `json:"llm_model_used"`
	TokensUsed         int                   `json:"tokens_used"`
	CreatedAt          time.Time             `json:"created_at"`
}

func buildAnalysisResponse(survey domain.Survey, res domain.AnalysisResult) analysisResponse {
	out := analysisResponse{
		SurveyID:           survey.ID,
		Status:             string(survey.Status),
		CategoriesAnalyzed: len(res.Categories),
		CategoryAnalyses:   make([]categoryAnalysisDTO, 0, len(res.Categories)),
		OverallSummary:     res.OverallSummary,
		ProcessingTime:     res.ProcessingTime.Seconds(),
		LLMModelUsed:       res.Model,
		TokensUsed:         res.TokensUsed,
		CreatedAt:          res.CreatedAt,
	}
	for _, c := range res.Categories {
		out.CategoryAnalyses = append(out.CategoryAnalyses, categoryAnalysisDTO{
			Category:        c.Category,
			Strengths:       emptyIfNil(c.Strengths),
			Weaknesses:      emptyIfNil(c.Weaknesses),
			Recommendations: emptyIfNil(c.Recommendations),
			CategoryScore:   c.CategoryScore,
			AnalysisSummary: c.AnalysisSummary,
		})
	}
	return out
}

func emptyIfNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

// AnalyzeHandler accepts a survey submission and runs the analysis pipeline.
func (s *Server) AnalyzeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
			return
		}
		if err := getValidator().Struct(req); err != nil {
			verrs := map[string]string{}
			if ve, ok := err.(validator.ValidationErrors); ok {
				for _, fe := range ve {
					verrs[strings.ToLower(fe.Field())] = fe.Tag()
				}
			}
			writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), verrs)
			return
		}
		principal, _ := PrincipalFrom(r.Context())
		survey, result, err := s.Surveys.Analyze(r.Context(), req.toInput(), principal.Subject)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, buildAnalysisResponse(survey, result))
	}
}

// GetHandler returns a completed survey analysis.
func (s *Server) GetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		principal, _ := PrincipalFrom(r.Context())
		survey, result, err := s.Surveys.Get(r.Context(), id, principal.Subject)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, buildAnalysisResponse(survey, result))
	}
}

type statusResponse struct {
	SurveyID string  `json:"survey_id"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
}

// StatusHandler reports a survey's progress through the state machine.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		principal, _ := PrincipalFrom(r.Context())
		info, err := s.Surveys.Status(r.Context(), id, principal.Subject)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{
			SurveyID: info.SurveyID,
			Status:   string(info.Status),
			Progress: info.Progress,
			Message:  info.Message,
		})
	}
}

type surveySummary struct {
	SurveyID    string    `json:"survey_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListHandler returns the caller's surveys, newest first.
func (s *Server) ListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "limit", usecase.DefaultListLimit)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		offset, err := queryInt(r, "offset", 0)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		principal, _ := PrincipalFrom(r.Context())
		surveys, err := s.Surveys.List(r.Context(), principal.Subject, limit, offset)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		out := make([]surveySummary, 0, len(surveys))
		for _, sv := range surveys {
			out = append(out, surveySummary{
				SurveyID:    sv.ID,
				Title:       sv.Title,
				Description: sv.Description,
				Status:      string(sv.Status),
				CreatedAt:   sv.CreatedAt,
				UpdatedAt:   sv.UpdatedAt,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"surveys": out, "count": len(out)})
	}
}

// DeleteHandler removes a survey and its dependent rows.
func (s *Server) DeleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		principal, _ := PrincipalFrom(r.Context())
		if err := s.Surveys.Delete(r.Context(), id, principal.Subject); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Survey deleted successfully"})
	}
}

// HealthzHandler reports process liveness.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler probes the database.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, 1)
		ok := true
		if s.DBCheck != nil {
			if err := s.DBCheck(ctx); err != nil {
				checks = append(checks, check{Name: "db", OK: false, Details: err.Error()})
				ok = false
			} else {
				checks = append(checks, check{Name: "db", OK: true})
			}
		}
		st := http.StatusOK
		if !ok {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidArgument, name)
	}
	return v, nil
}
