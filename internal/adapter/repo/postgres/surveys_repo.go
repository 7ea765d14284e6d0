package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-survey-analyzer/internal/adapter/observability"
	"github.com/fairyhunter13/ai-survey-analyzer/internal/domain"
)

// SurveyRepo persists surveys with their questions and answers in PostgreSQL.
type SurveyRepo struct{ Pool PgxPool }

// NewSurveyRepo constructs a SurveyRepo with the given pool.
func NewSurveyRepo(p PgxPool) *SurveyRepo { return &SurveyRepo{Pool: p} }

// Create inserts the survey, its questions, and its answers in a single
// transaction. Answers resolve their question via the submission order index.
func (r *SurveyRepo) Create(ctx context.Context, in domain.SurveyInput, userID string) (domain.Survey, error) {
	tracer := otel.Tracer("repo.surveys")
	ctx, span := tracer.Start(ctx, "surveys.Create")
	defer span.End()

	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return domain.Survey{}, fmt.Errorf("op=survey.create_begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	s := domain.Survey{
		ID:          uuid.New().String(),
		Title:       in.Title,
		Description: in.Description,
		UserID:      userID,
		Status:      domain.SurveyPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	q := `INSERT INTO surveys (id, title, description, user_id, status, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	if _, err := tx.Exec(ctx, q, s.ID, s.Title, s.Description, s.UserID, s.Status, s.CreatedAt, s.UpdatedAt); err != nil {
		return domain.Survey{}, fmt.Errorf("op=survey.create: %w", err)
	}

	questionIDs := make(map[int]string, len(in.Questions))
	qq := `INSERT INTO survey_questions (id, survey_id, question_text, question_type, category, weight, options, order_index) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	for _, question := range in.Questions {
		qid := uuid.New().String()
		opts, err := optionsJSON(question.Options)
		if err != nil {
			return domain.Survey{}, fmt.Errorf("op=survey.create_question: %w", err)
		}
		if _, err := tx.Exec(ctx, qq, qid, s.ID, question.Text, question.Type, question.Category, question.Weight, opts, question.OrderIndex); err != nil {
			return domain.Survey{}, fmt.Errorf("op=survey.create_question: %w", err)
		}
		questionIDs[question.OrderIndex] = qid
	}

	qa := `INSERT INTO survey_answers (id, question_id, survey_id, user_id, selected_answer, answer_weight, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	for _, answer := range in.Answers {
		qid, ok := questionIDs[answer.QuestionIndex]
		if !ok {
			return domain.Survey{}, fmt.Errorf("op=survey.create_answer: %w: no question at index %d", domain.ErrInvalidArgument, answer.QuestionIndex)
		}
		if _, err := tx.Exec(ctx, qa, uuid.New().String(), qid, s.ID, userID, answer.SelectedAnswer, answer.Weight, now); err != nil {
			return domain.Survey{}, fmt.Errorf("op=survey.create_answer: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Survey{}, fmt.Errorf("op=survey.create_commit: %w", err)
	}
	return s, nil
}

// Get loads a survey by id, scoped to its owner.
func (r *SurveyRepo) Get(ctx context.Context, id, userID string) (domain.Survey, error) {
	tracer := otel.Tracer("repo.surveys")
	ctx, span := tracer.Start(ctx, "surveys.Get")
	defer span.End()

	q := `SELECT id, title, COALESCE(description,''), user_id, status, created_at, updated_at FROM surveys WHERE id=$1 AND user_id=$2`
	row := r.Pool.QueryRow(ctx, q, id, userID)
	var s domain.Survey
	if err := row.Scan(&s.ID, &s.Title, &s.Description, &s.UserID, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Survey{}, fmt.Errorf("op=survey.get: %w", domain.ErrNotFound)
		}
		return domain.Survey{}, fmt.Errorf("op=survey.get: %w", err)
	}
	return s, nil
}

// ListByUser returns the user's surveys, newest first.
func (r *SurveyRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Survey, error) {
	tracer := otel.Tracer("repo.surveys")
	ctx, span := tracer.Start(ctx, "surveys.ListByUser")
	defer span.End()

	q := `SELECT id, title, COALESCE(description,''), user_id, status, created_at, updated_at FROM surveys WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.Pool.Query(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("op=survey.list: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Survey, 0, limit)
	for rows.Next() {
		var s domain.Survey
		if err := rows.Scan(&s.ID, &s.Title, &s.Description, &s.UserID, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("op=survey.list_scan: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=survey.list_rows: %w", err)
	}
	return out, nil
}

// UpdateStatus moves a survey to the given lifecycle state.
func (r *SurveyRepo) UpdateStatus(ctx context.Context, id string, status domain.SurveyStatus, userID string) error {
	tracer := otel.Tracer("repo.surveys")
	ctx, span := tracer.Start(ctx, "surveys.UpdateStatus")
	defer span.End()

	q := `UPDATE surveys SET status=$3, updated_at=$4 WHERE id=$1 AND user_id=$2`
	tag, err := r.Pool.Exec(ctx, q, id, userID, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=survey.update_status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=survey.update_status: %w", domain.ErrNotFound)
	}
	if status == domain.SurveyFailed {
		observability.AnalysesFailedTotal.Inc()
	}
	return nil
}

// Delete removes the survey; questions, answers, and analysis rows cascade.
func (r *SurveyRepo) Delete(ctx context.Context, id, userID string) error {
	tracer := otel.Tracer("repo.surveys")
	ctx, span := tracer.Start(ctx, "surveys.Delete")
	defer span.End()

	q := `DELETE FROM surveys WHERE id=$1 AND user_id=$2`
	tag, err := r.Pool.Exec(ctx, q, id, userID)
	if err != nil {
		return fmt.Errorf("op=survey.delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=survey.delete: %w", domain.ErrNotFound)
	}
	return nil
}

// optionsJSON encodes options for the JSONB column, NULL when absent.
func optionsJSON(opts []domain.QuestionOption) (any, error) {
	if len(opts) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(opts)
	if err != nil {
		return nil, err
	}
	return b, nil
}
