package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-survey-analyzer/internal/adapter/observability"
	"github.com/fairyhunter13/ai-survey-analyzer/internal/domain"
)

// AnalysisRepo persists pipeline results in PostgreSQL.
type AnalysisRepo struct{ Pool PgxPool }

// NewAnalysisRepo constructs an AnalysisRepo with the given pool.
func NewAnalysisRepo(p PgxPool) *AnalysisRepo { return &AnalysisRepo{Pool: p} }

// CompleteWithResults writes one row per analyzed category and flips the
// survey to completed, all in a single transaction.
func (r *AnalysisRepo) CompleteWithResults(ctx context.Context, surveyID string, res domain.AnalysisResult) error {
	tracer := otel.Tracer("repo.analysis")
	ctx, span := tracer.Start(ctx, "analysis.CompleteWithResults")
	defer span.End()

	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("op=analysis.complete_begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q := `INSERT INTO survey_analysis (id, survey_id, category, strengths, weaknesses, recommendations, category_score, analysis_summary, overall_summary, llm_model_used, tokens_used, processing_time_ms, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	for _, c := range res.Categories {
		strengths, err := stringListJSON(c.Strengths)
		if err != nil {
			return fmt.Errorf("op=analysis.complete_row: %w", err)
		}
		weaknesses, err := stringListJSON(c.Weaknesses)
		if err != nil {
			return fmt.Errorf("op=analysis.complete_row: %w", err)
		}
		recommendations, err := stringListJSON(c.Recommendations)
		if err != nil {
			return fmt.Errorf("op=analysis.complete_row: %w", err)
		}
		_, err = tx.Exec(ctx, q,
			uuid.New().String(), surveyID, c.Category,
			strengths, weaknesses, recommendations,
			c.CategoryScore, c.AnalysisSummary, res.OverallSummary,
			res.Model, res.TokensUsed, res.ProcessingTime.Milliseconds(), res.CreatedAt)
		if err != nil {
			return fmt.Errorf("op=analysis.complete_row: %w", err)
		}
	}

	uq := `UPDATE surveys SET status=$2, updated_at=$3 WHERE id=$1`
	tag, err := tx.Exec(ctx, uq, surveyID, domain.SurveyCompleted, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=analysis.complete_status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=analysis.complete_status: %w", domain.ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("op=analysis.complete_commit: %w", err)
	}
	observability.AnalysesCompletedTotal.Inc()
	return nil
}

// GetBySurvey reconstructs the full analysis result from its category rows.
func (r *AnalysisRepo) GetBySurvey(ctx context.Context, surveyID string) (domain.AnalysisResult, error) {
	tracer := otel.Tracer("repo.analysis")
	ctx, span := tracer.Start(ctx, "analysis.GetBySurvey")
	defer span.End()

	q := `SELECT category, strengths, weaknesses, recommendations, category_score, analysis_summary, overall_summary, llm_model_used, tokens_used, processing_time_ms, created_at
	FROM survey_analysis WHERE survey_id=$1 ORDER BY created_at, category`
	rows, err := r.Pool.Query(ctx, q, surveyID)
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("op=analysis.get: %w", err)
	}
	defer rows.Close()

	var res domain.AnalysisResult
	for rows.Next() {
		var c domain.CategoryAnalysis
		var strengths, weaknesses, recommendations []byte
		var processingMS int64
		if err := rows.Scan(&c.Category, &strengths, &weaknesses, &recommendations, &c.CategoryScore, &c.AnalysisSummary, &res.OverallSummary, &res.Model, &res.TokensUsed, &processingMS, &res.CreatedAt); err != nil {
			return domain.AnalysisResult{}, fmt.Errorf("op=analysis.get_scan: %w", err)
		}
		if err := decodeStringList(strengths, &c.Strengths); err != nil {
			return domain.AnalysisResult{}, fmt.Errorf("op=analysis.get_scan: %w", err)
		}
		if err := decodeStringList(weaknesses, &c.Weaknesses); err != nil {
			return domain.AnalysisResult{}, fmt.Errorf("op=analysis.get_scan: %w", err)
		}
		if err := decodeStringList(recommendations, &c.Recommendations); err != nil {
			return domain.AnalysisResult{}, fmt.Errorf("op=analysis.get_scan: %w", err)
		}
		res.ProcessingTime = time.Duration(processingMS) * time.Millisecond
		res.Categories = append(res.Categories, c)
	}
	if err := rows.Err(); err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("op=analysis.get_rows: %w", err)
	}
	if len(res.Categories) == 0 {
		return domain.AnalysisResult{}, fmt.Errorf("op=analysis.get: %w", domain.ErrNotFound)
	}
	return res, nil
}

// stringListJSON encodes a string list for a JSONB column, [] when empty.
func stringListJSON(v []string) ([]byte, error) {
	if v == nil {
		v = []string{}
	}
	return json.Marshal(v)
}

func decodeStringList(b []byte, dst *[]string) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, dst)
}
