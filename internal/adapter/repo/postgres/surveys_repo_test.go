package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-survey-analyzer/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-survey-analyzer/internal/domain"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return mock
}

func sampleInput() domain.SurveyInput {
	return domain.SurveyInput{
		Title: "Team Health Check",
		Questions: []domain.QuestionInput{
			{Text: "How often do you pair?", Type: domain.QuestionTypeMultipleChoice, Category: "Collaboration", Weight: 1, OrderIndex: 0,
				Options: []domain.QuestionOption{{Value: "daily", Label: "Daily", Weight: 1}}},
			{Text: "Describe a recent blocker", Type: domain.QuestionTypeText, Category: "Delivery", Weight: 1, OrderIndex: 1},
		},
		Answers: []domain.AnswerInput{
			{QuestionIndex: 0, SelectedAnswer: "daily", Weight: 1},
			{QuestionIndex: 1, SelectedAnswer: "Waiting on reviews", Weight: 1},
		},
	}
}

func TestSurveyRepo_Create(t *testing.T) {
	mock := newMockPool(t)
	repo := postgres.NewSurveyRepo(mock)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO surveys`).
		WithArgs(pgxmock.AnyArg(), "Team Health Check", "", "user-1", domain.SurveyPending, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	for range 2 {
		mock.ExpectExec(`INSERT INTO survey_questions`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	for range 2 {
		mock.ExpectExec(`INSERT INTO survey_answers`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	s, err := repo.Create(context.Background(), sampleInput(), "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, domain.SurveyPending, s.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSurveyRepo_Create_RollsBackOnQuestionError(t *testing.T) {
	mock := newMockPool(t)
	repo := postgres.NewSurveyRepo(mock)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO surveys`).
		WithArgs(pgxmock.AnyArg(), "Team Health Check", "", "user-1", domain.SurveyPending, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO survey_questions`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), sampleInput(), "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=survey.create_question")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSurveyRepo_Get(t *testing.T) {
	mock := newMockPool(t)
	repo := postgres.NewSurveyRepo(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, title, COALESCE\(description,''\), user_id, status, created_at, updated_at FROM surveys`).
		WithArgs("s-1", "user-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "description", "user_id", "status", "created_at", "updated_at"}).
			AddRow("s-1", "Team Health Check", "", "user-1", domain.SurveyCompleted, now, now))

	s, err := repo.Get(context.Background(), "s-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "s-1", s.ID)
	assert.Equal(t, domain.SurveyCompleted, s.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSurveyRepo_Get_NotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := postgres.NewSurveyRepo(mock)

	mock.ExpectQuery(`SELECT id, title`).
		WithArgs("missing", "user-1").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing", "user-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSurveyRepo_ListByUser(t *testing.T) {
	mock := newMockPool(t)
	repo := postgres.NewSurveyRepo(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, title, COALESCE\(description,''\), user_id, status, created_at, updated_at FROM surveys WHERE user_id=\$1 ORDER BY created_at DESC`).
		WithArgs("user-1", 10, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "description", "user_id", "status", "created_at", "updated_at"}).
			AddRow("s-2", "Second", "", "user-1", domain.SurveyPending, now, now).
			AddRow("s-1", "First", "", "user-1", domain.SurveyCompleted, now.Add(-time.Hour), now))

	out, err := repo.ListByUser(context.Background(), "user-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "s-2", out[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSurveyRepo_ListByUser_Empty(t *testing.T) {
	mock := newMockPool(t)
	repo := postgres.NewSurveyRepo(mock)

	mock.ExpectQuery(`SELECT id, title`).
		WithArgs("user-1", 10, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "description", "user_id", "status", "created_at", "updated_at"}))

	out, err := repo.ListByUser(context.Background(), "user-1", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSurveyRepo_UpdateStatus(t *testing.T) {
	mock := newMockPool(t)
	repo := postgres.NewSurveyRepo(mock)

	mock.ExpectExec(`UPDATE surveys SET status`).
		WithArgs("s-1", "user-1", domain.SurveyProcessing, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.UpdateStatus(context.Background(), "s-1", domain.SurveyProcessing, "user-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSurveyRepo_UpdateStatus_NotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := postgres.NewSurveyRepo(mock)

	mock.ExpectExec(`UPDATE surveys SET status`).
		WithArgs("missing", "user-1", domain.SurveyFailed, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.SurveyFailed, "user-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSurveyRepo_Delete(t *testing.T) {
	mock := newMockPool(t)
	repo := postgres.NewSurveyRepo(mock)

	mock.ExpectExec(`DELETE FROM surveys`).
		WithArgs("s-1", "user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, repo.Delete(context.Background(), "s-1", "user-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSurveyRepo_Delete_NotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := postgres.NewSurveyRepo(mock)

	mock.ExpectExec(`DELETE FROM surveys`).
		WithArgs("missing", "user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.Delete(context.Background(), "missing", "user-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
