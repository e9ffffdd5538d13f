package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XavierBriggs/fortuna/services/schema-compiler/pkg/models"
)

func newMockStore(t *testing.T) (*RunStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRunStore(db), mock
}

func sampleRun() models.CompileRun {
	return models.CompileRun{
		RunID:                  "0b7d3c6e-9a51-4f0e-8a52-3f5d1f6b2c40",
		AppID:                  "480",
		Source:                 "http",
		Status:                 models.RunStatusSucceeded,
		AchievementCount:       12,
		StatCount:              4,
		CopyDefaultUnlockedImg: true,
		PrematureTerminations:  1,
		DurationMs:             8,
		CompiledAt:             time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC),
	}
}

func TestEnsureSchema(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_compile_runs")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRun(t *testing.T) {
	s, mock := newMockStore(t)
	run := sampleRun()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_compile_runs")).
		WithArgs(
			uuid.MustParse(run.RunID), "480", "http", "succeeded", 12, 4,
			true, false, 1, "", int64(8), run.CompiledAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.HandleRun(context.Background(), run, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRun_InvalidRunID(t *testing.T) {
	s, mock := newMockStore(t)
	run := sampleRun()
	run.RunID = "not-a-uuid"

	assert.Error(t, s.RecordRun(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRun_DatabaseError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_compile_runs")).
		WillReturnError(errors.New("connection reset"))

	err := s.RecordRun(context.Background(), sampleRun())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to record run")
}

func TestLatestRun(t *testing.T) {
	s, mock := newMockStore(t)
	want := sampleRun()

	rows := sqlmock.NewRows([]string{
		"run_id", "app_id", "source", "status", "achievement_count", "stat_count",
		"copy_default_unlocked_img", "copy_default_locked_img",
		"premature_terminations", "error_message", "duration_ms", "compiled_at",
	}).AddRow(
		want.RunID, want.AppID, want.Source, "succeeded", want.AchievementCount, want.StatCount,
		want.CopyDefaultUnlockedImg, want.CopyDefaultLockedImg,
		want.PrematureTerminations, "", want.DurationMs, want.CompiledAt,
	)
	mock.ExpectQuery(regexp.QuoteMeta("FROM schema_compile_runs")).
		WithArgs("480").
		WillReturnRows(rows)

	got, err := s.LatestRun(context.Background(), "480")
	require.NoError(t, err)
	assert.Equal(t, &want, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestRun_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM schema_compile_runs")).
		WithArgs("620").
		WillReturnRows(sqlmock.NewRows([]string{"run_id"}))

	_, err := s.LatestRun(context.Background(), "620")
	assert.ErrorIs(t, err, ErrRunNotFound)
}
