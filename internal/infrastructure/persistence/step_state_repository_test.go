package persistence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagedoor/backend/internal/domain/models"
)

func TestListByApplicationOrdersByStepIndex(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewStepStateRepository(db)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"application_id", "step_id", "status", "current_draft_id",
		"latest_submission_version_id", "revision_cycle_count", "unlocked_at", "last_activity_at",
	}).
		AddRow("app-1", "step-a", "SUBMITTED", nil, "ver-1", 0, now, now).
		AddRow("app-1", "step-b", "UNLOCKED", nil, nil, 0, now, now).
		AddRow("app-1", "step-c", "LOCKED", nil, nil, 0, nil, now)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY w.step_index ASC")).
		WithArgs("app-1").
		WillReturnRows(rows)

	states, err := repo.ListByApplication(context.Background(), nil, "app-1")
	require.NoError(t, err)
	require.Len(t, states, 3)

	assert.Equal(t, models.StepStatusSubmitted, states[0].Status)
	assert.Equal(t, "ver-1", *states[0].LatestSubmissionVersionID)
	assert.Equal(t, models.StepStatusUnlocked, states[1].Status)
	assert.Nil(t, states[1].LatestSubmissionVersionID)
	assert.Equal(t, models.StepStatusLocked, states[2].Status)
	assert.Nil(t, states[2].UnlockedAt)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindReturnsNilWhenAbsent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewStepStateRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE s.application_id = ? AND s.step_id = ?")).
		WithArgs("app-1", "step-missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"application_id", "step_id", "status", "current_draft_id",
			"latest_submission_version_id", "revision_cycle_count", "unlocked_at", "last_activity_at",
		}))

	st, err := repo.Find(context.Background(), nil, "app-1", "step-missing")
	assert.NoError(t, err)
	assert.Nil(t, st)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchUnlockSkipsEmptySet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewStepStateRepository(db)

	// No step ids means no statement at all.
	err = repo.BatchUnlock(context.Background(), nil, "app-1", nil, time.Now())
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchUnlockWritesAllSteps(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewStepStateRepository(db)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("SET status = ?, unlocked_at = ?, last_activity_at = ?")).
		WithArgs("UNLOCKED", at, at, "app-1", "step-b", "step-c").
		WillReturnResult(sqlmock.NewResult(0, 2))

	err = repo.BatchUnlock(context.Background(), nil, "app-1", []string{"step-b", "step-c"}, at)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchLockClearsUnlockedAt(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewStepStateRepository(db)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("SET status = ?, unlocked_at = NULL, last_activity_at = ?")).
		WithArgs("LOCKED", at, "app-1", "step-c").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.BatchLock(context.Background(), nil, "app-1", []string{"step-c"}, at)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
