package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/stagedoor/backend/internal/domain/models"
	"github.com/stagedoor/backend/pkg/constants"
)

// StepStateRepository handles database operations for per-application step
// states. Rows are keyed (application_id, step_id); listing joins the step
// config so results come back in step-index order, which the recompute pass
// relies on.
type StepStateRepository struct {
	db *sql.DB
}

// NewStepStateRepository creates a new StepStateRepository
func NewStepStateRepository(db *sql.DB) *StepStateRepository {
	return &StepStateRepository{db: db}
}

const stepStateColumns = `s.application_id, s.step_id, s.status, s.current_draft_id,
	s.latest_submission_version_id, s.revision_cycle_count, s.unlocked_at, s.last_activity_at`

// InsertBatch creates step state rows for an application
func (r *StepStateRepository) InsertBatch(ctx context.Context, tx *sql.Tx, states []*models.ApplicationStepState) error {
	if len(states) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (application_id, step_id, status, current_draft_id,
			latest_submission_version_id, revision_cycle_count, unlocked_at, last_activity_at)
		VALUES %s`,
		constants.TableStepState,
		strings.TrimSuffix(strings.Repeat("(?, ?, ?, ?, ?, ?, ?, ?), ", len(states)), ", "))

	args := make([]any, 0, len(states)*8)
	for _, st := range states {
		var draftID, versionID any
		if st.CurrentDraftID != nil {
			draftID = *st.CurrentDraftID
		}
		if st.LatestSubmissionVersionID != nil {
			versionID = *st.LatestSubmissionVersionID
		}
		args = append(args,
			st.ApplicationID,
			st.StepID,
			string(st.Status),
			draftID,
			versionID,
			st.RevisionCycleCount,
			nullableTime(st.UnlockedAt),
			st.LastActivityAt,
		)
	}

	_, err := pick(r.db, tx).ExecContext(ctx, query, args...)
	return err
}

// ListByApplication returns the application's step states ordered by the
// owning step's index
func (r *StepStateRepository) ListByApplication(ctx context.Context, tx *sql.Tx, applicationID string) ([]*models.ApplicationStepState, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s s
		JOIN %s w ON w.id = s.step_id
		WHERE s.application_id = ?
		ORDER BY w.step_index ASC`,
		stepStateColumns, constants.TableStepState, constants.TableWorkflowStep)

	rows, err := pick(r.db, tx).QueryContext(ctx, query, applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []*models.ApplicationStepState
	for rows.Next() {
		st, err := r.scanState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

// Find returns one step state; nil, nil when absent
func (r *StepStateRepository) Find(ctx context.Context, tx *sql.Tx, applicationID, stepID string) (*models.ApplicationStepState, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s s
		WHERE s.application_id = ? AND s.step_id = ? LIMIT 1`,
		stepStateColumns, constants.TableStepState)

	st, err := r.scanState(pick(r.db, tx).QueryRowContext(ctx, query, applicationID, stepID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return st, err
}

// BatchUnlock flips the collected LOCKED rows to UNLOCKED in one statement.
// The recompute pass gathers eligible steps and writes them together.
func (r *StepStateRepository) BatchUnlock(ctx context.Context, tx *sql.Tx, applicationID string, stepIDs []string, at time.Time) error {
	if len(stepIDs) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		UPDATE %s SET status = ?, unlocked_at = ?, last_activity_at = ?
		WHERE application_id = ? AND step_id IN (?%s)`,
		constants.TableStepState, strings.Repeat(", ?", len(stepIDs)-1))

	args := []any{string(models.StepStatusUnlocked), at, at, applicationID}
	for _, id := range stepIDs {
		args = append(args, id)
	}

	_, err := pick(r.db, tx).ExecContext(ctx, query, args...)
	return err
}

// BatchLock forces the given rows to LOCKED regardless of current status
// (downstream locking after final rejection, strict-gating relock, bulk lock)
func (r *StepStateRepository) BatchLock(ctx context.Context, tx *sql.Tx, applicationID string, stepIDs []string, at time.Time) error {
	if len(stepIDs) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		UPDATE %s SET status = ?, unlocked_at = NULL, last_activity_at = ?
		WHERE application_id = ? AND step_id IN (?%s)`,
		constants.TableStepState, strings.Repeat(", ?", len(stepIDs)-1))

	args := []any{string(models.StepStatusLocked), at, applicationID}
	for _, id := range stepIDs {
		args = append(args, id)
	}

	_, err := pick(r.db, tx).ExecContext(ctx, query, args...)
	return err
}

// Update persists a full state row (status transitions, version pointers,
// revision cycle count)
func (r *StepStateRepository) Update(ctx context.Context, tx *sql.Tx, st *models.ApplicationStepState) error {
	query := fmt.Sprintf(`
		UPDATE %s SET status = ?, current_draft_id = ?, latest_submission_version_id = ?,
			revision_cycle_count = ?, unlocked_at = ?, last_activity_at = ?
		WHERE application_id = ? AND step_id = ?`,
		constants.TableStepState)

	var draftID, versionID any
	if st.CurrentDraftID != nil {
		draftID = *st.CurrentDraftID
	}
	if st.LatestSubmissionVersionID != nil {
		versionID = *st.LatestSubmissionVersionID
	}

	_, err := pick(r.db, tx).ExecContext(ctx, query,
		string(st.Status),
		draftID,
		versionID,
		st.RevisionCycleCount,
		nullableTime(st.UnlockedAt),
		st.LastActivityAt,
		st.ApplicationID,
		st.StepID,
	)
	return err
}

func (r *StepStateRepository) scanState(row Scannable) (*models.ApplicationStepState, error) {
	var st models.ApplicationStepState
	var status string
	var draftID, versionID sql.NullString
	var unlockedAt sql.NullTime
	var lastActivityRaw any

	err := row.Scan(
		&st.ApplicationID,
		&st.StepID,
		&status,
		&draftID,
		&versionID,
		&st.RevisionCycleCount,
		&unlockedAt,
		&lastActivityRaw,
	)
	if err != nil {
		return nil, err
	}

	st.Status = models.StepStatus(status)
	st.CurrentDraftID = stringPtr(draftID)
	st.LatestSubmissionVersionID = stringPtr(versionID)
	st.UnlockedAt = timePtr(unlockedAt)
	st.LastActivityAt = parseTime(lastActivityRaw)
	return &st, nil
}
