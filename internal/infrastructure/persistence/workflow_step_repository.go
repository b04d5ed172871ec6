package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/stagedoor/backend/internal/domain/models"
	"github.com/stagedoor/backend/pkg/constants"
)

// WorkflowStepRepository handles database operations for workflow step
// configuration. The state engine reads these rows; only authoring writes.
type WorkflowStepRepository struct {
	db *sql.DB
}

// NewWorkflowStepRepository creates a new WorkflowStepRepository
func NewWorkflowStepRepository(db *sql.DB) *WorkflowStepRepository {
	return &WorkflowStepRepository{db: db}
}

const workflowStepColumns = `id, event_id, step_index, title, category, unlock_policy, unlock_at,
	strict_gating, review_required, reject_behavior, deadline_at, form_version_id,
	is_confirmation_step, created_date, last_modified_date`

// Insert creates a new workflow step
func (r *WorkflowStepRepository) Insert(ctx context.Context, tx *sql.Tx, step *models.WorkflowStep) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())`,
		constants.TableWorkflowStep, workflowStepColumns)

	var formVersionID any
	if step.FormVersionID != nil {
		formVersionID = *step.FormVersionID
	}

	_, err := pick(r.db, tx).ExecContext(ctx, query,
		step.ID,
		step.EventID,
		step.StepIndex,
		step.Title,
		string(step.Category),
		string(step.UnlockPolicy),
		nullableTime(step.UnlockAt),
		step.StrictGating,
		step.ReviewRequired,
		string(step.RejectBehavior),
		nullableTime(step.DeadlineAt),
		formVersionID,
		step.IsConfirmationStep,
	)
	return err
}

// FindByID retrieves one workflow step; returns nil, nil when absent
func (r *WorkflowStepRepository) FindByID(ctx context.Context, tx *sql.Tx, id string) (*models.WorkflowStep, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ? LIMIT 1", workflowStepColumns, constants.TableWorkflowStep)

	step, err := r.scanStep(pick(r.db, tx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return step, err
}

// ListByEvent returns an event's workflow steps ordered by step index
func (r *WorkflowStepRepository) ListByEvent(ctx context.Context, tx *sql.Tx, eventID string) ([]*models.WorkflowStep, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE event_id = ? ORDER BY step_index ASC",
		workflowStepColumns, constants.TableWorkflowStep)

	rows, err := pick(r.db, tx).QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []*models.WorkflowStep
	for rows.Next() {
		step, err := r.scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// ListEventsWithDueUnlocks returns the distinct event ids that have a
// DATE_BASED step whose unlock time fell inside (since, until]. The unlock
// sweep recomputes those events' applications.
func (r *WorkflowStepRepository) ListEventsWithDueUnlocks(ctx context.Context, since, until time.Time) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT event_id FROM %s
		WHERE unlock_policy = ? AND unlock_at > ? AND unlock_at <= ?`,
		constants.TableWorkflowStep)

	rows, err := r.db.QueryContext(ctx, query, string(models.UnlockDateBased), since, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var eventIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		eventIDs = append(eventIDs, id)
	}
	return eventIDs, rows.Err()
}

func (r *WorkflowStepRepository) scanStep(row Scannable) (*models.WorkflowStep, error) {
	var s models.WorkflowStep
	var category, unlockPolicy, rejectBehavior string
	var unlockAt, deadlineAt sql.NullTime
	var formVersionID sql.NullString
	var createdRaw, modifiedRaw any

	err := row.Scan(
		&s.ID,
		&s.EventID,
		&s.StepIndex,
		&s.Title,
		&category,
		&unlockPolicy,
		&unlockAt,
		&s.StrictGating,
		&s.ReviewRequired,
		&rejectBehavior,
		&deadlineAt,
		&formVersionID,
		&s.IsConfirmationStep,
		&createdRaw,
		&modifiedRaw,
	)
	if err != nil {
		return nil, err
	}

	s.Category = models.StepCategory(category)
	s.UnlockPolicy = models.UnlockPolicy(unlockPolicy)
	s.RejectBehavior = models.RejectBehavior(rejectBehavior)
	s.UnlockAt = timePtr(unlockAt)
	s.DeadlineAt = timePtr(deadlineAt)
	s.FormVersionID = stringPtr(formVersionID)
	s.CreatedDate = parseTime(createdRaw)
	s.LastModifiedDate = parseTime(modifiedRaw)
	return &s, nil
}
