package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/stagedoor/backend/internal/domain/models"
	"github.com/stagedoor/backend/pkg/constants"
)

// SubmissionRepository handles database operations for step submission
// versions. Rows are append-only; nothing here updates or deletes them.
type SubmissionRepository struct {
	db *sql.DB
}

// NewSubmissionRepository creates a new SubmissionRepository
func NewSubmissionRepository(db *sql.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

const submissionColumns = `id, application_id, step_id, form_version_id, version_number,
	answers_snapshot, submitted_by, submitted_at`

// Insert appends a new submission version
func (r *SubmissionRepository) Insert(ctx context.Context, tx *sql.Tx, v *models.StepSubmissionVersion) error {
	answersJSON, err := marshalJSON(v.Answers)
	if err != nil {
		return fmt.Errorf("failed to encode answers snapshot: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		constants.TableSubmissionVersion, submissionColumns)

	var formVersionID any
	if v.FormVersionID != nil {
		formVersionID = *v.FormVersionID
	}

	_, err = pick(r.db, tx).ExecContext(ctx, query,
		v.ID,
		v.ApplicationID,
		v.StepID,
		formVersionID,
		v.VersionNumber,
		answersJSON,
		v.SubmittedBy,
		v.SubmittedAt,
	)
	return err
}

// FindByID retrieves one version; nil, nil when absent
func (r *SubmissionRepository) FindByID(ctx context.Context, tx *sql.Tx, id string) (*models.StepSubmissionVersion, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ? LIMIT 1",
		submissionColumns, constants.TableSubmissionVersion)

	v, err := r.scanVersion(pick(r.db, tx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return v, err
}

// FindLatest returns the highest-numbered version for a step, nil when none
// exists. When called inside a transaction the row is locked (FOR UPDATE) so
// two concurrent submitters serialize on version-number assignment.
func (r *SubmissionRepository) FindLatest(ctx context.Context, tx *sql.Tx, applicationID, stepID string) (*models.StepSubmissionVersion, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE application_id = ? AND step_id = ?
		ORDER BY version_number DESC LIMIT 1`,
		submissionColumns, constants.TableSubmissionVersion)
	if tx != nil {
		query += " FOR UPDATE"
	}

	v, err := r.scanVersion(pick(r.db, tx).QueryRowContext(ctx, query, applicationID, stepID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return v, err
}

// ListByStep returns all versions for a step, oldest first
func (r *SubmissionRepository) ListByStep(ctx context.Context, applicationID, stepID string) ([]*models.StepSubmissionVersion, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE application_id = ? AND step_id = ?
		ORDER BY version_number ASC`,
		submissionColumns, constants.TableSubmissionVersion)

	rows, err := r.db.QueryContext(ctx, query, applicationID, stepID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []*models.StepSubmissionVersion
	for rows.Next() {
		v, err := r.scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (r *SubmissionRepository) scanVersion(row Scannable) (*models.StepSubmissionVersion, error) {
	var v models.StepSubmissionVersion
	var formVersionID sql.NullString
	var answersJSON []byte
	var submittedAtRaw any

	err := row.Scan(
		&v.ID,
		&v.ApplicationID,
		&v.StepID,
		&formVersionID,
		&v.VersionNumber,
		&answersJSON,
		&v.SubmittedBy,
		&submittedAtRaw,
	)
	if err != nil {
		return nil, err
	}

	v.FormVersionID = stringPtr(formVersionID)
	v.SubmittedAt = parseTime(submittedAtRaw)
	if len(answersJSON) > 0 {
		if err := json.Unmarshal(answersJSON, &v.Answers); err != nil {
			return nil, fmt.Errorf("failed to decode answers snapshot for version %s: %w", v.ID, err)
		}
	}
	return &v, nil
}
