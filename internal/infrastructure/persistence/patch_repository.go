package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/stagedoor/backend/internal/domain/models"
	"github.com/stagedoor/backend/pkg/constants"
)

// PatchRepository handles database operations for admin change patches
type PatchRepository struct {
	db *sql.DB
}

// NewPatchRepository creates a new PatchRepository
func NewPatchRepository(db *sql.DB) *PatchRepository {
	return &PatchRepository{db: db}
}

const patchColumns = `id, application_id, step_id, submission_version_id, ops, is_active, created_date`

// Insert creates a new patch
func (r *PatchRepository) Insert(ctx context.Context, tx *sql.Tx, patch *models.AdminChangePatch) error {
	opsJSON, err := json.Marshal(patch.Ops)
	if err != nil {
		return fmt.Errorf("failed to encode patch ops: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (?, ?, ?, ?, ?, ?, NOW())`,
		constants.TableChangePatch, patchColumns)

	_, err = pick(r.db, tx).ExecContext(ctx, query,
		patch.ID,
		patch.ApplicationID,
		patch.StepID,
		patch.SubmissionVersionID,
		string(opsJSON),
		patch.IsActive,
	)
	return err
}

// FindByID retrieves one patch; nil, nil when absent
func (r *PatchRepository) FindByID(ctx context.Context, tx *sql.Tx, id string) (*models.AdminChangePatch, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ? LIMIT 1", patchColumns, constants.TableChangePatch)

	patch, err := r.scanPatch(pick(r.db, tx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return patch, err
}

// ListActiveByVersion returns the active patches overlaying one submission
// version, in creation order (the compositor's application order)
func (r *PatchRepository) ListActiveByVersion(ctx context.Context, tx *sql.Tx, submissionVersionID string) ([]*models.AdminChangePatch, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE submission_version_id = ? AND is_active = 1
		ORDER BY created_date ASC, id ASC`,
		patchColumns, constants.TableChangePatch)

	rows, err := pick(r.db, tx).QueryContext(ctx, query, submissionVersionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patches []*models.AdminChangePatch
	for rows.Next() {
		patch, err := r.scanPatch(rows)
		if err != nil {
			return nil, err
		}
		patches = append(patches, patch)
	}
	return patches, rows.Err()
}

// Deactivate turns a patch off without deleting it
func (r *PatchRepository) Deactivate(ctx context.Context, tx *sql.Tx, id string) error {
	query := fmt.Sprintf("UPDATE %s SET is_active = 0 WHERE id = ?", constants.TableChangePatch)
	_, err := pick(r.db, tx).ExecContext(ctx, query, id)
	return err
}

func (r *PatchRepository) scanPatch(row Scannable) (*models.AdminChangePatch, error) {
	var p models.AdminChangePatch
	var opsJSON []byte
	var createdRaw any

	err := row.Scan(
		&p.ID,
		&p.ApplicationID,
		&p.StepID,
		&p.SubmissionVersionID,
		&opsJSON,
		&p.IsActive,
		&createdRaw,
	)
	if err != nil {
		return nil, err
	}

	p.CreatedDate = parseTime(createdRaw)
	if len(opsJSON) > 0 {
		if err := json.Unmarshal(opsJSON, &p.Ops); err != nil {
			return nil, fmt.Errorf("failed to decode ops for patch %s: %w", p.ID, err)
		}
	}
	return &p, nil
}
