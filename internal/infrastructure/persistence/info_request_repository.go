package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stagedoor/backend/internal/domain/models"
	"github.com/stagedoor/backend/pkg/constants"
)

// InfoRequestRepository handles database operations for needs-info requests
type InfoRequestRepository struct {
	db *sql.DB
}

// NewInfoRequestRepository creates a new InfoRequestRepository
func NewInfoRequestRepository(db *sql.DB) *InfoRequestRepository {
	return &InfoRequestRepository{db: db}
}

const infoRequestColumns = `id, application_id, step_id, submission_version_id, target_field_ids,
	message, status, deadline_at, created_date, resolved_at`

// Insert creates a new needs-info request
func (r *InfoRequestRepository) Insert(ctx context.Context, tx *sql.Tx, req *models.NeedsInfoRequest) error {
	targets := req.TargetFieldIDs
	if targets == nil {
		targets = []string{}
	}
	targetsJSON, err := json.Marshal(targets)
	if err != nil {
		return fmt.Errorf("failed to encode target field ids: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NOW(), NULL)`,
		constants.TableInfoRequest, infoRequestColumns)

	_, err = pick(r.db, tx).ExecContext(ctx, query,
		req.ID,
		req.ApplicationID,
		req.StepID,
		req.SubmissionVersionID,
		string(targetsJSON),
		req.Message,
		string(req.Status),
		nullableTime(req.DeadlineAt),
	)
	return err
}

// FindByID retrieves one request; nil, nil when absent
func (r *InfoRequestRepository) FindByID(ctx context.Context, tx *sql.Tx, id string) (*models.NeedsInfoRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ? LIMIT 1", infoRequestColumns, constants.TableInfoRequest)

	req, err := r.scanRequest(pick(r.db, tx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return req, err
}

// ListOpenByStep returns the OPEN requests for one application step
func (r *InfoRequestRepository) ListOpenByStep(ctx context.Context, tx *sql.Tx, applicationID, stepID string) ([]*models.NeedsInfoRequest, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE application_id = ? AND step_id = ? AND status = ?
		ORDER BY created_date ASC`,
		infoRequestColumns, constants.TableInfoRequest)

	rows, err := pick(r.db, tx).QueryContext(ctx, query, applicationID, stepID, string(models.InfoRequestOpen))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*models.NeedsInfoRequest
	for rows.Next() {
		req, err := r.scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// CloseOpenByStep moves every OPEN request for the step to the given
// terminal status (RESOLVED on qualifying resubmission, CANCELED on approve)
func (r *InfoRequestRepository) CloseOpenByStep(ctx context.Context, tx *sql.Tx, applicationID, stepID string, to models.InfoRequestStatus, at time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s SET status = ?, resolved_at = ?
		WHERE application_id = ? AND step_id = ? AND status = ?`,
		constants.TableInfoRequest)

	_, err := pick(r.db, tx).ExecContext(ctx, query,
		string(to), at, applicationID, stepID, string(models.InfoRequestOpen))
	return err
}

// Cancel marks one request CANCELED; only open requests are affected
func (r *InfoRequestRepository) Cancel(ctx context.Context, tx *sql.Tx, id string, at time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s SET status = ?, resolved_at = ?
		WHERE id = ? AND status = ?`,
		constants.TableInfoRequest)

	_, err := pick(r.db, tx).ExecContext(ctx, query,
		string(models.InfoRequestCanceled), at, id, string(models.InfoRequestOpen))
	return err
}

func (r *InfoRequestRepository) scanRequest(row Scannable) (*models.NeedsInfoRequest, error) {
	var req models.NeedsInfoRequest
	var targetsJSON []byte
	var status string
	var deadlineAt, resolvedAt sql.NullTime
	var createdRaw any

	err := row.Scan(
		&req.ID,
		&req.ApplicationID,
		&req.StepID,
		&req.SubmissionVersionID,
		&targetsJSON,
		&req.Message,
		&status,
		&deadlineAt,
		&createdRaw,
		&resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	req.Status = models.InfoRequestStatus(status)
	req.DeadlineAt = timePtr(deadlineAt)
	req.ResolvedAt = timePtr(resolvedAt)
	req.CreatedDate = parseTime(createdRaw)
	if len(targetsJSON) > 0 {
		if err := json.Unmarshal(targetsJSON, &req.TargetFieldIDs); err != nil {
			return nil, fmt.Errorf("failed to decode target field ids for request %s: %w", req.ID, err)
		}
	}
	return &req, nil
}
