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

// ApplicationRepository handles database operations for the application
// aggregate (decision fields included).
type ApplicationRepository struct {
	db *sql.DB
}

// NewApplicationRepository creates a new ApplicationRepository
func NewApplicationRepository(db *sql.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

const applicationColumns = `id, event_id, applicant_id, decision_status, decision_published_at,
	created_date, last_modified_date`

// Insert creates a new application
func (r *ApplicationRepository) Insert(ctx context.Context, tx *sql.Tx, app *models.Application) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (?, ?, ?, ?, ?, NOW(), NOW())`,
		constants.TableApplication, applicationColumns)

	_, err := pick(r.db, tx).ExecContext(ctx, query,
		app.ID,
		app.EventID,
		app.ApplicantID,
		string(app.DecisionStatus),
		nullableTime(app.DecisionPublishedAt),
	)
	return err
}

// FindByID retrieves one application; returns nil, nil when absent
func (r *ApplicationRepository) FindByID(ctx context.Context, tx *sql.Tx, id string) (*models.Application, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ? LIMIT 1", applicationColumns, constants.TableApplication)

	app, err := r.scanApplication(pick(r.db, tx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return app, err
}

// FindByEventAndApplicant returns the applicant's application for an event,
// nil when none exists
func (r *ApplicationRepository) FindByEventAndApplicant(ctx context.Context, tx *sql.Tx, eventID, applicantID string) (*models.Application, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE event_id = ? AND applicant_id = ? LIMIT 1",
		applicationColumns, constants.TableApplication)

	app, err := r.scanApplication(pick(r.db, tx).QueryRowContext(ctx, query, eventID, applicantID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return app, err
}

// ListIDsByEvent returns all application ids for an event
func (r *ApplicationRepository) ListIDsByEvent(ctx context.Context, eventID string) ([]string, error) {
	query := fmt.Sprintf("SELECT id FROM %s WHERE event_id = ?", constants.TableApplication)

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetDecision stores a draft decision without publishing it
func (r *ApplicationRepository) SetDecision(ctx context.Context, tx *sql.Tx, applicationID string, decision models.DecisionStatus) error {
	query := fmt.Sprintf("UPDATE %s SET decision_status = ?, last_modified_date = NOW() WHERE id = ?",
		constants.TableApplication)
	_, err := pick(r.db, tx).ExecContext(ctx, query, string(decision), applicationID)
	return err
}

// ListPublishable returns applications of the event that have a decision set
// and not yet published, optionally filtered to an explicit id list.
func (r *ApplicationRepository) ListPublishable(ctx context.Context, eventID string, ids []string) ([]*models.Application, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE event_id = ? AND decision_status != ? AND decision_published_at IS NULL`,
		applicationColumns, constants.TableApplication)
	args := []any{eventID, string(models.DecisionNone)}

	if len(ids) > 0 {
		query += fmt.Sprintf(" AND id IN (?%s)", strings.Repeat(", ?", len(ids)-1))
		for _, id := range ids {
			args = append(args, id)
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []*models.Application
	for rows.Next() {
		app, err := r.scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

// MarkPublished stamps the publication time
func (r *ApplicationRepository) MarkPublished(ctx context.Context, tx *sql.Tx, applicationID string, at time.Time) error {
	query := fmt.Sprintf("UPDATE %s SET decision_published_at = ?, last_modified_date = NOW() WHERE id = ?",
		constants.TableApplication)
	_, err := pick(r.db, tx).ExecContext(ctx, query, at, applicationID)
	return err
}

func (r *ApplicationRepository) scanApplication(row Scannable) (*models.Application, error) {
	var a models.Application
	var decision string
	var publishedAt sql.NullTime
	var createdRaw, modifiedRaw any

	err := row.Scan(
		&a.ID,
		&a.EventID,
		&a.ApplicantID,
		&decision,
		&publishedAt,
		&createdRaw,
		&modifiedRaw,
	)
	if err != nil {
		return nil, err
	}

	a.DecisionStatus = models.DecisionStatus(decision)
	a.DecisionPublishedAt = timePtr(publishedAt)
	a.CreatedDate = parseTime(createdRaw)
	a.LastModifiedDate = parseTime(modifiedRaw)
	return &a, nil
}
