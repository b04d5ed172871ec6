package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/stagedoor/backend/internal/domain/models"
	"github.com/stagedoor/backend/pkg/constants"
	"github.com/stagedoor/backend/pkg/utils"
)

// AttendanceRepository handles database operations for attendance records
type AttendanceRepository struct {
	db *sql.DB
}

// NewAttendanceRepository creates a new AttendanceRepository
func NewAttendanceRepository(db *sql.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// EnsureRecord records attendance for the application. Re-running is a no-op,
// so a second confirmation approval never duplicates the row.
func (r *AttendanceRepository) EnsureRecord(ctx context.Context, tx *sql.Tx, applicationID string, at time.Time) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, application_id, confirmed_at)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE application_id = application_id`,
		constants.TableAttendanceRecord)

	_, err := pick(r.db, tx).ExecContext(ctx, query, utils.GenerateID(), applicationID, at)
	return err
}

// FindByApplication retrieves the attendance record; nil, nil when absent
func (r *AttendanceRepository) FindByApplication(ctx context.Context, tx *sql.Tx, applicationID string) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, application_id, confirmed_at FROM %s
		WHERE application_id = ? LIMIT 1`,
		constants.TableAttendanceRecord)

	var rec models.AttendanceRecord
	var confirmedRaw any
	err := pick(r.db, tx).QueryRowContext(ctx, query, applicationID).Scan(
		&rec.ID, &rec.ApplicationID, &confirmedRaw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.ConfirmedAt = parseTime(confirmedRaw)
	return &rec, nil
}
