package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stagedoor/backend/internal/domain/models"
	"github.com/stagedoor/backend/pkg/constants"
)

// NotificationRepository handles database operations for notifications
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Insert creates a notification row
func (r *NotificationRepository) Insert(ctx context.Context, tx *sql.Tx, n *models.Notification) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, type, title, body, is_read, created_date)
		VALUES (?, ?, ?, ?, ?, 0, NOW())`,
		constants.TableNotification)

	_, err := pick(r.db, tx).ExecContext(ctx, query, n.ID, n.UserID, n.Type, n.Title, n.Body)
	return err
}

// ListByUser returns the user's notifications, newest first
func (r *NotificationRepository) ListByUser(ctx context.Context, tx *sql.Tx, userID string, limit int) ([]*models.Notification, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, type, title, body, is_read, created_date
		FROM %s WHERE user_id = ?
		ORDER BY created_date DESC LIMIT ?`,
		constants.TableNotification)

	rows, err := pick(r.db, tx).QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		var n models.Notification
		var createdRaw any
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &n.IsRead, &createdRaw); err != nil {
			return nil, err
		}
		n.CreatedDate = parseTime(createdRaw)
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}
