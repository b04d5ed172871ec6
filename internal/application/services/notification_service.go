package services

import (
	"context"
	"log"

	"github.com/stagedoor/backend/internal/domain/models"
	"github.com/stagedoor/backend/internal/infrastructure/persistence"
	"github.com/stagedoor/backend/pkg/utils"
)

// NotificationService delivers in-app notifications. It implements
// ports.Notifier for the decision publication fan-out.
type NotificationService struct {
	notifications *persistence.NotificationRepository
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(notifications *persistence.NotificationRepository) *NotificationService {
	return &NotificationService{notifications: notifications}
}

// Notify stores a notification row for the user.
func (s *NotificationService) Notify(ctx context.Context, userID, notificationType, title, body string) error {
	n := &models.Notification{
		ID:     utils.GenerateID(),
		UserID: userID,
		Type:   notificationType,
		Title:  title,
		Body:   body,
	}
	if err := s.notifications.Insert(ctx, nil, n); err != nil {
		return err
	}
	log.Printf("🔔 Notified user %s (%s)", userID, notificationType)
	return nil
}

// ListForUser returns the user's most recent notifications.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.notifications.ListByUser(ctx, nil, userID, limit)
}
