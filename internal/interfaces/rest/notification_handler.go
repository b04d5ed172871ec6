package rest

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stagedoor/backend/internal/application/services"
)

type NotificationHandler struct {
	svcMgr *services.ServiceManager
}

func NewNotificationHandler(svcMgr *services.ServiceManager) *NotificationHandler {
	return &NotificationHandler{svcMgr: svcMgr}
}

// GetNotifications handles GET /api/notifications
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	user := GetUserFromContext(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	HandleGetEnvelope(c, "data", func() (interface{}, error) {
		return h.svcMgr.Notification.ListForUser(c.Request.Context(), user.ID, limit)
	})
}
