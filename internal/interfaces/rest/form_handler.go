package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/stagedoor/backend/internal/application/services"
	"github.com/stagedoor/backend/internal/domain/models"
	"github.com/stagedoor/backend/pkg/utils"
)

type FormHandler struct {
	svcMgr *services.ServiceManager
}

func NewFormHandler(svcMgr *services.ServiceManager) *FormHandler {
	return &FormHandler{svcMgr: svcMgr}
}

// PublishFormRequest represents a form version definition
type PublishFormRequest struct {
	Definition *models.FormDefinition `json:"definition" binding:"required"`
}

// Publish handles POST /api/events/:eventId/forms
// Form versions are immutable; editing a form means publishing a new version
// and pointing the step at it.
func (h *FormHandler) Publish(c *gin.Context) {
	var req PublishFormRequest
	if !BindJSON(c, &req) {
		return
	}

	form := &models.FormVersion{
		ID:         utils.GenerateID(),
		EventID:    c.Param("eventId"),
		Definition: req.Definition,
	}

	HandleCreateEnvelope(c, "form", "Form version published", func() (interface{}, error) {
		if err := h.svcMgr.Forms.Publish(c.Request.Context(), form); err != nil {
			return nil, err
		}
		return form, nil
	})
}

// Get handles GET /api/forms/:formId
func (h *FormHandler) Get(c *gin.Context) {
	HandleGetEnvelope(c, "form", func() (interface{}, error) {
		form, _, err := h.svcMgr.Forms.Get(c.Request.Context(), c.Param("formId"))
		return form, err
	})
}
