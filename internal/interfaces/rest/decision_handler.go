package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/stagedoor/backend/internal/application/services"
	"github.com/stagedoor/backend/internal/domain/models"
)

type DecisionHandler struct {
	svcMgr *services.ServiceManager
}

func NewDecisionHandler(svcMgr *services.ServiceManager) *DecisionHandler {
	return &DecisionHandler{svcMgr: svcMgr}
}

// SetDecisionRequest represents a draft decision body
type SetDecisionRequest struct {
	Decision string `json:"decision" binding:"required"`
}

// SetDecision handles PUT /api/applications/:id/decision
func (h *DecisionHandler) SetDecision(c *gin.Context) {
	var req SetDecisionRequest
	if !BindJSON(c, &req) {
		return
	}

	HandleUpdateEnvelope(c, "Decision recorded", func() error {
		return h.svcMgr.Decisions.SetDecision(c.Request.Context(), c.Param("id"), models.DecisionStatus(req.Decision))
	})
}

// PublishRequest represents a publish body; an empty id list publishes every
// decided, unpublished application of the event.
type PublishRequest struct {
	ApplicationIDs []string `json:"application_ids"`
}

// PublishDecisions handles POST /api/events/:eventId/decisions/publish
func (h *DecisionHandler) PublishDecisions(c *gin.Context) {
	var req PublishRequest
	if c.Request.ContentLength > 0 && !BindJSON(c, &req) {
		return
	}

	HandleGetEnvelope(c, "report", func() (interface{}, error) {
		return h.svcMgr.Decisions.PublishDecisions(c.Request.Context(), c.Param("eventId"), req.ApplicationIDs)
	})
}
