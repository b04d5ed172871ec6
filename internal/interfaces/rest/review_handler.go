package rest

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stagedoor/backend/internal/application/services"
	"github.com/stagedoor/backend/internal/domain/models"
)

type ReviewHandler struct {
	svcMgr *services.ServiceManager
}

func NewReviewHandler(svcMgr *services.ServiceManager) *ReviewHandler {
	return &ReviewHandler{svcMgr: svcMgr}
}

// Approve handles POST /api/applications/:id/steps/:stepId/approve
func (h *ReviewHandler) Approve(c *gin.Context) {
	user := GetUserFromContext(c)

	HandleUpdateEnvelope(c, "Step approved", func() error {
		return h.svcMgr.Reviews.Approve(c.Request.Context(), c.Param("id"), c.Param("stepId"), user)
	})
}

// RejectRequest represents a rejection body
type RejectRequest struct {
	Message string `json:"message"`
}

// Reject handles POST /api/applications/:id/steps/:stepId/reject
func (h *ReviewHandler) Reject(c *gin.Context) {
	user := GetUserFromContext(c)

	var req RejectRequest
	if !BindJSON(c, &req) {
		return
	}

	HandleUpdateEnvelope(c, "Step rejected", func() error {
		return h.svcMgr.Reviews.Reject(c.Request.Context(), c.Param("id"), c.Param("stepId"), req.Message, user)
	})
}

// RequestInfoRequest represents a needs-info request body
type RequestInfoRequest struct {
	TargetFieldIDs []string   `json:"target_field_ids"`
	Message        string     `json:"message"`
	DeadlineAt     *time.Time `json:"deadline_at"`
}

// RequestInfo handles POST /api/applications/:id/steps/:stepId/request-info
func (h *ReviewHandler) RequestInfo(c *gin.Context) {
	user := GetUserFromContext(c)

	var req RequestInfoRequest
	if !BindJSON(c, &req) {
		return
	}

	HandleCreateEnvelope(c, "request", "Information requested", func() (interface{}, error) {
		return h.svcMgr.Reviews.RequestInfo(c.Request.Context(), services.RequestInfoInput{
			ApplicationID:  c.Param("id"),
			StepID:         c.Param("stepId"),
			TargetFieldIDs: req.TargetFieldIDs,
			Message:        req.Message,
			DeadlineAt:     req.DeadlineAt,
		}, user)
	})
}

// ListOpenRequests handles GET /api/applications/:id/steps/:stepId/requests
func (h *ReviewHandler) ListOpenRequests(c *gin.Context) {
	HandleGetEnvelope(c, "requests", func() (interface{}, error) {
		return h.svcMgr.Reviews.ListOpenRequests(c.Request.Context(), c.Param("id"), c.Param("stepId"))
	})
}

// CancelRequest handles POST /api/requests/:requestId/cancel
func (h *ReviewHandler) CancelRequest(c *gin.Context) {
	HandleUpdateEnvelope(c, "Request canceled", func() error {
		return h.svcMgr.Reviews.CancelRequest(c.Request.Context(), c.Param("requestId"))
	})
}

// PatchRequest represents an admin change patch body
type PatchRequest struct {
	VersionID string           `json:"version_id" binding:"required"`
	Ops       []models.PatchOp `json:"ops" binding:"required"`
}

// CreatePatch handles POST /api/applications/:id/steps/:stepId/patches
func (h *ReviewHandler) CreatePatch(c *gin.Context) {
	var req PatchRequest
	if !BindJSON(c, &req) {
		return
	}

	HandleCreateEnvelope(c, "patch", "Patch created successfully", func() (interface{}, error) {
		return h.svcMgr.Submissions.CreatePatch(c.Request.Context(), c.Param("id"), c.Param("stepId"), req.VersionID, req.Ops)
	})
}

// DeactivatePatch handles POST /api/patches/:patchId/deactivate
func (h *ReviewHandler) DeactivatePatch(c *gin.Context) {
	HandleUpdateEnvelope(c, "Patch deactivated", func() error {
		return h.svcMgr.Submissions.DeactivatePatch(c.Request.Context(), c.Param("patchId"))
	})
}
