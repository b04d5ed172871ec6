package rest

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stagedoor/backend/internal/application/services"
	"github.com/stagedoor/backend/internal/domain/models"
)

type WorkflowHandler struct {
	svcMgr *services.ServiceManager
}

func NewWorkflowHandler(svcMgr *services.ServiceManager) *WorkflowHandler {
	return &WorkflowHandler{svcMgr: svcMgr}
}

// CreateStepRequest represents a workflow step definition
type CreateStepRequest struct {
	StepIndex          int        `json:"step_index"`
	Title              string     `json:"title" binding:"required"`
	Category           string     `json:"category"`
	UnlockPolicy       string     `json:"unlock_policy" binding:"required"`
	UnlockAt           *time.Time `json:"unlock_at"`
	StrictGating       bool       `json:"strict_gating"`
	ReviewRequired     bool       `json:"review_required"`
	RejectBehavior     string     `json:"reject_behavior"`
	DeadlineAt         *time.Time `json:"deadline_at"`
	FormVersionID      *string    `json:"form_version_id"`
	IsConfirmationStep bool       `json:"is_confirmation_step"`
}

// CreateStep handles POST /api/events/:eventId/steps
func (h *WorkflowHandler) CreateStep(c *gin.Context) {
	eventID := c.Param("eventId")

	var req CreateStepRequest
	if !BindJSON(c, &req) {
		return
	}

	HandleCreateEnvelope(c, "step", "Step created successfully", func() (interface{}, error) {
		return h.svcMgr.Workflow.CreateStep(c.Request.Context(), &models.WorkflowStep{
			EventID:            eventID,
			StepIndex:          req.StepIndex,
			Title:              req.Title,
			Category:           models.StepCategory(req.Category),
			UnlockPolicy:       models.UnlockPolicy(req.UnlockPolicy),
			UnlockAt:           req.UnlockAt,
			StrictGating:       req.StrictGating,
			ReviewRequired:     req.ReviewRequired,
			RejectBehavior:     models.RejectBehavior(req.RejectBehavior),
			DeadlineAt:         req.DeadlineAt,
			FormVersionID:      req.FormVersionID,
			IsConfirmationStep: req.IsConfirmationStep,
		})
	})
}

// ListSteps handles GET /api/events/:eventId/steps
func (h *WorkflowHandler) ListSteps(c *gin.Context) {
	eventID := c.Param("eventId")

	HandleGetEnvelope(c, "steps", func() (interface{}, error) {
		return h.svcMgr.Workflow.ListSteps(c.Request.Context(), eventID)
	})
}

// UnlockStep handles POST /api/applications/:id/steps/:stepId/unlock
func (h *WorkflowHandler) UnlockStep(c *gin.Context) {
	HandleUpdateEnvelope(c, "Step unlocked", func() error {
		return h.svcMgr.Workflow.ManualUnlock(c.Request.Context(), c.Param("id"), c.Param("stepId"))
	})
}

// LockStep handles POST /api/applications/:id/steps/:stepId/lock
func (h *WorkflowHandler) LockStep(c *gin.Context) {
	HandleUpdateEnvelope(c, "Step locked", func() error {
		return h.svcMgr.Workflow.ManualLock(c.Request.Context(), c.Param("id"), c.Param("stepId"))
	})
}

// BulkLockRequest represents a bulk lock request body
type BulkLockRequest struct {
	StepIDs []string `json:"step_ids" binding:"required"`
}

// BulkLock handles POST /api/applications/:id/steps/lock
func (h *WorkflowHandler) BulkLock(c *gin.Context) {
	var req BulkLockRequest
	if !BindJSON(c, &req) {
		return
	}

	HandleUpdateEnvelope(c, "Steps locked", func() error {
		return h.svcMgr.Workflow.BulkLock(c.Request.Context(), c.Param("id"), req.StepIDs)
	})
}

// RecomputeEvent handles POST /api/events/:eventId/recompute
func (h *WorkflowHandler) RecomputeEvent(c *gin.Context) {
	HandleUpdateEnvelope(c, "Recompute completed", func() error {
		return h.svcMgr.Workflow.RecomputeEvent(c.Request.Context(), c.Param("eventId"))
	})
}
