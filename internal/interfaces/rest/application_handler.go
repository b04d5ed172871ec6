package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stagedoor/backend/internal/application/services"
	"github.com/stagedoor/backend/internal/domain/models"
)

type ApplicationHandler struct {
	svcMgr *services.ServiceManager
}

func NewApplicationHandler(svcMgr *services.ServiceManager) *ApplicationHandler {
	return &ApplicationHandler{svcMgr: svcMgr}
}

// Create handles POST /api/events/:eventId/applications
func (h *ApplicationHandler) Create(c *gin.Context) {
	user := GetUserFromContext(c)
	eventID := c.Param("eventId")

	HandleCreateEnvelope(c, "application", "Application created successfully", func() (interface{}, error) {
		return h.svcMgr.Applications.Create(c.Request.Context(), eventID, user)
	})
}

// Get handles GET /api/applications/:id
// The response carries the application plus the per-step progress view; step
// statuses are recomputed on the way out so date-based unlocks never appear
// stale.
func (h *ApplicationHandler) Get(c *gin.Context) {
	user := GetUserFromContext(c)

	progress, err := h.svcMgr.Applications.Get(c.Request.Context(), c.Param("id"), user)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"application": progress.Application,
		"steps":       progress.Steps,
	})
}

// DraftRequest represents a draft save body
type DraftRequest struct {
	Answers models.AnswerMap `json:"answers" binding:"required"`
}

// SaveDraft handles PUT /api/applications/:id/steps/:stepId/draft
func (h *ApplicationHandler) SaveDraft(c *gin.Context) {
	user := GetUserFromContext(c)

	var req DraftRequest
	if !BindJSON(c, &req) {
		return
	}

	HandleUpdateEnvelope(c, "Draft saved", func() error {
		return h.svcMgr.Submissions.SaveDraft(c.Request.Context(), c.Param("id"), c.Param("stepId"), req.Answers, user)
	})
}

// GetDraft handles GET /api/applications/:id/steps/:stepId/draft
func (h *ApplicationHandler) GetDraft(c *gin.Context) {
	user := GetUserFromContext(c)

	HandleGetEnvelope(c, "draft", func() (interface{}, error) {
		return h.svcMgr.Submissions.GetDraft(c.Request.Context(), c.Param("id"), c.Param("stepId"), user)
	})
}

// SubmitRequest represents a step submission body
type SubmitRequest struct {
	Answers models.AnswerMap `json:"answers"`
}

// Submit handles POST /api/applications/:id/steps/:stepId/submit
func (h *ApplicationHandler) Submit(c *gin.Context) {
	user := GetUserFromContext(c)

	var req SubmitRequest
	if !BindJSON(c, &req) {
		return
	}

	HandleCreateEnvelope(c, "version", "Step submitted successfully", func() (interface{}, error) {
		return h.svcMgr.Submissions.SubmitStep(c.Request.Context(), c.Param("id"), c.Param("stepId"), req.Answers, user)
	})
}

// ListVersions handles GET /api/applications/:id/steps/:stepId/versions
func (h *ApplicationHandler) ListVersions(c *gin.Context) {
	user := GetUserFromContext(c)

	HandleGetEnvelope(c, "versions", func() (interface{}, error) {
		return h.svcMgr.Submissions.ListVersions(c.Request.Context(), c.Param("id"), c.Param("stepId"), user)
	})
}

// GetEffectiveAnswers handles GET /api/applications/:id/steps/:stepId/answers
// ?version=<id> pins a historical version; the default is the latest one.
func (h *ApplicationHandler) GetEffectiveAnswers(c *gin.Context) {
	user := GetUserFromContext(c)
	versionID := c.Query("version")

	HandleGetEnvelope(c, "effective", func() (interface{}, error) {
		return h.svcMgr.Submissions.GetEffectiveAnswers(c.Request.Context(), c.Param("id"), c.Param("stepId"), versionID, user)
	})
}
