package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/stagedoor/backend/internal/application/services"
)

type FileHandler struct {
	svcMgr *services.ServiceManager
}

func NewFileHandler(svcMgr *services.ServiceManager) *FileHandler {
	return &FileHandler{svcMgr: svcMgr}
}

// VerifyFile handles POST /api/files/:fileId/verify
// Approval of a step with file answers is blocked until every referenced
// file has been verified.
func (h *FileHandler) VerifyFile(c *gin.Context) {
	HandleUpdateEnvelope(c, "File verified", func() error {
		return h.svcMgr.Files.MarkVerified(c.Request.Context(), nil, c.Param("fileId"))
	})
}
