package handlers

import (
	"strconv"

	"telab/internal/api/middleware"
	"telab/internal/services"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService *services.AuditService
}

func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// GetAuditLogs returns recent audit entries, optionally filtered by
// ?action=..., super admin only.
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	limit := 100
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	actor := middleware.CurrentUser(c)
	entries, err := h.auditService.List(actor, c.Query("action"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(200, gin.H{"audit_logs": entries})
}
