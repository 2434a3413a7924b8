package handlers

import (
	"errors"

	"telab/internal/authz"
	"telab/internal/services"

	"github.com/gin-gonic/gin"
)

// respondError maps service errors onto HTTP status codes.
func respondError(c *gin.Context, err error) {
	var permErr *authz.PermissionError
	var invErr *services.InvariantViolation

	switch {
	case errors.As(err, &permErr):
		c.JSON(403, gin.H{"error": "Permission denied", "reason": permErr.Reason})
	case errors.As(err, &invErr):
		c.JSON(422, gin.H{"error": invErr.Msg})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(404, gin.H{"error": "Not found"})
	case errors.Is(err, services.ErrStaleSession):
		c.JSON(409, gin.H{"error": "Measurement session is stale and must be closed first", "code": "stale_session"})
	case errors.Is(err, services.ErrConflict):
		c.JSON(409, gin.H{"error": "Conflict: refresh and retry"})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(401, gin.H{"error": "Invalid credentials"})
	case errors.Is(err, services.ErrAccountLocked):
		c.JSON(403, gin.H{"error": "Account is locked. Please contact an administrator."})
	case errors.Is(err, services.ErrAccountArchived):
		c.JSON(403, gin.H{"error": "Account is deactivated"})
	case errors.Is(err, services.ErrUserExists),
		errors.Is(err, services.ErrEmailExists),
		errors.Is(err, services.ErrLabExists):
		c.JSON(409, gin.H{"error": err.Error()})
	default:
		c.JSON(500, gin.H{"error": "Internal error", "details": err.Error()})
	}
}

// respondMutation writes a successful mutation response, downgrading a failed
// audit append to a warning: the primary write already committed and is not
// rolled back.
func respondMutation(c *gin.Context, status int, body gin.H, err error) bool {
	if err == nil {
		c.JSON(status, body)
		return true
	}
	var auditErr *services.AuditFailure
	if errors.As(err, &auditErr) {
		body["audit_warning"] = auditErr.Error()
		c.JSON(status, body)
		return true
	}
	respondError(c, err)
	return false
}
