package middleware

import (
	"strings"

	"telab/internal/models"
	"telab/internal/services"
	"telab/internal/session"

	"github.com/gin-gonic/gin"
)

func AuthMiddleware(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(401, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(401, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		token := parts[1]

		// Verify token and get the login session
		loginSession, err := authService.GetSession(token)
		if err != nil {
			c.JSON(401, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		if loginSession.User.State != models.StateActive || loginSession.User.Locked {
			c.JSON(401, gin.H{"error": "Account is not active"})
			c.Abort()
			return
		}

		// A per-request session context carries the actor through the
		// service layer.
		sctx := session.New()
		sctx.SetUser(&loginSession.User)
		if loginSession.User.Lab != nil {
			sctx.SetLab(loginSession.User.Lab)
		}

		c.Set("session_context", sctx)
		c.Set("user", &loginSession.User)
		c.Set("login_session", loginSession)

		c.Next()
	}
}

func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, exists := c.Get("user")
		if !exists {
			c.JSON(401, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		userRole := user.(*models.User).Role
		hasRole := false
		for _, role := range roles {
			if userRole == role {
				hasRole = true
				break
			}
		}

		if !hasRole {
			c.JSON(403, gin.H{"error": "Forbidden: insufficient permissions"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// CurrentUser resolves the actor from the request's session context.
func CurrentUser(c *gin.Context) *models.User {
	v, exists := c.Get("session_context")
	if !exists {
		return nil
	}
	return v.(*session.Context).Current()
}
