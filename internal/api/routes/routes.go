package routes

import (
	"telab/internal/api/handlers"
	"telab/internal/api/middleware"
	"telab/internal/config"
	"telab/internal/logger"
	"telab/internal/models"
	"telab/internal/services"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, cfg *config.Config, log *logger.Logger) {
	// Initialize services
	auditService := services.NewAuditService(log)
	authService := services.NewAuthService(cfg, auditService)
	userService := services.NewUserService(cfg, authService, auditService)
	labService := services.NewLabService(auditService)
	workbookService := services.NewWorkbookService(auditService, log)
	measurementService := services.NewMeasurementService(cfg, auditService, log)
	commentService := services.NewCommentService(auditService)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, cfg)
	userHandler := handlers.NewUserHandler(userService)
	labHandler := handlers.NewLabHandler(labService)
	workbookHandler := handlers.NewWorkbookHandler(workbookService, commentService)
	measurementHandler := handlers.NewMeasurementHandler(measurementService)
	auditHandler := handlers.NewAuditHandler(auditService)

	// Middleware
	r.Use(middleware.CORSMiddleware())

	// Public routes
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "ok",
				"message": "te-lab API is running",
			})
		})

		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
		}
	}

	// Protected routes
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(authService))
	{
		// Auth routes (protected)
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/auth/me", authHandler.GetMe)

		// User management routes (super admin only, except self lookup)
		users := protected.Group("/users")
		{
			users.GET("", middleware.RequireRole(models.RoleSuperAdmin), userHandler.GetUsers)
			users.GET("/:id", userHandler.GetUser)
			users.POST("", middleware.RequireRole(models.RoleSuperAdmin), userHandler.CreateUser)
			users.PUT("/:id", middleware.RequireRole(models.RoleSuperAdmin), userHandler.UpdateUser)
			users.PUT("/:id/role", middleware.RequireRole(models.RoleSuperAdmin), userHandler.ChangeRole)
			users.POST("/:id/password", userHandler.ResetPassword)
			users.PUT("/:id/lock", middleware.RequireRole(models.RoleSuperAdmin), userHandler.SetLocked)
			users.DELETE("/:id", middleware.RequireRole(models.RoleSuperAdmin), userHandler.DeleteUser)
			users.POST("/:id/labs", middleware.RequireRole(models.RoleSuperAdmin), userHandler.GrantLabPermission)
			users.DELETE("/:id/labs", middleware.RequireRole(models.RoleSuperAdmin), userHandler.RevokeLabPermission)
		}

		// Lab management routes
		labs := protected.Group("/labs")
		{
			labs.GET("", labHandler.GetLabs)
			labs.GET("/:id", labHandler.GetLab)
			labs.POST("", middleware.RequireRole(models.RoleSuperAdmin), labHandler.CreateLab)
			labs.PUT("/:id", middleware.RequireRole(models.RoleSuperAdmin), labHandler.UpdateLab)
			labs.DELETE("/:id", middleware.RequireRole(models.RoleSuperAdmin), labHandler.DeleteLab)
		}

		// Workbook routes; the services re-check permissions on every call,
		// so no role middleware here.
		workbooks := protected.Group("/workbooks")
		{
			workbooks.GET("", workbookHandler.GetWorkbooks)
			workbooks.GET("/:id", workbookHandler.GetWorkbook)
			workbooks.POST("", workbookHandler.CreateWorkbook)
			workbooks.PUT("/:id", workbookHandler.UpdateWorkbook)
			workbooks.DELETE("/:id", workbookHandler.DeleteWorkbook)
			workbooks.GET("/:id/measurements", measurementHandler.GetMeasurements)
			workbooks.GET("/:id/comments", workbookHandler.GetComments)
			workbooks.POST("/:id/comments", workbookHandler.CreateComment)
		}

		// Comment routes
		comments := protected.Group("/comments")
		{
			comments.PUT("/:comment_id/resolve", workbookHandler.ResolveComment)
		}

		// Measurement session routes
		sessions := protected.Group("/measurement-sessions")
		{
			sessions.POST("", measurementHandler.StartSession)
			sessions.GET("/open", measurementHandler.GetOpenSession)
			sessions.POST("/:handle/measurements", measurementHandler.RecordMeasurement)
			sessions.POST("/:handle/close", measurementHandler.CloseSession)
		}

		// Measurement routes: read-only by construction. There is no update
		// or delete endpoint for measurements.
		measurements := protected.Group("/measurements")
		{
			measurements.GET("/:id", measurementHandler.GetMeasurement)
		}

		// Audit log routes
		audit := protected.Group("/audit")
		{
			audit.GET("", middleware.RequireRole(models.RoleSuperAdmin), auditHandler.GetAuditLogs)
		}
	}
}
