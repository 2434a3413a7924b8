package handlers

import (
	"telab/internal/api/middleware"
	"telab/internal/models"
	"telab/internal/services"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GetUsers returns all users
func (h *UserHandler) GetUsers(c *gin.Context) {
	actor := middleware.CurrentUser(c)
	users, err := h.userService.GetUsers(actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(200, gin.H{"users": users})
}

// GetUser returns a specific user
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	actor := middleware.CurrentUser(c)
	user, err := h.userService.GetUser(actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(200, user)
}

type CreateUserRequest struct {
	Username          string      `json:"username" binding:"required"`
	Email             string      `json:"email" binding:"required,email"`
	FullName          string      `json:"full_name" binding:"required"`
	Password          string      `json:"password" binding:"required,min=8"`
	Role              models.Role `json:"role" binding:"required"`
	LabID             *uint       `json:"lab_id"`
	PreferredLanguage string      `json:"preferred_language"`
}

// CreateUser creates a new user
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	actor := middleware.CurrentUser(c)
	user, err := h.userService.CreateUser(actor, services.CreateUserData{
		Username:          req.Username,
		Email:             req.Email,
		FullName:          req.FullName,
		Password:          req.Password,
		Role:              req.Role,
		LabID:             req.LabID,
		PreferredLanguage: req.PreferredLanguage,
	})
	respondMutation(c, 201, gin.H{"user": user}, err)
}

type UpdateUserRequest struct {
	FullName          *string `json:"full_name"`
	Email             *string `json:"email"`
	LabID             *uint   `json:"lab_id"`
	PreferredLanguage *string `json:"preferred_language"`
}

// UpdateUser updates profile fields
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	actor := middleware.CurrentUser(c)
	user, err := h.userService.UpdateUser(actor, id, services.UpdateUserData{
		FullName:          req.FullName,
		Email:             req.Email,
		LabID:             req.LabID,
		PreferredLanguage: req.PreferredLanguage,
	})
	respondMutation(c, 200, gin.H{"user": user}, err)
}

type ChangeRoleRequest struct {
	Role models.Role `json:"role" binding:"required"`
}

// ChangeRole changes a user's role
func (h *UserHandler) ChangeRole(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	actor := middleware.CurrentUser(c)
	user, err := h.userService.ChangeRole(actor, id, req.Role)
	respondMutation(c, 200, gin.H{"user": user}, err)
}

type ResetPasswordRequest struct {
	Password string `json:"password" binding:"required,min=8"`
}

// ResetPassword sets a new password
func (h *UserHandler) ResetPassword(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	actor := middleware.CurrentUser(c)
	err := h.userService.ResetPassword(actor, id, req.Password)
	respondMutation(c, 200, gin.H{"message": "Password updated"}, err)
}

type SetLockedRequest struct {
	Locked *bool `json:"locked" binding:"required"`
}

// SetLocked locks or unlocks an account
func (h *UserHandler) SetLocked(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req SetLockedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	actor := middleware.CurrentUser(c)
	err := h.userService.SetLocked(actor, id, *req.Locked)
	respondMutation(c, 200, gin.H{"message": "Lock state updated"}, err)
}

// DeleteUser archives a user
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	actor := middleware.CurrentUser(c)
	err := h.userService.ArchiveUser(actor, id)
	respondMutation(c, 200, gin.H{"message": "User archived"}, err)
}

type LabPermissionRequest struct {
	LabID uint `json:"lab_id" binding:"required"`
}

// GrantLabPermission grants access to an additional lab
func (h *UserHandler) GrantLabPermission(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req LabPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	actor := middleware.CurrentUser(c)
	err := h.userService.GrantLabPermission(actor, id, req.LabID)
	respondMutation(c, 200, gin.H{"message": "Permission granted"}, err)
}

// RevokeLabPermission removes an additional lab grant
func (h *UserHandler) RevokeLabPermission(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req LabPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	actor := middleware.CurrentUser(c)
	err := h.userService.RevokeLabPermission(actor, id, req.LabID)
	respondMutation(c, 200, gin.H{"message": "Permission revoked"}, err)
}
