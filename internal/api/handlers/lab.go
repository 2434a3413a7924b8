package handlers

import (
	"telab/internal/api/middleware"
	"telab/internal/services"

	"github.com/gin-gonic/gin"
)

type LabHandler struct {
	labService *services.LabService
}

func NewLabHandler(labService *services.LabService) *LabHandler {
	return &LabHandler{labService: labService}
}

// GetLabs returns all active labs
func (h *LabHandler) GetLabs(c *gin.Context) {
	labs, err := h.labService.GetLabs()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(200, gin.H{"labs": labs})
}

// GetLab returns a specific lab
func (h *LabHandler) GetLab(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	lab, err := h.labService.GetLab(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(200, lab)
}

type CreateLabRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Location    string `json:"location"`
	AdminID     *uint  `json:"admin_id"`
}

// CreateLab creates a new lab
func (h *LabHandler) CreateLab(c *gin.Context) {
	var req CreateLabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	actor := middleware.CurrentUser(c)
	lab, err := h.labService.CreateLab(actor, services.CreateLabData{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		AdminID:     req.AdminID,
	})
	respondMutation(c, 201, gin.H{"lab": lab}, err)
}

type UpdateLabRequest struct {
	Description *string `json:"description"`
	Location    *string `json:"location"`
	AdminID     *uint   `json:"admin_id"`
}

// UpdateLab updates lab details
func (h *LabHandler) UpdateLab(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req UpdateLabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	actor := middleware.CurrentUser(c)
	lab, err := h.labService.UpdateLab(actor, id, services.UpdateLabData{
		Description: req.Description,
		Location:    req.Location,
		AdminID:     req.AdminID,
	})
	respondMutation(c, 200, gin.H{"lab": lab}, err)
}

// DeleteLab archives a lab
func (h *LabHandler) DeleteLab(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	actor := middleware.CurrentUser(c)
	err := h.labService.ArchiveLab(actor, id)
	respondMutation(c, 200, gin.H{"message": "Lab archived"}, err)
}
