package handlers

import (
	"strconv"

	"telab/internal/api/middleware"
	"telab/internal/services"

	"github.com/gin-gonic/gin"
)

type WorkbookHandler struct {
	workbookService *services.WorkbookService
	commentService  *services.CommentService
}

func NewWorkbookHandler(workbookService *services.WorkbookService, commentService *services.CommentService) *WorkbookHandler {
	return &WorkbookHandler{
		workbookService: workbookService,
		commentService:  commentService,
	}
}

type CreateWorkbookRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	SampleName  string `json:"sample_name"`
	SampleID    string `json:"sample_id"`
	Material    string `json:"material"`
}

// CreateWorkbook creates a workbook owned by the acting researcher.
func (h *WorkbookHandler) CreateWorkbook(c *gin.Context) {
	var req CreateWorkbookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	actor := middleware.CurrentUser(c)
	wb, err := h.workbookService.CreateWorkbook(actor, req.Title, services.WorkbookMetadata{
		Description: req.Description,
		SampleName:  req.SampleName,
		SampleID:    req.SampleID,
		Material:    req.Material,
	})
	respondMutation(c, 201, gin.H{"workbook": wb}, err)
}

// GetWorkbooks lists the workbooks visible to the actor.
func (h *WorkbookHandler) GetWorkbooks(c *gin.Context) {
	actor := middleware.CurrentUser(c)
	workbooks, err := h.workbookService.ListWorkbooks(actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(200, gin.H{"workbooks": workbooks})
}

// GetWorkbook returns one workbook.
func (h *WorkbookHandler) GetWorkbook(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	actor := middleware.CurrentUser(c)
	wb, err := h.workbookService.GetWorkbook(actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(200, wb)
}

type UpdateWorkbookRequest struct {
	Version     int     `json:"version" binding:"required"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	SampleName  *string `json:"sample_name"`
	SampleID    *string `json:"sample_id"`
	Material    *string `json:"material"`
}

// UpdateWorkbook updates mutable metadata with an optimistic version check.
func (h *WorkbookHandler) UpdateWorkbook(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req UpdateWorkbookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	fields := map[string]any{}
	if req.Title != nil {
		fields["title"] = *req.Title
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.SampleName != nil {
		fields["sample_name"] = *req.SampleName
	}
	if req.SampleID != nil {
		fields["sample_id"] = *req.SampleID
	}
	if req.Material != nil {
		fields["material"] = *req.Material
	}

	actor := middleware.CurrentUser(c)
	wb, err := h.workbookService.UpdateWorkbook(actor, id, req.Version, fields)
	respondMutation(c, 200, gin.H{"workbook": wb}, err)
}

// DeleteWorkbook archives a workbook.
func (h *WorkbookHandler) DeleteWorkbook(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	actor := middleware.CurrentUser(c)
	err := h.workbookService.DeleteWorkbook(actor, id)
	respondMutation(c, 200, gin.H{"message": "Workbook archived"}, err)
}

type CreateCommentRequest struct {
	Content       string `json:"content" binding:"required"`
	MeasurementID *uint  `json:"measurement_id"`
}

// CreateComment adds admin feedback to a workbook.
func (h *WorkbookHandler) CreateComment(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	actor := middleware.CurrentUser(c)
	comment, err := h.commentService.CreateComment(actor, id, req.Content, req.MeasurementID)
	respondMutation(c, 201, gin.H{"comment": comment}, err)
}

// GetComments lists a workbook's comments.
func (h *WorkbookHandler) GetComments(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	actor := middleware.CurrentUser(c)
	comments, err := h.commentService.ListComments(actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(200, gin.H{"comments": comments})
}

type ResolveCommentRequest struct {
	Resolved *bool `json:"resolved" binding:"required"`
}

// ResolveComment flips a comment's resolved flag.
func (h *WorkbookHandler) ResolveComment(c *gin.Context) {
	commentID, err := strconv.ParseUint(c.Param("comment_id"), 10, 32)
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid comment ID"})
		return
	}

	var req ResolveCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	actor := middleware.CurrentUser(c)
	comment, svcErr := h.commentService.SetResolved(actor, uint(commentID), *req.Resolved)
	respondMutation(c, 200, gin.H{"comment": comment}, svcErr)
}

func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid ID"})
		return 0, false
	}
	return uint(id), true
}
