package handlers

import (
	"telab/internal/api/middleware"
	"telab/internal/models"
	"telab/internal/services"

	"github.com/gin-gonic/gin"
)

type MeasurementHandler struct {
	measurementService *services.MeasurementService
}

func NewMeasurementHandler(measurementService *services.MeasurementService) *MeasurementHandler {
	return &MeasurementHandler{measurementService: measurementService}
}

type StartSessionRequest struct {
	WorkbookID      uint                   `json:"workbook_id" binding:"required"`
	MeasurementType models.MeasurementType `json:"measurement_type" binding:"required"`
}

// StartSession opens the researcher's single measurement session.
func (h *MeasurementHandler) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	actor := middleware.CurrentUser(c)
	sess, err := h.measurementService.StartSession(actor, req.WorkbookID, req.MeasurementType)
	respondMutation(c, 201, gin.H{"session": sess}, err)
}

// GetOpenSession returns the actor's currently open session, if any.
func (h *MeasurementHandler) GetOpenSession(c *gin.Context) {
	actor := middleware.CurrentUser(c)
	sess, err := h.measurementService.OpenSession(actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(200, sess)
}

type RecordMeasurementRequest struct {
	RawDataPath        string         `json:"raw_data_path" binding:"required"`
	ParsedData         map[string]any `json:"parsed_data"`
	InstrumentSettings map[string]any `json:"instrument_settings"`
	TemperatureRange   string         `json:"temperature_range"`
	Notes              string         `json:"notes"`
}

// RecordMeasurement appends one immutable measurement inside the session
// named in the URL.
func (h *MeasurementHandler) RecordMeasurement(c *gin.Context) {
	handle := c.Param("handle")

	var req RecordMeasurementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	actor := middleware.CurrentUser(c)
	m, err := h.measurementService.RecordMeasurement(actor, handle, services.RecordMeasurementInput{
		RawDataPath:        req.RawDataPath,
		ParsedData:         req.ParsedData,
		InstrumentSettings: req.InstrumentSettings,
		TemperatureRange:   req.TemperatureRange,
		Notes:              req.Notes,
	})
	respondMutation(c, 201, gin.H{"measurement": m}, err)
}

type CloseSessionRequest struct {
	Abort bool `json:"abort"`
}

// CloseSession ends a session, releasing the one-session slot.
func (h *MeasurementHandler) CloseSession(c *gin.Context) {
	handle := c.Param("handle")

	var req CloseSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
			return
		}
	}

	actor := middleware.CurrentUser(c)
	err := h.measurementService.CloseSession(actor, handle, req.Abort)
	respondMutation(c, 200, gin.H{"message": "Session closed"}, err)
}

// GetMeasurements lists measurements for a workbook, optionally filtered by
// type via ?type=seebeck.
func (h *MeasurementHandler) GetMeasurements(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	actor := middleware.CurrentUser(c)
	measurements, err := h.measurementService.ListMeasurements(actor, id, services.MeasurementTypeFilter(c.Query("type")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(200, gin.H{"measurements": measurements})
}

// GetMeasurement returns one measurement.
func (h *MeasurementHandler) GetMeasurement(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	actor := middleware.CurrentUser(c)
	m, err := h.measurementService.GetMeasurement(actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(200, m)
}
