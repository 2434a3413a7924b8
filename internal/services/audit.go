package services

import (
	"encoding/json"

	"telab/internal/authz"
	"telab/internal/logger"
	"telab/internal/models"

	"gorm.io/datatypes"
)

// AuditService appends immutable audit entries. Appending is the only
// operation it offers; the table itself rejects UPDATE and DELETE.
type AuditService struct {
	log *logger.Logger
}

func NewAuditService(log *logger.Logger) *AuditService {
	return &AuditService{log: log}
}

// Entry describes one audit event. ActorID is nil for events without a known
// actor, e.g. failed logins for unknown usernames.
type Entry struct {
	ActorID     *uint
	Action      string
	EntityType  string
	EntityID    *uint
	Description string
	Metadata    map[string]any
	IPAddress   string
	UserAgent   string
}

// Record appends one audit row. A failure never rolls back the operation that
// triggered it; it is returned as *AuditFailure for the caller to surface.
func (s *AuditService) Record(e Entry) error {
	row := models.AuditLog{
		UserID:      e.ActorID,
		Action:      e.Action,
		EntityType:  e.EntityType,
		EntityID:    e.EntityID,
		Description: e.Description,
		IPAddress:   e.IPAddress,
		UserAgent:   e.UserAgent,
	}
	if e.Metadata != nil {
		if b, err := json.Marshal(e.Metadata); err == nil {
			row.Metadata = datatypes.JSON(b)
		}
	}

	if err := models.DB.Create(&row).Error; err != nil {
		s.log.Errorw("audit append failed", "action", e.Action, "entity_type", e.EntityType, "error", err)
		return &AuditFailure{Action: e.Action, Err: err}
	}
	return nil
}

// List returns recent audit entries, newest first. Super admin only.
func (s *AuditService) List(actor *models.User, action string, limit int) ([]models.AuditLog, error) {
	if !actor.IsSuperAdmin() {
		return nil, &authz.PermissionError{Action: authz.ActionRead, Reason: authz.ReasonNoRule}
	}

	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query := models.DB.Order("created_at DESC").Limit(limit)
	if action != "" {
		query = query.Where("action = ?", action)
	}

	var entries []models.AuditLog
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func uintPtr(v uint) *uint {
	return &v
}
