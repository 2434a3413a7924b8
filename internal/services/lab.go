package services

import (
	"errors"

	"telab/internal/authz"
	"telab/internal/models"

	"gorm.io/gorm"
)

// LabService covers lab administration, super-admin only.
type LabService struct {
	audit *AuditService
}

func NewLabService(audit *AuditService) *LabService {
	return &LabService{audit: audit}
}

type CreateLabData struct {
	Name        string
	Description string
	Location    string
	AdminID     *uint
}

// CreateLab creates a lab. The admin reference, when given, must hold the
// lab_admin role.
func (s *LabService) CreateLab(actor *models.User, data CreateLabData) (*models.Lab, error) {
	if !actor.IsSuperAdmin() {
		return nil, &authz.PermissionError{Action: "create", Reason: authz.ReasonNoRule}
	}

	var existing models.Lab
	if err := models.DB.Where("name = ?", data.Name).First(&existing).Error; err == nil {
		return nil, ErrLabExists
	}

	if data.AdminID != nil {
		var admin models.User
		if err := models.DB.First(&admin, *data.AdminID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		if !admin.IsLabAdmin() {
			return nil, &InvariantViolation{Msg: "lab admin reference must hold the lab_admin role"}
		}
	}

	lab := &models.Lab{
		Name:        data.Name,
		Description: data.Description,
		Location:    data.Location,
		AdminID:     data.AdminID,
		State:       models.StateActive,
	}
	if err := models.DB.Create(lab).Error; err != nil {
		return nil, err
	}

	auditErr := s.audit.Record(Entry{
		ActorID:     &actor.ID,
		Action:      models.ActionLabCreated,
		EntityType:  "lab",
		EntityID:    &lab.ID,
		Description: "created lab: " + lab.Name,
	})
	return lab, auditErr
}

// GetLabs returns all active labs
func (s *LabService) GetLabs() ([]models.Lab, error) {
	var labs []models.Lab
	if err := models.DB.Where("state = ?", models.StateActive).Order("name").Find(&labs).Error; err != nil {
		return nil, err
	}
	return labs, nil
}

// GetLab returns a specific lab by ID
func (s *LabService) GetLab(id uint) (*models.Lab, error) {
	var lab models.Lab
	if err := models.DB.Preload("Admin").First(&lab, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &lab, nil
}

type UpdateLabData struct {
	Description *string
	Location    *string
	AdminID     *uint
}

// UpdateLab updates lab details. The name is the lab's identity and stays.
func (s *LabService) UpdateLab(actor *models.User, id uint, data UpdateLabData) (*models.Lab, error) {
	if !actor.IsSuperAdmin() {
		return nil, &authz.PermissionError{Action: authz.ActionUpdate, Reason: authz.ReasonNoRule}
	}

	var lab models.Lab
	if err := models.DB.First(&lab, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	updates := map[string]any{}
	if data.Description != nil {
		updates["description"] = *data.Description
	}
	if data.Location != nil {
		updates["location"] = *data.Location
	}
	if data.AdminID != nil {
		var admin models.User
		if err := models.DB.First(&admin, *data.AdminID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		if !admin.IsLabAdmin() {
			return nil, &InvariantViolation{Msg: "lab admin reference must hold the lab_admin role"}
		}
		updates["admin_id"] = *data.AdminID
	}

	if len(updates) > 0 {
		if err := models.DB.Model(&lab).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	auditErr := s.audit.Record(Entry{
		ActorID:     &actor.ID,
		Action:      models.ActionLabUpdated,
		EntityType:  "lab",
		EntityID:    &lab.ID,
		Description: "updated lab: " + lab.Name,
	})
	return &lab, auditErr
}

// ArchiveLab deactivates a lab.
func (s *LabService) ArchiveLab(actor *models.User, id uint) error {
	if !actor.IsSuperAdmin() {
		return &authz.PermissionError{Action: authz.ActionDelete, Reason: authz.ReasonNoRule}
	}

	var lab models.Lab
	if err := models.DB.First(&lab, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if lab.State != models.StateActive {
		return ErrNotFound
	}

	if err := models.DB.Model(&lab).Update("state", models.StateArchived).Error; err != nil {
		return err
	}

	return s.audit.Record(Entry{
		ActorID:     &actor.ID,
		Action:      models.ActionLabArchived,
		EntityType:  "lab",
		EntityID:    &lab.ID,
		Description: "archived lab: " + lab.Name,
	})
}
