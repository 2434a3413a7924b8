package services

import (
	"errors"

	"telab/internal/authz"
	"telab/internal/logger"
	"telab/internal/models"

	"gorm.io/gorm"
)

// WorkbookService is the only write path for workbook rows. Every mutation is
// gated by the permission evaluator and followed by exactly one audit entry.
type WorkbookService struct {
	audit *AuditService
	log   *logger.Logger
}

func NewWorkbookService(audit *AuditService, log *logger.Logger) *WorkbookService {
	return &WorkbookService{audit: audit, log: log}
}

// Fields a researcher may change after creation. Owner and lab are immutable.
var workbookMutableFields = map[string]bool{
	"title":       true,
	"description": true,
	"sample_name": true,
	"sample_id":   true,
	"material":    true,
}

type WorkbookMetadata struct {
	Description string
	SampleName  string
	SampleID    string
	Material    string
}

// CreateWorkbook creates a workbook for the acting researcher. The lab is
// inherited from the actor's primary lab and never changes afterwards.
func (s *WorkbookService) CreateWorkbook(actor *models.User, title string, meta WorkbookMetadata) (*models.Workbook, error) {
	if !actor.IsResearcher() {
		return nil, &authz.PermissionError{Action: "create", Reason: authz.ReasonNoRule}
	}
	if actor.LabID == nil {
		return nil, &InvariantViolation{Msg: "researcher has no primary lab"}
	}

	wb := &models.Workbook{
		Title:        title,
		Description:  meta.Description,
		SampleName:   meta.SampleName,
		SampleID:     meta.SampleID,
		Material:     meta.Material,
		ResearcherID: actor.ID,
		LabID:        *actor.LabID,
		Version:      1,
		State:        models.StateActive,
	}
	if err := models.DB.Create(wb).Error; err != nil {
		return nil, err
	}

	auditErr := s.audit.Record(Entry{
		ActorID:     &actor.ID,
		Action:      models.ActionWorkbookCreated,
		EntityType:  "workbook",
		EntityID:    &wb.ID,
		Description: "created workbook: " + wb.Title,
	})
	return wb, auditErr
}

// GetWorkbook loads a workbook with access control.
func (s *WorkbookService) GetWorkbook(actor *models.User, id uint) (*models.Workbook, error) {
	var wb models.Workbook
	if err := models.DB.First(&wb, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if d := authz.Evaluate(actor, authz.ActionRead, authz.WorkbookTarget(&wb)); !d.Allowed {
		return nil, authz.Denied(authz.ActionRead, d)
	}
	return &wb, nil
}

// ListWorkbooks returns the active workbooks visible to the actor: their own
// for researchers, the lab's for lab admins, everything for super admins.
func (s *WorkbookService) ListWorkbooks(actor *models.User) ([]models.Workbook, error) {
	query := models.DB.Where("state = ?", models.StateActive).Order("created_at DESC")

	switch {
	case actor.IsResearcher():
		query = query.Where("researcher_id = ?", actor.ID)
	case actor.IsLabAdmin():
		if actor.LabID == nil {
			return []models.Workbook{}, nil
		}
		query = query.Where("lab_id = ?", *actor.LabID)
	case actor.IsSuperAdmin():
		// no scoping
	default:
		return []models.Workbook{}, nil
	}

	var workbooks []models.Workbook
	if err := query.Find(&workbooks).Error; err != nil {
		return nil, err
	}
	return workbooks, nil
}

// UpdateWorkbook applies metadata changes with an optimistic version check.
// Attempts to touch owner or lab fail as an invariant violation before any
// write happens. A lost version race returns ErrConflict; the caller must
// re-read and retry.
func (s *WorkbookService) UpdateWorkbook(actor *models.User, id uint, version int, fields map[string]any) (*models.Workbook, error) {
	for name := range fields {
		if !workbookMutableFields[name] {
			return nil, &InvariantViolation{Msg: "field is not mutable: " + name}
		}
	}

	var wb models.Workbook
	if err := models.DB.First(&wb, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if wb.State != models.StateActive {
		return nil, ErrNotFound
	}

	if d := authz.Evaluate(actor, authz.ActionUpdate, authz.WorkbookTarget(&wb)); !d.Allowed {
		return nil, authz.Denied(authz.ActionUpdate, d)
	}

	if len(fields) == 0 {
		return &wb, nil
	}

	updates := make(map[string]any, len(fields)+1)
	for name, value := range fields {
		updates[name] = value
	}
	updates["version"] = version + 1

	res := models.DB.Model(&models.Workbook{}).
		Where("id = ? AND version = ?", id, version).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Row exists but the version moved underneath us.
		return nil, ErrConflict
	}

	if err := models.DB.First(&wb, id).Error; err != nil {
		return nil, err
	}

	auditErr := s.audit.Record(Entry{
		ActorID:     &actor.ID,
		Action:      models.ActionWorkbookUpdated,
		EntityType:  "workbook",
		EntityID:    &wb.ID,
		Description: "updated workbook metadata",
	})
	return &wb, auditErr
}

// DeleteWorkbook archives a workbook. Archived workbooks stay in the store;
// nothing is physically removed.
func (s *WorkbookService) DeleteWorkbook(actor *models.User, id uint) error {
	var wb models.Workbook
	if err := models.DB.First(&wb, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if wb.State != models.StateActive {
		return ErrNotFound
	}

	if d := authz.Evaluate(actor, authz.ActionDelete, authz.WorkbookTarget(&wb)); !d.Allowed {
		return authz.Denied(authz.ActionDelete, d)
	}

	if err := models.DB.Model(&wb).Update("state", models.StateArchived).Error; err != nil {
		return err
	}

	return s.audit.Record(Entry{
		ActorID:     &actor.ID,
		Action:      models.ActionWorkbookArchived,
		EntityType:  "workbook",
		EntityID:    &wb.ID,
		Description: "archived workbook: " + wb.Title,
	})
}
