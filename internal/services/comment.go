package services

import (
	"errors"

	"telab/internal/authz"
	"telab/internal/models"

	"gorm.io/gorm"
)

// CommentService attaches admin feedback to workbooks. Authors must be
// allowed to comment on the workbook's lab and must never be the workbook's
// owner.
type CommentService struct {
	audit *AuditService
}

func NewCommentService(audit *AuditService) *CommentService {
	return &CommentService{audit: audit}
}

// CreateComment adds a comment to a workbook, optionally tied to one
// measurement.
func (s *CommentService) CreateComment(actor *models.User, workbookID uint, content string, measurementID *uint) (*models.Comment, error) {
	var wb models.Workbook
	if err := models.DB.First(&wb, workbookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if d := authz.Evaluate(actor, authz.ActionComment, authz.WorkbookTarget(&wb)); !d.Allowed {
		return nil, authz.Denied(authz.ActionComment, d)
	}
	if actor.ID == wb.ResearcherID {
		return nil, &InvariantViolation{Msg: "comment author must not be the workbook owner"}
	}

	if measurementID != nil {
		var m models.Measurement
		if err := models.DB.First(&m, *measurementID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		if m.WorkbookID != wb.ID {
			return nil, &InvariantViolation{Msg: "measurement belongs to a different workbook"}
		}
	}

	comment := &models.Comment{
		WorkbookID:    wb.ID,
		AuthorID:      actor.ID,
		MeasurementID: measurementID,
		Content:       content,
	}
	if err := models.DB.Create(comment).Error; err != nil {
		return nil, err
	}

	auditErr := s.audit.Record(Entry{
		ActorID:     &actor.ID,
		Action:      models.ActionCommentCreated,
		EntityType:  "comment",
		EntityID:    &comment.ID,
		Description: "commented on workbook",
		Metadata:    map[string]any{"workbook_id": wb.ID},
	})
	return comment, auditErr
}

// SetResolved flips the resolved flag. Conflicting writers are last-writer-
// wins; resolve races are rare and low-stakes.
func (s *CommentService) SetResolved(actor *models.User, commentID uint, resolved bool) (*models.Comment, error) {
	var comment models.Comment
	if err := models.DB.First(&comment, commentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var wb models.Workbook
	if err := models.DB.First(&wb, comment.WorkbookID).Error; err != nil {
		return nil, err
	}
	if d := authz.Evaluate(actor, authz.ActionComment, authz.WorkbookTarget(&wb)); !d.Allowed {
		return nil, authz.Denied(authz.ActionComment, d)
	}

	if err := models.DB.Model(&comment).Update("resolved", resolved).Error; err != nil {
		return nil, err
	}
	comment.Resolved = resolved

	auditErr := s.audit.Record(Entry{
		ActorID:    &actor.ID,
		Action:     models.ActionCommentResolved,
		EntityType: "comment",
		EntityID:   &comment.ID,
		Metadata:   map[string]any{"resolved": resolved},
	})
	return &comment, auditErr
}

// ListComments returns a workbook's comments, oldest first.
func (s *CommentService) ListComments(actor *models.User, workbookID uint) ([]models.Comment, error) {
	var wb models.Workbook
	if err := models.DB.First(&wb, workbookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if d := authz.Evaluate(actor, authz.ActionRead, authz.WorkbookTarget(&wb)); !d.Allowed {
		return nil, authz.Denied(authz.ActionRead, d)
	}

	var comments []models.Comment
	if err := models.DB.Where("workbook_id = ?", workbookID).Order("created_at").Preload("Author").Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}
