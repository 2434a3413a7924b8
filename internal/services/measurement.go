package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"

	"telab/internal/authz"
	"telab/internal/config"
	"telab/internal/logger"
	"telab/internal/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MeasurementService is the only write path for measurement data. Rows are
// inserted once inside an open measurement session and never touched again;
// a correction means recording a new measurement.
type MeasurementService struct {
	cfg   *config.Config
	audit *AuditService
	log   *logger.Logger
}

func NewMeasurementService(cfg *config.Config, audit *AuditService, log *logger.Logger) *MeasurementService {
	return &MeasurementService{cfg: cfg, audit: audit, log: log}
}

// StartSession opens the single recording window a researcher may hold.
// The one-session-per-researcher slot is a store-level compare-and-set (a
// unique index on the active-user column), so two concurrent starts cannot
// both succeed even across separate application instances. An open session
// past the idle timeout surfaces as ErrStaleSession and must be closed
// explicitly before a new one can start.
func (s *MeasurementService) StartSession(actor *models.User, workbookID uint, mtype models.MeasurementType) (*models.MeasurementSession, error) {
	if !models.ValidMeasurementType(mtype) {
		return nil, &InvariantViolation{Msg: "unknown measurement type: " + string(mtype)}
	}

	var wb models.Workbook
	if err := models.DB.First(&wb, workbookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if wb.State != models.StateActive {
		return nil, ErrNotFound
	}

	if d := authz.Evaluate(actor, authz.ActionCreateMeasurement, authz.WorkbookTarget(&wb)); !d.Allowed {
		return nil, authz.Denied(authz.ActionCreateMeasurement, d)
	}

	var open models.MeasurementSession
	err := models.DB.Where("user_id = ? AND status = ?", actor.ID, models.SessionOpen).First(&open).Error
	if err == nil {
		if time.Since(open.LastActivityAt) > s.cfg.SessionIdleTimeout() {
			return nil, ErrStaleSession
		}
		return nil, ErrConflict
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now()
	sess := &models.MeasurementSession{
		Handle:          uuid.NewString(),
		UserID:          actor.ID,
		WorkbookID:      wb.ID,
		MeasurementType: mtype,
		Status:          models.SessionOpen,
		ActiveUserID:    &actor.ID,
		StartedAt:       now,
		LastActivityAt:  now,
	}
	if err := models.DB.Create(sess).Error; err != nil {
		// Lost the CAS: another start slipped in between the check and the
		// insert and took the unique active-user slot.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrConflict
		}
		return nil, err
	}

	auditErr := s.audit.Record(Entry{
		ActorID:     &actor.ID,
		Action:      models.ActionSessionStarted,
		EntityType:  "workbook",
		EntityID:    &wb.ID,
		Description: "started " + string(mtype) + " measurement session",
		Metadata:    map[string]any{"session": sess.Handle},
	})
	return sess, auditErr
}

type RecordMeasurementInput struct {
	RawDataPath        string
	ParsedData         map[string]any
	InstrumentSettings map[string]any
	TemperatureRange   string
	Notes              string
}

// RecordMeasurement persists one immutable measurement row in the actor's
// open session. It only ever inserts; there is no code path that accepts an
// existing measurement id.
func (s *MeasurementService) RecordMeasurement(actor *models.User, handle string, in RecordMeasurementInput) (*models.Measurement, error) {
	sess, err := s.getOwnedSession(actor, handle)
	if err != nil {
		return nil, err
	}
	if sess.Status != models.SessionOpen {
		return nil, ErrConflict
	}

	var wb models.Workbook
	if err := models.DB.First(&wb, sess.WorkbookID).Error; err != nil {
		return nil, err
	}

	m := &models.Measurement{
		WorkbookID:       wb.ID,
		MeasurementType:  sess.MeasurementType,
		RawDataPath:      in.RawDataPath,
		RawDataHash:      s.fileHash(in.RawDataPath),
		TemperatureRange: in.TemperatureRange,
		Notes:            in.Notes,
		CreatedByID:      actor.ID,
	}
	if in.ParsedData != nil {
		if b, err := json.Marshal(in.ParsedData); err == nil {
			m.ParsedData = datatypes.JSON(b)
		}
		applyStatistics(m, in.ParsedData)
	}
	if in.InstrumentSettings != nil {
		if b, err := json.Marshal(in.InstrumentSettings); err == nil {
			m.InstrumentSettings = datatypes.JSON(b)
		}
	}

	now := time.Now()
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		if err := tx.Model(&wb).Update("last_measurement_at", now).Error; err != nil {
			return err
		}
		return tx.Model(sess).Update("last_activity_at", now).Error
	})
	if err != nil {
		return nil, err
	}

	auditErr := s.audit.Record(Entry{
		ActorID:     &actor.ID,
		Action:      models.ActionMeasurementRecorded,
		EntityType:  "measurement",
		EntityID:    &m.ID,
		Description: "recorded " + string(m.MeasurementType) + " measurement",
		Metadata:    map[string]any{"workbook_id": wb.ID, "session": sess.Handle},
	})
	return m, auditErr
}

// CloseSession ends a session, releasing the one-session slot. abort marks
// the session as abandoned rather than completed; recorded measurements stay
// either way.
func (s *MeasurementService) CloseSession(actor *models.User, handle string, abort bool) error {
	sess, err := s.getOwnedSession(actor, handle)
	if err != nil {
		return err
	}
	if sess.Status != models.SessionOpen {
		return ErrNotFound
	}

	status := models.SessionClosed
	if abort {
		status = models.SessionAborted
	}
	now := time.Now()
	err = models.DB.Model(sess).Updates(map[string]any{
		"status":         status,
		"closed_at":      now,
		"active_user_id": nil,
	}).Error
	if err != nil {
		return err
	}

	return s.audit.Record(Entry{
		ActorID:     &actor.ID,
		Action:      models.ActionSessionClosed,
		EntityType:  "workbook",
		EntityID:    &sess.WorkbookID,
		Description: "closed measurement session",
		Metadata:    map[string]any{"session": sess.Handle, "status": string(status)},
	})
}

// OpenSession returns the actor's currently open session, if any.
func (s *MeasurementService) OpenSession(actor *models.User) (*models.MeasurementSession, error) {
	var sess models.MeasurementSession
	err := models.DB.Where("user_id = ? AND status = ?", actor.ID, models.SessionOpen).First(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}

// GetMeasurement loads one measurement with access control.
func (s *MeasurementService) GetMeasurement(actor *models.User, id uint) (*models.Measurement, error) {
	var m models.Measurement
	if err := models.DB.First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var wb models.Workbook
	if err := models.DB.First(&wb, m.WorkbookID).Error; err != nil {
		return nil, err
	}
	if d := authz.Evaluate(actor, authz.ActionRead, authz.MeasurementTarget(&wb)); !d.Allowed {
		return nil, authz.Denied(authz.ActionRead, d)
	}
	return &m, nil
}

// ListMeasurements returns a workbook's measurements, optionally filtered by
// type, newest first.
func (s *MeasurementService) ListMeasurements(actor *models.User, workbookID uint, mtype MeasurementTypeFilter) ([]models.Measurement, error) {
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

	query := models.DB.Where("workbook_id = ?", workbookID).Order("created_at DESC")
	if mtype != "" {
		query = query.Where("measurement_type = ?", string(mtype))
	}

	var measurements []models.Measurement
	if err := query.Find(&measurements).Error; err != nil {
		return nil, err
	}
	return measurements, nil
}

// MeasurementTypeFilter is an optional type filter; empty means all.
type MeasurementTypeFilter string

func (s *MeasurementService) getOwnedSession(actor *models.User, handle string) (*models.MeasurementSession, error) {
	var sess models.MeasurementSession
	if err := models.DB.Where("handle = ?", handle).First(&sess).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if sess.UserID != actor.ID {
		return nil, &authz.PermissionError{Action: authz.ActionCreateMeasurement, Reason: authz.ReasonNotOwner}
	}
	return &sess, nil
}

func (s *MeasurementService) fileHash(path string) string {
	f, err := os.Open(path)
	if err != nil {
		s.log.Warnw("raw data file not readable, storing empty hash", "path", path, "error", err)
		return ""
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		s.log.Warnw("raw data hash failed", "path", path, "error", err)
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}

// applyStatistics fills in the pre-computed summary columns from a parsed
// payload carrying a numeric "values" array.
func applyStatistics(m *models.Measurement, parsed map[string]any) {
	raw, ok := parsed["values"].([]any)
	if !ok || len(raw) == 0 {
		return
	}

	var values []float64
	for _, v := range raw {
		f, ok := v.(float64)
		if !ok {
			return
		}
		values = append(values, f)
	}

	min, max, sum := values[0], values[0], 0.0
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	avg := sum / float64(len(values))

	m.DataPointsCount = len(values)
	m.MinValue = &min
	m.MaxValue = &max
	m.AvgValue = &avg
}
