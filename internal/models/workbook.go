package models

import (
	"time"

	"gorm.io/datatypes"
)

// Workbook is the container for all measurement data on one sample. Ownership
// and lab never change after creation.
type Workbook struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Title       string `json:"title" gorm:"type:varchar(255);not null"`
	Description string `json:"description" gorm:"type:text"`
	SampleName  string `json:"sample_name" gorm:"type:varchar(255)"`
	SampleID    string `json:"sample_id" gorm:"type:varchar(100)"`
	Material    string `json:"material" gorm:"type:varchar(255)"`

	// Immutable after creation.
	ResearcherID uint `json:"researcher_id" gorm:"not null;index"`
	Researcher   User `json:"researcher,omitempty" gorm:"foreignKey:ResearcherID"`

	// Immutable after creation, derived from the owner's primary lab.
	LabID uint `json:"lab_id" gorm:"not null;index"`
	Lab   Lab  `json:"lab,omitempty" gorm:"foreignKey:LabID"`

	// Optimistic concurrency stamp for metadata updates.
	Version int `json:"version" gorm:"not null;default:1"`

	State LifecycleState `json:"state" gorm:"type:varchar(20);not null;default:'active'"`

	LastMeasurementAt *time.Time `json:"last_measurement_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type MeasurementType string

const (
	MeasurementSeebeck             MeasurementType = "seebeck"
	MeasurementResistivity         MeasurementType = "resistivity"
	MeasurementThermalConductivity MeasurementType = "thermal_conductivity"
)

// ValidMeasurementType reports whether t is one of the supported kinds.
func ValidMeasurementType(t MeasurementType) bool {
	switch t {
	case MeasurementSeebeck, MeasurementResistivity, MeasurementThermalConductivity:
		return true
	}
	return false
}

// Measurement is a single immutable instrument observation. No code path
// updates or deletes rows of this table; the store installs triggers that
// reject UPDATE and DELETE as a second line of defense.
type Measurement struct {
	ID uint `json:"id" gorm:"primaryKey"`

	WorkbookID uint     `json:"workbook_id" gorm:"not null;index"`
	Workbook   Workbook `json:"workbook,omitempty" gorm:"foreignKey:WorkbookID"`

	MeasurementType MeasurementType `json:"measurement_type" gorm:"type:varchar(30);not null;index"`

	// Raw file on the station's data drive plus its SHA-256 for integrity
	// verification.
	RawDataPath string `json:"raw_data_path" gorm:"type:varchar(1000);not null"`
	RawDataHash string `json:"raw_data_hash" gorm:"type:varchar(64)"`

	ParsedData         datatypes.JSON `json:"parsed_data"`
	InstrumentSettings datatypes.JSON `json:"instrument_settings"`
	TemperatureRange   string         `json:"temperature_range" gorm:"type:varchar(100)"`
	Notes              string         `json:"notes" gorm:"type:text"`

	// Summary statistics computed once at creation.
	DataPointsCount int      `json:"data_points_count" gorm:"default:0"`
	MinValue        *float64 `json:"min_value"`
	MaxValue        *float64 `json:"max_value"`
	AvgValue        *float64 `json:"avg_value"`

	CreatedByID uint      `json:"created_by_id" gorm:"not null;index"`
	CreatedAt   time.Time `json:"created_at"`
}

type SessionStatus string

const (
	SessionOpen    SessionStatus = "open"
	SessionClosed  SessionStatus = "closed"
	SessionAborted SessionStatus = "aborted"
)

// MeasurementSession is the logical lock granting one researcher one open
// recording window at a time. It lives in the store rather than in memory so
// the constraint survives application restarts.
type MeasurementSession struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	Handle     string `json:"handle" gorm:"type:varchar(36);uniqueIndex;not null"`
	UserID     uint   `json:"user_id" gorm:"not null;index"`
	WorkbookID uint   `json:"workbook_id" gorm:"not null;index"`

	MeasurementType MeasurementType `json:"measurement_type" gorm:"type:varchar(30);not null"`
	Status          SessionStatus   `json:"status" gorm:"type:varchar(20);not null;default:'open'"`

	// Compare-and-set slot: equals UserID while the session is open, NULL once
	// closed. The unique index makes a second concurrent open an insert
	// conflict instead of a race.
	ActiveUserID *uint `json:"-" gorm:"uniqueIndex"`

	StartedAt      time.Time  `json:"started_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	ClosedAt       *time.Time `json:"closed_at"`
}

// Comment is lab-admin feedback on a workbook. The resolved flag is the only
// mutable field and uses last-writer-wins.
type Comment struct {
	ID uint `json:"id" gorm:"primaryKey"`

	WorkbookID uint     `json:"workbook_id" gorm:"not null;index"`
	Workbook   Workbook `json:"workbook,omitempty" gorm:"foreignKey:WorkbookID"`

	AuthorID uint `json:"author_id" gorm:"not null;index"`
	Author   User `json:"author,omitempty" gorm:"foreignKey:AuthorID"`

	// Optional reference to a specific measurement.
	MeasurementID *uint `json:"measurement_id"`

	Content  string `json:"content" gorm:"type:text;not null"`
	Resolved bool   `json:"resolved" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
