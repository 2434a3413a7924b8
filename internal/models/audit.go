package models

import (
	"time"

	"gorm.io/datatypes"
)

// Audit action kinds. Stored as plain strings so old rows stay readable when
// the set grows.
const (
	ActionLogin           = "login"
	ActionLogout          = "logout"
	ActionLoginFailed     = "login_failed"
	ActionPasswordChanged = "password_changed"

	ActionUserCreated     = "user_created"
	ActionUserUpdated     = "user_updated"
	ActionUserArchived    = "user_archived"
	ActionUserLocked      = "user_locked"
	ActionUserUnlocked    = "user_unlocked"
	ActionUserRoleChanged = "user_role_changed"

	ActionLabCreated  = "lab_created"
	ActionLabUpdated  = "lab_updated"
	ActionLabArchived = "lab_archived"

	ActionWorkbookCreated  = "workbook_created"
	ActionWorkbookUpdated  = "workbook_updated"
	ActionWorkbookArchived = "workbook_archived"

	ActionMeasurementRecorded = "measurement_recorded"
	ActionSessionStarted      = "measurement_session_started"
	ActionSessionClosed       = "measurement_session_closed"

	ActionCommentCreated  = "comment_created"
	ActionCommentResolved = "comment_resolved"

	ActionPermissionGranted = "permission_granted"
	ActionPermissionRevoked = "permission_revoked"
)

// AuditLog is an append-only event record. The only operation offered anywhere
// in the codebase is an insert; store-level triggers reject UPDATE and DELETE.
type AuditLog struct {
	ID uint `json:"id" gorm:"primaryKey"`

	// Nullable: failed logins for unknown usernames have no actor.
	UserID *uint `json:"user_id" gorm:"index"`
	User   *User `json:"user,omitempty" gorm:"foreignKey:UserID"`

	Action      string `json:"action" gorm:"type:varchar(50);not null;index"`
	EntityType  string `json:"entity_type" gorm:"type:varchar(50)"`
	EntityID    *uint  `json:"entity_id"`
	Description string `json:"description" gorm:"type:text"`

	Metadata datatypes.JSON `json:"metadata"`

	IPAddress string `json:"ip_address" gorm:"type:varchar(45)"`
	UserAgent string `json:"user_agent" gorm:"type:varchar(500)"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}
