package models

import (
	"time"
)

// Role is the closed set of user roles. Access scope is the only thing that
// differs between them, so a plain enum is enough.
type Role string

const (
	RoleResearcher Role = "researcher"
	RoleLabAdmin   Role = "lab_admin"
	RoleSuperAdmin Role = "super_admin"
)

// LifecycleState replaces the usual is_active boolean so further states can be
// added without schema churn. Archived rows are never physically deleted.
type LifecycleState string

const (
	StateActive   LifecycleState = "active"
	StateArchived LifecycleState = "archived"
)

type User struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	Username     string `json:"username" gorm:"type:varchar(100);uniqueIndex;not null"`
	Email        string `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	FullName     string `json:"full_name" gorm:"type:varchar(255);not null"`
	PasswordHash string `json:"-" gorm:"type:varchar(255);not null"`
	Role         Role   `json:"role" gorm:"type:varchar(20);not null;default:'researcher'"`

	// 'en' or 'ja'
	PreferredLanguage string `json:"preferred_language" gorm:"type:varchar(10);not null;default:'en'"`

	// Primary lab. Researchers and lab admins have exactly one; super admins
	// are not lab-scoped and keep this nil.
	LabID *uint `json:"lab_id" gorm:"index"`
	Lab   *Lab  `json:"lab,omitempty" gorm:"foreignKey:LabID"`

	// Additional lab grants for researchers with cross-lab access.
	AdditionalLabs []Lab `json:"additional_labs,omitempty" gorm:"many2many:user_lab_permissions"`

	State               LifecycleState `json:"state" gorm:"type:varchar(20);not null;default:'active'"`
	Locked              bool           `json:"locked" gorm:"default:false"`
	FailedLoginAttempts int            `json:"-" gorm:"default:0"`
	LastLogin           *time.Time     `json:"last_login"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) IsResearcher() bool {
	return u.Role == RoleResearcher
}

func (u *User) IsLabAdmin() bool {
	return u.Role == RoleLabAdmin
}

func (u *User) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin
}

// CanAccessLab reports whether the user's lab scope covers the given lab.
// AdditionalLabs must be preloaded for researcher grants to be considered.
func (u *User) CanAccessLab(labID uint) bool {
	if u.IsSuperAdmin() {
		return true
	}
	if u.LabID != nil && *u.LabID == labID {
		return true
	}
	if u.IsResearcher() {
		for _, lab := range u.AdditionalLabs {
			if lab.ID == labID {
				return true
			}
		}
	}
	return false
}

// LoginSession is an authentication session (API token), distinct from a
// measurement session.
type LoginSession struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	Token     string    `json:"token" gorm:"type:varchar(500);uniqueIndex;not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at"`
	User      User      `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
