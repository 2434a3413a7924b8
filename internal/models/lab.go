package models

import (
	"time"
)

// Lab is the access-isolation boundary. Every workbook belongs to exactly one
// lab, inherited from its creator's primary lab at creation time.
type Lab struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Name        string `json:"name" gorm:"type:varchar(255);uniqueIndex;not null"`
	Description string `json:"description" gorm:"type:varchar(1000)"`
	Location    string `json:"location" gorm:"type:varchar(255)"`

	// Primary lab admin.
	AdminID *uint `json:"admin_id"`
	Admin   *User `json:"admin,omitempty" gorm:"foreignKey:AdminID"`

	State LifecycleState `json:"state" gorm:"type:varchar(20);not null;default:'active'"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
