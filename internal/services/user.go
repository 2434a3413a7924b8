package services

import (
	"errors"

	"telab/internal/authz"
	"telab/internal/config"
	"telab/internal/models"

	"gorm.io/gorm"
)

// UserService covers user administration. All mutations are super-admin only
// and audited; accounts are archived, never physically deleted.
type UserService struct {
	cfg   *config.Config
	auth  *AuthService
	audit *AuditService
}

func NewUserService(cfg *config.Config, auth *AuthService, audit *AuditService) *UserService {
	return &UserService{cfg: cfg, auth: auth, audit: audit}
}

type CreateUserData struct {
	Username          string
	Email             string
	FullName          string
	Password          string
	Role              models.Role
	LabID             *uint
	PreferredLanguage string
}

// CreateUser creates a new user. Researchers and lab admins require a primary
// lab; super admins must not have one.
func (s *UserService) CreateUser(creator *models.User, data CreateUserData) (*models.User, error) {
	if !creator.IsSuperAdmin() {
		return nil, &authz.PermissionError{Action: "create", Reason: authz.ReasonNoRule}
	}

	switch data.Role {
	case models.RoleResearcher, models.RoleLabAdmin:
		if data.LabID == nil {
			return nil, &InvariantViolation{Msg: "lab is required for researchers and lab admins"}
		}
		var lab models.Lab
		if err := models.DB.First(&lab, *data.LabID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
	case models.RoleSuperAdmin:
		data.LabID = nil
	default:
		return nil, &InvariantViolation{Msg: "unknown role: " + string(data.Role)}
	}

	var existing models.User
	if err := models.DB.Where("username = ?", data.Username).First(&existing).Error; err == nil {
		return nil, ErrUserExists
	}
	if err := models.DB.Where("email = ?", data.Email).First(&existing).Error; err == nil {
		return nil, ErrEmailExists
	}

	hash, err := s.auth.HashPassword(data.Password)
	if err != nil {
		return nil, err
	}

	language := data.PreferredLanguage
	if language == "" {
		language = "en"
	}

	user := &models.User{
		Username:          data.Username,
		Email:             data.Email,
		FullName:          data.FullName,
		PasswordHash:      hash,
		Role:              data.Role,
		LabID:             data.LabID,
		PreferredLanguage: language,
		State:             models.StateActive,
	}
	if err := models.DB.Create(user).Error; err != nil {
		return nil, err
	}

	auditErr := s.audit.Record(Entry{
		ActorID:     &creator.ID,
		Action:      models.ActionUserCreated,
		EntityType:  "user",
		EntityID:    &user.ID,
		Description: "created user: " + user.Username,
		Metadata:    map[string]any{"role": string(user.Role)},
	})
	return user, auditErr
}

// GetUsers returns all users
func (s *UserService) GetUsers(actor *models.User) ([]models.User, error) {
	if !actor.IsSuperAdmin() {
		return nil, &authz.PermissionError{Action: authz.ActionRead, Reason: authz.ReasonNoRule}
	}
	var users []models.User
	if err := models.DB.Preload("AdditionalLabs").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser returns a specific user by ID
func (s *UserService) GetUser(actor *models.User, id uint) (*models.User, error) {
	if !actor.IsSuperAdmin() && actor.ID != id {
		return nil, &authz.PermissionError{Action: authz.ActionRead, Reason: authz.ReasonNoRule}
	}
	var user models.User
	if err := models.DB.Preload("AdditionalLabs").First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

type UpdateUserData struct {
	FullName          *string
	Email             *string
	LabID             *uint
	PreferredLanguage *string
}

// UpdateUser updates profile fields. Role is deliberately not part of this
// call; see ChangeRole.
func (s *UserService) UpdateUser(actor *models.User, id uint, data UpdateUserData) (*models.User, error) {
	if !actor.IsSuperAdmin() {
		return nil, &authz.PermissionError{Action: authz.ActionUpdate, Reason: authz.ReasonNoRule}
	}

	var user models.User
	if err := models.DB.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	updates := map[string]any{}
	if data.FullName != nil {
		updates["full_name"] = *data.FullName
	}
	if data.Email != nil {
		var existing models.User
		if err := models.DB.Where("email = ? AND id != ?", *data.Email, id).First(&existing).Error; err == nil {
			return nil, ErrEmailExists
		}
		updates["email"] = *data.Email
	}
	if data.LabID != nil {
		if user.IsSuperAdmin() {
			return nil, &InvariantViolation{Msg: "super admins are not lab-scoped"}
		}
		updates["lab_id"] = *data.LabID
	}
	if data.PreferredLanguage != nil {
		updates["preferred_language"] = *data.PreferredLanguage
	}

	if len(updates) > 0 {
		if err := models.DB.Model(&user).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	auditErr := s.audit.Record(Entry{
		ActorID:     &actor.ID,
		Action:      models.ActionUserUpdated,
		EntityType:  "user",
		EntityID:    &user.ID,
		Description: "updated user: " + user.Username,
	})
	return &user, auditErr
}

// ChangeRole is the only path that modifies a user's role after creation.
// Identity changes never retroactively alter recorded measurements or audit
// rows; those keep pointing at the user id.
func (s *UserService) ChangeRole(actor *models.User, id uint, role models.Role) (*models.User, error) {
	if !actor.IsSuperAdmin() {
		return nil, &authz.PermissionError{Action: authz.ActionUpdate, Reason: authz.ReasonNoRule}
	}
	switch role {
	case models.RoleResearcher, models.RoleLabAdmin, models.RoleSuperAdmin:
	default:
		return nil, &InvariantViolation{Msg: "unknown role: " + string(role)}
	}

	var user models.User
	if err := models.DB.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	oldRole := user.Role
	updates := map[string]any{"role": role}
	if role == models.RoleSuperAdmin {
		updates["lab_id"] = nil
	}
	if err := models.DB.Model(&user).Updates(updates).Error; err != nil {
		return nil, err
	}
	user.Role = role

	auditErr := s.audit.Record(Entry{
		ActorID:     &actor.ID,
		Action:      models.ActionUserRoleChanged,
		EntityType:  "user",
		EntityID:    &user.ID,
		Description: "changed role of " + user.Username,
		Metadata:    map[string]any{"from": string(oldRole), "to": string(role)},
	})
	return &user, auditErr
}

// ResetPassword sets a new password for a user.
func (s *UserService) ResetPassword(actor *models.User, id uint, newPassword string) error {
	if !actor.IsSuperAdmin() && actor.ID != id {
		return &authz.PermissionError{Action: authz.ActionUpdate, Reason: authz.ReasonNoRule}
	}

	var user models.User
	if err := models.DB.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	hash, err := s.auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := models.DB.Model(&user).Update("password_hash", hash).Error; err != nil {
		return err
	}

	return s.audit.Record(Entry{
		ActorID:    &actor.ID,
		Action:     models.ActionPasswordChanged,
		EntityType: "user",
		EntityID:   &user.ID,
	})
}

// SetLocked locks or unlocks an account. Unlocking also resets the failed
// attempt counter.
func (s *UserService) SetLocked(actor *models.User, id uint, locked bool) error {
	if !actor.IsSuperAdmin() {
		return &authz.PermissionError{Action: authz.ActionUpdate, Reason: authz.ReasonNoRule}
	}

	var user models.User
	if err := models.DB.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	updates := map[string]any{"locked": locked}
	action := models.ActionUserLocked
	if !locked {
		updates["failed_login_attempts"] = 0
		action = models.ActionUserUnlocked
	}
	if err := models.DB.Model(&user).Updates(updates).Error; err != nil {
		return err
	}

	return s.audit.Record(Entry{
		ActorID:    &actor.ID,
		Action:     action,
		EntityType: "user",
		EntityID:   &user.ID,
	})
}

// ArchiveUser deactivates an account. The row stays so audit and measurement
// attribution keep resolving.
func (s *UserService) ArchiveUser(actor *models.User, id uint) error {
	if !actor.IsSuperAdmin() {
		return &authz.PermissionError{Action: authz.ActionDelete, Reason: authz.ReasonNoRule}
	}
	if actor.ID == id {
		return &InvariantViolation{Msg: "cannot archive own account"}
	}

	var user models.User
	if err := models.DB.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if user.State != models.StateActive {
		return ErrNotFound
	}

	if err := models.DB.Model(&user).Update("state", models.StateArchived).Error; err != nil {
		return err
	}

	return s.audit.Record(Entry{
		ActorID:     &actor.ID,
		Action:      models.ActionUserArchived,
		EntityType:  "user",
		EntityID:    &user.ID,
		Description: "archived user: " + user.Username,
	})
}

// GrantLabPermission gives a researcher access to an additional lab.
func (s *UserService) GrantLabPermission(actor *models.User, userID, labID uint) error {
	if !actor.IsSuperAdmin() {
		return &authz.PermissionError{Action: authz.ActionUpdate, Reason: authz.ReasonNoRule}
	}

	var user models.User
	if err := models.DB.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if !user.IsResearcher() {
		return &InvariantViolation{Msg: "additional lab grants apply to researchers only"}
	}

	var lab models.Lab
	if err := models.DB.First(&lab, labID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := models.DB.Model(&user).Association("AdditionalLabs").Append(&lab); err != nil {
		return err
	}

	return s.audit.Record(Entry{
		ActorID:     &actor.ID,
		Action:      models.ActionPermissionGranted,
		EntityType:  "user",
		EntityID:    &user.ID,
		Description: "granted access to lab: " + lab.Name,
		Metadata:    map[string]any{"lab_id": lab.ID},
	})
}

// RevokeLabPermission removes an additional lab grant.
func (s *UserService) RevokeLabPermission(actor *models.User, userID, labID uint) error {
	if !actor.IsSuperAdmin() {
		return &authz.PermissionError{Action: authz.ActionUpdate, Reason: authz.ReasonNoRule}
	}

	var user models.User
	if err := models.DB.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	var lab models.Lab
	if err := models.DB.First(&lab, labID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := models.DB.Model(&user).Association("AdditionalLabs").Delete(&lab); err != nil {
		return err
	}

	return s.audit.Record(Entry{
		ActorID:     &actor.ID,
		Action:      models.ActionPermissionRevoked,
		EntityType:  "user",
		EntityID:    &user.ID,
		Description: "revoked access to lab: " + lab.Name,
		Metadata:    map[string]any{"lab_id": lab.ID},
	})
}
