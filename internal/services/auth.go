package services

import (
	"errors"
	"time"

	"telab/internal/config"
	"telab/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct {
	cfg   *config.Config
	audit *AuditService
}

func NewAuthService(cfg *config.Config, audit *AuditService) *AuthService {
	return &AuthService{cfg: cfg, audit: audit}
}

// HashPassword hashes a password using bcrypt
func (s *AuthService) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.Security.BcryptCost)
	return string(bytes), err
}

// VerifyPassword verifies a password against a hash
func (s *AuthService) VerifyPassword(hashedPassword, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil
}

// Authenticate verifies credentials and returns the user. Every attempt,
// successful or not, produces exactly one audit entry; unknown usernames are
// recorded with a nil actor. Repeated failures lock the account.
func (s *AuthService) Authenticate(username, password, ipAddress, userAgent string) (*models.User, error) {
	var user models.User
	err := models.DB.Preload("AdditionalLabs").Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.audit.Record(Entry{
				Action:      models.ActionLoginFailed,
				Description: "failed login attempt for unknown username: " + username,
				IPAddress:   ipAddress,
				UserAgent:   userAgent,
			})
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if user.State != models.StateActive {
		return nil, ErrAccountArchived
	}

	if user.Locked {
		return nil, ErrAccountLocked
	}

	if !s.VerifyPassword(user.PasswordHash, password) {
		user.FailedLoginAttempts++
		updates := map[string]any{"failed_login_attempts": user.FailedLoginAttempts}
		if user.FailedLoginAttempts >= s.cfg.MaxLoginAttempts() {
			updates["locked"] = true
			s.audit.Record(Entry{
				ActorID:     uintPtr(user.ID),
				Action:      models.ActionUserLocked,
				EntityType:  "user",
				EntityID:    uintPtr(user.ID),
				Description: "account locked after repeated failed login attempts",
				IPAddress:   ipAddress,
				UserAgent:   userAgent,
			})
		}
		models.DB.Model(&user).Updates(updates)

		s.audit.Record(Entry{
			ActorID:     uintPtr(user.ID),
			Action:      models.ActionLoginFailed,
			EntityType:  "user",
			EntityID:    uintPtr(user.ID),
			Description: "invalid password",
			IPAddress:   ipAddress,
			UserAgent:   userAgent,
		})
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	models.DB.Model(&user).Updates(map[string]any{
		"failed_login_attempts": 0,
		"last_login":            now,
	})
	user.FailedLoginAttempts = 0
	user.LastLogin = &now

	s.audit.Record(Entry{
		ActorID:    uintPtr(user.ID),
		Action:     models.ActionLogin,
		EntityType: "user",
		EntityID:   uintPtr(user.ID),
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
	})
	return &user, nil
}

// CreateSession creates a new login session record
func (s *AuthService) CreateSession(userID uint, token string, expiresAt time.Time) error {
	session := &models.LoginSession{
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
	}
	return models.DB.Create(session).Error
}

// GetSession retrieves a login session by token
func (s *AuthService) GetSession(token string) (*models.LoginSession, error) {
	var session models.LoginSession
	err := models.DB.Where("token = ? AND expires_at > ?", token, time.Now()).
		Preload("User").Preload("User.AdditionalLabs").
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// DeleteSession deletes a login session
func (s *AuthService) DeleteSession(token string) error {
	return models.DB.Where("token = ?", token).Delete(&models.LoginSession{}).Error
}

// Logout deletes the login session and records the event.
func (s *AuthService) Logout(user *models.User, token, ipAddress, userAgent string) error {
	if err := s.DeleteSession(token); err != nil {
		return err
	}
	s.audit.Record(Entry{
		ActorID:    uintPtr(user.ID),
		Action:     models.ActionLogout,
		EntityType: "user",
		EntityID:   uintPtr(user.ID),
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
	})
	return nil
}

// DeleteExpiredSessions removes expired login sessions
func (s *AuthService) DeleteExpiredSessions() error {
	return models.DB.Where("expires_at < ?", time.Now()).Delete(&models.LoginSession{}).Error
}

// CreateDefaultSuperAdmin creates the initial super admin if the user table is
// empty.
func (s *AuthService) CreateDefaultSuperAdmin() error {
	var count int64
	models.DB.Model(&models.User{}).Count(&count)
	if count > 0 {
		return nil
	}

	hash, err := s.HashPassword(s.cfg.DefaultAdmin.Password)
	if err != nil {
		return err
	}
	admin := &models.User{
		Username:     s.cfg.DefaultAdmin.Username,
		Email:        s.cfg.DefaultAdmin.Email,
		FullName:     s.cfg.DefaultAdmin.FullName,
		PasswordHash: hash,
		Role:         models.RoleSuperAdmin,
		State:        models.StateActive,
	}
	return models.DB.Create(admin).Error
}
