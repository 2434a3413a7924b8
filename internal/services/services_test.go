package services

import (
	"fmt"
	"os"
	"testing"
	"time"

	"telab/internal/config"
	"telab/internal/logger"
	"telab/internal/models"

	"github.com/stretchr/testify/require"
)

// setupTestDB initializes a throwaway sqlite database
func setupTestDB(t *testing.T) *config.Config {
	tmpDir := os.TempDir()
	testDBPath := fmt.Sprintf("%s/telab_test_%d.db", tmpDir, time.Now().UnixNano())

	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Type: "sqlite",
			SQLite: config.SQLiteConfig{
				Path: testDBPath,
			},
		},
		JWT: config.JWTConfig{
			Secret:    "test-secret-key-for-testing-only",
			ExpiresIn: "24h",
			Issuer:    "te-lab-test",
		},
		Security: config.SecurityConfig{
			BcryptCost:       10,
			MaxLoginAttempts: 3,
		},
		Measurement: config.MeasurementConfig{
			SessionIdleTimeout: "1h",
		},
	}

	err := models.InitDB(cfg)
	require.NoError(t, err)

	return cfg
}

// cleanupTestDB closes and removes the test database
func cleanupTestDB(t *testing.T, cfg *config.Config) {
	if models.DB != nil {
		sqlDB, err := models.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
		if cfg != nil && cfg.Database.Type == "sqlite" {
			os.Remove(cfg.Database.SQLite.Path)
		}
	}
	models.DB = nil
}

func newTestAudit() *AuditService {
	return NewAuditService(logger.Nop())
}

func seedLab(t *testing.T, name string) *models.Lab {
	lab := &models.Lab{Name: name, State: models.StateActive}
	require.NoError(t, models.DB.Create(lab).Error)
	return lab
}

func seedUser(t *testing.T, username string, role models.Role, labID *uint) *models.User {
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		FullName:     username,
		PasswordHash: "not-a-real-hash",
		Role:         role,
		LabID:        labID,
		State:        models.StateActive,
	}
	require.NoError(t, models.DB.Create(user).Error)
	return user
}

func auditCount(t *testing.T, action string) int64 {
	var count int64
	require.NoError(t, models.DB.Model(&models.AuditLog{}).Where("action = ?", action).Count(&count).Error)
	return count
}
