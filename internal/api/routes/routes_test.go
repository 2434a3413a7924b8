package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"telab/internal/config"
	"telab/internal/logger"
	"telab/internal/models"
	"telab/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *config.Config {
	tmpDir := os.TempDir()
	testDBPath := fmt.Sprintf("%s/telab_routes_test_%d.db", tmpDir, time.Now().UnixNano())

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

	require.NoError(t, models.InitDB(cfg))
	return cfg
}

func cleanupTestDB(t *testing.T, cfg *config.Config) {
	if models.DB != nil {
		sqlDB, err := models.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
		os.Remove(cfg.Database.SQLite.Path)
	}
	models.DB = nil
}

func setupTestRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	SetupRoutes(r, cfg, logger.Nop())
	return r
}

func createTestUser(t *testing.T, username string, role models.Role, labID *uint) *models.User {
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

// createTestToken issues a signed JWT plus its backing login session, the way
// the login handler does.
func createTestToken(t *testing.T, cfg *config.Config, user *models.User) string {
	expiresAt := time.Now().Add(24 * time.Hour)
	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     string(user.Role),
		"exp":      expiresAt.Unix(),
		"iat":      time.Now().Unix(),
		"iss":      cfg.JWT.Issuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(cfg.JWT.Secret))
	require.NoError(t, err)

	authService := services.NewAuthService(cfg, services.NewAuditService(logger.Nop()))
	require.NoError(t, authService.CreateSession(user.ID, tokenString, expiresAt))
	return tokenString
}

func doRequest(r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	cfg := setupTestDB(t)
	defer cleanupTestDB(t, cfg)
	r := setupTestRouter(cfg)

	w := doRequest(r, "GET", "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginFlow(t *testing.T) {
	cfg := setupTestDB(t)
	defer cleanupTestDB(t, cfg)
	r := setupTestRouter(cfg)

	authService := services.NewAuthService(cfg, services.NewAuditService(logger.Nop()))
	hash, err := authService.HashPassword("correct-horse")
	require.NoError(t, err)

	lab := &models.Lab{Name: "thermoelectrics", State: models.StateActive}
	require.NoError(t, models.DB.Create(lab).Error)
	user := createTestUser(t, "alice", models.RoleResearcher, &lab.ID)
	require.NoError(t, models.DB.Model(user).Update("password_hash", hash).Error)

	t.Run("successful login returns token", func(t *testing.T) {
		w := doRequest(r, "POST", "/api/auth/login", "", gin.H{
			"username": "alice",
			"password": "correct-horse",
		})
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		token, _ := resp["token"].(string)
		require.NotEmpty(t, token)

		// The token authenticates follow-up calls.
		w = doRequest(r, "GET", "/api/auth/me", token, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		// Logout invalidates it.
		w = doRequest(r, "POST", "/api/auth/logout", token, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		w = doRequest(r, "GET", "/api/auth/me", token, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		w := doRequest(r, "POST", "/api/auth/login", "", gin.H{
			"username": "alice",
			"password": "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		w := doRequest(r, "POST", "/api/auth/login", "", gin.H{"username": "alice"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestWorkbookEndpoints(t *testing.T) {
	cfg := setupTestDB(t)
	defer cleanupTestDB(t, cfg)
	r := setupTestRouter(cfg)

	lab := &models.Lab{Name: "thermoelectrics", State: models.StateActive}
	require.NoError(t, models.DB.Create(lab).Error)
	alice := createTestUser(t, "alice", models.RoleResearcher, &lab.ID)
	dave := createTestUser(t, "dave", models.RoleResearcher, &lab.ID)
	bob := createTestUser(t, "bob", models.RoleLabAdmin, &lab.ID)

	aliceToken := createTestToken(t, cfg, alice)
	daveToken := createTestToken(t, cfg, dave)
	bobToken := createTestToken(t, cfg, bob)

	var workbookID float64

	t.Run("requires authentication", func(t *testing.T) {
		w := doRequest(r, "GET", "/api/workbooks", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("researcher creates workbook", func(t *testing.T) {
		w := doRequest(r, "POST", "/api/workbooks", aliceToken, gin.H{
			"title":    "Bi2Te3 series",
			"material": "Bi2Te3",
		})
		require.Equal(t, http.StatusCreated, w.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		wb := resp["workbook"].(map[string]any)
		workbookID = wb["id"].(float64)
		assert.Equal(t, float64(1), wb["version"])
	})

	t.Run("lab admin cannot create workbook", func(t *testing.T) {
		w := doRequest(r, "POST", "/api/workbooks", bobToken, gin.H{"title": "nope"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("other researcher cannot read it", func(t *testing.T) {
		path := fmt.Sprintf("/api/workbooks/%.0f", workbookID)
		w := doRequest(r, "GET", path, daveToken, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("lab admin reads it", func(t *testing.T) {
		path := fmt.Sprintf("/api/workbooks/%.0f", workbookID)
		w := doRequest(r, "GET", path, bobToken, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("update with stale version conflicts", func(t *testing.T) {
		path := fmt.Sprintf("/api/workbooks/%.0f", workbookID)
		w := doRequest(r, "PUT", path, aliceToken, gin.H{
			"version": 1,
			"title":   "renamed",
		})
		require.Equal(t, http.StatusOK, w.Code)

		// Replaying the same version loses the race.
		w = doRequest(r, "PUT", path, aliceToken, gin.H{
			"version": 1,
			"title":   "renamed again",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("comment round trip", func(t *testing.T) {
		path := fmt.Sprintf("/api/workbooks/%.0f/comments", workbookID)

		// The owner commenting on their own workbook is an invariant violation.
		w := doRequest(r, "POST", path, aliceToken, gin.H{"content": "note to self"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

		w = doRequest(r, "POST", path, bobToken, gin.H{"content": "check contacts"})
		require.Equal(t, http.StatusCreated, w.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		comment := resp["comment"].(map[string]any)

		resolvePath := fmt.Sprintf("/api/comments/%.0f/resolve", comment["id"].(float64))
		w = doRequest(r, "PUT", resolvePath, bobToken, gin.H{"resolved": true})
		assert.Equal(t, http.StatusOK, w.Code)

		w = doRequest(r, "GET", path, aliceToken, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("archive and vanish", func(t *testing.T) {
		path := fmt.Sprintf("/api/workbooks/%.0f", workbookID)
		w := doRequest(r, "DELETE", path, aliceToken, nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = doRequest(r, "DELETE", path, aliceToken, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestMeasurementSessionEndpoints(t *testing.T) {
	cfg := setupTestDB(t)
	defer cleanupTestDB(t, cfg)
	r := setupTestRouter(cfg)

	lab := &models.Lab{Name: "thermoelectrics", State: models.StateActive}
	require.NoError(t, models.DB.Create(lab).Error)
	alice := createTestUser(t, "alice", models.RoleResearcher, &lab.ID)
	aliceToken := createTestToken(t, cfg, alice)

	w := doRequest(r, "POST", "/api/workbooks", aliceToken, gin.H{"title": "session target"})
	require.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	workbookID := resp["workbook"].(map[string]any)["id"].(float64)

	var handle string

	t.Run("start session", func(t *testing.T) {
		w := doRequest(r, "POST", "/api/measurement-sessions", aliceToken, gin.H{
			"workbook_id":      workbookID,
			"measurement_type": "seebeck",
		})
		require.Equal(t, http.StatusCreated, w.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		handle = resp["session"].(map[string]any)["handle"].(string)
		require.NotEmpty(t, handle)
	})

	t.Run("second session conflicts", func(t *testing.T) {
		w := doRequest(r, "POST", "/api/measurement-sessions", aliceToken, gin.H{
			"workbook_id":      workbookID,
			"measurement_type": "resistivity",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("open session lookup", func(t *testing.T) {
		w := doRequest(r, "GET", "/api/measurement-sessions/open", aliceToken, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var sess map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
		assert.Equal(t, handle, sess["handle"])
	})

	var measurementID float64

	t.Run("record measurement", func(t *testing.T) {
		w := doRequest(r, "POST", "/api/measurement-sessions/"+handle+"/measurements", aliceToken, gin.H{
			"raw_data_path": "/data/raw/seebeck-001.dat",
			"parsed_data":   gin.H{"values": []float64{12.5, 13.1}},
		})
		require.Equal(t, http.StatusCreated, w.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		m := resp["measurement"].(map[string]any)
		measurementID = m["id"].(float64)
		assert.Equal(t, float64(2), m["data_points_count"])
	})

	t.Run("measurements are readable but not writable", func(t *testing.T) {
		path := fmt.Sprintf("/api/measurements/%.0f", measurementID)
		w := doRequest(r, "GET", path, aliceToken, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		// No update or delete route exists for measurements.
		w = doRequest(r, "PUT", path, aliceToken, gin.H{"notes": "tampered"})
		assert.Equal(t, http.StatusNotFound, w.Code)
		w = doRequest(r, "DELETE", path, aliceToken, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("close and restart", func(t *testing.T) {
		w := doRequest(r, "POST", "/api/measurement-sessions/"+handle+"/close", aliceToken, nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = doRequest(r, "GET", "/api/measurement-sessions/open", aliceToken, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = doRequest(r, "POST", "/api/measurement-sessions", aliceToken, gin.H{
			"workbook_id":      workbookID,
			"measurement_type": "resistivity",
		})
		assert.Equal(t, http.StatusCreated, w.Code)
	})
}

func TestAdminEndpoints(t *testing.T) {
	cfg := setupTestDB(t)
	defer cleanupTestDB(t, cfg)
	r := setupTestRouter(cfg)

	lab := &models.Lab{Name: "thermoelectrics", State: models.StateActive}
	require.NoError(t, models.DB.Create(lab).Error)
	root := createTestUser(t, "root", models.RoleSuperAdmin, nil)
	alice := createTestUser(t, "alice", models.RoleResearcher, &lab.ID)

	rootToken := createTestToken(t, cfg, root)
	aliceToken := createTestToken(t, cfg, alice)

	t.Run("user listing is super admin only", func(t *testing.T) {
		w := doRequest(r, "GET", "/api/users", rootToken, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = doRequest(r, "GET", "/api/users", aliceToken, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("role change", func(t *testing.T) {
		path := fmt.Sprintf("/api/users/%d/role", alice.ID)
		w := doRequest(r, "PUT", path, rootToken, gin.H{"role": "lab_admin"})
		require.Equal(t, http.StatusOK, w.Code)

		w = doRequest(r, "PUT", path, aliceToken, gin.H{"role": "super_admin"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("audit trail access", func(t *testing.T) {
		w := doRequest(r, "GET", "/api/audit?action=user_role_changed", rootToken, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		logs := resp["audit_logs"].([]any)
		assert.NotEmpty(t, logs)

		w = doRequest(r, "GET", "/api/audit", aliceToken, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
