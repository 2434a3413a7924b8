package services

import (
	"testing"

	"telab/internal/authz"
	"telab/internal/config"
	"telab/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService(cfg *config.Config) *UserService {
	audit := newTestAudit()
	return NewUserService(cfg, NewAuthService(cfg, audit), audit)
}

func TestCreateUser(t *testing.T) {
	cfg := setupTestDB(t)
	defer cleanupTestDB(t, cfg)

	svc := newUserService(cfg)
	lab := seedLab(t, "thermoelectrics")
	root := seedUser(t, "root", models.RoleSuperAdmin, nil)

	user, err := svc.CreateUser(root, CreateUserData{
		Username: "alice",
		Email:    "alice@lab.example.com",
		FullName: "Alice",
		Password: "secret",
		Role:     models.RoleResearcher,
		LabID:    &lab.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleResearcher, user.Role)
	assert.Equal(t, "en", user.PreferredLanguage)
	require.NotNil(t, user.LabID)
	assert.Equal(t, lab.ID, *user.LabID)
	assert.EqualValues(t, 1, auditCount(t, models.ActionUserCreated))

	// Duplicate identity.
	_, err = svc.CreateUser(root, CreateUserData{
		Username: "alice", Email: "other@lab.example.com", Password: "x",
		Role: models.RoleResearcher, LabID: &lab.ID,
	})
	assert.ErrorIs(t, err, ErrUserExists)
	_, err = svc.CreateUser(root, CreateUserData{
		Username: "alice2", Email: "alice@lab.example.com", Password: "x",
		Role: models.RoleResearcher, LabID: &lab.ID,
	})
	assert.ErrorIs(t, err, ErrEmailExists)

	// Researchers need a lab; super admins must not have one.
	var inv *InvariantViolation
	_, err = svc.CreateUser(root, CreateUserData{
		Username: "bob", Email: "bob@lab.example.com", Password: "x",
		Role: models.RoleResearcher,
	})
	require.ErrorAs(t, err, &inv)

	admin2, err := svc.CreateUser(root, CreateUserData{
		Username: "root2", Email: "root2@lab.example.com", Password: "x",
		Role: models.RoleSuperAdmin, LabID: &lab.ID,
	})
	require.NoError(t, err)
	assert.Nil(t, admin2.LabID)

	// Only super admins create accounts.
	var permErr *authz.PermissionError
	_, err = svc.CreateUser(user, CreateUserData{
		Username: "eve", Email: "eve@lab.example.com", Password: "x",
		Role: models.RoleResearcher, LabID: &lab.ID,
	})
	require.ErrorAs(t, err, &permErr)
}

func TestChangeRole(t *testing.T) {
	cfg := setupTestDB(t)
	defer cleanupTestDB(t, cfg)

	svc := newUserService(cfg)
	lab := seedLab(t, "thermoelectrics")
	root := seedUser(t, "root", models.RoleSuperAdmin, nil)
	alice := seedUser(t, "alice", models.RoleResearcher, &lab.ID)

	updated, err := svc.ChangeRole(root, alice.ID, models.RoleLabAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleLabAdmin, updated.Role)

	// The role transition is on the audit trail with both sides.
	var entry models.AuditLog
	require.NoError(t, models.DB.Where("action = ?", models.ActionUserRoleChanged).First(&entry).Error)
	assert.Contains(t, string(entry.Metadata), "researcher")
	assert.Contains(t, string(entry.Metadata), "lab_admin")

	// Promotion to super admin clears the lab scope.
	updated, err = svc.ChangeRole(root, alice.ID, models.RoleSuperAdmin)
	require.NoError(t, err)
	var stored models.User
	require.NoError(t, models.DB.First(&stored, alice.ID).Error)
	assert.Nil(t, stored.LabID)

	var inv *InvariantViolation
	_, err = svc.ChangeRole(root, alice.ID, "janitor")
	require.ErrorAs(t, err, &inv)

	var permErr *authz.PermissionError
	_, err = svc.ChangeRole(&stored, root.ID, models.RoleResearcher)
	assert.NoError(t, err) // stored is now a super admin
	bob := seedUser(t, "bob", models.RoleResearcher, &lab.ID)
	_, err = svc.ChangeRole(bob, root.ID, models.RoleResearcher)
	require.ErrorAs(t, err, &permErr)
}

func TestSetLockedResetsCounter(t *testing.T) {
	cfg := setupTestDB(t)
	defer cleanupTestDB(t, cfg)

	svc := newUserService(cfg)
	lab := seedLab(t, "thermoelectrics")
	root := seedUser(t, "root", models.RoleSuperAdmin, nil)
	alice := seedUser(t, "alice", models.RoleResearcher, &lab.ID)
	require.NoError(t, models.DB.Model(alice).Updates(map[string]any{
		"locked": true, "failed_login_attempts": 3,
	}).Error)

	require.NoError(t, svc.SetLocked(root, alice.ID, false))

	var stored models.User
	require.NoError(t, models.DB.First(&stored, alice.ID).Error)
	assert.False(t, stored.Locked)
	assert.Zero(t, stored.FailedLoginAttempts)
	assert.EqualValues(t, 1, auditCount(t, models.ActionUserUnlocked))
}

func TestArchiveUser(t *testing.T) {
	cfg := setupTestDB(t)
	defer cleanupTestDB(t, cfg)

	svc := newUserService(cfg)
	lab := seedLab(t, "thermoelectrics")
	root := seedUser(t, "root", models.RoleSuperAdmin, nil)
	alice := seedUser(t, "alice", models.RoleResearcher, &lab.ID)

	// Nobody archives themselves.
	var inv *InvariantViolation
	require.ErrorAs(t, svc.ArchiveUser(root, root.ID), &inv)

	require.NoError(t, svc.ArchiveUser(root, alice.ID))

	// The row survives for attribution, only the state flips.
	var stored models.User
	require.NoError(t, models.DB.First(&stored, alice.ID).Error)
	assert.Equal(t, models.StateArchived, stored.State)

	assert.ErrorIs(t, svc.ArchiveUser(root, alice.ID), ErrNotFound)
}

func TestLabPermissionGrants(t *testing.T) {
	cfg := setupTestDB(t)
	defer cleanupTestDB(t, cfg)

	svc := newUserService(cfg)
	home := seedLab(t, "thermoelectrics")
	guest := seedLab(t, "magnetics")
	root := seedUser(t, "root", models.RoleSuperAdmin, nil)
	alice := seedUser(t, "alice", models.RoleResearcher, &home.ID)
	bob := seedUser(t, "bob", models.RoleLabAdmin, &home.ID)

	require.NoError(t, svc.GrantLabPermission(root, alice.ID, guest.ID))

	loaded, err := svc.GetUser(root, alice.ID)
	require.NoError(t, err)
	assert.True(t, loaded.CanAccessLab(guest.ID))
	assert.EqualValues(t, 1, auditCount(t, models.ActionPermissionGranted))

	// Grants are for researchers only.
	var inv *InvariantViolation
	require.ErrorAs(t, svc.GrantLabPermission(root, bob.ID, guest.ID), &inv)

	require.NoError(t, svc.RevokeLabPermission(root, alice.ID, guest.ID))
	loaded, err = svc.GetUser(root, alice.ID)
	require.NoError(t, err)
	assert.False(t, loaded.CanAccessLab(guest.ID))
	assert.EqualValues(t, 1, auditCount(t, models.ActionPermissionRevoked))
}
