package session

import (
	"testing"

	"telab/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestContextLifecycle(t *testing.T) {
	ctx := New()
	assert.False(t, ctx.IsAuthenticated())
	assert.Nil(t, ctx.Current())
	assert.Equal(t, "en", ctx.Language())

	user := &models.User{ID: 1, Username: "alice", PreferredLanguage: "ja"}
	ctx.SetUser(user)
	assert.True(t, ctx.IsAuthenticated())
	assert.Equal(t, user, ctx.Current())
	// User language is adopted on login.
	assert.Equal(t, "ja", ctx.Language())

	lab := &models.Lab{ID: 10, Name: "physics"}
	ctx.SetLab(lab)
	assert.Equal(t, lab, ctx.CurrentLab())

	ctx.Clear()
	assert.False(t, ctx.IsAuthenticated())
	assert.Nil(t, ctx.Current())
	assert.Nil(t, ctx.CurrentLab())
	assert.Equal(t, "en", ctx.Language())
}

func TestContextsAreIsolated(t *testing.T) {
	a := New()
	b := New()

	a.SetUser(&models.User{ID: 1, Username: "alice"})
	assert.True(t, a.IsAuthenticated())
	assert.False(t, b.IsAuthenticated())

	b.SetLanguage("ja")
	assert.Equal(t, "en", a.Language())
	assert.Equal(t, "ja", b.Language())
}
