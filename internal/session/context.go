// Package session carries the current actor for one running application
// instance. The context is constructed and passed explicitly rather than held
// in a package global, so tests and concurrent requests get isolated
// instances.
package session

import (
	"sync"

	"telab/internal/models"
)

const defaultLanguage = "en"

// Context holds the authenticated user plus the selected lab and language.
// Set on successful authentication, cleared on logout; never persisted.
type Context struct {
	mu       sync.RWMutex
	user     *models.User
	lab      *models.Lab
	language string
}

func New() *Context {
	return &Context{language: defaultLanguage}
}

// SetUser records the current user and adopts their preferred language.
func (c *Context) SetUser(user *models.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = user
	if user != nil && user.PreferredLanguage != "" {
		c.language = user.PreferredLanguage
	}
}

// Current returns the current user, or nil when unauthenticated.
func (c *Context) Current() *models.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// Clear resets the context to its unauthenticated state.
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = nil
	c.lab = nil
	c.language = defaultLanguage
}

func (c *Context) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user != nil
}

func (c *Context) SetLab(lab *models.Lab) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lab = lab
}

func (c *Context) CurrentLab() *models.Lab {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lab
}

func (c *Context) SetLanguage(language string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.language = language
}

func (c *Context) Language() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.language
}
