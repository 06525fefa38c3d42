package permission

import (
	"context"
	"errors"
	"sync"

	"fieldops/internal/apperr"
	"fieldops/internal/models"
)

type RoleSource interface {
	GetRole(ctx context.Context, name string) (*models.Role, error)
}

type contextState int

const (
	stateLoading contextState = iota
	stateLoaded
	stateClosed
)

// Context holds one session's permission set. It is created at login,
// refreshed with Reload and torn down with Close at logout.
//
// Until the first Reload finishes every check is allowed so a client can
// render before the set arrives. It is not an enforcement point: the server
// checks each request with an Authorizer.
type Context struct {
	src  RoleSource
	role string

	mu    sync.RWMutex
	state contextState
	keys  map[string]struct{}
}

func NewContext(src RoleSource, role string) *Context {
	return &Context{src: src, role: role, state: stateLoading}
}

func (c *Context) Reload(ctx context.Context) error {
	if models.IsAdminRole(c.role) {
		c.set(nil)
		return nil
	}
	role, err := c.src.GetRole(ctx, c.role)
	if errors.Is(err, apperr.ErrNotFound) {
		role, err = &models.Role{Name: c.role}, nil
	}
	if err != nil {
		return err
	}
	keys := make(map[string]struct{}, len(role.Permissions))
	for _, p := range role.Permissions {
		keys[p] = struct{}{}
	}
	c.set(keys)
	return nil
}

func (c *Context) set(keys map[string]struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateClosed {
		return
	}
	c.keys = keys
	c.state = stateLoaded
}

// Close drops the set; every later check is denied.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = nil
	c.state = stateClosed
}

func (c *Context) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == stateLoading
}

func (c *Context) HasPermission(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch {
	case c.state == stateClosed:
		return false
	case models.IsAdminRole(c.role):
		return true
	case c.state == stateLoading:
		return true
	}
	_, ok := c.keys[key]
	return ok
}

// Keys returns the loaded set, or every known key for admins.
func (c *Context) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state == stateClosed {
		return nil
	}
	if models.IsAdminRole(c.role) {
		return append([]string(nil), All...)
	}
	keys := make([]string, 0, len(c.keys))
	for _, k := range All {
		if _, ok := c.keys[k]; ok {
			keys = append(keys, k)
		}
	}
	return keys
}
