package permission

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"fieldops/internal/models"
)

type RoleLister interface {
	ListRoles(ctx context.Context) ([]*models.Role, error)
}

// Authorizer answers permission checks for requests from a cached copy of
// every role. Roles it has not loaded are denied.
type Authorizer struct {
	repo RoleLister
	log  *slog.Logger

	mu    sync.RWMutex
	roles map[string]map[string]struct{}
}

func NewAuthorizer(repo RoleLister, log *slog.Logger) *Authorizer {
	return &Authorizer{
		repo:  repo,
		log:   log,
		roles: make(map[string]map[string]struct{}),
	}
}

func (a *Authorizer) Refresh(ctx context.Context) error {
	roles, err := a.repo.ListRoles(ctx)
	if err != nil {
		return err
	}
	next := make(map[string]map[string]struct{}, len(roles))
	for _, r := range roles {
		keys := make(map[string]struct{}, len(r.Permissions))
		for _, p := range r.Permissions {
			keys[p] = struct{}{}
		}
		next[strings.ToLower(r.Name)] = keys
	}
	a.mu.Lock()
	a.roles = next
	a.mu.Unlock()
	return nil
}

func (a *Authorizer) Allowed(role, key string) bool {
	if models.IsAdminRole(role) {
		return true
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.roles[strings.ToLower(role)][key]
	return ok
}

// StartAutoRefresh reloads the cache every interval until ctx is done.
// A failed refresh keeps the previous copy.
func (a *Authorizer) StartAutoRefresh(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := a.Refresh(ctx); err != nil {
				a.log.Error("permission_refresh_failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
