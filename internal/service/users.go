package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fieldops/internal/apperr"
	"fieldops/internal/auth"
	"fieldops/internal/models"
	"fieldops/internal/permission"
)

type CreateUserInput struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	CustomerID string `json:"customer_id,omitempty"`
	Name       string `json:"name"`
}

// AccessService signs users in and administers users and roles.
type AccessService struct {
	core
	tokens *auth.TokenIssuer
	authz  *permission.Authorizer
}

func NewAccessService(d Deps, tokens *auth.TokenIssuer, authz *permission.Authorizer) *AccessService {
	return &AccessService{core: newCore(d), tokens: tokens, authz: authz}
}

// Login returns a bearer token. Unknown users and wrong passwords fail alike.
func (s *AccessService) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	u, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, apperr.ErrNotFound) {
		return "", nil, apperr.Unauthenticated("invalid credentials")
	}
	if err != nil {
		return "", nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return "", nil, apperr.Unauthenticated("invalid credentials")
	}
	token, err := s.tokens.Issue(u)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (s *AccessService) CreateUser(ctx context.Context, actor models.Actor, in CreateUserInput) (*models.User, error) {
	if err := requireAdmin(actor, "create user"); err != nil {
		return nil, err
	}
	return s.createUser(ctx, in)
}

func (s *AccessService) createUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	if in.Username == "" || len(in.Password) < 6 {
		return nil, apperr.Validation("username and a password of at least 6 characters are required")
	}
	if in.Role == "" {
		return nil, apperr.Validation("role is required")
	}
	if in.Role == models.RoleCustomer {
		if in.CustomerID == "" {
			return nil, apperr.Validation("customer users need a customer_id")
		}
		if _, err := s.store.GetCustomer(ctx, in.CustomerID); err != nil {
			return nil, err
		}
	} else {
		in.CustomerID = ""
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		ID:           s.newID(),
		Username:     in.Username,
		PasswordHash: hash,
		Role:         in.Role,
		CustomerID:   in.CustomerID,
		Name:         in.Name,
		CreatedAt:    s.now(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// EnsureAdmin creates the bootstrap admin unless the username exists.
func (s *AccessService) EnsureAdmin(ctx context.Context, username, password string) error {
	_, err := s.store.GetUserByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	_, err = s.createUser(ctx, CreateUserInput{
		Username: username,
		Password: password,
		Role:     models.RoleAdmin,
		Name:     "Administrator",
	})
	return err
}

// SeedRoles stores the default role sets that are missing and reloads the authorizer.
func (s *AccessService) SeedRoles(ctx context.Context) error {
	for name, keys := range permission.Defaults {
		_, err := s.store.GetRole(ctx, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		if err := s.store.PutRole(ctx, &models.Role{Name: name, Permissions: append([]string(nil), keys...)}); err != nil {
			return err
		}
	}
	if s.authz != nil {
		return s.authz.Refresh(ctx)
	}
	return nil
}

// Permissions loads a session permission context for actor; the caller closes it.
func (s *AccessService) Permissions(ctx context.Context, actor models.Actor) (*permission.Context, error) {
	pc := permission.NewContext(s.store, actor.Role)
	if err := pc.Reload(ctx); err != nil {
		pc.Close()
		return nil, err
	}
	return pc, nil
}

func (s *AccessService) ListRoles(ctx context.Context) ([]*models.Role, error) {
	return s.store.ListRoles(ctx)
}

// PutRole replaces a role's permission set and refreshes the authorizer so
// the change applies to the next request.
func (s *AccessService) PutRole(ctx context.Context, actor models.Actor, name string, perms []string) (*models.Role, error) {
	if err := requireAdmin(actor, "edit roles"); err != nil {
		return nil, err
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, apperr.Validation("role name is required")
	}
	if models.IsAdminRole(name) {
		return nil, apperr.Validation("role %s always holds every permission", name)
	}
	seen := make(map[string]bool, len(perms))
	clean := make([]string, 0, len(perms))
	for _, p := range perms {
		if !permission.Known(p) {
			return nil, apperr.Validation("unknown permission %q", p)
		}
		if !seen[p] {
			seen[p] = true
			clean = append(clean, p)
		}
	}
	role := &models.Role{Name: name, Permissions: clean}
	if err := s.store.PutRole(ctx, role); err != nil {
		return nil, err
	}
	if s.authz != nil {
		if err := s.authz.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	s.applied("role", name, "put", "", strings.Join(clean, ","), actor)
	return role, nil
}
