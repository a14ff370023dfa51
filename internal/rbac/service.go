package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/odyssey-erp/procureflow/internal/shared"
)

var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = errors.New("rbac: not found")
	// ErrInactiveUser is returned when a disabled account tries to act.
	ErrInactiveUser = errors.New("rbac: user inactive")
)

// Store is the persistence port of the Service.
type Store interface {
	GetUser(ctx context.Context, id int64) (User, error)
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
	ListRoles(ctx context.Context) ([]Role, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	CreateRole(ctx context.Context, name, description string) (Role, error)
	EnsurePermission(ctx context.Context, name, description string) (Permission, error)
	SetRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	AssignRole(ctx context.Context, userID, roleID int64) error
	RemoveRole(ctx context.Context, userID, roleID int64) error
}

// Service orchestrates RBAC operations.
type Service struct {
	store Store
}

// NewService constructs a Service backed by the provided store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// LoadActor resolves a user and their effective capabilities.
func (s *Service) LoadActor(ctx context.Context, userID int64) (shared.Actor, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return shared.Actor{}, err
	}
	if !user.IsActive {
		return shared.Actor{}, fmt.Errorf("%w: %d", ErrInactiveUser, userID)
	}
	perms, err := s.EffectivePermissions(ctx, userID)
	if err != nil {
		return shared.Actor{}, err
	}
	caps := make([]shared.Capability, 0, len(perms))
	for _, p := range perms {
		caps = append(caps, shared.Capability(p))
	}
	actor := shared.NewActor(user.ID, user.Name, caps...)
	actor.Email = user.Email
	return actor, nil
}

// EffectivePermissions returns the normalized permission names granted to
// the user through all of their roles.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	perms, err := s.store.EffectivePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return normalizePermissions(perms), nil
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

// ListPermissions returns all permissions ordered by name.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

// CreateRole inserts a new role.
func (s *Service) CreateRole(ctx context.Context, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("rbac: role name required")
	}
	return s.store.CreateRole(ctx, name, strings.TrimSpace(description))
}

// EnsurePermission upserts a permission by its normalized name.
func (s *Service) EnsurePermission(ctx context.Context, name, description string) (Permission, error) {
	name = normalizePermission(name)
	if name == "" {
		return Permission{}, errors.New("rbac: permission name required")
	}
	return s.store.EnsurePermission(ctx, name, strings.TrimSpace(description))
}

// SetRolePermissions replaces the permission set of a role.
func (s *Service) SetRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	seen := make(map[int64]struct{}, len(permissionIDs))
	unique := make([]int64, 0, len(permissionIDs))
	for _, id := range permissionIDs {
		if _, ok := seen[id]; ok || id <= 0 {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return s.store.SetRolePermissions(ctx, roleID, unique)
}

// AssignRole links a role to a user.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64) error {
	return s.store.AssignRole(ctx, userID, roleID)
}

// RemoveRole unlinks a role from a user.
func (s *Service) RemoveRole(ctx context.Context, userID, roleID int64) error {
	return s.store.RemoveRole(ctx, userID, roleID)
}

func normalizePermission(p string) string {
	return strings.ToUpper(strings.TrimSpace(p))
}

func normalizePermissions(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, p := range perms {
		p = normalizePermission(p)
		if p == "" {
			continue
		}
		if _, ok := unique[p]; ok {
			continue
		}
		unique[p] = struct{}{}
		normalized = append(normalized, p)
	}
	return normalized
}
