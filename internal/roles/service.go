package roles

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/featurekit/featurekit/internal/platform/cache"
	"github.com/featurekit/featurekit/internal/platform/httpx"
	"github.com/featurekit/featurekit/internal/shared"
)

// Invalidator evicts resolved permission maps after a mutation. Eviction is
// best-effort and never fails the mutation.
type Invalidator interface {
	InvalidatePair(ctx context.Context, userID, orgID int64)
}

// PermissionsKey is the provider cache key for one user's aggregated role
// grants inside an organization.
func PermissionsKey(orgID, userID int64) string {
	return fmt.Sprintf("role-permissions:%d:%d", orgID, userID)
}

// Service handles role business logic. Grant and revoke fan out to every
// holder of the role; assignment changes touch a single (user, org) pair.
type Service struct {
	repo        RepositoryPort
	cache       *cache.JSONCache
	invalidator Invalidator
	audit       *shared.AuditLogger
	logger      *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, c *cache.JSONCache, invalidator Invalidator, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: c, invalidator: invalidator, audit: audit, logger: logger}
}

// ListRoles returns all roles of one organization.
func (s *Service) ListRoles(ctx context.Context, orgID int64) ([]Role, error) {
	return s.repo.ListRoles(ctx, orgID)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole inserts a new role.
func (s *Service) CreateRole(ctx context.Context, actorID, orgID int64, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("roles: name required: %w", httpx.ErrValidation)
	}
	role, err := s.repo.CreateRole(ctx, orgID, name, strings.TrimSpace(description))
	if err != nil {
		return Role{}, err
	}
	s.record(ctx, actorID, "role.create", role.ID, nil)
	return role, nil
}

// DeleteRole removes a role. Every holder loses its grants, so the role's
// holders are invalidated first, while they can still be queried.
func (s *Service) DeleteRole(ctx context.Context, actorID, roleID int64) error {
	holders, holdersErr := s.repo.Holders(ctx, roleID)
	if err := s.repo.DeleteRole(ctx, roleID); err != nil {
		return err
	}
	s.record(ctx, actorID, "role.delete", roleID, nil)
	if holdersErr != nil {
		s.warnFanout(roleID, holdersErr)
		return nil
	}
	s.invalidateHolders(ctx, holders)
	return nil
}

// RoleGrants returns the grant rows of one role.
func (s *Service) RoleGrants(ctx context.Context, roleID int64) ([]Grant, error) {
	return s.repo.RoleGrants(ctx, roleID)
}

// Grant adds a feature grant to a role and invalidates every holder.
func (s *Service) Grant(ctx context.Context, actorID, roleID int64, slug string) error {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return fmt.Errorf("roles: feature slug required: %w", httpx.ErrValidation)
	}
	if err := s.repo.Grant(ctx, roleID, slug); err != nil {
		return err
	}
	s.record(ctx, actorID, "role.grant", roleID, map[string]any{"feature_slug": slug})
	s.fanOut(ctx, roleID)
	return nil
}

// Revoke removes a feature grant from a role and invalidates every holder.
func (s *Service) Revoke(ctx context.Context, actorID, roleID int64, slug string) error {
	if err := s.repo.Revoke(ctx, roleID, strings.TrimSpace(slug)); err != nil {
		return err
	}
	s.record(ctx, actorID, "role.revoke", roleID, map[string]any{"feature_slug": slug})
	s.fanOut(ctx, roleID)
	return nil
}

// AssignRole gives a user the role and invalidates that single pair.
func (s *Service) AssignRole(ctx context.Context, actorID, userID, roleID, orgID int64) error {
	if err := s.repo.AssignRole(ctx, userID, roleID, orgID); err != nil {
		return err
	}
	s.record(ctx, actorID, "role.assign", roleID, map[string]any{"user_id": userID, "org_id": orgID})
	s.invalidateHolders(ctx, []Holder{{UserID: userID, OrgID: orgID}})
	return nil
}

// RemoveRole takes the role away and invalidates that single pair.
func (s *Service) RemoveRole(ctx context.Context, actorID, userID, roleID, orgID int64) error {
	if err := s.repo.RemoveRole(ctx, userID, roleID, orgID); err != nil {
		return err
	}
	s.record(ctx, actorID, "role.remove", roleID, map[string]any{"user_id": userID, "org_id": orgID})
	s.invalidateHolders(ctx, []Holder{{UserID: userID, OrgID: orgID}})
	return nil
}

// UserRolePermissions returns the aggregated granted slugs for one user in
// one organization, cache-through.
func (s *Service) UserRolePermissions(ctx context.Context, userID, orgID int64) ([]string, error) {
	var slugs []string
	err := s.cache.Fetch(ctx, PermissionsKey(orgID, userID), &slugs, func(ctx context.Context) (interface{}, error) {
		return s.repo.UserRolePermissions(ctx, userID, orgID)
	})
	if err != nil {
		return nil, err
	}
	return slugs, nil
}

// fanOut evicts the aggregated-permission cache entry and the resolved map
// of every holder of the role.
func (s *Service) fanOut(ctx context.Context, roleID int64) {
	holders, err := s.repo.Holders(ctx, roleID)
	if err != nil {
		s.warnFanout(roleID, err)
		return
	}
	s.invalidateHolders(ctx, holders)
}

func (s *Service) invalidateHolders(ctx context.Context, holders []Holder) {
	for _, h := range holders {
		s.cache.Forget(ctx, PermissionsKey(h.OrgID, h.UserID))
		if s.invalidator != nil {
			s.invalidator.InvalidatePair(ctx, h.UserID, h.OrgID)
		}
	}
}

func (s *Service) warnFanout(roleID int64, err error) {
	if s.logger != nil {
		s.logger.Warn("role fan-out holder query", slog.Int64("role_id", roleID), slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, roleID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{ActorID: actorID, Action: action, Entity: "role", EntityID: fmt.Sprintf("%d", roleID), Meta: meta}
	if err := s.audit.Record(ctx, log); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
