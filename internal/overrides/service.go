package overrides

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/featurekit/featurekit/internal/entitlement"
	"github.com/featurekit/featurekit/internal/platform/httpx"
	"github.com/featurekit/featurekit/internal/shared"
)

// Invalidator evicts resolved permission maps after a mutation. Eviction is
// best-effort and never fails the mutation.
type Invalidator interface {
	InvalidatePair(ctx context.Context, userID, orgID int64)
	InvalidateUser(ctx context.Context, userID int64)
}

// Service handles override business logic. User-scoped mutations invalidate
// a single (user, org) pair; organization-scoped mutations fan out to every
// member of the organization.
type Service struct {
	repo        RepositoryPort
	invalidator Invalidator
	audit       *shared.AuditLogger
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, invalidator Invalidator, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, invalidator: invalidator, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// ActiveForUser returns the user's active overrides in engine shape.
func (s *Service) ActiveForUser(ctx context.Context, userID int64) ([]entitlement.OverrideDirective, error) {
	rows, err := s.repo.ActiveUserOverrides(ctx, userID)
	if err != nil {
		return nil, err
	}
	return directives(rows), nil
}

// ActiveForOrganization returns the organization's active overrides in
// engine shape.
func (s *Service) ActiveForOrganization(ctx context.Context, orgID int64) ([]entitlement.OverrideDirective, error) {
	rows, err := s.repo.ActiveOrgOverrides(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return directives(rows), nil
}

// ListUserOverrides returns the user's active override rows for admin reads.
func (s *Service) ListUserOverrides(ctx context.Context, userID int64) ([]Override, error) {
	return s.repo.ActiveUserOverrides(ctx, userID)
}

// ListOrgOverrides returns the organization's active override rows.
func (s *Service) ListOrgOverrides(ctx context.Context, orgID int64) ([]Override, error) {
	return s.repo.ActiveOrgOverrides(ctx, orgID)
}

// UpsertUserOverride writes a user-scoped override and invalidates the
// (user, org) pair. The org is passed explicitly because user overrides are
// not org-scoped rows.
func (s *Service) UpsertUserOverride(ctx context.Context, actorID, userID, orgID int64, slug string, kind entitlement.OverrideType, value string, expiresAt *time.Time) (Override, error) {
	o, err := s.buildOverride(actorID, userID, slug, kind, value, expiresAt)
	if err != nil {
		return Override{}, err
	}
	saved, err := s.repo.UpsertUserOverride(ctx, o)
	if err != nil {
		return Override{}, err
	}
	s.record(ctx, actorID, "override.user.set", fmt.Sprintf("%d:%s", userID, slug), map[string]any{"override_type": string(kind), "org_id": orgID})
	if s.invalidator != nil {
		s.invalidator.InvalidatePair(ctx, userID, orgID)
	}
	return saved, nil
}

// DeleteUserOverride removes a user-scoped override and invalidates the pair.
func (s *Service) DeleteUserOverride(ctx context.Context, actorID, userID, orgID int64, slug string) error {
	if err := s.repo.DeleteUserOverride(ctx, userID, strings.TrimSpace(slug)); err != nil {
		return err
	}
	s.record(ctx, actorID, "override.user.delete", fmt.Sprintf("%d:%s", userID, slug), map[string]any{"org_id": orgID})
	if s.invalidator != nil {
		s.invalidator.InvalidatePair(ctx, userID, orgID)
	}
	return nil
}

// UpsertOrgOverride writes an organization-scoped override and invalidates
// every member of the organization.
func (s *Service) UpsertOrgOverride(ctx context.Context, actorID, orgID int64, slug string, kind entitlement.OverrideType, value string, expiresAt *time.Time) (Override, error) {
	o, err := s.buildOverride(actorID, orgID, slug, kind, value, expiresAt)
	if err != nil {
		return Override{}, err
	}
	saved, err := s.repo.UpsertOrgOverride(ctx, o)
	if err != nil {
		return Override{}, err
	}
	s.record(ctx, actorID, "override.org.set", fmt.Sprintf("%d:%s", orgID, slug), map[string]any{"override_type": string(kind)})
	s.fanOutOrg(ctx, orgID)
	return saved, nil
}

// DeleteOrgOverride removes an organization-scoped override and invalidates
// every member.
func (s *Service) DeleteOrgOverride(ctx context.Context, actorID, orgID int64, slug string) error {
	if err := s.repo.DeleteOrgOverride(ctx, orgID, strings.TrimSpace(slug)); err != nil {
		return err
	}
	s.record(ctx, actorID, "override.org.delete", fmt.Sprintf("%d:%s", orgID, slug), nil)
	s.fanOutOrg(ctx, orgID)
	return nil
}

// SweepExpired deletes overrides whose expiry has passed and evicts the
// resolved maps of every affected owner. Returns how many owners were
// touched across both scopes.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	cutoff := s.now().UTC()
	userIDs, err := s.repo.SweepExpiredUserOverrides(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for _, userID := range userIDs {
		// A user override row does not carry an org, so every org entry
		// of the user is evicted.
		if s.invalidator != nil {
			s.invalidator.InvalidateUser(ctx, userID)
		}
	}
	orgIDs, err := s.repo.SweepExpiredOrgOverrides(ctx, cutoff)
	if err != nil {
		return len(userIDs), err
	}
	for _, orgID := range orgIDs {
		s.fanOutOrg(ctx, orgID)
	}
	return len(userIDs) + len(orgIDs), nil
}

func (s *Service) buildOverride(actorID, ownerID int64, slug string, kind entitlement.OverrideType, value string, expiresAt *time.Time) (Override, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Override{}, fmt.Errorf("overrides: feature slug required: %w", httpx.ErrValidation)
	}
	if !kind.Valid() {
		return Override{}, fmt.Errorf("overrides: unknown override type %q: %w", kind, httpx.ErrValidation)
	}
	if kind == entitlement.OverrideLimitIncrease {
		parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || parsed < 0 {
			return Override{}, fmt.Errorf("overrides: limit_increase value must be a non-negative integer: %w", httpx.ErrValidation)
		}
		value = strconv.FormatInt(parsed, 10)
	} else {
		value = ""
	}
	if expiresAt != nil && !expiresAt.After(s.now()) {
		return Override{}, fmt.Errorf("overrides: expires_at must be in the future: %w", httpx.ErrValidation)
	}
	return Override{
		OwnerID:     ownerID,
		FeatureSlug: slug,
		Type:        kind,
		Value:       value,
		ExpiresAt:   expiresAt,
		CreatedBy:   actorID,
	}, nil
}

func (s *Service) fanOutOrg(ctx context.Context, orgID int64) {
	if s.invalidator == nil {
		return
	}
	members, err := s.repo.MemberPairs(ctx, orgID)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("org override fan-out member query", slog.Int64("org_id", orgID), slog.Any("error", err))
		}
		return
	}
	for _, m := range members {
		s.invalidator.InvalidatePair(ctx, m.UserID, m.OrgID)
	}
}

func directives(rows []Override) []entitlement.OverrideDirective {
	out := make([]entitlement.OverrideDirective, len(rows))
	for i, row := range rows {
		out[i] = row.Directive()
	}
	return out
}

func (s *Service) record(ctx context.Context, actorID int64, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{ActorID: actorID, Action: action, Entity: "override", EntityID: entityID, Meta: meta}
	if err := s.audit.Record(ctx, log); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
