package roles

import "context"

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context, orgID int64) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	CreateRole(ctx context.Context, orgID int64, name, description string) (Role, error)
	DeleteRole(ctx context.Context, id int64) error

	RoleGrants(ctx context.Context, roleID int64) ([]Grant, error)
	Grant(ctx context.Context, roleID int64, slug string) error
	Revoke(ctx context.Context, roleID int64, slug string) error

	AssignRole(ctx context.Context, userID, roleID, orgID int64) error
	RemoveRole(ctx context.Context, userID, roleID, orgID int64) error

	// UserRolePermissions aggregates the distinct feature slugs granted by
	// every role the user holds inside the organization.
	UserRolePermissions(ctx context.Context, userID, orgID int64) ([]string, error)
	// Holders is the affected-owners query for role mutation fan-out.
	Holders(ctx context.Context, roleID int64) ([]Holder, error)
}
