package auth

import (
	"slices"

	"github.com/wolfeidau/propertyos/internal/models"
)

// Permission represents an authorized action within an organization
type Permission string

const (
	PermPropertiesRead   Permission = "properties:read"
	PermPropertiesCreate Permission = "properties:create"
	PermStatsRead        Permission = "stats:read"
)

// RolePermissions maps organization roles to allowed permissions
var RolePermissions = map[models.Role][]Permission{
	models.RoleOwner: {
		PermPropertiesRead,
		PermPropertiesCreate,
		PermStatsRead,
	},
	models.RoleAdmin: {
		PermPropertiesRead,
		PermPropertiesCreate,
		PermStatsRead,
	},
	models.RoleMember: {
		PermPropertiesRead,
		PermStatsRead,
	},
}

// HasPermission checks if a role has a specific permission.
// Unknown roles have no permissions.
func HasPermission(role models.Role, perm Permission) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	return slices.Contains(perms, perm)
}

// RolesWith returns every role granted perm, in a stable order.
func RolesWith(perm Permission) []models.Role {
	var roles []models.Role
	for role, perms := range RolePermissions {
		if slices.Contains(perms, perm) {
			roles = append(roles, role)
		}
	}
	slices.Sort(roles)
	return roles
}
