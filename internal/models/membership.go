package models

import (
	"time"
)

// Role is the role a user holds within an organization.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// ManagementRoles are the roles allowed to create records on behalf of an organization.
var ManagementRoles = []Role{RoleAdmin, RoleOwner}

// Membership links a user to an organization with a role.
type Membership struct {
	OrganizationID string    `json:"organization_id"`
	UserID         string    `json:"user_id"`
	Role           Role      `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}
