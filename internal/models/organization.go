package models

import (
	"time"
)

// Organization represents a tenant. Properties, tenants, leases and the rest all belong to
// exactly one organization.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
