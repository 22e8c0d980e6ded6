package models

import (
	"time"
)

// DefaultCountry is stored when a property is created without a country.
const DefaultCountry = "US"

// Property is a managed building or unit group owned by one organization.
type Property struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	AddressLine1   string    `json:"address_line1"`
	AddressLine2   *string   `json:"address_line2"`
	City           string    `json:"city"`
	State          *string   `json:"state"`
	PostalCode     string    `json:"postal_code"`
	Country        string    `json:"country"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PropertyInput is the raw create request as submitted by a user.
// There is deliberately no organization field; the gateway assigns it.
type PropertyInput struct {
	Name         string  `json:"name"`
	AddressLine1 string  `json:"address_line1"`
	AddressLine2 *string `json:"address_line2,omitempty"`
	City         string  `json:"city"`
	State        *string `json:"state,omitempty"`
	PostalCode   string  `json:"postal_code"`
	Country      *string `json:"country,omitempty"`
}

// NewProperty is a normalized property ready to insert.
type NewProperty struct {
	OrganizationID string  `json:"organization_id"`
	Name           string  `json:"name" validate:"required,max=200"`
	AddressLine1   string  `json:"address_line1" validate:"required,max=200"`
	AddressLine2   *string `json:"address_line2" validate:"omitempty,max=200"`
	City           string  `json:"city" validate:"required,max=100"`
	State          *string `json:"state" validate:"omitempty,max=100"`
	PostalCode     string  `json:"postal_code" validate:"required,max=20"`
	Country        string  `json:"country" validate:"required,max=56"`
}
