package store

import (
	"fmt"
	"slices"
)

// Table names a backend table.
type Table string

const (
	TableOrganizations       Table = "organizations"
	TableOrganizationMembers Table = "organization_members"
	TableProperties          Table = "properties"
	TableProfiles            Table = "profiles"
	TableLeases              Table = "leases"
	TablePayments            Table = "payments"
	TableMaintenanceTickets  Table = "maintenance_tickets"
)

// columns lists the columns of every known table, in display order.
var columns = map[Table][]string{
	TableOrganizations: {
		"id", "name", "created_at", "updated_at",
	},
	TableOrganizationMembers: {
		"organization_id", "user_id", "role", "created_at",
	},
	TableProperties: {
		"id", "organization_id", "name", "address_line1", "address_line2",
		"city", "state", "postal_code", "country", "created_at", "updated_at",
	},
	TableProfiles: {
		"id", "organization_id", "full_name", "email", "phone", "created_at", "updated_at",
	},
	TableLeases: {
		"id", "organization_id", "property_id", "tenant_id", "status",
		"start_date", "end_date", "rent_amount", "created_at", "updated_at",
	},
	TablePayments: {
		"id", "organization_id", "lease_id", "amount", "status", "due_date", "paid_at",
		"created_at", "updated_at",
	},
	TableMaintenanceTickets: {
		"id", "organization_id", "property_id", "title", "description", "status", "priority",
		"created_at", "updated_at",
	},
}

// Tables returns all known tables.
func Tables() []Table {
	out := make([]Table, 0, len(columns))
	for t := range columns {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Columns returns the columns of t, or nil if t is unknown.
func Columns(t Table) []string {
	return slices.Clone(columns[t])
}

// HasColumn reports whether t has the named column.
func HasColumn(t Table, column string) bool {
	return slices.Contains(columns[t], column)
}

// Validate checks that t is a known table.
func (t Table) Validate() error {
	if _, ok := columns[t]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTable, string(t))
	}
	return nil
}

// ValidateRow checks that every key of row is a column of t.
func ValidateRow(t Table, row Row) error {
	if err := t.Validate(); err != nil {
		return err
	}
	for col := range row {
		if !HasColumn(t, col) {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, t, col)
		}
	}
	return nil
}
