package models

// DashboardStats holds per-entity counts computed on demand for the overview page.
type DashboardStats struct {
	Properties      int64 `json:"properties"`
	Tenants         int64 `json:"tenants"`
	ActiveLeases    int64 `json:"active_leases"`
	PendingPayments int64 `json:"pending_payments"`
	OpenMaintenance int64 `json:"open_maintenance"`
}
