package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/propertyos/internal/models"
	"github.com/wolfeidau/propertyos/internal/store"
)

// Store implements store.Store using in-memory tables.
// Row visibility emulates the hosted backend's policies: a caller sees its own memberships and
// rows of organizations it belongs to, and may only insert into organizations it manages.
// This implementation is for development and testing - data is lost on restart.
type Store struct {
	mu sync.RWMutex

	users  map[string]*models.Identity // access token -> identity
	tables map[store.Table][]store.Row
	faults map[fault]error
	now    func() time.Time
}

type fault struct {
	op    string
	table store.Table
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		users:  make(map[string]*models.Identity),
		tables: make(map[store.Table][]store.Row),
		faults: make(map[fault]error),
		now:    time.Now,
	}
}

// SetClock replaces the time source used for generated timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.now = now
}

// AddUser registers an identity reachable with the given access token.
func (s *Store) AddUser(token string, identity models.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := identity
	s.users[token] = &clone
}

// AddMembership seeds a membership row, bypassing row policies.
func (s *Store) AddMembership(m models.Membership) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	_ = s.AddRows(store.TableOrganizationMembers, store.Row{
		"organization_id": m.OrganizationID,
		"user_id":         m.UserID,
		"role":            string(m.Role),
		"created_at":      m.CreatedAt,
	})
}

// AddRows seeds rows into a table, bypassing row policies.
func (s *Store) AddRows(table store.Table, rows ...store.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range rows {
		if err := store.ValidateRow(table, row); err != nil {
			return err
		}
		s.tables[table] = append(s.tables[table], s.withDefaults(table, row))
	}
	return nil
}

// Rows returns every row of a table, bypassing row policies.
func (s *Store) Rows(table store.Table) []store.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Row, 0, len(s.tables[table]))
	for _, row := range s.tables[table] {
		out = append(out, maps.Clone(row))
	}
	return out
}

// FailOn makes every subsequent op ("user", "select", "count", "insert") on table return err.
// Pass a nil err to clear the fault.
func (s *Store) FailOn(op string, table store.Table, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fault{op: op, table: table}
	if err == nil {
		delete(s.faults, key)
		return
	}
	s.faults[key] = err
}

// User resolves the identity registered for the credential's token.
func (s *Store) User(ctx context.Context, cred store.Credential) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.faults[fault{op: "user"}]; err != nil {
		return nil, err
	}

	if cred.IsAnonymous() {
		return nil, store.ErrNoUser
	}

	identity, ok := s.users[cred.AccessToken]
	if !ok {
		return nil, store.ErrNoUser
	}

	clone := *identity
	return &clone, nil
}

// Select returns the rows visible to the caller matching q.
func (s *Store) Select(ctx context.Context, cred store.Credential, q store.Query) ([]store.Row, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.faults[fault{op: "select", table: q.Table}]; err != nil {
		return nil, err
	}

	matched := s.visibleMatching(cred, q)

	if len(q.Order) > 0 {
		slices.SortStableFunc(matched, func(a, b store.Row) int {
			for _, o := range q.Order {
				c := compareValues(a[o.Column], b[o.Column])
				if o.Descending {
					c = -c
				}
				if c != 0 {
					return c
				}
			}
			return 0
		})
	}

	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	cols := q.SelectedColumns()
	out := make([]store.Row, 0, len(matched))
	for _, row := range matched {
		projected := make(store.Row, len(cols))
		for _, col := range cols {
			projected[col] = row[col]
		}
		out = append(out, projected)
	}

	return out, nil
}

// Count returns the number of visible rows matching q. Ordering and limit are ignored.
func (s *Store) Count(ctx context.Context, cred store.Credential, q store.Query) (*int64, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.faults[fault{op: "count", table: q.Table}]; err != nil {
		return nil, err
	}

	n := int64(len(s.visibleMatching(cred, q)))
	return &n, nil
}

// Insert stores a row after checking the caller may write to the row's organization.
func (s *Store) Insert(ctx context.Context, cred store.Credential, table store.Table, row store.Row) (store.Row, error) {
	if err := store.ValidateRow(table, row); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.faults[fault{op: "insert", table: table}]; err != nil {
		return nil, err
	}

	identity := s.users[cred.AccessToken]
	if cred.IsAnonymous() || identity == nil || !s.canWrite(identity.ID, table, row) {
		return nil, &store.Error{
			Op:      "insert",
			Table:   table,
			Code:    "42501",
			Message: fmt.Sprintf("new row violates row-level security policy for table %q", string(table)),
		}
	}

	stored := s.withDefaults(table, row)
	s.tables[table] = append(s.tables[table], stored)

	return maps.Clone(stored), nil
}

// visibleMatching returns clones of the rows of q.Table visible to cred that pass q's filters.
// Caller must hold s.mu.
func (s *Store) visibleMatching(cred store.Credential, q store.Query) []store.Row {
	identity := s.users[cred.AccessToken]
	if cred.IsAnonymous() || identity == nil {
		return nil
	}

	orgs := s.organizationsOf(identity.ID)

	var out []store.Row
	for _, row := range s.tables[q.Table] {
		if !visible(identity.ID, orgs, q.Table, row) {
			continue
		}
		if !matches(row, q.Filters) {
			continue
		}
		out = append(out, maps.Clone(row))
	}
	return out
}

// organizationsOf returns organization id -> role for every membership of userID.
// Caller must hold s.mu.
func (s *Store) organizationsOf(userID string) map[string]models.Role {
	orgs := make(map[string]models.Role)
	for _, m := range s.tables[store.TableOrganizationMembers] {
		if fmt.Sprint(m["user_id"]) == userID {
			orgs[fmt.Sprint(m["organization_id"])] = models.Role(fmt.Sprint(m["role"]))
		}
	}
	return orgs
}

// canWrite reports whether userID may insert row into table.
// Caller must hold s.mu.
func (s *Store) canWrite(userID string, table store.Table, row store.Row) bool {
	if !store.HasColumn(table, "organization_id") || table == store.TableOrganizationMembers {
		return false
	}
	role, ok := s.organizationsOf(userID)[fmt.Sprint(row["organization_id"])]
	return ok && slices.Contains(models.ManagementRoles, role)
}

// withDefaults returns a copy of row with id and timestamps filled in where the table has them.
func (s *Store) withDefaults(table store.Table, row store.Row) store.Row {
	out := maps.Clone(row)
	now := s.now().UTC()

	if store.HasColumn(table, "id") && isBlank(out["id"]) {
		out["id"] = uuid.Must(uuid.NewV7()).String()
	}
	for _, col := range []string{"created_at", "updated_at"} {
		if store.HasColumn(table, col) && isBlank(out[col]) {
			out[col] = now
		}
	}
	for _, col := range store.Columns(table) {
		if _, ok := out[col]; !ok {
			out[col] = nil
		}
	}
	return out
}

func visible(userID string, orgs map[string]models.Role, table store.Table, row store.Row) bool {
	switch table {
	case store.TableOrganizationMembers:
		return fmt.Sprint(row["user_id"]) == userID
	case store.TableOrganizations:
		_, ok := orgs[fmt.Sprint(row["id"])]
		return ok
	default:
		_, ok := orgs[fmt.Sprint(row["organization_id"])]
		return ok
	}
}

func matches(row store.Row, filters []store.Filter) bool {
	for _, f := range filters {
		value := fmt.Sprint(row[f.Column])
		switch f.Op {
		case store.OpEq:
			if f.Value == nil {
				if row[f.Column] != nil {
					return false
				}
				continue
			}
			if row[f.Column] == nil || value != fmt.Sprint(f.Value) {
				return false
			}
		case store.OpIn:
			if row[f.Column] == nil || !slices.Contains(f.Value.([]string), value) {
				return false
			}
		}
	}
	return true
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	if t, ok := v.(time.Time); ok {
		return t.IsZero()
	}
	return false
}

// compareValues orders nil first, then times, numbers and strings by their natural order.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}

	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}

	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
