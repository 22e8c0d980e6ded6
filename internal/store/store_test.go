package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/propertyos/internal/models"
)

func TestQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   Query
		wantErr error
	}{
		{
			name:  "select all",
			query: From(TableProperties),
		},
		{
			name:  "filters and order",
			query: From(TableLeases).Where(Eq("status", "active")).OrderBy("created_at", true).WithLimit(10),
		},
		{
			name:  "in filter",
			query: From(TableOrganizationMembers).Where(In("role", "admin", "owner")),
		},
		{
			name:    "unknown table",
			query:   From("widgets"),
			wantErr: ErrUnknownTable,
		},
		{
			name:    "unknown selected column",
			query:   From(TableProperties).Select("secret"),
			wantErr: ErrUnknownColumn,
		},
		{
			name:    "unknown filter column",
			query:   From(TableProperties).Where(Eq("1=1; drop table properties", "x")),
			wantErr: ErrUnknownColumn,
		},
		{
			name:    "unknown order column",
			query:   From(TableProperties).OrderBy("rank", false),
			wantErr: ErrUnknownColumn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestQuery_ValidateOperators(t *testing.T) {
	err := From(TableProperties).Where(Filter{Column: "name", Op: "like", Value: "x"}).Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported operator")

	err = From(TableProperties).Where(Filter{Column: "name", Op: OpIn, Value: "x"}).Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "requires []string")
}

func TestQuery_BuildersDoNotAlias(t *testing.T) {
	base := From(TableProperties).Where(Eq("city", "SF"))
	a := base.Where(Eq("state", "CA"))
	b := base.Where(Eq("state", "NY"))

	require.Len(t, base.Filters, 1)
	require.Equal(t, "CA", a.Filters[1].Value)
	require.Equal(t, "NY", b.Filters[1].Value)
}

func TestQuery_SelectedColumns(t *testing.T) {
	require.Equal(t, Columns(TableOrganizationMembers), From(TableOrganizationMembers).SelectedColumns())
	require.Equal(t, []string{"id"}, From(TableProperties).Select("id").SelectedColumns())
}

func TestValidateRow(t *testing.T) {
	require.NoError(t, ValidateRow(TableProperties, Row{"name": "x", "organization_id": "org-1"}))
	require.ErrorIs(t, ValidateRow(TableProperties, Row{"owner": "x"}), ErrUnknownColumn)
	require.ErrorIs(t, ValidateRow("widgets", Row{}), ErrUnknownTable)
}

func TestDecodeRows(t *testing.T) {
	type record struct {
		ID        string    `json:"id"`
		State     *string   `json:"state"`
		CreatedAt time.Time `json:"created_at"`
	}

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rows := []Row{
		{"id": "a", "state": nil, "created_at": created},
		{"id": "b", "state": "CA", "created_at": "2024-05-02T08:30:00.123456+00:00"},
	}

	out, err := DecodeRows[record](rows)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Nil(t, out[0].State)
	require.True(t, created.Equal(out[0].CreatedAt))
	require.Equal(t, "CA", *out[1].State)
	require.Equal(t, 2024, out[1].CreatedAt.Year())
}

func TestEncodeRow(t *testing.T) {
	type record struct {
		Name  string  `json:"name"`
		State *string `json:"state"`
	}

	row, err := EncodeRow(record{Name: "x"})
	require.NoError(t, err)
	require.Equal(t, Row{"name": "x", "state": nil}, row)
}

func TestError_MessageVerbatim(t *testing.T) {
	err := &Error{Op: "insert", Table: TableProperties, Message: `duplicate key value violates unique constraint "properties_pkey"`}
	require.Equal(t, `duplicate key value violates unique constraint "properties_pkey"`, err.Error())
	require.True(t, IsStoreError(err))

	err = &Error{Op: "count", Table: TableLeases}
	require.Equal(t, "count leases failed", err.Error())
}

type stubStore struct {
	userErr error
}

func (s stubStore) User(ctx context.Context, cred Credential) (*models.Identity, error) {
	if s.userErr != nil {
		return nil, s.userErr
	}
	return &models.Identity{ID: "u1"}, nil
}

func (stubStore) Select(ctx context.Context, cred Credential, q Query) ([]Row, error) {
	return []Row{{"id": "p1"}}, nil
}

func (stubStore) Count(ctx context.Context, cred Credential, q Query) (*int64, error) {
	n := int64(7)
	return &n, nil
}

func (stubStore) Insert(ctx context.Context, cred Credential, table Table, row Row) (Row, error) {
	return row, nil
}

func TestInstrumented_PassesThrough(t *testing.T) {
	ctx := context.Background()
	s := Instrument(stubStore{}, "stub")

	identity, err := s.User(ctx, Credential{AccessToken: "t"})
	require.NoError(t, err)
	require.Equal(t, "u1", identity.ID)

	rows, err := s.Select(ctx, Credential{}, From(TableProperties))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	n, err := s.Count(ctx, Credential{}, From(TableLeases))
	require.NoError(t, err)
	require.EqualValues(t, 7, *n)

	row, err := s.Insert(ctx, Credential{}, TableProperties, Row{"name": "x"})
	require.NoError(t, err)
	require.Equal(t, "x", row["name"])

	_, err = Instrument(stubStore{userErr: ErrNoUser}, "stub").User(ctx, Credential{})
	require.ErrorIs(t, err, ErrNoUser)
}
