package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/propertyos/internal/config"
	"github.com/wolfeidau/propertyos/internal/models"
	"github.com/wolfeidau/propertyos/internal/session"
	"github.com/wolfeidau/propertyos/internal/store"
	"github.com/wolfeidau/propertyos/internal/store/memory"
)

var (
	alice = store.Credential{AccessToken: "alice-token"} // owner of org-1
	carol = store.Credential{AccessToken: "carol-token"} // no memberships
	dave  = store.Credential{AccessToken: "dave-token"}  // member of org-1
)

type recordingInvalidator struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func newTestGateway(t *testing.T) (*Gateway, *memory.Store, *recordingInvalidator) {
	t.Helper()

	mem := memory.New()
	mem.AddUser(alice.AccessToken, models.Identity{ID: "user-alice", Email: "alice@example.com"})
	mem.AddUser(carol.AccessToken, models.Identity{ID: "user-carol", Email: "carol@example.com"})
	mem.AddUser(dave.AccessToken, models.Identity{ID: "user-dave", Email: "dave@example.com"})
	mem.AddMembership(models.Membership{OrganizationID: "org-1", UserID: "user-alice", Role: models.RoleOwner})
	mem.AddMembership(models.Membership{OrganizationID: "org-1", UserID: "user-dave", Role: models.RoleMember})

	require.NoError(t, mem.AddRows(store.TableProperties,
		store.Row{"id": "p-old", "organization_id": "org-1", "name": "Harbor View", "updated_at": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		store.Row{"id": "p-new", "organization_id": "org-1", "name": "Lakeside", "updated_at": time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		store.Row{"id": "p-other", "organization_id": "org-2", "name": "Elsewhere"},
	))

	resolver, err := session.NewResolver(config.Backend{URL: "https://example.supabase.co", AnonKey: "anon"}, mem)
	require.NoError(t, err)

	inv := &recordingInvalidator{}
	return New(mem, resolver, WithInvalidator(inv)), mem, inv
}

func ptr(s string) *string { return &s }

func validInput() models.PropertyInput {
	return models.PropertyInput{
		Name:         " Sunset Apts ",
		AddressLine1: "123 Main St",
		City:         "SF",
		PostalCode:   "94102",
	}
}

func TestCreateProperty_OwnerScenario(t *testing.T) {
	g, mem, inv := newTestGateway(t)

	res := g.CreateProperty(context.Background(), alice, validInput())
	require.True(t, res.Success, res.Error)
	require.Equal(t, CodeOK, res.Code)
	require.Empty(t, res.Error)

	require.NotNil(t, res.Property)
	require.Equal(t, "Sunset Apts", res.Property.Name)
	require.Equal(t, "org-1", res.Property.OrganizationID)
	require.Equal(t, "US", res.Property.Country)
	require.Nil(t, res.Property.AddressLine2)
	require.Nil(t, res.Property.State)
	require.NotEmpty(t, res.Property.ID)

	rows := mem.Rows(store.TableProperties)
	require.Len(t, rows, 4)
	stored := rows[3]
	require.Equal(t, "org-1", stored["organization_id"])
	require.Nil(t, stored["address_line2"])
	require.Nil(t, stored["state"])

	require.Equal(t, []string{PropertiesPath}, inv.paths)
}

func TestCreateProperty_NoMembershipDenied(t *testing.T) {
	g, mem, inv := newTestGateway(t)

	res := g.CreateProperty(context.Background(), carol, validInput())
	require.False(t, res.Success)
	require.Equal(t, CodePermissionDenied, res.Code)
	require.Contains(t, res.Error, "organization as admin or owner")
	require.Len(t, mem.Rows(store.TableProperties), 3)
	require.Empty(t, inv.paths)
}

func TestCreateProperty_MemberRoleDenied(t *testing.T) {
	g, mem, _ := newTestGateway(t)

	res := g.CreateProperty(context.Background(), dave, validInput())
	require.False(t, res.Success)
	require.Equal(t, CodePermissionDenied, res.Code)
	require.Equal(t, MessageAuthorizationDenied, res.Error)
	require.Len(t, mem.Rows(store.TableProperties), 3)
}

func TestCreateProperty_Anonymous(t *testing.T) {
	g, mem, _ := newTestGateway(t)

	for _, cred := range []store.Credential{{}, {AccessToken: "revoked"}} {
		res := g.CreateProperty(context.Background(), cred, validInput())
		require.False(t, res.Success)
		require.Equal(t, CodeUnauthenticated, res.Code)
		require.Equal(t, MessageAuthenticationRequired, res.Error)
	}
	require.Len(t, mem.Rows(store.TableProperties), 3)
}

func TestCreateProperty_BlankRequiredFieldsNeverInsert(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *models.PropertyInput)
		field  string
	}{
		{name: "name", mutate: func(in *models.PropertyInput) { in.Name = "   " }, field: "name"},
		{name: "address", mutate: func(in *models.PropertyInput) { in.AddressLine1 = "" }, field: "address_line1"},
		{name: "city", mutate: func(in *models.PropertyInput) { in.City = "\t" }, field: "city"},
		{name: "postal code", mutate: func(in *models.PropertyInput) { in.PostalCode = " \n " }, field: "postal_code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, mem, inv := newTestGateway(t)

			in := validInput()
			tt.mutate(&in)

			res := g.CreateProperty(context.Background(), alice, in)
			require.False(t, res.Success)
			require.Equal(t, CodeInvalidInput, res.Code)
			require.Len(t, res.FieldErrors, 1)
			require.Equal(t, tt.field, res.FieldErrors[0].Field)
			require.Len(t, mem.Rows(store.TableProperties), 3)
			require.Empty(t, inv.paths)
		})
	}
}

func TestCreateProperty_InjectedOrganizationIgnored(t *testing.T) {
	g, mem, _ := newTestGateway(t)

	var in models.PropertyInput
	err := json.Unmarshal([]byte(`{
		"organization_id": "org-2",
		"name": "Injected",
		"address_line1": "1 Side St",
		"city": "Oakland",
		"postal_code": "94601"
	}`), &in)
	require.NoError(t, err)

	res := g.CreateProperty(context.Background(), alice, in)
	require.True(t, res.Success, res.Error)
	require.Equal(t, "org-1", res.Property.OrganizationID)

	rows := mem.Rows(store.TableProperties)
	require.Equal(t, "org-1", rows[len(rows)-1]["organization_id"])
}

func TestCreateProperty_CountryNormalization(t *testing.T) {
	tests := []struct {
		name     string
		country  *string
		expected string
	}{
		{name: "lowercase", country: ptr("us"), expected: "US"},
		{name: "absent", country: nil, expected: "US"},
		{name: "blank", country: ptr("  "), expected: "US"},
		{name: "padded", country: ptr(" USA "), expected: "USA"},
		{name: "not checked against a list", country: ptr("narnia"), expected: "NARNIA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _, _ := newTestGateway(t)

			in := validInput()
			in.Country = tt.country

			res := g.CreateProperty(context.Background(), alice, in)
			require.True(t, res.Success, res.Error)
			require.Equal(t, tt.expected, res.Property.Country)
		})
	}
}

func TestCreateProperty_StoreFailureVerbatim(t *testing.T) {
	g, mem, inv := newTestGateway(t)
	mem.FailOn("insert", store.TableProperties, &store.Error{
		Op:      "insert",
		Table:   store.TableProperties,
		Code:    "23505",
		Message: `duplicate key value violates unique constraint "properties_pkey"`,
	})

	res := g.CreateProperty(context.Background(), alice, validInput())
	require.False(t, res.Success)
	require.Equal(t, CodeStoreFailure, res.Code)
	require.Equal(t, `duplicate key value violates unique constraint "properties_pkey"`, res.Error)
	require.Empty(t, inv.paths)
}

func TestCreateProperty_MembershipLookupFailure(t *testing.T) {
	g, mem, _ := newTestGateway(t)
	mem.FailOn("select", store.TableOrganizationMembers, errors.New("connection reset by peer"))

	res := g.CreateProperty(context.Background(), alice, validInput())
	require.Equal(t, CodeStoreFailure, res.Code)
	require.Equal(t, "connection reset by peer", res.Error)
	require.Len(t, mem.Rows(store.TableProperties), 3)
}

func TestListProperties(t *testing.T) {
	g, _, _ := newTestGateway(t)
	ctx := context.Background()

	res := g.ListProperties(ctx, alice)
	require.Empty(t, res.Error)
	require.Len(t, res.Data, 2)
	require.Equal(t, "p-new", res.Data[0].ID)
	require.Equal(t, "p-old", res.Data[1].ID)

	again := g.ListProperties(ctx, alice)
	require.Equal(t, res, again)

	anon := g.ListProperties(ctx, store.Credential{})
	require.Empty(t, anon.Error)
	require.Empty(t, anon.Data)
}

func TestListProperties_StoreFailure(t *testing.T) {
	g, mem, _ := newTestGateway(t)
	mem.FailOn("select", store.TableProperties, &store.Error{Message: "JWT expired"})

	res := g.ListProperties(context.Background(), alice)
	require.Equal(t, "JWT expired", res.Error)
	require.NotNil(t, res.Data)
	require.Empty(t, res.Data)
}

func TestRead_NoOrganizationFilterAdded(t *testing.T) {
	g, _, _ := newTestGateway(t)
	ctx := context.Background()

	rows, err := g.Read(ctx, alice, store.TableProperties, store.Eq("name", "Lakeside"))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	first, err := g.Read(ctx, alice, store.TableProperties)
	require.NoError(t, err)
	second, err := g.Read(ctx, alice, store.TableProperties)
	require.NoError(t, err)
	require.Equal(t, first, second)

	_, err = g.Read(ctx, alice, store.Table("widgets"))
	require.ErrorIs(t, err, store.ErrUnknownTable)
}

func TestChooseMembership(t *testing.T) {
	jan := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		memberships []models.Membership
		expected    string
	}{
		{
			name:        "none",
			memberships: nil,
			expected:    "",
		},
		{
			name: "member only",
			memberships: []models.Membership{
				{OrganizationID: "org-a", Role: models.RoleMember, CreatedAt: jan},
			},
			expected: "",
		},
		{
			name: "owner preferred over earlier admin",
			memberships: []models.Membership{
				{OrganizationID: "org-a", Role: models.RoleAdmin, CreatedAt: jan},
				{OrganizationID: "org-b", Role: models.RoleOwner, CreatedAt: jun},
			},
			expected: "org-b",
		},
		{
			name: "earliest joined among admins",
			memberships: []models.Membership{
				{OrganizationID: "org-a", Role: models.RoleAdmin, CreatedAt: jun},
				{OrganizationID: "org-b", Role: models.RoleAdmin, CreatedAt: jan},
			},
			expected: "org-b",
		},
		{
			name: "lowest organization id on equal join time",
			memberships: []models.Membership{
				{OrganizationID: "org-z", Role: models.RoleOwner, CreatedAt: jan},
				{OrganizationID: "org-m", Role: models.RoleOwner, CreatedAt: jan},
			},
			expected: "org-m",
		},
		{
			name: "unknown roles skipped",
			memberships: []models.Membership{
				{OrganizationID: "org-a", Role: models.Role("billing"), CreatedAt: jan},
				{OrganizationID: "org-b", Role: models.RoleAdmin, CreatedAt: jun},
			},
			expected: "org-b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := chooseMembership(tt.memberships)
			if tt.expected == "" {
				require.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			require.Equal(t, tt.expected, got.OrganizationID)
		})
	}
}

func TestManagingMembership_IndependentOfStoreOrder(t *testing.T) {
	mem := memory.New()
	mem.AddUser("erin-token", models.Identity{ID: "user-erin", Email: "erin@example.com"})
	mem.AddMembership(models.Membership{OrganizationID: "org-b", UserID: "user-erin", Role: models.RoleAdmin, CreatedAt: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)})
	mem.AddMembership(models.Membership{OrganizationID: "org-c", UserID: "user-erin", Role: models.RoleOwner, CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})
	mem.AddMembership(models.Membership{OrganizationID: "org-a", UserID: "user-erin", Role: models.RoleMember, CreatedAt: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)})

	resolver, err := session.NewResolver(config.Memory{}, mem)
	require.NoError(t, err)
	g := New(mem, resolver)

	cred := store.Credential{AccessToken: "erin-token"}
	m, err := g.ManagingMembership(context.Background(), cred, &models.Identity{ID: "user-erin"})
	require.NoError(t, err)
	require.Equal(t, "org-c", m.OrganizationID)
	require.Equal(t, models.RoleOwner, m.Role)

	res := g.CreateProperty(context.Background(), cred, validInput())
	require.True(t, res.Success, res.Error)
	require.Equal(t, "org-c", res.Property.OrganizationID)
}

func TestResultFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code Code
	}{
		{name: "nil", err: nil, code: CodeOK},
		{name: "configuration", err: &config.ConfigurationError{Missing: []string{config.EnvBackendURL}}, code: CodeConfiguration},
		{name: "malformed url", err: config.Backend{URL: "not-a-url", AnonKey: "anon"}.Validate(), code: CodeConfiguration},
		{name: "unauthenticated", err: ErrAuthenticationRequired, code: CodeUnauthenticated},
		{name: "denied", err: ErrAuthorizationDenied, code: CodePermissionDenied},
		{name: "fields", err: FieldErrors{{Field: "name", Message: "This field is required"}}, code: CodeInvalidInput},
		{name: "store", err: &store.Error{Message: "boom"}, code: CodeStoreFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ResultFromError(tt.err)
			require.Equal(t, tt.code, res.Code)
			require.Equal(t, tt.err == nil, res.Success)
		})
	}
}
