package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/propertyos/internal/config"
	"github.com/wolfeidau/propertyos/internal/gateway"
	"github.com/wolfeidau/propertyos/internal/logger"
	"github.com/wolfeidau/propertyos/internal/models"
	"github.com/wolfeidau/propertyos/internal/session"
	"github.com/wolfeidau/propertyos/internal/stats"
	"github.com/wolfeidau/propertyos/internal/store"
	"github.com/wolfeidau/propertyos/internal/store/memory"
)

func newTestServer(t *testing.T) string {
	t.Helper()

	mem := memory.New()
	mem.AddUser("alice-token", models.Identity{ID: "user-alice", Email: "alice@example.com"})
	mem.AddUser("dave-token", models.Identity{ID: "user-dave", Email: "dave@example.com"})
	mem.AddMembership(models.Membership{OrganizationID: "org-1", UserID: "user-alice", Role: models.RoleOwner})
	mem.AddMembership(models.Membership{OrganizationID: "org-1", UserID: "user-dave", Role: models.RoleMember})
	require.NoError(t, mem.AddRows(store.TableProperties,
		store.Row{"organization_id": "org-1", "name": "Harbor View"},
		store.Row{"organization_id": "org-2", "name": "Elsewhere"},
	))

	resolver, err := session.NewResolver(config.Memory{}, mem)
	require.NoError(t, err)

	srv := NewServer(NewDashboardService(gateway.New(mem, resolver), stats.New(mem)))
	handler := session.Middleware(resolver, "")(srv.Handler(logger.NewConnectRequests(logger.Setup(false))))

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts.URL
}

func call[Req, Res any](t *testing.T, baseURL, procedure, token string, msg *Req) (*Res, error) {
	t.Helper()

	client := connect.NewClient[Req, Res](http.DefaultClient, baseURL+procedure, connect.WithCodec(jsonCodec{}))
	req := connect.NewRequest(msg)
	if token != "" {
		req.Header().Set("Authorization", "Bearer "+token)
	}

	resp, err := client.CallUnary(context.Background(), req)
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func validProperty() models.PropertyInput {
	return models.PropertyInput{Name: "Sunset Apts", AddressLine1: "123 Main St", City: "SF", PostalCode: "94102"}
}

func TestGetSession(t *testing.T) {
	url := newTestServer(t)

	res, err := call[GetSessionRequest, GetSessionResponse](t, url, GetSessionProcedure, "", &GetSessionRequest{})
	require.NoError(t, err)
	require.False(t, res.Authenticated)
	require.Nil(t, res.User)

	res, err = call[GetSessionRequest, GetSessionResponse](t, url, GetSessionProcedure, "alice-token", &GetSessionRequest{})
	require.NoError(t, err)
	require.True(t, res.Authenticated)
	require.Equal(t, "alice@example.com", res.User.Email)
}

func TestGetStats(t *testing.T) {
	url := newTestServer(t)

	res, err := call[GetStatsRequest, stats.Result](t, url, GetStatsProcedure, "alice-token", &GetStatsRequest{})
	require.NoError(t, err)
	require.Empty(t, res.Error)
	require.EqualValues(t, 1, res.Data.Properties)
	require.Zero(t, res.Data.ActiveLeases)
}

func TestListProperties(t *testing.T) {
	url := newTestServer(t)

	res, err := call[ListPropertiesRequest, gateway.ListResult](t, url, ListPropertiesProcedure, "alice-token", &ListPropertiesRequest{})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	require.Equal(t, "Harbor View", res.Data[0].Name)
}

func TestCreateProperty(t *testing.T) {
	url := newTestServer(t)

	res, err := call[CreatePropertyRequest, gateway.Result](t, url, CreatePropertyProcedure, "alice-token",
		&CreatePropertyRequest{Property: validProperty()})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "org-1", res.Property.OrganizationID)
	require.Equal(t, models.DefaultCountry, res.Property.Country)
}

func TestCreateProperty_Errors(t *testing.T) {
	url := newTestServer(t)

	tests := []struct {
		name    string
		token   string
		code    connect.Code
		message string
	}{
		{name: "anonymous", code: connect.CodeUnauthenticated, message: gateway.MessageAuthenticationRequired},
		{name: "unknown token", token: "revoked", code: connect.CodeUnauthenticated, message: gateway.MessageAuthenticationRequired},
		{name: "member", token: "dave-token", code: connect.CodePermissionDenied, message: gateway.MessageAuthorizationDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := call[CreatePropertyRequest, gateway.Result](t, url, CreatePropertyProcedure, tt.token,
				&CreatePropertyRequest{Property: validProperty()})
			require.Error(t, err)

			var connectErr *connect.Error
			require.True(t, errors.As(err, &connectErr))
			require.Equal(t, tt.code, connectErr.Code())
			require.Equal(t, tt.message, connectErr.Message())
		})
	}
}

func TestCreateProperty_InvalidInput(t *testing.T) {
	url := newTestServer(t)

	in := validProperty()
	in.PostalCode = "  "

	res, err := call[CreatePropertyRequest, gateway.Result](t, url, CreatePropertyProcedure, "alice-token",
		&CreatePropertyRequest{Property: in})
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, gateway.CodeInvalidInput, res.Code)
	require.Equal(t, []gateway.FieldError{{Field: "postal_code", Message: "This field is required"}}, res.FieldErrors)
}

func TestUnavailableDashboardService(t *testing.T) {
	cause := config.FromLookup(func(string) string { return "" }).Validate()
	srv := NewServer(NewUnavailableDashboardService(cause))

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	procedures := []string{GetSessionProcedure, GetStatsProcedure, ListPropertiesProcedure, CreatePropertyProcedure}
	for _, procedure := range procedures {
		_, err := call[struct{}, struct{}](t, ts.URL, procedure, "", &struct{}{})
		require.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err), procedure)
		require.Contains(t, err.Error(), config.EnvBackendURL)
	}
}

func TestJSONCodec(t *testing.T) {
	var req CreatePropertyRequest
	require.NoError(t, jsonCodec{}.Unmarshal(nil, &req))

	require.NoError(t, jsonCodec{}.Unmarshal([]byte(`{"property":{"name":"A","organization_id":"org-2"}}`), &req))
	require.Equal(t, "A", req.Property.Name)

	data, err := jsonCodec{}.Marshal(&GetSessionResponse{})
	require.NoError(t, err)
	require.JSONEq(t, `{"authenticated":false}`, string(data))
}
