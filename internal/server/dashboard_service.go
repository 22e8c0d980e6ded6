package server

import (
	"context"
	"errors"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/propertyos/internal/gateway"
	"github.com/wolfeidau/propertyos/internal/models"
	"github.com/wolfeidau/propertyos/internal/session"
	"github.com/wolfeidau/propertyos/internal/stats"
)

type GetSessionRequest struct{}

type GetSessionResponse struct {
	Authenticated bool             `json:"authenticated"`
	User          *models.Identity `json:"user,omitempty"`
}

type GetStatsRequest struct{}

type ListPropertiesRequest struct{}

type CreatePropertyRequest struct {
	Property models.PropertyInput `json:"property"`
}

// DashboardService implements the dashboard API. Callers are identified by session.Middleware,
// which must wrap the handler.
type DashboardService struct {
	gateway     *gateway.Gateway
	stats       *stats.Aggregator
	unavailable error
}

// NewDashboardService creates a service backed by gw and agg.
func NewDashboardService(gw *gateway.Gateway, agg *stats.Aggregator) *DashboardService {
	return &DashboardService{
		gateway: gw,
		stats:   agg,
	}
}

// NewUnavailableDashboardService creates a service that fails every call with
// failed_precondition and cause as the message.
func NewUnavailableDashboardService(cause error) *DashboardService {
	if cause == nil {
		cause = errors.New("backend is not configured")
	}
	return &DashboardService{unavailable: cause}
}

func (s *DashboardService) GetSession(
	ctx context.Context,
	req *connect.Request[GetSessionRequest],
) (*connect.Response[GetSessionResponse], error) {
	if s.unavailable != nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, s.unavailable)
	}

	sess := session.FromContext(ctx)
	return connect.NewResponse(&GetSessionResponse{
		Authenticated: sess.Authenticated(),
		User:          sess.Identity,
	}), nil
}

func (s *DashboardService) GetStats(
	ctx context.Context,
	req *connect.Request[GetStatsRequest],
) (*connect.Response[stats.Result], error) {
	if s.unavailable != nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, s.unavailable)
	}

	res := s.stats.DashboardStats(ctx, session.FromContext(ctx).Credential)
	return connect.NewResponse(&res), nil
}

func (s *DashboardService) ListProperties(
	ctx context.Context,
	req *connect.Request[ListPropertiesRequest],
) (*connect.Response[gateway.ListResult], error) {
	if s.unavailable != nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, s.unavailable)
	}

	res := s.gateway.ListProperties(ctx, session.FromContext(ctx).Credential)
	return connect.NewResponse(&res), nil
}

// CreateProperty returns access and configuration failures as connect errors. Validation and
// store failures are ordinary results so clients get field errors and the backend message.
func (s *DashboardService) CreateProperty(
	ctx context.Context,
	req *connect.Request[CreatePropertyRequest],
) (*connect.Response[gateway.Result], error) {
	if s.unavailable != nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, s.unavailable)
	}

	res := s.gateway.CreateProperty(ctx, session.FromContext(ctx).Credential, req.Msg.Property)
	if err := resultError(res); err != nil {
		log.Ctx(ctx).Debug().Str("code", string(res.Code)).Msg("CreateProperty rejected")
		return nil, err
	}

	return connect.NewResponse(&res), nil
}

func resultError(res gateway.Result) error {
	switch res.Code {
	case gateway.CodeUnauthenticated:
		return connect.NewError(connect.CodeUnauthenticated, errors.New(res.Error))
	case gateway.CodePermissionDenied:
		return connect.NewError(connect.CodePermissionDenied, errors.New(res.Error))
	case gateway.CodeConfiguration:
		return connect.NewError(connect.CodeFailedPrecondition, errors.New(res.Error))
	}
	return nil
}
