package server

import (
	"net/http"

	"connectrpc.com/connect"
)

// DashboardServiceName is the fully-qualified name of the dashboard API.
const DashboardServiceName = "propertyos.v1.DashboardService"

// Procedure paths served under /propertyos.v1.DashboardService/.
const (
	GetSessionProcedure     = "/" + DashboardServiceName + "/GetSession"
	GetStatsProcedure       = "/" + DashboardServiceName + "/GetStats"
	ListPropertiesProcedure = "/" + DashboardServiceName + "/ListProperties"
	CreatePropertyProcedure = "/" + DashboardServiceName + "/CreateProperty"
)

// Server wraps the HTTP handler for the dashboard service
type Server struct {
	dashboard *DashboardService
}

// NewServer creates a server for the given service
func NewServer(dashboard *DashboardService) *Server {
	return &Server{dashboard: dashboard}
}

// Path is the prefix every procedure is served under.
func (s *Server) Path() string {
	return "/" + DashboardServiceName + "/"
}

// Handler returns the HTTP handler for the dashboard service
func (s *Server) Handler(interceptors ...connect.Interceptor) http.Handler {
	opts := []connect.HandlerOption{
		connect.WithCodec(jsonCodec{}),
		connect.WithInterceptors(interceptors...),
	}

	mux := http.NewServeMux()
	mux.Handle(GetSessionProcedure, connect.NewUnaryHandler(GetSessionProcedure, s.dashboard.GetSession, opts...))
	mux.Handle(GetStatsProcedure, connect.NewUnaryHandler(GetStatsProcedure, s.dashboard.GetStats, opts...))
	mux.Handle(ListPropertiesProcedure, connect.NewUnaryHandler(ListPropertiesProcedure, s.dashboard.ListProperties, opts...))
	mux.Handle(CreatePropertyProcedure, connect.NewUnaryHandler(CreatePropertyProcedure, s.dashboard.CreateProperty, opts...))

	return mux
}
