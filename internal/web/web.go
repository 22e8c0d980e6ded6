package web

import (
	"bytes"
	"embed"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/propertyos/internal/assets"
	"github.com/wolfeidau/propertyos/internal/gateway"
	"github.com/wolfeidau/propertyos/internal/session"
	"github.com/wolfeidau/propertyos/internal/stats"
)

//go:embed templates/*.html
var templates embed.FS

// ScriptEntry is the browser script loaded by dashboard pages.
const ScriptEntry = "ui/scripts/properties.ts"

// Renderer executes a named page template.
type Renderer interface {
	Render(w io.Writer, name string, data any) error
}

// NewPages loads the embedded page templates into an asset pipeline built from cfg.
func NewPages(cfg assets.Config) (*assets.Pipeline, error) {
	return assets.NewWithTemplateFS(cfg, templates, []string{"templates/*.html"}, nil)
}

// Handler serves the dashboard's HTML pages.
type Handler struct {
	gateway *gateway.Gateway
	stats   *stats.Aggregator
	pages   Renderer
	views   *Views
}

// New creates the HTML handler. views must be the invalidator the gateway was built with.
func New(gw *gateway.Gateway, agg *stats.Aggregator, pages Renderer, views *Views) *Handler {
	return &Handler{
		gateway: gw,
		stats:   agg,
		pages:   pages,
		views:   views,
	}
}

// Routes registers the dashboard pages on mux. Requests must pass through session.Middleware first.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.home)
	mux.HandleFunc("GET /dashboard", h.overview)
	mux.HandleFunc("GET /dashboard/properties", h.listProperties)
	mux.Handle("POST /dashboard/properties", session.RequireIdentity("/")(http.HandlerFunc(h.createProperty)))
	mux.HandleFunc("GET /dashboard/{section}", h.listSection)
}

// page is the data every template shares.
type page struct {
	Title string
	Entry string
	Email string
	Nav   []navItem
}

type navItem struct {
	Label  string
	Path   string
	Active bool
}

// newPage builds the shared page data. Sidebar links carry the current view version so a
// navigation after a write never lands on a stale copy.
func newPage(r *http.Request, views *Views, title, active string) page {
	p := page{Title: title, Entry: ScriptEntry}
	if identity := session.IdentityFromContext(r.Context()); identity != nil {
		p.Email = identity.Email
	}
	for _, s := range sections {
		p.Nav = append(p.Nav, navItem{Label: s.Label, Path: views.URL(s.Path), Active: s.Key == active})
	}
	return p
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	p := newPage(r, h.views, "", "")
	p.Entry = ""
	h.render(w, r, http.StatusOK, "home", p)
}

type statCard struct {
	Label string
	Value int64
	Href  string
}

type overviewView struct {
	page
	Cards []statCard
	Error string
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	res := h.stats.DashboardStats(r.Context(), sess.Credential)

	view := overviewView{page: newPage(r, h.views, "Overview", "overview"), Error: res.Error}
	if res.Data != nil {
		view.Cards = []statCard{
			{Label: "Properties", Value: res.Data.Properties, Href: h.views.URL("/dashboard/properties")},
			{Label: "Tenants", Value: res.Data.Tenants, Href: h.views.URL("/dashboard/tenants")},
			{Label: "Active Leases", Value: res.Data.ActiveLeases, Href: h.views.URL("/dashboard/leases")},
			{Label: "Pending Payments", Value: res.Data.PendingPayments, Href: h.views.URL("/dashboard/payments")},
			{Label: "Open Maintenance", Value: res.Data.OpenMaintenance, Href: h.views.URL("/dashboard/maintenance")},
		}
	}

	h.render(w, r, http.StatusOK, "overview", view)
}

// render buffers the page so a template failure never leaves a partial response.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	body, ok := renderPage(w, r, h.pages, name, data)
	if !ok {
		return
	}
	writeHTML(w, status, body)
}

func renderPage(w http.ResponseWriter, r *http.Request, pages Renderer, name string, data any) ([]byte, bool) {
	var buf bytes.Buffer
	if err := pages.Render(&buf, name, data); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("template", name).Msg("Failed to render template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, false
	}
	return buf.Bytes(), true
}

func writeHTML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
