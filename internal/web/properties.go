package web

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/propertyos/internal/gateway"
	"github.com/wolfeidau/propertyos/internal/models"
	"github.com/wolfeidau/propertyos/internal/session"
)

type propertyRow struct {
	Name    string
	Address string
	City    string
	Updated string
}

type formField struct {
	Name        string
	Label       string
	Placeholder string
	Required    bool
	Value       string
	Error       string
}

type propertyForm struct {
	Open   bool
	Error  string
	Fields []formField
}

type propertiesView struct {
	page
	Properties []propertyRow
	Error      string
	Form       propertyForm
	ListingURL string
}

// propertyFields are the inputs of the add-property form, in display order.
var propertyFields = []formField{
	{Name: "name", Label: "Name", Placeholder: "e.g. Sunset Apartments", Required: true},
	{Name: "address_line1", Label: "Address line 1", Placeholder: "123 Main St", Required: true},
	{Name: "address_line2", Label: "Address line 2 (optional)", Placeholder: "Apt 4B"},
	{Name: "city", Label: "City", Placeholder: "San Francisco", Required: true},
	{Name: "state", Label: "State", Placeholder: "CA"},
	{Name: "postal_code", Label: "Postal code", Placeholder: "94102", Required: true},
	{Name: "country", Label: "Country", Placeholder: models.DefaultCountry, Value: models.DefaultCountry},
}

func (h *Handler) listProperties(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())

	view := h.propertiesView(r, sess)
	view.Form = newPropertyForm(nil)
	view.Form.Open = r.URL.Query().Get("add") == "1"

	body, ok := renderPage(w, r, h.pages, "properties", view)
	if !ok {
		return
	}

	if view.Error != "" || view.Form.Open {
		writeUncached(w, http.StatusOK, body)
		return
	}
	writeCached(w, r, body)
}

func (h *Handler) createProperty(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	sess := session.FromContext(r.Context())
	res := h.gateway.CreateProperty(r.Context(), sess.Credential, propertyInputFromForm(r.PostForm))
	logCreateOutcome(r.Context(), res)
	if res.Success {
		http.Redirect(w, r, h.views.URL(gateway.PropertiesPath), http.StatusSeeOther)
		return
	}

	view := h.propertiesView(r, sess)
	view.Form = newPropertyForm(r.PostForm)
	view.Form.Open = true
	view.Form.Error = res.Error
	for i := range view.Form.Fields {
		view.Form.Fields[i].Error = gateway.FieldErrors(res.FieldErrors).For(view.Form.Fields[i].Name)
	}

	body, ok := renderPage(w, r, h.pages, "properties", view)
	if !ok {
		return
	}
	writeUncached(w, statusForCode(res.Code), body)
}

func (h *Handler) propertiesView(r *http.Request, sess *session.Session) propertiesView {
	res := h.gateway.ListProperties(r.Context(), sess.Credential)

	view := propertiesView{
		page:       newPage(r, h.views, "Properties", "properties"),
		ListingURL: h.views.URL(gateway.PropertiesPath),
		Properties: make([]propertyRow, 0, len(res.Data)),
		Error:      res.Error,
	}
	for _, p := range res.Data {
		view.Properties = append(view.Properties, newPropertyRow(p))
	}
	return view
}

func newPropertyRow(p models.Property) propertyRow {
	address := []string{p.AddressLine1}
	if p.AddressLine2 != nil && *p.AddressLine2 != "" {
		address = append(address, *p.AddressLine2)
	}

	city := p.City
	if p.State != nil && *p.State != "" {
		city += ", " + *p.State
	}

	return propertyRow{
		Name:    p.Name,
		Address: strings.Join(address, ", "),
		City:    strings.TrimSpace(city + " " + p.PostalCode),
		Updated: formatDate(p.UpdatedAt),
	}
}

// newPropertyForm returns the form fields, refilled from submitted values when present.
func newPropertyForm(values url.Values) propertyForm {
	form := propertyForm{Fields: make([]formField, len(propertyFields))}
	copy(form.Fields, propertyFields)
	if values == nil {
		return form
	}
	for i := range form.Fields {
		form.Fields[i].Value = values.Get(form.Fields[i].Name)
	}
	return form
}

// propertyInputFromForm reads the named property fields. Any other submitted field,
// organization_id included, is ignored.
func propertyInputFromForm(values url.Values) models.PropertyInput {
	optional := func(name string) *string {
		if !values.Has(name) {
			return nil
		}
		v := values.Get(name)
		return &v
	}

	return models.PropertyInput{
		Name:         values.Get("name"),
		AddressLine1: values.Get("address_line1"),
		AddressLine2: optional("address_line2"),
		City:         values.Get("city"),
		State:        optional("state"),
		PostalCode:   values.Get("postal_code"),
		Country:      optional("country"),
	}
}

func statusForCode(code gateway.Code) int {
	switch code {
	case gateway.CodeOK:
		return http.StatusOK
	case gateway.CodeUnauthenticated:
		return http.StatusUnauthorized
	case gateway.CodePermissionDenied:
		return http.StatusForbidden
	case gateway.CodeInvalidInput:
		return http.StatusUnprocessableEntity
	case gateway.CodeConfiguration:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}

func logCreateOutcome(ctx context.Context, res gateway.Result) {
	log.Ctx(ctx).Debug().Bool("success", res.Success).Str("code", string(res.Code)).Msg("Add property form submitted")
}
