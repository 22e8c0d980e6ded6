package web

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/wolfeidau/propertyos/internal/session"
	"github.com/wolfeidau/propertyos/internal/store"
)

// section is one sidebar entry. Sections with a table render as a generic scoped listing.
type section struct {
	Key   string
	Label string
	Path  string
	Table store.Table
}

var sections = []section{
	{Key: "overview", Label: "Overview", Path: "/dashboard"},
	{Key: "properties", Label: "Properties", Path: "/dashboard/properties"},
	{Key: "tenants", Label: "Tenants", Path: "/dashboard/tenants", Table: store.TableProfiles},
	{Key: "leases", Label: "Leases", Path: "/dashboard/leases", Table: store.TableLeases},
	{Key: "payments", Label: "Payments", Path: "/dashboard/payments", Table: store.TablePayments},
	{Key: "maintenance", Label: "Maintenance", Path: "/dashboard/maintenance", Table: store.TableMaintenanceTickets},
}

// hiddenColumns are never shown in a listing.
var hiddenColumns = []string{"id", "organization_id"}

type listingView struct {
	page
	Columns []string
	Rows    [][]string
	Error   string
}

func (h *Handler) listSection(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("section")
	idx := slices.IndexFunc(sections, func(s section) bool { return s.Key == key && s.Table != "" })
	if idx < 0 {
		http.NotFound(w, r)
		return
	}
	sec := sections[idx]

	columns := slices.DeleteFunc(store.Columns(sec.Table), func(c string) bool {
		return slices.Contains(hiddenColumns, c)
	})

	sess := session.FromContext(r.Context())
	rows, err := h.gateway.ReadQuery(r.Context(), sess.Credential,
		store.From(sec.Table).Select(columns...).OrderBy("created_at", true))

	view := listingView{page: newPage(r, h.views, sec.Label, sec.Key)}
	for _, c := range columns {
		view.Columns = append(view.Columns, columnLabel(c))
	}

	if err != nil {
		view.Error = err.Error()
	}
	for _, row := range rows {
		cells := make([]string, 0, len(columns))
		for _, c := range columns {
			cells = append(cells, formatCell(row[c]))
		}
		view.Rows = append(view.Rows, cells)
	}

	body, ok := renderPage(w, r, h.pages, "listing", view)
	if !ok {
		return
	}
	if view.Error != "" {
		writeUncached(w, http.StatusOK, body)
		return
	}
	writeCached(w, r, body)
}

// columnLabel turns a column name like rent_amount into "Rent amount".
func columnLabel(column string) string {
	label := strings.ReplaceAll(column, "_", " ")
	if label == "" {
		return label
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

func formatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		return formatDate(t)
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return formatDate(parsed)
		}
		return t
	default:
		return fmt.Sprint(t)
	}
}
