package rest

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wolfeidau/propertyos/internal/store"
)

// encodeQuery renders q in the data API's query string syntax:
// select=a,b&col=eq.v&col=in.(x,y)&order=c.desc&limit=n
func encodeQuery(q store.Query) string {
	values := url.Values{}

	if len(q.Columns) == 0 {
		values.Set("select", "*")
	} else {
		values.Set("select", strings.Join(q.Columns, ","))
	}

	for _, f := range q.Filters {
		switch f.Op {
		case store.OpEq:
			if f.Value == nil {
				values.Add(f.Column, "is.null")
				continue
			}
			values.Add(f.Column, "eq."+formatValue(f.Value))
		case store.OpIn:
			list := f.Value.([]string)
			quoted := make([]string, 0, len(list))
			for _, v := range list {
				quoted = append(quoted, quoteListItem(v))
			}
			values.Add(f.Column, "in.("+strings.Join(quoted, ",")+")")
		}
	}

	if len(q.Order) > 0 {
		parts := make([]string, 0, len(q.Order))
		for _, o := range q.Order {
			dir := "asc"
			if o.Descending {
				dir = "desc"
			}
			parts = append(parts, o.Column+"."+dir)
		}
		values.Set("order", strings.Join(parts, ","))
	}

	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}

	return values.Encode()
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// quoteListItem double-quotes values containing list syntax characters.
func quoteListItem(v string) string {
	if !strings.ContainsAny(v, `,()"\ `) {
		return v
	}
	escaped := strings.ReplaceAll(v, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `"` + escaped + `"`
}
