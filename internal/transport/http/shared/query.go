package shared

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"staffbook/internal/domain/listing"
)

const filterPrefix = "filter."

// ListQuery is a list request decoded from the URL.
type ListQuery struct {
	View  string
	Query listing.Query
}

// ParseListQuery reads search, filter.<field>, sort, dir, page, pageSize
// and view. Unknown keys are ignored.
func ParseListQuery(r *http.Request, defaultSize, maxSize int) ListQuery {
	values := r.URL.Query()
	page := ParsePagination(r, defaultSize, maxSize)
	q := listing.Query{
		Search:   values.Get("search"),
		Filters:  filters(values),
		Page:     page.Page,
		PageSize: page.PageSize,
	}
	if field := strings.TrimSpace(values.Get("sort")); field != "" {
		dir := listing.Asc
		if strings.EqualFold(values.Get("dir"), string(listing.Desc)) {
			dir = listing.Desc
		}
		q.Sort = &listing.Sort{Field: field, Direction: dir}
	}
	return ListQuery{View: values.Get("view"), Query: q}
}

func filters(values url.Values) map[string]string {
	out := map[string]string{}
	for key, vals := range values {
		if !strings.HasPrefix(key, filterPrefix) || len(vals) == 0 {
			continue
		}
		field := strings.TrimPrefix(key, filterPrefix)
		if field == "" || vals[0] == "" {
			continue
		}
		out[field] = vals[0]
	}
	return out
}

// ClientIP returns the first X-Forwarded-For hop, else the remote host.
func ClientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		parts := strings.Split(fwd, ",")
		if value := strings.TrimSpace(parts[0]); value != "" {
			return value
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
