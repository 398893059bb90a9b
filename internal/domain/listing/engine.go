package listing

import (
	"sort"
	"strings"

	"staffbook/internal/domain/employee"
)

const DefaultPageSize = 50

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

type Sort struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// DefaultSearchFields are matched by a search term when a query names none.
var DefaultSearchFields = []string{"name", "latinName", "studentId"}

type Query struct {
	Search       string            `json:"search"`
	Filters      map[string]string `json:"filters,omitempty"`
	Sort         *Sort             `json:"sort,omitempty"`
	Page         int               `json:"page"`
	PageSize     int               `json:"pageSize"`
	SearchFields []string          `json:"-"`
}

type View struct {
	Visible    []employee.Employee `json:"-"`
	Total      int                 `json:"total"`
	TotalPages int                 `json:"totalPages"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"pageSize"`
	PageItems  []employee.Employee `json:"items"`
}

// Resolve filters, sorts and paginates items. It never modifies items and
// returns the same view for the same input.
func Resolve(items []employee.Employee, q Query) View {
	size := q.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	page := q.Page
	if page < 1 {
		page = 1
	}

	visible := Filter(items, q)
	if q.Sort != nil && q.Sort.Field != "" {
		SortItems(visible, *q.Sort)
	}

	total := len(visible)
	start, end := pageBounds(page, size, total)

	return View{
		Visible:    visible,
		Total:      total,
		TotalPages: pageCount(total, size),
		Page:       page,
		PageSize:   size,
		PageItems:  visible[start:end:end],
	}
}

// pageCount is the number of size-item pages needed for total items.
func pageCount(total, size int) int {
	if size <= 0 {
		return 0
	}
	pages := total / size
	if total%size != 0 {
		pages++
	}
	return pages
}

// pageBounds returns the slice bounds of page. Pages past the end are empty.
// Bounds are checked before multiplying so no page or size overflows.
func pageBounds(page, size, total int) (int, int) {
	if size <= 0 || page < 1 || page-1 >= pageCount(total, size) {
		return total, total
	}
	start := (page - 1) * size
	return start, start + min(size, total-start)
}

// Filter returns a new slice with the items that match every non-empty
// filter exactly and, when set, the search term.
func Filter(items []employee.Employee, q Query) []employee.Employee {
	term := Normalize(q.Search)
	searchFields := q.SearchFields
	if len(searchFields) == 0 {
		searchFields = DefaultSearchFields
	}

	out := make([]employee.Employee, 0, len(items))
	for _, item := range items {
		if !matchesFilters(item, q.Filters) {
			continue
		}
		if term != "" && !matchesSearch(item, term, searchFields) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func matchesFilters(item employee.Employee, filters map[string]string) bool {
	for field, want := range filters {
		if want == "" {
			continue
		}
		if item.Field(field) != want {
			return false
		}
	}
	return true
}

func matchesSearch(item employee.Employee, term string, fields []string) bool {
	for _, field := range fields {
		if containsNormalized(item.Field(field), term) {
			return true
		}
	}
	return false
}

func containsNormalized(value, term string) bool {
	if value == "" {
		return false
	}
	return strings.Contains(Normalize(value), term)
}

// SortItems sorts items in place, keeping the order of equal keys. Desc
// negates the comparison.
func SortItems(items []employee.Employee, s Sort) {
	kind := employee.KindOf(s.Field)
	cmp := newComparer()
	keys := make([]string, len(items))
	for i := range items {
		keys[i] = cmp.key(kind, items[i].Field(s.Field))
	}

	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		c := cmp.compare(kind, keys[idx[i]], keys[idx[j]])
		if s.Direction == Desc {
			c = -c
		}
		return c < 0
	})

	sorted := make([]employee.Employee, len(items))
	for i, from := range idx {
		sorted[i] = items[from]
	}
	copy(items, sorted)
}

// ClampPage keeps page inside [1, max(totalPages, 1)].
func ClampPage(page, totalPages int) int {
	if page < 1 {
		return 1
	}
	if page > max(totalPages, 1) {
		return max(totalPages, 1)
	}
	return page
}

// IDs returns the ids of items in order.
func IDs(items []employee.Employee) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}
