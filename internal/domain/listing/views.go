package listing

import (
	"fmt"
	"slices"
	"sort"

	"staffbook/internal/domain/employee"
)

// ViewDef parameterises one list screen.
type ViewDef struct {
	Name         string
	Collection   string
	SearchFields []string
	FilterFields []string
	SortFields   []string
	order        func([]employee.Employee) []employee.Employee
}

var (
	ActiveView = ViewDef{
		Name:         "active",
		Collection:   employee.CollectionActive,
		SearchFields: DefaultSearchFields,
		FilterFields: []string{"gender", "academicYear", "generation", "group", "class", "skill", "section", "position"},
		SortFields:   []string{"id", "name", "latinName", "studentId", "gender", "dateOfBirth", "group", "class", "skill", "section", "position"},
		order:        newestFirst,
	}
	BulkEditView = ViewDef{
		Name:         "bulk",
		Collection:   employee.CollectionActive,
		SearchFields: DefaultSearchFields,
		FilterFields: employee.FieldNames(),
		SortFields:   []string{"name", "latinName", "studentId", "group", "class", "skill", "section", "position"},
		order:        newestFirst,
	}
	RecycleBinView = ViewDef{
		Name:         "recycleBin",
		Collection:   employee.CollectionDeleted,
		SearchFields: DefaultSearchFields,
		FilterFields: []string{"group", "class", "position"},
		SortFields:   []string{"name", "latinName", "studentId"},
		order:        recentlyDeletedFirst,
	}
)

// ViewByName finds a view definition; an empty name means ActiveView.
func ViewByName(name string) (ViewDef, bool) {
	switch name {
	case "", ActiveView.Name:
		return ActiveView, true
	case BulkEditView.Name:
		return BulkEditView, true
	case RecycleBinView.Name:
		return RecycleBinView, true
	}
	return ViewDef{}, false
}

// Order returns items in the view's base order as a new slice.
func (d ViewDef) Order(items []employee.Employee) []employee.Employee {
	if d.order == nil {
		return slices.Clone(items)
	}
	return d.order(items)
}

func (d ViewDef) CanFilter(field string) bool {
	return slices.Contains(d.FilterFields, field)
}

func (d ViewDef) CanSort(field string) bool {
	return slices.Contains(d.SortFields, field)
}

// newestFirst relies on push keys growing with creation time.
func newestFirst(items []employee.Employee) []employee.Employee {
	out := slices.Clone(items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func recentlyDeletedFirst(items []employee.Employee) []employee.Employee {
	out := slices.Clone(items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DeletedTime().After(out[j].DeletedTime())
	})
	return out
}

// Check reports the first filter or sort field of q the view does not allow.
func (d ViewDef) Check(q Query) error {
	for _, field := range sortedFilterKeys(q.Filters) {
		if q.Filters[field] != "" && !d.CanFilter(field) {
			return fmt.Errorf("%w: %s", ErrFieldNotAllowed, field)
		}
	}
	if q.Sort != nil && q.Sort.Field != "" && !d.CanSort(q.Sort.Field) {
		return fmt.Errorf("%w: %s", ErrFieldNotAllowed, q.Sort.Field)
	}
	return nil
}

func sortedFilterKeys(filters map[string]string) []string {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
