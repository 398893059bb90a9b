package listing

import (
	"errors"
	"fmt"
	"maps"
	"sync"

	"staffbook/internal/domain/employee"
)

type Mode string

const (
	ModeActive     Mode = "active"
	ModeRecycleBin Mode = "recycleBin"
)

var (
	ErrFieldNotAllowed = errors.New("field not allowed in this view")
	ErrUnknownMode     = errors.New("unknown list mode")
)

// Session binds one view to the latest snapshot of its collection and keeps
// the search, filters, sort, page and selection of one user.
type Session struct {
	mu        sync.Mutex
	home      ViewDef
	def       ViewDef
	mode      Mode
	pageSize  int
	query     Query
	items     []employee.Employee
	version   uint64
	synced    bool
	selection *Selection
}

func NewSession(def ViewDef, pageSize int) *Session {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	mode := ModeActive
	home := def
	if def.Collection == employee.CollectionDeleted {
		mode = ModeRecycleBin
		home = ActiveView
	}
	return &Session{
		home:      home,
		def:       def,
		mode:      mode,
		pageSize:  pageSize,
		query:     Query{Page: 1},
		selection: NewSelection(),
	}
}

// Apply replaces the items with snap. Snapshots of another collection or
// older than the current one are ignored.
func (s *Session) Apply(snap employee.Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Collection != s.def.Collection {
		return false
	}
	if s.synced && snap.Version < s.version {
		return false
	}
	s.items = s.def.Order(snap.Employees)
	s.version = snap.Version
	s.synced = true
	return true
}

func (s *Session) Collection() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.def.Collection
}

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) Query() Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.query
	q.Filters = maps.Clone(s.query.Filters)
	return q
}

func (s *Session) SetSearch(term string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.query.Search != term {
		s.query.Search = term
		s.query.Page = 1
	}
}

// SetFilter sets an exact-match filter; an empty value removes it.
func (s *Session) SetFilter(field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.def.CanFilter(field) {
		return fmt.Errorf("%w: %s", ErrFieldNotAllowed, field)
	}
	if value == "" {
		delete(s.query.Filters, field)
	} else {
		if s.query.Filters == nil {
			s.query.Filters = map[string]string{}
		}
		s.query.Filters[field] = value
	}
	s.query.Page = 1
	return nil
}

func (s *Session) ClearFilters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query.Filters = nil
	s.query.Page = 1
}

// SetSort sorts by field; an empty field removes sorting.
func (s *Session) SetSort(field string, dir Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if field == "" {
		s.query.Sort = nil
		s.query.Page = 1
		return nil
	}
	if !s.def.CanSort(field) {
		return fmt.Errorf("%w: %s", ErrFieldNotAllowed, field)
	}
	if dir != Desc {
		dir = Asc
	}
	s.query.Sort = &Sort{Field: field, Direction: dir}
	s.query.Page = 1
	return nil
}

// SetQuery replaces search, filters and sort together. The page is reset to
// 1 when any of them changed, otherwise q.Page is kept.
func (s *Session) SetQuery(q Query) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for field, value := range q.Filters {
		if value != "" && !s.def.CanFilter(field) {
			return fmt.Errorf("%w: %s", ErrFieldNotAllowed, field)
		}
	}
	var next *Sort
	if q.Sort != nil && q.Sort.Field != "" {
		if !s.def.CanSort(q.Sort.Field) {
			return fmt.Errorf("%w: %s", ErrFieldNotAllowed, q.Sort.Field)
		}
		next = &Sort{Field: q.Sort.Field, Direction: Asc}
		if q.Sort.Direction == Desc {
			next.Direction = Desc
		}
	}
	changed := s.query.Search != q.Search || !sameFilters(s.query.Filters, q.Filters) || !sameSort(s.query.Sort, next)
	s.query.Search = q.Search
	s.query.Filters = maps.Clone(q.Filters)
	s.query.Sort = next
	if changed || q.Page < 1 {
		s.query.Page = 1
	} else {
		s.query.Page = q.Page
	}
	return nil
}

// SetPage moves to page, clamped to the pages the current view has.
func (s *Session) SetPage(page int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.resolve()
	s.query.Page = ClampPage(page, v.TotalPages)
	return s.query.Page
}

// SetMode switches between the active list and the recycle bin. Switching
// clears the selection, the query and the items until the next Apply.
func (s *Session) SetMode(mode Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var def ViewDef
	switch mode {
	case ModeActive:
		def = s.home
	case ModeRecycleBin:
		def = RecycleBinView
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	if mode == s.mode {
		return nil
	}
	s.mode = mode
	s.def = def
	s.selection.Clear()
	s.query = Query{Page: 1}
	s.items = nil
	s.version = 0
	s.synced = false
	return nil
}

// View resolves the current page. A page left out of range by a new
// snapshot is clamped.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.resolve()
	if page := ClampPage(s.query.Page, v.TotalPages); page != v.Page {
		s.query.Page = page
		v = v.WithPage(page)
	}
	return v
}

func (s *Session) resolve() View {
	q := s.query
	q.PageSize = s.pageSize
	q.SearchFields = s.def.SearchFields
	return Resolve(s.items, q)
}

func (s *Session) Toggle(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Toggle(id)
}

// SelectAll toggles selection of every record matching the current query.
func (s *Session) SelectAll() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.SelectAll(IDs(s.resolve().Visible))
}

func (s *Session) IsAllSelected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.IsAllSelected(IDs(s.resolve().Visible))
}

func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.Clear()
}

func (s *Session) IsSelected(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Has(id)
}

func (s *Session) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.IDs()
}

// WithPage returns v showing page instead of v.Page.
func (v View) WithPage(page int) View {
	start, end := pageBounds(max(page, 1), v.PageSize, v.Total)
	v.Page = page
	v.PageItems = v.Visible[start:end:end]
	return v
}

func sameFilters(a, b map[string]string) bool {
	count := func(m map[string]string) int {
		n := 0
		for _, v := range m {
			if v != "" {
				n++
			}
		}
		return n
	}
	if count(a) != count(b) {
		return false
	}
	for k, v := range a {
		if v != "" && b[k] != v {
			return false
		}
	}
	return true
}

func sameSort(a, b *Sort) bool {
	if a == nil || a.Field == "" {
		return b == nil || b.Field == ""
	}
	return b != nil && *a == *b
}
