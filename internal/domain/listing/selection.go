package listing

import "sort"

// Selection is a set of record ids. It is not safe for concurrent use;
// Session guards its own.
type Selection struct {
	ids map[string]struct{}
}

func NewSelection() *Selection {
	return &Selection{ids: map[string]struct{}{}}
}

// Toggle flips membership of id and reports whether it is now selected.
func (s *Selection) Toggle(id string) bool {
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// SelectAll selects exactly filteredIDs, or clears the selection when it
// already equals them. It reports whether anything is selected afterwards.
func (s *Selection) SelectAll(filteredIDs []string) bool {
	if s.IsAllSelected(filteredIDs) {
		s.Clear()
		return false
	}
	s.ids = make(map[string]struct{}, len(filteredIDs))
	for _, id := range filteredIDs {
		s.ids[id] = struct{}{}
	}
	return len(s.ids) > 0
}

func (s *Selection) Clear() {
	s.ids = map[string]struct{}{}
}

// IsAllSelected is true when the selection is non-empty and set-equal to
// filteredIDs.
func (s *Selection) IsAllSelected(filteredIDs []string) bool {
	if len(s.ids) == 0 {
		return false
	}
	want := make(map[string]struct{}, len(filteredIDs))
	for _, id := range filteredIDs {
		if _, ok := s.ids[id]; !ok {
			return false
		}
		want[id] = struct{}{}
	}
	return len(want) == len(s.ids)
}

func (s *Selection) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *Selection) Len() int {
	return len(s.ids)
}

// IDs returns the selected ids in lexical order.
func (s *Selection) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
