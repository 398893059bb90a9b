package listing

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffbook/internal/domain/employee"
)

func activeSnapshot(version uint64, items ...employee.Employee) employee.Snapshot {
	return employee.Snapshot{Collection: employee.CollectionActive, Version: version, Employees: items}
}

func TestSessionSelectionSurvivesFiltering(t *testing.T) {
	s := NewSession(ActiveView, 0)
	s.Apply(activeSnapshot(1,
		emp("x", func(e *employee.Employee) { e.Group = "A" }),
		emp("y", func(e *employee.Employee) { e.Group = "B" }),
	))

	s.Toggle("x")
	require.NoError(t, s.SetFilter("group", "B"))
	assert.Equal(t, []string{"y"}, IDs(s.View().Visible))
	assert.True(t, s.IsSelected("x"))
	assert.Equal(t, []string{"x"}, s.Selected())

	s.ClearFilters()
	assert.Len(t, s.View().Visible, 2)
	assert.True(t, s.IsSelected("x"))
}

func TestSessionSelectAllUsesFilteredSet(t *testing.T) {
	s := NewSession(ActiveView, 0)
	s.Apply(activeSnapshot(1,
		emp("a", func(e *employee.Employee) { e.Name = "Dara" }),
		emp("b", func(e *employee.Employee) { e.Name = "Dara Sok" }),
		emp("c", func(e *employee.Employee) { e.Name = "Vanna" }),
	))
	s.SetSearch("dara")

	assert.True(t, s.SelectAll())
	assert.Equal(t, []string{"a", "b"}, s.Selected())
	assert.True(t, s.IsAllSelected())

	assert.False(t, s.SelectAll())
	assert.Empty(t, s.Selected())
}

func TestSessionModeSwitchClearsSelection(t *testing.T) {
	s := NewSession(ActiveView, 0)
	s.Apply(activeSnapshot(1, emp("a", nil), emp("b", nil)))
	s.Toggle("a")
	s.Toggle("b")

	require.NoError(t, s.SetMode(ModeRecycleBin))
	assert.Empty(t, s.Selected())
	assert.Equal(t, employee.CollectionDeleted, s.Collection())
	assert.Empty(t, s.View().Visible, "items are dropped until a recycle-bin snapshot arrives")
	assert.False(t, s.Apply(activeSnapshot(2, emp("a", nil))), "snapshots of the other collection are ignored")

	assert.ErrorIs(t, s.SetMode("archive"), ErrUnknownMode)
	require.NoError(t, s.SetMode(ModeActive))
	assert.Equal(t, employee.CollectionActive, s.Collection())
}

func TestSessionPageResetsAndClamps(t *testing.T) {
	items := make([]employee.Employee, 120)
	for i := range items {
		group := "A"
		if i%2 == 0 {
			group = "B"
		}
		items[i] = emp(fmt.Sprintf("%03d", i), func(e *employee.Employee) { e.Group = group })
	}
	s := NewSession(ActiveView, 50)
	s.Apply(activeSnapshot(1, items...))

	assert.Equal(t, 3, s.SetPage(4))
	assert.Equal(t, 3, s.View().Page)

	require.NoError(t, s.SetFilter("group", "A"))
	assert.Equal(t, 1, s.View().Page)

	assert.Equal(t, 2, s.SetPage(2))
	require.NoError(t, s.SetSort("name", Desc))
	assert.Equal(t, 1, s.Query().Page)

	assert.Equal(t, 2, s.SetPage(9))
	s.Apply(activeSnapshot(2, items[:10]...))
	assert.Equal(t, 1, s.View().Page, "a shrinking snapshot clamps the page")
}

func TestSessionRejectsFieldsOutsideView(t *testing.T) {
	s := NewSession(RecycleBinView, 0)
	assert.Equal(t, ModeRecycleBin, s.Mode())
	assert.ErrorIs(t, s.SetFilter("telegram", "x"), ErrFieldNotAllowed)
	assert.ErrorIs(t, s.SetSort("dateOfBirth", Asc), ErrFieldNotAllowed)
	assert.ErrorIs(t, s.SetQuery(Query{Sort: &Sort{Field: "telegram"}}), ErrFieldNotAllowed)
}

func TestSessionIgnoresStaleSnapshots(t *testing.T) {
	s := NewSession(ActiveView, 0)
	assert.True(t, s.Apply(activeSnapshot(3, emp("a", nil), emp("b", nil))))
	assert.False(t, s.Apply(activeSnapshot(2, emp("a", nil))))
	assert.Len(t, s.View().Visible, 2)
}

func TestSessionSetQueryKeepsPageWhenUnchanged(t *testing.T) {
	items := make([]employee.Employee, 60)
	for i := range items {
		items[i] = emp(fmt.Sprintf("%02d", i), nil)
	}
	s := NewSession(ActiveView, 50)
	s.Apply(activeSnapshot(1, items...))

	require.NoError(t, s.SetQuery(Query{Search: "", Page: 2}))
	assert.Equal(t, 2, s.View().Page)

	require.NoError(t, s.SetQuery(Query{Search: "0", Page: 2}))
	assert.Equal(t, 1, s.View().Page)
}

func TestSessionHugePageIsClamped(t *testing.T) {
	s := NewSession(ActiveView, 25)
	s.Apply(activeSnapshot(1, emp("a", nil), emp("b", nil)))

	for _, page := range []int{math.MaxInt, math.MaxInt / 25} {
		require.NoError(t, s.SetQuery(Query{Page: page}))
		var v View
		require.NotPanics(t, func() { v = s.View() }, "page %d", page)
		assert.Equal(t, 1, v.Page)
		assert.Equal(t, []string{"b", "a"}, IDs(v.PageItems))
		assert.NotPanics(t, func() { s.IsAllSelected() })

		assert.Equal(t, 1, s.SetPage(page))
	}
}

func TestBaseOrders(t *testing.T) {
	s := NewSession(ActiveView, 0)
	s.Apply(activeSnapshot(1, emp("k1", nil), emp("k3", nil), emp("k2", nil)))
	assert.Equal(t, []string{"k3", "k2", "k1"}, IDs(s.View().Visible))

	now := time.Now().UTC()
	bin := NewSession(RecycleBinView, 0)
	bin.Apply(employee.Snapshot{Collection: employee.CollectionDeleted, Version: 1, Employees: []employee.Employee{
		emp("old", func(e *employee.Employee) { e.DeletedAt = now.Add(-time.Hour).Format(time.RFC3339Nano) }),
		emp("new", func(e *employee.Employee) { e.DeletedAt = now.Format(time.RFC3339Nano) }),
	}})
	assert.Equal(t, []string{"new", "old"}, IDs(bin.View().Visible))
}

func TestRegistryPrune(t *testing.T) {
	r := NewRegistry(0)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }

	first := r.Session("s1")
	assert.Same(t, first, r.Session("s1"))

	clock = clock.Add(time.Hour)
	r.Session("s2")

	assert.Equal(t, 1, r.Prune(clock.Add(-time.Minute)))
	assert.Equal(t, 1, r.Len())
	r.Remove("s2")
	assert.Equal(t, 0, r.Len())
}

func TestViewDefCheck(t *testing.T) {
	require.NoError(t, ActiveView.Check(Query{Filters: map[string]string{"group": "A", "telegram": ""}}))
	assert.ErrorIs(t, ActiveView.Check(Query{Filters: map[string]string{"telegram": "@sok"}}), ErrFieldNotAllowed)
	assert.ErrorIs(t, RecycleBinView.Check(Query{Sort: &Sort{Field: "gender"}}), ErrFieldNotAllowed)
	require.NoError(t, BulkEditView.Check(Query{Filters: map[string]string{"telegram": "@sok"}}))
}
