package listing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"staffbook/internal/domain/employee"
	"staffbook/internal/platform/logger"
)

// Cache stores the filtered and sorted id order of a query.
type Cache interface {
	Get(ctx context.Context, key string) ([]string, bool, error)
	Set(ctx context.Context, key string, ids []string) error
}

// Source provides collection snapshots.
type Source interface {
	Snapshot(ctx context.Context, collection string) (employee.Snapshot, error)
}

// Viewer answers list requests from the latest snapshot. With a cache the
// id order of a query is computed once per snapshot contents, and instances
// sharing the cache share the work.
type Viewer struct {
	source   Source
	cache    Cache
	instance string
	group    singleflight.Group
}

func NewViewer(source Source, cache Cache) *Viewer {
	return &Viewer{source: source, cache: cache, instance: uuid.NewString()}
}

// Resolve returns the page of def's collection selected by q, with the page
// clamped to the pages available.
func (v *Viewer) Resolve(ctx context.Context, def ViewDef, q Query) (View, uint64, error) {
	snap, err := v.source.Snapshot(ctx, def.Collection)
	if err != nil {
		return View{}, 0, err
	}
	view, err := v.ResolveSnapshot(ctx, def, snap, q)
	return view, snap.Version, err
}

// ResolveSnapshot is Resolve over a snapshot the caller already holds.
func (v *Viewer) ResolveSnapshot(ctx context.Context, def ViewDef, snap employee.Snapshot, q Query) (View, error) {
	q.SearchFields = def.SearchFields
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	items := def.Order(snap.Employees)

	if v.cache == nil {
		return clamp(Resolve(items, q)), nil
	}

	key, err := v.cacheKey(def, snap, q)
	if err != nil {
		return View{}, err
	}
	result, err, _ := v.group.Do(key, func() (any, error) {
		ids, ok, err := v.cache.Get(ctx, key)
		if err != nil {
			logger.From(ctx).Warn().Err(err).Msg("view cache read failed")
		}
		if ok {
			return ids, nil
		}
		ids = IDs(Resolve(items, q).Visible)
		if err := v.cache.Set(ctx, key, ids); err != nil {
			logger.From(ctx).Warn().Err(err).Msg("view cache write failed")
		}
		return ids, nil
	})
	if err != nil {
		return View{}, err
	}

	byID := make(map[string]employee.Employee, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	ids := result.([]string)
	visible := make([]employee.Employee, 0, len(ids))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			visible = append(visible, item)
		}
	}
	view := View{
		Visible:    visible,
		Total:      len(visible),
		TotalPages: pageCount(len(visible), q.PageSize),
		PageSize:   q.PageSize,
	}
	return view.WithPage(ClampPage(q.Page, view.TotalPages)), nil
}

func clamp(v View) View {
	if page := ClampPage(v.Page, v.TotalPages); page != v.Page {
		return v.WithPage(page)
	}
	return v
}

func (v *Viewer) cacheKey(def ViewDef, snap employee.Snapshot, q Query) (string, error) {
	payload, err := json.Marshal(struct {
		View    string            `json:"v"`
		Search  string            `json:"q"`
		Filters map[string]string `json:"f"`
		Sort    *Sort             `json:"s"`
	}{def.Name, q.Search, q.Filters, q.Sort})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	query := hex.EncodeToString(sum[:12])
	if snap.Digest == "" {
		return fmt.Sprintf("%s:%s:v%d:%s", v.instance, snap.Collection, snap.Version, query), nil
	}
	return fmt.Sprintf("%s:%s:%s", snap.Collection, snap.Digest, query), nil
}
