package employee

import (
	"context"
	"fmt"
	"time"

	"staffbook/internal/platform/docstore"
	"staffbook/internal/platform/logger"
)

// Gateway is the only writer of employee documents.
type Gateway struct {
	store   *docstore.Store
	options OptionValidator
	now     func() time.Time
}

func NewGateway(store *docstore.Store, options OptionValidator) *Gateway {
	return &Gateway{store: store, options: options, now: time.Now}
}

func (g *Gateway) timestamp() string {
	return g.now().UTC().Format(time.RFC3339Nano)
}

func (g *Gateway) Create(ctx context.Context, fields map[string]string) (string, error) {
	if err := Validate(ctx, fields, g.options); err != nil {
		return "", err
	}
	doc, err := ToWire(fields)
	if err != nil {
		return "", err
	}
	doc["createdAt"] = g.timestamp()
	id, err := g.store.Push(ctx, CollectionActive, doc)
	if err != nil {
		return "", fmt.Errorf("create employee: %w", err)
	}
	logger.From(ctx).Info().Str("employeeId", id).Msg("employee created")
	return id, nil
}

func (g *Gateway) Get(ctx context.Context, collection, id string) (Employee, error) {
	if !ValidCollection(collection) {
		return Employee{}, ErrInvalidCollection
	}
	value, ok, err := g.store.Get(ctx, docstore.Join(collection, id))
	if err != nil {
		return Employee{}, err
	}
	doc, isDoc := value.(map[string]any)
	if !ok || !isDoc {
		return Employee{}, ErrNotFound
	}
	return Project(doc, id), nil
}

// Update merges patch into an active record. Schedule days are written under
// schedule/<day>.
func (g *Gateway) Update(ctx context.Context, id string, patch map[string]string) error {
	result, err := g.BulkUpdate(ctx, []string{id}, patch)
	if err != nil {
		return err
	}
	if result.Updated == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// BulkResult reports a bulk update. Skipped lists ids that are no longer
// active records, e.g. ones deleted since they were selected.
type BulkResult struct {
	Updated int      `json:"updated"`
	Skipped []string `json:"skipped"`
}

// BulkUpdate applies the same patch to every active id in one multi-path
// update. Duplicate ids are written once and missing ids are skipped.
func (g *Gateway) BulkUpdate(ctx context.Context, ids []string, patch map[string]string) (BulkResult, error) {
	result := BulkResult{Skipped: []string{}}
	if len(patch) == 0 {
		return result, ErrEmptyPatch
	}
	if err := Validate(ctx, patch, g.options); err != nil {
		return result, err
	}
	relative, err := PatchPaths(patch)
	if err != nil {
		return result, err
	}

	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return result, nil
	}

	updatedAt := g.timestamp()
	err = g.store.Transact(ctx, func(txn *docstore.Txn) error {
		result = BulkResult{Skipped: []string{}}
		updates := make(map[string]any, len(unique)*(len(relative)+1))
		for _, id := range unique {
			if _, ok, err := txn.Document(CollectionActive, id); err != nil {
				return err
			} else if !ok {
				result.Skipped = append(result.Skipped, id)
				continue
			}
			for rel, value := range relative {
				updates[docstore.Join(CollectionActive, id, rel)] = value
			}
			updates[docstore.Join(CollectionActive, id, "updatedAt")] = updatedAt
			result.Updated++
		}
		if len(updates) == 0 {
			return nil
		}
		return txn.Update(updates)
	})
	if err != nil {
		return BulkResult{Skipped: []string{}}, err
	}
	logger.From(ctx).Info().
		Int("count", result.Updated).
		Int("skipped", len(result.Skipped)).
		Strs("fields", sortedKeys(patch)).
		Msg("employees updated")
	return result, nil
}

// SoftDelete moves an active record to the recycle bin and stamps deletedAt.
func (g *Gateway) SoftDelete(ctx context.Context, id string) error {
	deletedAt := g.timestamp()
	err := g.move(ctx, id, CollectionActive, CollectionDeleted, func(doc map[string]any) {
		doc["deletedAt"] = deletedAt
	})
	if err != nil {
		return err
	}
	logger.From(ctx).Info().Str("employeeId", id).Msg("employee moved to recycle bin")
	return nil
}

// Restore moves a recycle-bin record back to the active list.
func (g *Gateway) Restore(ctx context.Context, id string) error {
	err := g.move(ctx, id, CollectionDeleted, CollectionActive, func(doc map[string]any) {
		delete(doc, "deletedAt")
	})
	if err != nil {
		return err
	}
	logger.From(ctx).Info().Str("employeeId", id).Msg("employee restored")
	return nil
}

func (g *Gateway) move(ctx context.Context, id, from, to string, edit func(map[string]any)) error {
	return g.store.Transact(ctx, func(txn *docstore.Txn) error {
		doc, ok, err := txn.Document(from, id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		edit(doc)
		if err := txn.Set(docstore.Join(to, id), doc); err != nil {
			return err
		}
		return txn.Remove(docstore.Join(from, id))
	})
}

// Purge removes a recycle-bin record for good.
func (g *Gateway) Purge(ctx context.Context, id string) error {
	err := g.store.Transact(ctx, func(txn *docstore.Txn) error {
		_, ok, err := txn.Document(CollectionDeleted, id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		return txn.Remove(docstore.Join(CollectionDeleted, id))
	})
	if err != nil {
		return err
	}
	logger.From(ctx).Info().Str("employeeId", id).Msg("employee purged")
	return nil
}

// PurgeDeletedBefore removes recycle-bin records deleted before cutoff.
// Records without a readable deletedAt are kept.
func (g *Gateway) PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	purged := 0
	err := g.store.Transact(ctx, func(txn *docstore.Txn) error {
		docs, err := txn.List(CollectionDeleted)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			deleted := Project(doc.Data, doc.Key).DeletedTime()
			if deleted.IsZero() || !deleted.Before(cutoff) {
				continue
			}
			if err := txn.Remove(docstore.Join(CollectionDeleted, doc.Key)); err != nil {
				return err
			}
			purged++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return purged, nil
}

func (g *Gateway) Snapshot(ctx context.Context, collection string) (Snapshot, error) {
	if !ValidCollection(collection) {
		return Snapshot{}, ErrInvalidCollection
	}
	snap, err := g.store.Snapshot(ctx, collection)
	if err != nil {
		return Snapshot{}, err
	}
	return project(snap), nil
}

// Subscribe delivers projected snapshots of collection until ctx is done.
// A slow reader only sees the most recent one.
func (g *Gateway) Subscribe(ctx context.Context, collection string) (<-chan Snapshot, error) {
	if !ValidCollection(collection) {
		return nil, ErrInvalidCollection
	}
	src, err := g.store.Subscribe(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := make(chan Snapshot, 1)
	go func() {
		defer close(out)
		for snap := range src {
			projected := project(snap)
			select {
			case out <- projected:
			default:
				select {
				case <-out:
				default:
				}
				out <- projected
			}
		}
	}()
	return out, nil
}

func project(snap docstore.Snapshot) Snapshot {
	employees := make([]Employee, len(snap.Documents))
	for i, doc := range snap.Documents {
		employees[i] = Project(doc.Data, doc.Key)
	}
	return Snapshot{Collection: snap.Collection, Version: snap.Version, Digest: snap.Digest, Employees: employees}
}
