package jobs

import (
	"context"
	"time"
)

// Purger removes recycle-bin records deleted before cutoff.
type Purger interface {
	PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// SessionPurger removes expired or revoked sign-in sessions.
type SessionPurger interface {
	PurgeSessions(ctx context.Context, cutoff time.Time) (int, error)
}

// ViewPruner drops list sessions that have been idle since cutoff.
type ViewPruner interface {
	Prune(cutoff time.Time) int
}

// RecycleBinRetention purges records that have sat in the recycle bin for
// longer than retention.
func RecycleBinRetention(purger Purger, retention, interval time.Duration, now func() time.Time) Schedule {
	if retention <= 0 {
		interval = 0
	}
	return Schedule{
		Type:     JobRecycleBinRetention,
		Interval: interval,
		Run: func(ctx context.Context) (any, error) {
			cutoff := now().Add(-retention)
			purged, err := purger.PurgeDeletedBefore(ctx, cutoff)
			return map[string]any{"cutoff": cutoff, "purged": purged}, err
		},
	}
}

// SessionCleanup removes ended sign-in sessions and idle list sessions.
func SessionCleanup(sessions SessionPurger, views ViewPruner, idle, interval time.Duration, now func() time.Time) Schedule {
	return Schedule{
		Type:     JobSessionCleanup,
		Interval: interval,
		Run: func(ctx context.Context) (any, error) {
			current := now()
			pruned := 0
			if views != nil && idle > 0 {
				pruned = views.Prune(current.Add(-idle))
			}
			removed, err := sessions.PurgeSessions(ctx, current)
			return map[string]any{"sessionsRemoved": removed, "viewsPruned": pruned}, err
		},
	}
}
