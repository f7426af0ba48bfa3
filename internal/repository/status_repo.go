package repository

import (
	"context"
	"fmt"

	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/feed"
)

// StatusRepository reads the current crossing record and the approach flag.
type StatusRepository struct {
	feed     feed.Feed
	path     string
	flagPath string
}

func NewStatusRepository(f feed.Feed, paths Paths) *StatusRepository {
	return &StatusRepository{feed: f, path: paths.Status, flagPath: paths.ApproachFlag}
}

// Path returns the watched status path.
func (r *StatusRepository) Path() string { return r.path }

// FlagPath returns the watched approach flag path.
func (r *StatusRepository) FlagPath() string { return r.flagPath }

func (r *StatusRepository) Subscribe(ctx context.Context) (*feed.Subscription, error) {
	sub, err := r.feed.Subscribe(ctx, r.path, feed.Query{})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", r.path, err)
	}
	return sub, nil
}

func (r *StatusRepository) SubscribeFlag(ctx context.Context) (*feed.Subscription, error) {
	sub, err := r.feed.Subscribe(ctx, r.flagPath, feed.Query{})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", r.flagPath, err)
	}
	return sub, nil
}

// Current reads the current record once. It returns feed.ErrNotFound when empty.
func (r *StatusRepository) Current(ctx context.Context) (map[string]any, error) {
	snap, err := r.feed.Get(ctx, r.path, feed.Query{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", r.path, err)
	}
	fields := snap.Fields()
	if !snap.Exists || fields == nil {
		return nil, fmt.Errorf("get %s: %w", r.path, feed.ErrNotFound)
	}
	return fields, nil
}

// SetCurrent replaces the current record.
func (r *StatusRepository) SetCurrent(ctx context.Context, fields map[string]any) error {
	if err := r.feed.Set(ctx, r.path, fields); err != nil {
		return fmt.Errorf("set %s: %w", r.path, err)
	}
	return nil
}

// SetApproachFlag writes the approach flag.
func (r *StatusRepository) SetApproachFlag(ctx context.Context, approaching bool) error {
	if err := r.feed.Set(ctx, r.flagPath, approaching); err != nil {
		return fmt.Errorf("set %s: %w", r.flagPath, err)
	}
	return nil
}

// FlagFromSnapshot reads the approach flag; a missing or malformed value is false.
func FlagFromSnapshot(snap feed.Snapshot) bool {
	switch v := snap.Value.(type) {
	case bool:
		return v
	case string:
		return v == "true"
	case map[string]any:
		return feed.Bool(v, "value")
	default:
		return false
	}
}
