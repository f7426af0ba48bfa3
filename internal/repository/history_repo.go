package repository

import (
	"context"
	"fmt"

	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/feed"
	"github.com/weiwei-tsao/railway-crossing-monitor/pkg/model"
)

// HistoryRepository reads the append-only gate history log.
type HistoryRepository struct {
	feed  feed.Feed
	path  string
	limit int
}

func NewHistoryRepository(f feed.Feed, paths Paths) *HistoryRepository {
	return &HistoryRepository{feed: f, path: paths.History, limit: paths.HistoryLimit}
}

func (r *HistoryRepository) Path() string { return r.path }

func (r *HistoryRepository) Limit() int { return r.limit }

func (r *HistoryRepository) query() feed.Query {
	return feed.Query{Children: true, LimitToLast: r.limit}
}

// Subscribe watches the last Limit entries ordered by key.
func (r *HistoryRepository) Subscribe(ctx context.Context) (*feed.Subscription, error) {
	sub, err := r.feed.Subscribe(ctx, r.path, r.query())
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", r.path, err)
	}
	return sub, nil
}

// List reads the last Limit entries once, oldest first.
func (r *HistoryRepository) List(ctx context.Context) ([]model.HistoryRecord, error) {
	snap, err := r.feed.Get(ctx, r.path, r.query())
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", r.path, err)
	}
	return HistoryFromSnapshot(snap), nil
}

// Append pushes a history record.
func (r *HistoryRepository) Append(ctx context.Context, rec model.HistoryRecord) (string, error) {
	rec.Key = ""
	key, err := r.feed.Push(ctx, r.path, rec)
	if err != nil {
		return "", fmt.Errorf("push %s: %w", r.path, err)
	}
	return key, nil
}

// HistoryFromSnapshot decodes history children, oldest first. Non-object children are skipped.
func HistoryFromSnapshot(snap feed.Snapshot) []model.HistoryRecord {
	children := snap.Children()
	out := make([]model.HistoryRecord, 0, len(children))
	for _, c := range children {
		fields := c.Fields()
		if fields == nil {
			continue
		}
		out = append(out, model.HistoryRecord{
			Key:        c.Key,
			Datetime:   feed.String(fields, "datetime"),
			Event:      feed.String(fields, "event"),
			GateStatus: feed.String(fields, "gate_status"),
		})
	}
	return out
}
