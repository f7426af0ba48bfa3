package repository

import (
	"context"
	"fmt"

	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/feed"
	"github.com/weiwei-tsao/railway-crossing-monitor/pkg/model"
)

// ComplaintRepository appends complaints. Records are never updated from here.
type ComplaintRepository struct {
	feed feed.Feed
	path string
}

func NewComplaintRepository(f feed.Feed, paths Paths) *ComplaintRepository {
	return &ComplaintRepository{feed: f, path: paths.Complaints}
}

// Create pushes c and returns the store-assigned id.
func (r *ComplaintRepository) Create(ctx context.Context, c model.Complaint) (string, error) {
	c.ID = ""
	key, err := r.feed.Push(ctx, r.path, c)
	if err != nil {
		return "", fmt.Errorf("push %s: %w", r.path, err)
	}
	return key, nil
}

// List reads every complaint once.
func (r *ComplaintRepository) List(ctx context.Context) ([]model.Complaint, error) {
	snap, err := r.feed.Get(ctx, r.path, feed.Query{Children: true})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", r.path, err)
	}
	return ComplaintsFromSnapshot(snap), nil
}

// Clear removes every complaint.
func (r *ComplaintRepository) Clear(ctx context.Context) error {
	if err := r.feed.Delete(ctx, r.path); err != nil {
		return fmt.Errorf("delete %s: %w", r.path, err)
	}
	return nil
}

// NotificationRepository appends maintainer notifications.
type NotificationRepository struct {
	feed feed.Feed
	path string
}

func NewNotificationRepository(f feed.Feed, paths Paths) *NotificationRepository {
	return &NotificationRepository{feed: f, path: paths.Notifications}
}

// Create pushes n and returns the store-assigned id.
func (r *NotificationRepository) Create(ctx context.Context, n model.MaintainerNotification) (string, error) {
	key, err := r.feed.Push(ctx, r.path, n)
	if err != nil {
		return "", fmt.Errorf("push %s: %w", r.path, err)
	}
	return key, nil
}
