// Package firestore implements feed.Feed on Cloud Firestore snapshot listeners.
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"

	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/config"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/feed"
)

// Open connects to the configured project and checks that the status document can be
// read. It returns the feed and a description of which credential source was used.
func Open(ctx context.Context, cfg config.Config) (*Feed, string, error) {
	creds, source, err := cfg.FirebaseCredentialsJSON()
	if err != nil {
		return nil, "", err
	}

	client, err := firestore.NewClient(ctx, cfg.FirebaseProjectID, option.WithCredentialsJSON(creds))
	if err != nil {
		return nil, "", fmt.Errorf("init firestore client: %w", err)
	}
	f := NewFeed(client)
	if err := f.Ping(ctx, cfg.StatusPath); err != nil {
		client.Close()
		return nil, "", fmt.Errorf("firestore ping: %w", err)
	}
	return f, source, nil
}

// Ping reads path once with a short deadline. A missing document is not an error.
func (f *Feed) Ping(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := f.Get(ctx, path, feed.Query{})
	return err
}

// Close releases the underlying client.
func (f *Feed) Close() error {
	return f.client.Close()
}
