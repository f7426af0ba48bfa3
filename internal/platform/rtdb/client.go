// Package rtdb implements feed.Feed on the Firebase Realtime Database REST client.
package rtdb

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/db"
	"google.golang.org/api/option"

	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/config"
)

// New creates a Realtime Database client using the configured credentials.
// It returns the client and a description of which credential source was used.
func New(ctx context.Context, cfg config.Config) (*db.Client, string, error) {
	creds, source, err := cfg.FirebaseCredentialsJSON()
	if err != nil {
		return nil, "", err
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{
		DatabaseURL: cfg.FirebaseDatabaseURL,
		ProjectID:   cfg.FirebaseProjectID,
	}, option.WithCredentialsJSON(creds))
	if err != nil {
		return nil, "", fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Database(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("init realtime database client: %w", err)
	}
	return client, source, nil
}
