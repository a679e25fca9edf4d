// Package mongostore connects to MongoDB and provides the shared pieces the
// domain repositories build on: a UUID-aware codec registry, transactions,
// index setup and error mapping.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	CollUsers         = "users"
	CollAppointments  = "appointments"
	CollReviews       = "reviews"
	CollChatGroups    = "chatGroups"
	CollMessages      = "messages"
	CollNotifications = "notifications"
)

// Connect opens a client against uri and verifies it with a primary ping.
// Transactions require the deployment to be a replica set.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetRegistry(NewRegistry()).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}
