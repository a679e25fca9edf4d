package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Indexes lists the indexes each collection needs. The unique ones enforce
// the same constraints as the PostgreSQL schema.
var Indexes = map[string][]mongo.IndexModel{
	CollUsers: {
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "role", Value: 1}}},
	},
	CollAppointments: {
		{Keys: bson.D{{Key: "patientId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "doctorId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{
			Keys: bson.D{{Key: "doctorId", Value: 1}, {Key: "date", Value: 1}, {Key: "time", Value: 1}},
			Options: options.Index().
				SetName("accepted_slot").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": "accepted"}),
		},
	},
	CollReviews: {
		{Keys: bson.D{{Key: "appointmentId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "revieweeId", Value: 1}, {Key: "createdAt", Value: -1}}},
	},
	CollChatGroups: {
		{Keys: bson.D{{Key: "pairKey", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "updatedAt", Value: -1}}},
	},
	CollMessages: {
		{Keys: bson.D{{Key: "chatGroupId", Value: 1}, {Key: "createdAt", Value: 1}}},
	},
	CollNotifications: {
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "deliveryStatus", Value: 1}, {Key: "nextAttemptAt", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "deliveryStatus", Value: 1}, {Key: "claimedAt", Value: 1}}},
	},
}

// EnsureIndexes creates every index in Indexes. Existing identical indexes
// are left alone by the server.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for coll, models := range Indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}
