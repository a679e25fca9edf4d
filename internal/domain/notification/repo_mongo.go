package notification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/mongostore"
)

type repoMongo struct{ coll *mongo.Collection }

func NewRepoMongo(database *mongo.Database) Repository {
	return &repoMongo{coll: database.Collection(mongostore.CollNotifications)}
}

func (r *repoMongo) Create(ctx context.Context, n *Notification) error {
	n.CreatedAt = time.Now().UTC()
	if n.NextAttemptAt.IsZero() {
		n.NextAttemptAt = n.CreatedAt
	}
	_, err := r.coll.InsertOne(ctx, n)
	return mongostore.MapError(err)
}

func (r *repoMongo) GetByID(ctx context.Context, id uuid.UUID) (*Notification, error) {
	var n Notification
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&n); err != nil {
		return nil, mongostore.MapError(err)
	}
	return &n, nil
}

func (r *repoMongo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*Notification, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var items []*Notification
	if err := cur.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repoMongo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(int64(limit))
	return r.find(ctx, bson.M{"userId": userID}, opts)
}

func (r *repoMongo) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"userId": userID, "read": false})
	return int(n), err
}

func (r *repoMongo) MarkRead(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id, "read": false}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *repoMongo) MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error) {
	res, err := r.coll.UpdateMany(ctx, bson.M{"userId": userID, "read": false}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, err
	}
	return int(res.ModifiedCount), nil
}

// ClaimPending claims one document per FindOneAndUpdate. Each update is
// atomic on its document, so two dispatchers never return the same row.
func (r *repoMongo) ClaimPending(ctx context.Context, limit int, now, staleBefore time.Time) ([]*Notification, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"deliveryStatus": DeliveryPending, "nextAttemptAt": bson.M{"$lte": now}},
		bson.M{"deliveryStatus": DeliveryDispatching, "claimedAt": bson.M{"$lt": staleBefore}},
	}}
	update := bson.M{"$set": bson.M{"deliveryStatus": DeliveryDispatching, "claimedAt": now}}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetReturnDocument(options.After)

	var claimed []*Notification
	for len(claimed) < limit {
		var n Notification
		err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&n)
		if errors.Is(err, mongo.ErrNoDocuments) {
			break
		}
		if err != nil {
			return claimed, mongostore.MapError(err)
		}
		claimed = append(claimed, &n)
	}
	return claimed, nil
}

func (r *repoMongo) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set":   bson.M{"deliveryStatus": DeliveryDelivered, "deliveredAt": at},
		"$unset": bson.M{"claimedAt": ""},
		"$inc":   bson.M{"attempts": 1},
	})
	return err
}

func (r *repoMongo) RecordFailure(ctx context.Context, id uuid.UUID, attempts int, status, lastError string, nextAttempt time.Time) error {
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"attempts":       attempts,
			"deliveryStatus": status,
			"lastError":      lastError,
			"nextAttemptAt":  nextAttempt,
		},
		"$unset": bson.M{"claimedAt": ""},
	})
	return err
}
