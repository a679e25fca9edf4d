package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/apperr"
	"github.com/ashirxD/Hospital-App-sub000/internal/platform/mongostore"
)

// =========== Group Repository ===========

type groupRepoMongo struct{ coll *mongo.Collection }

func NewGroupRepoMongo(database *mongo.Database) GroupRepository {
	return &groupRepoMongo{coll: database.Collection(mongostore.CollChatGroups)}
}

// FindOrCreate upserts on the unique pairKey index. Two racing upserts can
// both miss and one then fails with a duplicate key; that caller re-reads the
// winner's document.
func (r *groupRepoMongo) FindOrCreate(ctx context.Context, g *ChatGroup) (*ChatGroup, bool, error) {
	now := time.Now().UTC()
	update := bson.M{"$setOnInsert": bson.M{
		"_id":          g.ID,
		"participants": g.Participants,
		"pairKey":      g.PairKey,
		"lastMessage":  nil,
		"createdAt":    now,
		"updatedAt":    now,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var got ChatGroup
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"pairKey": g.PairKey}, update, opts).Decode(&got)
	if err != nil {
		err = mongostore.MapError(err)
		if !errors.Is(err, apperr.ErrDuplicate) {
			return nil, false, err
		}
		if err := r.coll.FindOne(ctx, bson.M{"pairKey": g.PairKey}).Decode(&got); err != nil {
			return nil, false, mongostore.MapError(err)
		}
	}
	return &got, got.ID == g.ID, nil
}

func (r *groupRepoMongo) GetByID(ctx context.Context, id uuid.UUID) (*ChatGroup, error) {
	var g ChatGroup
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		return nil, mongostore.MapError(err)
	}
	return &g, nil
}

func (r *groupRepoMongo) ListByParticipant(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*ChatGroup, int, error) {
	filter := bson.M{"participants": userID}
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "updatedAt", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	var items []*ChatGroup
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, err
	}
	return items, int(total), nil
}

func (r *groupRepoMongo) SetLastMessage(ctx context.Context, id uuid.UUID, lm *LastMessage, at time.Time) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"lastMessage": lm, "updatedAt": at},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// =========== Message Repository ===========

type messageRepoMongo struct{ coll *mongo.Collection }

func NewMessageRepoMongo(database *mongo.Database) MessageRepository {
	return &messageRepoMongo{coll: database.Collection(mongostore.CollMessages)}
}

func (r *messageRepoMongo) Create(ctx context.Context, m *Message) error {
	m.CreatedAt = time.Now().UTC()
	_, err := r.coll.InsertOne(ctx, m)
	return mongostore.MapError(err)
}

func (r *messageRepoMongo) ListByGroup(ctx context.Context, groupID uuid.UUID, limit, offset int) ([]*Message, int, error) {
	filter := bson.M{"chatGroupId": groupID}
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	var items []*Message
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, err
	}
	return items, int(total), nil
}

func (r *messageRepoMongo) MarkRead(ctx context.Context, groupID, recipientID uuid.UUID) (int, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"chatGroupId": groupID, "recipientId": recipientID, "read": false},
		bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, err
	}
	return int(res.ModifiedCount), nil
}

func (r *messageRepoMongo) CountUnread(ctx context.Context, groupID, recipientID uuid.UUID) (int, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"chatGroupId": groupID, "recipientId": recipientID, "read": false})
	return int(n), err
}
