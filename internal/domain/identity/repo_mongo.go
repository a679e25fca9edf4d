package identity

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/mongostore"
)

type userRepoMongo struct{ coll *mongo.Collection }

func NewUserRepoMongo(database *mongo.Database) UserRepository {
	return &userRepoMongo{coll: database.Collection(mongostore.CollUsers)}
}

func (r *userRepoMongo) Create(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	u.Email = strings.ToLower(u.Email)
	_, err := r.coll.InsertOne(ctx, u)
	return mongostore.MapError(err)
}

func (r *userRepoMongo) findOne(ctx context.Context, filter bson.M) (*User, error) {
	var u User
	if err := r.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, mongostore.MapError(err)
	}
	return &u, nil
}

func (r *userRepoMongo) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *userRepoMongo) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(email)})
}

func (r *userRepoMongo) Update(ctx context.Context, u *User) error {
	u.UpdatedAt = time.Now().UTC()
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": u.ID}, u)
	if err != nil {
		return mongostore.MapError(err)
	}
	if res.MatchedCount == 0 {
		return mongostore.MapError(mongo.ErrNoDocuments)
	}
	return nil
}

func (r *userRepoMongo) ListByRole(ctx context.Context, role, specialization string, limit, offset int) ([]*User, int, error) {
	filter := bson.M{"role": role}
	if specialization != "" {
		filter["specialization"] = bson.M{
			"$regex": regexp.QuoteMeta(specialization), "$options": "i",
		}
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	var items []*User
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, err
	}
	return items, int(total), nil
}
