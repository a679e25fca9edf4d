package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/mongostore"
)

// =========== Appointment Repository ===========

type appointmentRepoMongo struct{ coll *mongo.Collection }

func NewAppointmentRepoMongo(database *mongo.Database) AppointmentRepository {
	return &appointmentRepoMongo{coll: database.Collection(mongostore.CollAppointments)}
}

func (r *appointmentRepoMongo) Create(ctx context.Context, a *Appointment) error {
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	if a.Prescriptions == nil {
		a.Prescriptions = []Prescription{}
	}
	_, err := r.coll.InsertOne(ctx, a)
	return mongostore.MapError(err)
}

func (r *appointmentRepoMongo) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var a Appointment
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return nil, mongostore.MapError(err)
	}
	return &a, nil
}

func (r *appointmentRepoMongo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) (*Appointment, error) {
	var a Appointment
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to, "updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&a)
	if err != nil {
		return nil, mongostore.MapError(err)
	}
	return &a, nil
}

func (r *appointmentRepoMongo) AddPrescription(ctx context.Context, appointmentID uuid.UUID, p *Prescription) error {
	p.IssuedAt = time.Now().UTC()
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": appointmentID}, bson.M{
		"$push": bson.M{"prescriptions": p},
		"$set":  bson.M{"updatedAt": p.IssuedAt},
	})
	if err != nil {
		return mongostore.MapError(err)
	}
	if res.MatchedCount == 0 {
		return mongostore.MapError(mongo.ErrNoDocuments)
	}
	return nil
}

func (r *appointmentRepoMongo) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	filter := bson.M{}
	if f.PatientID != nil {
		filter["patientId"] = *f.PatientID
	}
	if f.DoctorID != nil {
		filter["doctorId"] = *f.DoctorID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: -1}, {Key: "time", Value: -1}, {Key: "createdAt", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	var items []*Appointment
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, err
	}
	return items, int(total), nil
}

func (r *appointmentRepoMongo) SlotTaken(ctx context.Context, doctorID uuid.UUID, date, clock string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{
		"doctorId": doctorID, "date": date, "time": clock, "status": StatusAccepted,
	}, options.Count().SetLimit(1))
	return n > 0, err
}

func (r *appointmentRepoMongo) AcceptedTimes(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.M{"time": 1}).
		SetSort(bson.D{{Key: "time", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{"doctorId": doctorID, "date": date, "status": StatusAccepted}, opts)
	if err != nil {
		return nil, err
	}
	var docs []struct {
		Time string `bson:"time"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	times := make([]string, 0, len(docs))
	for _, d := range docs {
		times = append(times, d.Time)
	}
	return times, nil
}

// =========== Review Repository ===========

type reviewRepoMongo struct{ coll *mongo.Collection }

func NewReviewRepoMongo(database *mongo.Database) ReviewRepository {
	return &reviewRepoMongo{coll: database.Collection(mongostore.CollReviews)}
}

func (r *reviewRepoMongo) Create(ctx context.Context, rv *Review) error {
	rv.CreatedAt = time.Now().UTC()
	_, err := r.coll.InsertOne(ctx, rv)
	return mongostore.MapError(err)
}

func (r *reviewRepoMongo) ListByReviewee(ctx context.Context, revieweeID uuid.UUID, limit, offset int) ([]*Review, int, error) {
	filter := bson.M{"revieweeId": revieweeID}
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	var items []*Review
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, err
	}
	return items, int(total), nil
}
