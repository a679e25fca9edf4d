package mongostore

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/apperr"
)

type doc struct {
	ID     uuid.UUID   `bson:"_id"`
	Parent *uuid.UUID  `bson:"parent"`
	Peers  []uuid.UUID `bson:"peers"`
}

func TestUUIDCodec_RoundTrip(t *testing.T) {
	reg := NewRegistry()
	parent := uuid.New()
	in := doc{ID: uuid.New(), Parent: &parent, Peers: []uuid.UUID{uuid.New(), uuid.New()}}

	raw, err := bson.MarshalWithRegistry(reg, in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	idVal := bson.Raw(raw).Lookup("_id")
	if idVal.Type != bsontype.Binary {
		t.Fatalf("expected _id to be binary, got %s", idVal.Type)
	}
	subtype, _ := idVal.Binary()
	if subtype != bsontype.BinaryUUID {
		t.Errorf("expected subtype 4, got %#x", subtype)
	}

	var out doc
	if err := bson.UnmarshalWithRegistry(reg, raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.ID != in.ID {
		t.Errorf("id mismatch: %s != %s", out.ID, in.ID)
	}
	if out.Parent == nil || *out.Parent != parent {
		t.Errorf("parent mismatch: %v", out.Parent)
	}
	if len(out.Peers) != 2 || out.Peers[1] != in.Peers[1] {
		t.Errorf("peers mismatch: %v", out.Peers)
	}
}

func TestUUIDCodec_NilPointer(t *testing.T) {
	reg := NewRegistry()
	raw, err := bson.MarshalWithRegistry(reg, doc{ID: uuid.New()})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out doc
	if err := bson.UnmarshalWithRegistry(reg, raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Parent != nil {
		t.Errorf("expected nil parent, got %v", out.Parent)
	}
}

func TestMapError(t *testing.T) {
	if !errors.Is(MapError(mongo.ErrNoDocuments), apperr.ErrNotFound) {
		t.Error("expected ErrNoDocuments to map to ErrNotFound")
	}

	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	if !errors.Is(MapError(dup), apperr.ErrDuplicate) {
		t.Error("expected duplicate key error to map to ErrDuplicate")
	}

	other := errors.New("socket closed")
	if MapError(other) != other {
		t.Error("expected unrelated errors to pass through")
	}
}

func TestIndexes_AcceptedSlotIsPartialUnique(t *testing.T) {
	var found bool
	for _, m := range Indexes[CollAppointments] {
		if m.Options == nil || m.Options.Name == nil || *m.Options.Name != "accepted_slot" {
			continue
		}
		found = true
		if m.Options.Unique == nil || !*m.Options.Unique {
			t.Error("accepted_slot index must be unique")
		}
		if m.Options.PartialFilterExpression == nil {
			t.Error("accepted_slot index must be partial")
		}
	}
	if !found {
		t.Fatal("accepted_slot index not declared")
	}
}
