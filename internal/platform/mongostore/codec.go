package mongostore

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

var tUUID = reflect.TypeOf(uuid.UUID{})

// NewRegistry returns the default registry with uuid.UUID stored as BSON
// binary subtype 4 instead of an array of sixteen integers.
func NewRegistry() *bsoncodec.Registry {
	reg := bson.NewRegistry()
	reg.RegisterTypeEncoder(tUUID, bsoncodec.ValueEncoderFunc(encodeUUID))
	reg.RegisterTypeDecoder(tUUID, bsoncodec.ValueDecoderFunc(decodeUUID))
	return reg
}

func encodeUUID(_ bsoncodec.EncodeContext, vw bsonrw.ValueWriter, val reflect.Value) error {
	if !val.IsValid() || val.Type() != tUUID {
		return bsoncodec.ValueEncoderError{Name: "UUIDEncodeValue", Types: []reflect.Type{tUUID}, Received: val}
	}
	id := val.Interface().(uuid.UUID)
	return vw.WriteBinaryWithSubtype(id[:], bsontype.BinaryUUID)
}

func decodeUUID(_ bsoncodec.DecodeContext, vr bsonrw.ValueReader, val reflect.Value) error {
	if !val.CanSet() || val.Type() != tUUID {
		return bsoncodec.ValueDecoderError{Name: "UUIDDecodeValue", Types: []reflect.Type{tUUID}, Received: val}
	}

	switch vr.Type() {
	case bsontype.Null:
		if err := vr.ReadNull(); err != nil {
			return err
		}
		val.Set(reflect.Zero(tUUID))
		return nil
	case bsontype.String:
		s, err := vr.ReadString()
		if err != nil {
			return err
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return fmt.Errorf("decode uuid string: %w", err)
		}
		val.Set(reflect.ValueOf(id))
		return nil
	}

	data, subtype, err := vr.ReadBinary()
	if err != nil {
		return err
	}
	if subtype != bsontype.BinaryUUID && subtype != bsontype.BinaryUUIDOld {
		return fmt.Errorf("decode uuid: unexpected binary subtype %#x", subtype)
	}
	id, err := uuid.FromBytes(data)
	if err != nil {
		return fmt.Errorf("decode uuid: %w", err)
	}
	val.Set(reflect.ValueOf(id))
	return nil
}
