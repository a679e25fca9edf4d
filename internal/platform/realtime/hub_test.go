package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/apperr"
	"github.com/ashirxD/Hospital-App-sub000/internal/platform/auth"
)

// ---------------------------------------------------------------------------
// Hub tests
// ---------------------------------------------------------------------------

func newClient(userID uuid.UUID, buffer int) *Client {
	return &Client{
		ID:       uuid.NewString(),
		Identity: auth.Identity{UserID: userID, Role: auth.RolePatient},
		Send:     make(chan []byte, buffer),
	}
}

func readFrame(t *testing.T, c *Client) Frame {
	t.Helper()
	select {
	case raw := <-c.Send:
		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		return f
	default:
		t.Fatal("expected a frame")
	}
	return Frame{}
}

func TestHub_RegisterJoinsUserRoom(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	userID := uuid.New()
	client := newClient(userID, 4)

	hub.Register(client)

	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}
	if hub.Online(userID.String()) != 1 {
		t.Fatalf("expected 1 socket in the user room, got %d", hub.Online(userID.String()))
	}
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newClient(uuid.New(), 4)

	hub.Register(client)
	hub.Unregister(client)
	hub.Unregister(client)

	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", hub.ClientCount())
	}
	if _, ok := <-client.Send; ok {
		t.Fatal("expected Send to be closed")
	}
}

func TestHub_EmitReachesEveryDevice(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	userID := uuid.New()
	phone := newClient(userID, 4)
	laptop := newClient(userID, 4)
	other := newClient(uuid.New(), 4)
	hub.Register(phone)
	hub.Register(laptop)
	hub.Register(other)

	err := hub.Emit(context.Background(), userID.String(), "receiveMessage", map[string]string{"content": "hi"})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}

	for _, c := range []*Client{phone, laptop} {
		f := readFrame(t, c)
		if f.Event != "receiveMessage" {
			t.Errorf("expected receiveMessage, got %s", f.Event)
		}
		var data map[string]string
		_ = json.Unmarshal(f.Data, &data)
		if data["content"] != "hi" {
			t.Errorf("unexpected payload %s", f.Data)
		}
	}
	if len(other.Send) != 0 {
		t.Error("a different user must not receive the frame")
	}
}

func TestHub_EmitToEmptyRoomIsDropped(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	if err := hub.Emit(context.Background(), uuid.NewString(), "newNotification", nil); err != nil {
		t.Fatalf("emit to empty room should succeed, got %v", err)
	}
}

func TestHub_FullBufferDoesNotBlock(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	userID := uuid.New()
	slow := newClient(userID, 1)
	hub.Register(slow)

	if n := hub.Deliver(userID.String(), []byte(`{"event":"a"}`)); n != 1 {
		t.Fatalf("expected first frame accepted, got %d", n)
	}
	if n := hub.Deliver(userID.String(), []byte(`{"event":"b"}`)); n != 0 {
		t.Fatalf("expected second frame dropped, got %d", n)
	}
}

type recordingBroker struct {
	rooms  []string
	frames [][]byte
	err    error
}

func (b *recordingBroker) Publish(_ context.Context, room string, frame []byte) error {
	b.rooms = append(b.rooms, room)
	b.frames = append(b.frames, frame)
	return b.err
}

func (b *recordingBroker) Run(context.Context, func(string, []byte)) error { return nil }

func TestHub_EmitUsesBroker(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	broker := &recordingBroker{}
	hub.UseBroker(broker)

	userID := uuid.New()
	local := newClient(userID, 4)
	hub.Register(local)

	if err := hub.Emit(context.Background(), userID.String(), "chatGroupUpdate", nil); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(broker.rooms) != 1 || broker.rooms[0] != userID.String() {
		t.Fatalf("expected one publish to the user room, got %v", broker.rooms)
	}
	if len(local.Send) != 0 {
		t.Error("with a broker, local delivery happens when the broker echoes the frame back")
	}

	broker.err = errors.New("redis down")
	if err := hub.Emit(context.Background(), userID.String(), "chatGroupUpdate", nil); err == nil {
		t.Error("expected publish failure to surface")
	}
}

func TestHub_DispatchRunsHandler(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newClient(uuid.New(), 4)
	hub.Register(client)

	var gotSender auth.Identity
	var gotData string
	hub.On("sendMessage", func(ctx context.Context, sender auth.Identity, data json.RawMessage) error {
		gotSender = sender
		gotData = string(data)
		return nil
	})

	hub.Dispatch(context.Background(), client, []byte(`{"event":"sendMessage","data":{"content":"hello"}}`))

	if gotSender.UserID != client.Identity.UserID {
		t.Errorf("handler received wrong sender %v", gotSender.UserID)
	}
	if gotData != `{"content":"hello"}` {
		t.Errorf("unexpected data %s", gotData)
	}
	if len(client.Send) != 0 {
		t.Error("successful dispatch should not write an error frame")
	}
}

func TestHub_DispatchReportsErrors(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newClient(uuid.New(), 8)
	hub.Register(client)
	hub.On("sendMessage", func(context.Context, auth.Identity, json.RawMessage) error {
		return apperr.Validation("message must have content or an attachment")
	})

	hub.Dispatch(context.Background(), client, []byte(`not json`))
	if f := readFrame(t, client); f.Event != "error" {
		t.Errorf("expected error frame for malformed input, got %s", f.Event)
	}

	hub.Dispatch(context.Background(), client, []byte(`{"event":"typing"}`))
	if f := readFrame(t, client); f.Event != "error" {
		t.Errorf("expected error frame for unknown event, got %s", f.Event)
	}

	hub.Dispatch(context.Background(), client, []byte(`{"event":"sendMessage","data":{}}`))
	f := readFrame(t, client)
	var payload errorPayload
	_ = json.Unmarshal(f.Data, &payload)
	if payload.Message != "message must have content or an attachment" || payload.Event != "sendMessage" {
		t.Errorf("unexpected error payload %+v", payload)
	}
}

func TestDecodeEnvelope(t *testing.T) {
	room, frame, err := decodeEnvelope([]byte(`{"room":"u1","frame":{"event":"x"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if room != "u1" || string(frame) != `{"event":"x"}` {
		t.Errorf("unexpected envelope %s %s", room, frame)
	}

	if _, _, err := decodeEnvelope([]byte(`{"room":""}`)); err == nil {
		t.Error("expected error for empty envelope")
	}
}
