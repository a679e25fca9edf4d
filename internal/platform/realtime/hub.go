// Package realtime pushes named events to connected users over WebSockets.
// Every authenticated socket joins the room named after its user id, so a
// user with several devices receives each event on all of them.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/auth"
)

// Frame is the wire envelope in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// InboundFunc handles one client-sent event on behalf of the socket owner.
type InboundFunc func(ctx context.Context, sender auth.Identity, data json.RawMessage) error

// Client is a single socket connection.
type Client struct {
	ID       string
	Identity auth.Identity
	Send     chan []byte
}

// Room returns the room the client joins on connect.
func (c *Client) Room() string {
	return RoomFor(c.Identity.UserID.String())
}

// RoomFor maps a user id to its room name.
func RoomFor(userID string) string {
	return userID
}

// Hub tracks connected clients per room. All operations are safe for
// concurrent use.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
	all   map[*Client]struct{}

	handlersMu sync.RWMutex
	handlers   map[string]InboundFunc

	broker Broker
	logger zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		rooms:    make(map[string]map[*Client]struct{}),
		all:      make(map[*Client]struct{}),
		handlers: make(map[string]InboundFunc),
		logger:   logger.With().Str("component", "realtime").Logger(),
	}
}

// UseBroker routes Emit through b so events reach sockets held by other
// server instances. Call before serving traffic.
func (h *Hub) UseBroker(b Broker) {
	h.broker = b
}

// Register joins client to its user room.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	room := client.Room()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][client] = struct{}{}
}

// Unregister removes client from its room and closes its Send channel. It is
// safe to call more than once.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}

	room := client.Room()
	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.all, client)
	close(client.Send)
}

// Emit sends event with payload to every socket in room. Rooms with no
// sockets drop the event.
func (h *Hub) Emit(ctx context.Context, room, event string, payload interface{}) error {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		return err
	}
	if h.broker != nil {
		if err := h.broker.Publish(ctx, room, frame); err != nil {
			return fmt.Errorf("publish %s to %s: %w", event, room, err)
		}
		return nil
	}
	h.Deliver(room, frame)
	return nil
}

// Deliver writes an encoded frame to the local sockets in room and returns
// how many accepted it. Slow clients with a full buffer are skipped.
func (h *Hub) Deliver(room string, frame []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for client := range h.rooms[room] {
		select {
		case client.Send <- frame:
			n++
		default:
			h.logger.Warn().Str("client", client.ID).Str("room", room).Msg("send buffer full, dropping frame")
		}
	}
	return n
}

// SendTo writes directly to one client, bypassing rooms and the broker.
func (h *Hub) SendTo(client *Client, event string, payload interface{}) {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("encode frame")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.all[client]; !ok {
		return
	}
	select {
	case client.Send <- frame:
	default:
	}
}

// On registers fn for client-sent frames named event.
func (h *Hub) On(event string, fn InboundFunc) {
	h.handlersMu.Lock()
	defer h.handlersMu.Unlock()
	h.handlers[event] = fn
}

type errorPayload struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

// Dispatch decodes a raw client frame and runs its handler. Failures are
// reported back to the sending socket as an "error" event.
func (h *Hub) Dispatch(ctx context.Context, client *Client, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
		h.SendTo(client, "error", errorPayload{Message: "malformed frame"})
		return
	}

	h.handlersMu.RLock()
	fn, ok := h.handlers[frame.Event]
	h.handlersMu.RUnlock()
	if !ok {
		h.SendTo(client, "error", errorPayload{Event: frame.Event, Message: "unknown event"})
		return
	}

	if err := fn(ctx, client.Identity, frame.Data); err != nil {
		h.logger.Debug().Err(err).Str("event", frame.Event).Str("user_id", client.Identity.UserID.String()).Msg("inbound event failed")
		h.SendTo(client, "error", errorPayload{Event: frame.Event, Message: clientMessage(err)})
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

func (h *Hub) Online(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func encodeFrame(event string, payload interface{}) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", event, err)
		}
		data = b
	}
	return json.Marshal(Frame{Event: event, Data: data})
}
