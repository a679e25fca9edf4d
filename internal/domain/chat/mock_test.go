package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashirxD/Hospital-App-sub000/internal/domain/identity"
	"github.com/ashirxD/Hospital-App-sub000/internal/platform/apperr"
)

type memGroups struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*ChatGroup
	byPair map[string]uuid.UUID
}

func newMemGroups() *memGroups {
	return &memGroups{byID: make(map[uuid.UUID]*ChatGroup), byPair: make(map[string]uuid.UUID)}
}

func (m *memGroups) FindOrCreate(_ context.Context, g *ChatGroup) (*ChatGroup, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byPair[g.PairKey]; ok {
		cp := *m.byID[id]
		return &cp, false, nil
	}
	now := time.Now()
	g.CreatedAt, g.UpdatedAt = now, now
	cp := *g
	m.byID[g.ID] = &cp
	m.byPair[g.PairKey] = g.ID
	out := cp
	return &out, true, nil
}

func (m *memGroups) GetByID(_ context.Context, id uuid.UUID) (*ChatGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.byID[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *memGroups) ListByParticipant(_ context.Context, userID uuid.UUID, limit, offset int) ([]*ChatGroup, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ChatGroup
	for _, g := range m.byID {
		if g.HasParticipant(userID) {
			cp := *g
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, len(out), nil
}

func (m *memGroups) SetLastMessage(_ context.Context, id uuid.UUID, lm *LastMessage, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.byID[id]
	if !ok {
		return apperr.ErrNotFound
	}
	g.LastMessage = lm
	g.UpdatedAt = at
	return nil
}

func (m *memGroups) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

type memMessages struct {
	mu        sync.Mutex
	items     []*Message
	failWrite error
}

func (m *memMessages) Create(_ context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite != nil {
		return m.failWrite
	}
	msg.CreatedAt = time.Now()
	cp := *msg
	m.items = append(m.items, &cp)
	return nil
}

func (m *memMessages) ListByGroup(_ context.Context, groupID uuid.UUID, limit, offset int) ([]*Message, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Message
	for _, msg := range m.items {
		if msg.ChatGroupID == groupID {
			cp := *msg
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (m *memMessages) MarkRead(_ context.Context, groupID, recipientID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.items {
		if msg.ChatGroupID == groupID && msg.RecipientID == recipientID && !msg.Read {
			msg.Read = true
			n++
		}
	}
	return n, nil
}

func (m *memMessages) CountUnread(_ context.Context, groupID, recipientID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.items {
		if msg.ChatGroupID == groupID && msg.RecipientID == recipientID && !msg.Read {
			n++
		}
	}
	return n, nil
}

type memUsers map[uuid.UUID]*identity.User

func (m memUsers) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := m[id]
	return ok, nil
}

func (m memUsers) GetUser(_ context.Context, id uuid.UUID) (*identity.User, error) {
	if u, ok := m[id]; ok {
		return u, nil
	}
	return nil, apperr.NotFound("user not found")
}

type emitted struct {
	Room    string
	Event   string
	Payload json.RawMessage
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []emitted
	err    error
}

func (e *recordingEmitter) Emit(_ context.Context, room, event string, payload interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	b, _ := json.Marshal(payload)
	e.events = append(e.events, emitted{Room: room, Event: event, Payload: b})
	return nil
}

func (e *recordingEmitter) Events() []emitted {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]emitted(nil), e.events...)
}

func (e *recordingEmitter) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = nil
}

func (e *recordingEmitter) rooms(event string) []string {
	var out []string
	for _, ev := range e.Events() {
		if ev.Event == event {
			out = append(out, ev.Room)
		}
	}
	sort.Strings(out)
	return out
}

type passthroughTx struct{}

func (passthroughTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var errDiskFull = errors.New("disk full")
