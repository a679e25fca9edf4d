package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/apperr"
)

type memRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*Notification
	seq   time.Time
}

func newMemRepo() *memRepo {
	return &memRepo{items: make(map[uuid.UUID]*Notification), seq: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (m *memRepo) Create(_ context.Context, n *Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq = m.seq.Add(time.Second)
	n.CreatedAt = m.seq
	cp := *n
	m.items[n.ID] = &cp
	return nil
}

func (m *memRepo) get(id uuid.UUID) *Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.items[id]; ok {
		cp := *n
		return &cp
	}
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Notification, error) {
	if n := m.get(id); n != nil {
		return n, nil
	}
	return nil, apperr.ErrNotFound
}

func (m *memRepo) filter(keep func(*Notification) bool, newestFirst bool, limit int) []*Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Notification
	for _, n := range m.items {
		if keep(n) {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *memRepo) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]*Notification, error) {
	return m.filter(func(n *Notification) bool { return n.UserID == userID }, true, limit), nil
}

func (m *memRepo) CountUnread(_ context.Context, userID uuid.UUID) (int, error) {
	return len(m.filter(func(n *Notification) bool { return n.UserID == userID && !n.Read }, true, 0)), nil
}

func (m *memRepo) MarkRead(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok || n.Read {
		return false, nil
	}
	n.Read = true
	return true, nil
}

func (m *memRepo) MarkAllRead(_ context.Context, userID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.items {
		if n.UserID == userID && !n.Read {
			n.Read = true
			count++
		}
	}
	return count, nil
}

// pending returns the rows still waiting in the outbox, oldest first.
func (m *memRepo) pending() []*Notification {
	return m.filter(func(n *Notification) bool { return n.DeliveryStatus == DeliveryPending }, false, 0)
}

func (m *memRepo) ClaimPending(_ context.Context, limit int, now, staleBefore time.Time) ([]*Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []*Notification
	for _, n := range m.items {
		pending := n.DeliveryStatus == DeliveryPending && !n.NextAttemptAt.After(now)
		stale := n.DeliveryStatus == DeliveryDispatching && n.ClaimedAt != nil && n.ClaimedAt.Before(staleBefore)
		if pending || stale {
			due = append(due, n)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	out := make([]*Notification, 0, len(due))
	for _, n := range due {
		at := now
		n.DeliveryStatus = DeliveryDispatching
		n.ClaimedAt = &at
		cp := *n
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memRepo) MarkDelivered(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.items[id]
	n.DeliveryStatus = DeliveryDelivered
	n.DeliveredAt = &at
	n.ClaimedAt = nil
	n.Attempts++
	return nil
}

func (m *memRepo) RecordFailure(_ context.Context, id uuid.UUID, attempts int, status, lastError string, nextAttempt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.items[id]
	n.Attempts = attempts
	n.DeliveryStatus = status
	n.LastError = &lastError
	n.NextAttemptAt = nextAttempt
	n.ClaimedAt = nil
	return nil
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
	// before runs ahead of each emit, outside the lock.
	before func()
}

func (e *recordingEmitter) Emit(_ context.Context, room, event string, payload interface{}) error {
	if e.before != nil {
		e.before()
	}
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
	out := make([]emitted, len(e.events))
	copy(out, e.events)
	return out
}

func (e *recordingEmitter) fail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

var errOffline = errors.New("broker unavailable")
