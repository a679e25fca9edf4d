package notification

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/apperr"
	"github.com/ashirxD/Hospital-App-sub000/internal/platform/realtime"
)

const DefaultPageSize = 50

// Emitter pushes a live event to every socket in a room.
type Emitter interface {
	Emit(ctx context.Context, room, event string, payload interface{}) error
}

// Kicker wakes the outbox dispatcher.
type Kicker interface {
	Kick()
}

type Service struct {
	repo     Repository
	emitter  Emitter
	kicker   Kicker
	pageSize int
	logger   zerolog.Logger
}

func NewService(repo Repository, emitter Emitter, pageSize int, logger zerolog.Logger) *Service {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Service{repo: repo, emitter: emitter, pageSize: pageSize, logger: logger}
}

// UseKicker makes Kick wake k after a committed Enqueue.
func (s *Service) UseKicker(k Kicker) {
	s.kicker = k
}

// Enqueue records one pending notification per request. Run it inside the
// caller's transaction so the rows commit together with the workflow write,
// then call Kick once the transaction has committed.
func (s *Service) Enqueue(ctx context.Context, reqs ...Request) error {
	for _, req := range reqs {
		if req.UserID == uuid.Nil {
			return apperr.Validation("notification target is required")
		}
		if !ValidType(req.Type) {
			return apperr.Validation("invalid notification type %q", req.Type)
		}
		if strings.TrimSpace(req.Message) == "" {
			return apperr.Validation("notification message is required")
		}
		n := &Notification{
			ID:             uuid.New(),
			UserID:         req.UserID,
			Type:           req.Type,
			Message:        req.Message,
			AppointmentID:  req.AppointmentID,
			DeliveryStatus: DeliveryPending,
		}
		if err := s.repo.Create(ctx, n); err != nil {
			return apperr.Internal(err, "create notification")
		}
	}
	return nil
}

func (s *Service) Kick() {
	if s.kicker != nil {
		s.kicker.Kick()
	}
}

func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*Notification, error) {
	items, err := s.repo.ListByUser(ctx, userID, s.pageSize)
	if err != nil {
		return nil, apperr.Internal(err, "list notifications")
	}
	if items == nil {
		items = []*Notification{}
	}
	return items, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperr.Internal(err, "count unread notifications")
	}
	return n, nil
}

// MarkRead flags one of the caller's notifications as read. Repeating it is a
// no-op that still succeeds.
func (s *Service) MarkRead(ctx context.Context, userID, id uuid.UUID) (*Notification, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("notification not found")
		}
		return nil, apperr.Internal(err, "get notification")
	}
	if n.UserID != userID {
		return nil, apperr.Forbidden("not your notification")
	}

	changed, err := s.repo.MarkRead(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err, "mark notification read")
	}
	n.Read = true
	count := 0
	if changed {
		count = 1
	}
	s.emitMarked(ctx, userID, MarkedAsRead{IDs: []uuid.UUID{id}, Count: count})
	return n, nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, apperr.Internal(err, "mark notifications read")
	}
	s.emitMarked(ctx, userID, MarkedAsRead{All: true, Count: n})
	return n, nil
}

func (s *Service) emitMarked(ctx context.Context, userID uuid.UUID, payload MarkedAsRead) {
	if s.emitter == nil {
		return
	}
	if err := s.emitter.Emit(ctx, realtime.RoomFor(userID.String()), EventNotificationsMarkedAsRead, payload); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("emit notificationsMarkedAsRead")
	}
}
