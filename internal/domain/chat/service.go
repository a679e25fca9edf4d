package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ashirxD/Hospital-App-sub000/internal/domain/identity"
	"github.com/ashirxD/Hospital-App-sub000/internal/platform/apperr"
	"github.com/ashirxD/Hospital-App-sub000/internal/platform/auth"
	"github.com/ashirxD/Hospital-App-sub000/internal/platform/blobstore"
	"github.com/ashirxD/Hospital-App-sub000/internal/platform/realtime"
)

const maxContentLength = 5000

type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Emitter interface {
	Emit(ctx context.Context, room, event string, payload interface{}) error
}

type UserDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	GetUser(ctx context.Context, id uuid.UUID) (*identity.User, error)
}

type Service struct {
	groups   GroupRepository
	messages MessageRepository
	users    UserDirectory
	blobs    blobstore.Store
	emitter  Emitter
	tx       TxRunner
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(groups GroupRepository, messages MessageRepository, users UserDirectory,
	blobs blobstore.Store, emitter Emitter, tx TxRunner, logger zerolog.Logger) *Service {
	return &Service{
		groups:   groups,
		messages: messages,
		users:    users,
		blobs:    blobs,
		emitter:  emitter,
		tx:       tx,
		logger:   logger.With().Str("component", "chat").Logger(),
		now:      time.Now,
	}
}

func requireSender(sender auth.Identity) error {
	if sender.UserID == uuid.Nil {
		return apperr.Unauthorized("unauthorized")
	}
	return nil
}

func (s *Service) mustExist(ctx context.Context, id uuid.UUID, label string) error {
	ok, err := s.users.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("%s not found", label)
	}
	return nil
}

// emit pushes a live event. Delivery is best effort: the store already holds
// the data, so failures are only logged.
func (s *Service) emit(ctx context.Context, event string, payload interface{}, users ...uuid.UUID) {
	seen := make(map[uuid.UUID]bool, len(users))
	for _, u := range users {
		if seen[u] {
			continue
		}
		seen[u] = true
		if err := s.emitter.Emit(ctx, realtime.RoomFor(u.String()), event, payload); err != nil {
			s.logger.Warn().Err(err).Str("event", event).Str("user_id", u.String()).Msg("live emit failed")
		}
	}
}

// -- Group resolution --

// ResolveGroup returns the conversation between sender and recipientID,
// creating it on first contact.
func (s *Service) ResolveGroup(ctx context.Context, sender auth.Identity, recipientID string) (*ChatGroup, error) {
	if err := requireSender(sender); err != nil {
		return nil, err
	}
	recipient, err := uuid.Parse(recipientID)
	if err != nil {
		return nil, apperr.Validation("invalid id")
	}
	if recipient == sender.UserID {
		return nil, apperr.Validation("cannot start a conversation with yourself")
	}
	if err := s.mustExist(ctx, recipient, "recipient"); err != nil {
		return nil, err
	}
	if err := s.mustExist(ctx, sender.UserID, "sender"); err != nil {
		return nil, err
	}

	key, pair := PairKey(sender.UserID, recipient)
	g, created, err := s.groups.FindOrCreate(ctx, &ChatGroup{
		ID:           uuid.New(),
		Participants: []uuid.UUID{pair[0], pair[1]},
		PairKey:      key,
	})
	if err != nil {
		return nil, apperr.Internal(err, "resolve chat group")
	}
	if created {
		s.logger.Debug().Str("chat_group_id", g.ID.String()).Msg("chat group created")
		s.emit(ctx, EventChatGroupUpdate, g.Update(), g.Participants...)
	}
	return g, nil
}

// -- Messages --

type SendInput struct {
	RecipientID string
	ChatGroupID string
	Content     string
	File        *blobstore.Upload
}

func (s *Service) SendMessage(ctx context.Context, sender auth.Identity, in SendInput) (*Message, error) {
	if err := requireSender(sender); err != nil {
		return nil, err
	}
	recipientID, err := uuid.Parse(in.RecipientID)
	if err != nil {
		return nil, apperr.Validation("invalid recipient id")
	}
	groupID, err := uuid.Parse(in.ChatGroupID)
	if err != nil {
		return nil, apperr.Validation("invalid chat group id")
	}
	if err := s.mustExist(ctx, recipientID, "recipient"); err != nil {
		return nil, err
	}
	if err := s.mustExist(ctx, sender.UserID, "sender"); err != nil {
		return nil, err
	}
	content := strings.TrimSpace(in.Content)
	if content == "" && in.File == nil {
		return nil, apperr.Validation("message content or attachment is required")
	}
	if len(content) > maxContentLength {
		return nil, apperr.Validation("message exceeds %d characters", maxContentLength)
	}

	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("chat group not found")
		}
		return nil, apperr.Internal(err, "get chat group")
	}
	if !g.HasParticipant(sender.UserID) {
		return nil, apperr.Forbidden("not a participant of this chat group")
	}
	if recipientID == sender.UserID || !g.HasParticipant(recipientID) {
		return nil, apperr.Validation("recipient is not the other participant of this chat group")
	}

	msg := &Message{
		ID:          uuid.New(),
		ChatGroupID: g.ID,
		SenderID:    sender.UserID,
		RecipientID: recipientID,
		Content:     content,
	}
	if in.File != nil {
		if msg.Attachment, err = s.storeAttachment(ctx, *in.File); err != nil {
			return nil, err
		}
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.messages.Create(ctx, msg); err != nil {
			return err
		}
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = s.now().UTC()
		}
		g.LastMessage = msg.Summary()
		g.UpdatedAt = msg.CreatedAt
		return s.groups.SetLastMessage(ctx, g.ID, g.LastMessage, g.UpdatedAt)
	})
	if err != nil {
		if msg.Attachment != nil {
			if derr := s.blobs.Delete(context.WithoutCancel(ctx), msg.Attachment.StoredName); derr != nil {
				s.logger.Warn().Err(derr).Str("stored_name", msg.Attachment.StoredName).Msg("remove orphaned attachment")
			}
		}
		return nil, apperr.Internal(err, "save message")
	}

	s.emit(ctx, EventReceiveMessage, msg, recipientID, sender.UserID)
	s.emit(ctx, EventChatGroupUpdate, g.Update(), recipientID, sender.UserID)
	return msg, nil
}

func (s *Service) storeAttachment(ctx context.Context, up blobstore.Upload) (*Attachment, error) {
	obj, err := s.blobs.Save(ctx, up)
	switch {
	case err == nil:
	case errors.Is(err, blobstore.ErrFileTooLarge):
		return nil, apperr.Validation("attachment exceeds the size limit")
	case errors.Is(err, blobstore.ErrInvalidContentType):
		return nil, apperr.Validation("attachment must be a JPEG, PNG, PDF, DOC or DOCX file")
	case errors.Is(err, blobstore.ErrMissingFileName):
		return nil, apperr.Validation("attachment file name is required")
	default:
		return nil, apperr.Internal(err, "store attachment")
	}
	return &Attachment{
		URL:        obj.URL,
		Type:       obj.ContentType,
		Name:       obj.FileName,
		Size:       obj.Size,
		StoredName: obj.StoredName,
	}, nil
}

// Send delivers a message, resolving the conversation first when the caller
// has no chat group id yet.
func (s *Service) Send(ctx context.Context, sender auth.Identity, in SendInput) (*Message, error) {
	if in.ChatGroupID == "" && in.RecipientID != "" {
		g, err := s.ResolveGroup(ctx, sender, in.RecipientID)
		if err != nil {
			return nil, err
		}
		in.ChatGroupID = g.ID.String()
	}
	return s.SendMessage(ctx, sender, in)
}

// -- Queries --

func (s *Service) participantGroup(ctx context.Context, userID, groupID uuid.UUID) (*ChatGroup, error) {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("chat group not found")
		}
		return nil, apperr.Internal(err, "get chat group")
	}
	if !g.HasParticipant(userID) {
		return nil, apperr.Forbidden("not a participant of this chat group")
	}
	return g, nil
}

// ListGroups returns the caller's conversations with the other party's
// profile card and the caller's unread count.
func (s *Service) ListGroups(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*GroupView, int, error) {
	groups, total, err := s.groups.ListByParticipant(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(err, "list chat groups")
	}
	views := make([]*GroupView, 0, len(groups))
	for _, g := range groups {
		v := &GroupView{ChatGroup: g}
		if peer, err := s.users.GetUser(ctx, g.Peer(userID)); err == nil {
			sum := peer.Summary()
			v.Peer = &sum
		}
		if v.Unread, err = s.messages.CountUnread(ctx, g.ID, userID); err != nil {
			return nil, 0, apperr.Internal(err, "count unread messages")
		}
		views = append(views, v)
	}
	return views, total, nil
}

func (s *Service) ListMessages(ctx context.Context, userID, groupID uuid.UUID, limit, offset int) ([]*Message, int, error) {
	if _, err := s.participantGroup(ctx, userID, groupID); err != nil {
		return nil, 0, err
	}
	items, total, err := s.messages.ListByGroup(ctx, groupID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(err, "list messages")
	}
	if items == nil {
		items = []*Message{}
	}
	return items, total, nil
}

// MarkRead flags every message addressed to userID in the group as read and
// returns how many changed.
func (s *Service) MarkRead(ctx context.Context, userID, groupID uuid.UUID) (int, error) {
	if _, err := s.participantGroup(ctx, userID, groupID); err != nil {
		return 0, err
	}
	n, err := s.messages.MarkRead(ctx, groupID, userID)
	if err != nil {
		return 0, apperr.Internal(err, "mark messages read")
	}
	return n, nil
}
