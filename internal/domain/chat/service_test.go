package chat

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashirxD/Hospital-App-sub000/internal/domain/identity"
	"github.com/ashirxD/Hospital-App-sub000/internal/platform/apperr"
	"github.com/ashirxD/Hospital-App-sub000/internal/platform/auth"
	"github.com/ashirxD/Hospital-App-sub000/internal/platform/blobstore"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type fixture struct {
	svc      *Service
	groups   *memGroups
	messages *memMessages
	blobs    *blobstore.InMemoryStore
	emitter  *recordingEmitter
	doctor   auth.Identity
	patient  auth.Identity
	stranger auth.Identity
}

func newFixture() *fixture {
	users := memUsers{}
	mk := func(role, name string) auth.Identity {
		u := &identity.User{ID: uuid.New(), Role: role, Name: name}
		users[u.ID] = u
		return auth.Identity{UserID: u.ID, Role: role}
	}
	f := &fixture{
		groups:   newMemGroups(),
		messages: &memMessages{},
		blobs:    blobstore.NewInMemoryStore("/uploads", 1024),
		emitter:  &recordingEmitter{},
		doctor:   mk(auth.RoleDoctor, "Dr. D"),
		patient:  mk(auth.RolePatient, "P"),
		stranger: mk(auth.RolePatient, "S"),
	}
	f.svc = NewService(f.groups, f.messages, users, f.blobs, f.emitter, passthroughTx{}, zerolog.Nop())
	return f
}

func (f *fixture) group(t *testing.T) *ChatGroup {
	t.Helper()
	g, err := f.svc.ResolveGroup(context.Background(), f.doctor, f.patient.UserID.String())
	require.NoError(t, err)
	f.emitter.reset()
	return g
}

func sortedRooms(ids ...uuid.UUID) []string {
	var out []string
	for _, id := range ids {
		out = append(out, id.String())
	}
	sort.Strings(out)
	return out
}

func TestPairKey_OrderIndependent(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	k1, p1 := PairKey(a, b)
	k2, p2 := PairKey(b, a)
	assert.Equal(t, k1, k2)
	assert.Equal(t, p1, p2)
	assert.True(t, bytes.Compare(p1[0][:], p1[1][:]) < 0)
}

// -- Group resolution --

func TestResolveGroup_CreatesOnceEitherOrder(t *testing.T) {
	f := newFixture()

	g1, err := f.svc.ResolveGroup(context.Background(), f.doctor, f.patient.UserID.String())
	require.NoError(t, err)
	assert.Nil(t, g1.LastMessage)
	_, pair := PairKey(f.doctor.UserID, f.patient.UserID)
	assert.Equal(t, []uuid.UUID{pair[0], pair[1]}, g1.Participants)
	assert.Equal(t, sortedRooms(f.doctor.UserID, f.patient.UserID), f.emitter.rooms(EventChatGroupUpdate))

	f.emitter.reset()
	g2, err := f.svc.ResolveGroup(context.Background(), f.patient, f.doctor.UserID.String())
	require.NoError(t, err)
	assert.Equal(t, g1.ID, g2.ID)
	assert.Empty(t, f.emitter.Events(), "existing groups are returned unchanged")
	assert.Equal(t, 1, f.groups.count())
}

func TestResolveGroup_ConcurrentFirstContact(t *testing.T) {
	f := newFixture()
	var wg sync.WaitGroup
	ids := make([]uuid.UUID, 10)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender, recipient := f.doctor, f.patient.UserID
			if i%2 == 1 {
				sender, recipient = f.patient, f.doctor.UserID
			}
			g, err := f.svc.ResolveGroup(context.Background(), sender, recipient.String())
			if assert.NoError(t, err) {
				ids[i] = g.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, f.groups.count())
	assert.Len(t, f.emitter.rooms(EventChatGroupUpdate), 2, "only the creating call announces the group")
}

func TestResolveGroup_Errors(t *testing.T) {
	f := newFixture()

	_, err := f.svc.ResolveGroup(context.Background(), auth.Identity{}, f.patient.UserID.String())
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = f.svc.ResolveGroup(context.Background(), f.doctor, "not-an-id")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, "invalid id", apperr.Message(err))

	_, err = f.svc.ResolveGroup(context.Background(), f.doctor, uuid.NewString())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, "recipient not found", apperr.Message(err))

	_, err = f.svc.ResolveGroup(context.Background(), f.doctor, f.doctor.UserID.String())
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

// -- Messages --

func TestSendMessage_PersistsAndFansOut(t *testing.T) {
	f := newFixture()
	g := f.group(t)

	msg, err := f.svc.SendMessage(context.Background(), f.patient, SendInput{
		RecipientID: f.doctor.UserID.String(),
		ChatGroupID: g.ID.String(),
		Content:     "  hello doctor ",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello doctor", msg.Content)
	assert.False(t, msg.Read)

	stored, _ := f.groups.GetByID(context.Background(), g.ID)
	require.NotNil(t, stored.LastMessage)
	assert.Equal(t, msg.ID, stored.LastMessage.MessageID)
	assert.Equal(t, "hello doctor", stored.LastMessage.Content)
	assert.Equal(t, f.patient.UserID, stored.LastMessage.SenderID)

	both := sortedRooms(f.doctor.UserID, f.patient.UserID)
	assert.Equal(t, both, f.emitter.rooms(EventReceiveMessage))
	assert.Equal(t, both, f.emitter.rooms(EventChatGroupUpdate))
}

func TestSendMessage_LastMessageTracksNewest(t *testing.T) {
	f := newFixture()
	g := f.group(t)
	var last *Message
	for _, text := range []string{"one", "two", "three"} {
		m, err := f.svc.SendMessage(context.Background(), f.doctor, SendInput{
			RecipientID: f.patient.UserID.String(), ChatGroupID: g.ID.String(), Content: text,
		})
		require.NoError(t, err)
		last = m
	}
	stored, _ := f.groups.GetByID(context.Background(), g.ID)
	assert.Equal(t, last.ID, stored.LastMessage.MessageID)
	assert.Equal(t, "three", stored.LastMessage.Content)
}

func TestSendMessage_ValidationOrder(t *testing.T) {
	f := newFixture()
	g := f.group(t)
	doctorID := f.doctor.UserID.String()
	groupID := g.ID.String()

	tests := []struct {
		name   string
		sender auth.Identity
		in     SendInput
		kind   apperr.Kind
		msg    string
	}{
		{"no sender", auth.Identity{}, SendInput{RecipientID: "bad", ChatGroupID: "bad"}, apperr.KindUnauthorized, "unauthorized"},
		{"bad recipient", f.patient, SendInput{RecipientID: "bad", ChatGroupID: "bad"}, apperr.KindValidation, "invalid recipient id"},
		{"bad group", f.patient, SendInput{RecipientID: uuid.NewString(), ChatGroupID: "bad"}, apperr.KindValidation, "invalid chat group id"},
		{"unknown recipient", f.patient, SendInput{RecipientID: uuid.NewString(), ChatGroupID: groupID}, apperr.KindNotFound, "recipient not found"},
		{"unknown sender", auth.Identity{UserID: uuid.New(), Role: auth.RolePatient}, SendInput{RecipientID: doctorID, ChatGroupID: groupID}, apperr.KindNotFound, "sender not found"},
		{"empty", f.patient, SendInput{RecipientID: doctorID, ChatGroupID: uuid.NewString(), Content: "   "}, apperr.KindValidation, "message content or attachment is required"},
		{"unknown group", f.patient, SendInput{RecipientID: doctorID, ChatGroupID: uuid.NewString(), Content: "x"}, apperr.KindNotFound, "chat group not found"},
		{"not a participant", f.stranger, SendInput{RecipientID: doctorID, ChatGroupID: groupID, Content: "x"}, apperr.KindForbidden, "not a participant of this chat group"},
		{"recipient outside group", f.patient, SendInput{RecipientID: f.stranger.UserID.String(), ChatGroupID: groupID, Content: "x"}, apperr.KindValidation, "recipient is not the other participant of this chat group"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SendMessage(context.Background(), tt.sender, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			assert.Equal(t, tt.msg, apperr.Message(err))
		})
	}
	assert.Empty(t, f.emitter.Events())
}

func TestSendMessage_AttachmentOnly(t *testing.T) {
	f := newFixture()
	g := f.group(t)

	msg, err := f.svc.SendMessage(context.Background(), f.doctor, SendInput{
		RecipientID: f.patient.UserID.String(),
		ChatGroupID: g.ID.String(),
		File:        &blobstore.Upload{FileName: "scan.png", ContentType: "image/png", Content: bytes.NewReader(pngHeader)},
	})
	require.NoError(t, err)
	require.NotNil(t, msg.Attachment)
	assert.Equal(t, "image/png", msg.Attachment.Type)
	assert.Equal(t, "scan.png", msg.Attachment.Name)
	assert.Contains(t, msg.Attachment.URL, "/uploads/")
	assert.Equal(t, 1, f.blobs.Len())
}

func TestSendMessage_RejectsDisallowedAttachment(t *testing.T) {
	f := newFixture()
	g := f.group(t)

	_, err := f.svc.SendMessage(context.Background(), f.doctor, SendInput{
		RecipientID: f.patient.UserID.String(),
		ChatGroupID: g.ID.String(),
		File:        &blobstore.Upload{FileName: "run.exe", Content: bytes.NewReader([]byte("MZ"))},
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.SendMessage(context.Background(), f.doctor, SendInput{
		RecipientID: f.patient.UserID.String(),
		ChatGroupID: g.ID.String(),
		File:        &blobstore.Upload{FileName: "big.png", Content: bytes.NewReader(append(pngHeader, make([]byte, 2048)...))},
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Zero(t, f.blobs.Len())
}

func TestSendMessage_FailedWriteRemovesAttachment(t *testing.T) {
	f := newFixture()
	g := f.group(t)
	f.messages.failWrite = errDiskFull

	_, err := f.svc.SendMessage(context.Background(), f.doctor, SendInput{
		RecipientID: f.patient.UserID.String(),
		ChatGroupID: g.ID.String(),
		Content:     "see attached",
		File:        &blobstore.Upload{FileName: "scan.png", Content: bytes.NewReader(pngHeader)},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Zero(t, f.blobs.Len(), "orphaned attachment must be removed")
	assert.Empty(t, f.emitter.Events())
}

func TestSend_ResolvesGroupOnFirstMessage(t *testing.T) {
	f := newFixture()

	msg, err := f.svc.Send(context.Background(), f.doctor, SendInput{
		RecipientID: f.patient.UserID.String(),
		Content:     "welcome",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.groups.count())

	g, _ := f.groups.GetByID(context.Background(), msg.ChatGroupID)
	_, pair := PairKey(f.doctor.UserID, f.patient.UserID)
	assert.Equal(t, []uuid.UUID{pair[0], pair[1]}, g.Participants)

	// chatGroupUpdate on creation, then again with the message.
	assert.Len(t, f.emitter.rooms(EventChatGroupUpdate), 4)
	assert.Len(t, f.emitter.rooms(EventReceiveMessage), 2)
}

func TestSendMessage_EmitFailureStillStores(t *testing.T) {
	f := newFixture()
	g := f.group(t)
	f.emitter.err = errDiskFull

	_, err := f.svc.SendMessage(context.Background(), f.doctor, SendInput{
		RecipientID: f.patient.UserID.String(), ChatGroupID: g.ID.String(), Content: "offline",
	})
	require.NoError(t, err)
	items, total, err := f.svc.ListMessages(context.Background(), f.patient.UserID, g.ID, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "offline", items[0].Content)
}

// -- Queries --

func TestListGroups_PeerAndUnread(t *testing.T) {
	f := newFixture()
	g := f.group(t)
	for i := 0; i < 2; i++ {
		_, err := f.svc.SendMessage(context.Background(), f.doctor, SendInput{
			RecipientID: f.patient.UserID.String(), ChatGroupID: g.ID.String(), Content: "hi",
		})
		require.NoError(t, err)
	}

	views, total, err := f.svc.ListGroups(context.Background(), f.patient.UserID, 20, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.NotNil(t, views[0].Peer)
	assert.Equal(t, f.doctor.UserID, views[0].Peer.ID)
	assert.Equal(t, 2, views[0].Unread)

	views, _, _ = f.svc.ListGroups(context.Background(), f.doctor.UserID, 20, 0)
	assert.Zero(t, views[0].Unread)
}

func TestListMessages_ParticipantOnly(t *testing.T) {
	f := newFixture()
	g := f.group(t)

	_, _, err := f.svc.ListMessages(context.Background(), f.stranger.UserID, g.ID, 20, 0)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	items, total, err := f.svc.ListMessages(context.Background(), f.patient.UserID, g.ID, 20, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, items)
}

func TestMarkRead_Idempotent(t *testing.T) {
	f := newFixture()
	g := f.group(t)
	_, err := f.svc.SendMessage(context.Background(), f.doctor, SendInput{
		RecipientID: f.patient.UserID.String(), ChatGroupID: g.ID.String(), Content: "hi",
	})
	require.NoError(t, err)

	n, err := f.svc.MarkRead(context.Background(), f.patient.UserID, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.svc.MarkRead(context.Background(), f.patient.UserID, g.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.svc.MarkRead(context.Background(), f.stranger.UserID, g.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}
