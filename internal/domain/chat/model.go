package chat

import (
	"bytes"
	"time"

	"github.com/google/uuid"

	"github.com/ashirxD/Hospital-App-sub000/internal/domain/identity"
)

// Live events.
const (
	EventSendMessage     = "sendMessage"
	EventReceiveMessage  = "receiveMessage"
	EventChatGroupUpdate = "chatGroupUpdate"
)

type Attachment struct {
	URL        string `json:"url" bson:"url"`
	Type       string `json:"type" bson:"type"`
	Name       string `json:"name" bson:"name"`
	Size       int64  `json:"size" bson:"size"`
	StoredName string `json:"-" bson:"storedName"`
}

// LastMessage is the summary of the newest message kept on its group.
type LastMessage struct {
	MessageID  uuid.UUID   `json:"messageId" bson:"messageId"`
	Content    string      `json:"content" bson:"content"`
	SenderID   uuid.UUID   `json:"senderId" bson:"senderId"`
	Timestamp  time.Time   `json:"timestamp" bson:"timestamp"`
	Attachment *Attachment `json:"attachment,omitempty" bson:"attachment,omitempty"`
}

type ChatGroup struct {
	ID           uuid.UUID    `json:"id" bson:"_id"`
	Participants []uuid.UUID  `json:"participants" bson:"participants"`
	PairKey      string       `json:"-" bson:"pairKey"`
	LastMessage  *LastMessage `json:"lastMessage" bson:"lastMessage"`
	CreatedAt    time.Time    `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt" bson:"updatedAt"`
}

func (g *ChatGroup) HasParticipant(id uuid.UUID) bool {
	for _, p := range g.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// Peer returns the participant that is not self.
func (g *ChatGroup) Peer(self uuid.UUID) uuid.UUID {
	for _, p := range g.Participants {
		if p != self {
			return p
		}
	}
	return uuid.Nil
}

type Message struct {
	ID          uuid.UUID   `json:"id" bson:"_id"`
	ChatGroupID uuid.UUID   `json:"chatGroupId" bson:"chatGroupId"`
	SenderID    uuid.UUID   `json:"senderId" bson:"senderId"`
	RecipientID uuid.UUID   `json:"recipientId" bson:"recipientId"`
	Content     string      `json:"content" bson:"content"`
	Attachment  *Attachment `json:"attachment,omitempty" bson:"attachment,omitempty"`
	Read        bool        `json:"read" bson:"read"`
	CreatedAt   time.Time   `json:"createdAt" bson:"createdAt"`
}

func (m *Message) Summary() *LastMessage {
	return &LastMessage{
		MessageID:  m.ID,
		Content:    m.Content,
		SenderID:   m.SenderID,
		Timestamp:  m.CreatedAt,
		Attachment: m.Attachment,
	}
}

// PairKey orders two user ids and returns them with the canonical key that
// identifies their conversation. (a, b) and (b, a) give the same key.
func PairKey(a, b uuid.UUID) (string, [2]uuid.UUID) {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return a.String() + ":" + b.String(), [2]uuid.UUID{a, b}
}

// GroupUpdate is the body of chatGroupUpdate.
type GroupUpdate struct {
	ChatGroupID  uuid.UUID    `json:"chatGroupId"`
	Participants []uuid.UUID  `json:"participants"`
	LastMessage  *LastMessage `json:"lastMessage"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

func (g *ChatGroup) Update() GroupUpdate {
	return GroupUpdate{
		ChatGroupID:  g.ID,
		Participants: g.Participants,
		LastMessage:  g.LastMessage,
		UpdatedAt:    g.UpdatedAt,
	}
}

// GroupView is a group as listed for one participant.
type GroupView struct {
	*ChatGroup
	Peer   *identity.Summary `json:"peer,omitempty"`
	Unread int               `json:"unread"`
}
