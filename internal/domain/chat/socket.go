package chat

import (
	"context"
	"encoding/json"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/apperr"
	"github.com/ashirxD/Hospital-App-sub000/internal/platform/auth"
	"github.com/ashirxD/Hospital-App-sub000/internal/platform/realtime"
)

// EventRegistry is the part of the hub that routes client frames.
type EventRegistry interface {
	On(event string, fn realtime.InboundFunc)
}

type inboundMessage struct {
	RecipientID string `json:"recipientId"`
	ChatGroupID string `json:"chatGroupId"`
	Content     string `json:"content"`
}

// RegisterEvents routes inbound sendMessage frames to Send. Socket messages
// carry text only; attachments go through the REST upload.
func (s *Service) RegisterEvents(hub EventRegistry) {
	hub.On(EventSendMessage, s.handleSendMessage)
}

func (s *Service) handleSendMessage(ctx context.Context, sender auth.Identity, data json.RawMessage) error {
	var in inboundMessage
	if err := json.Unmarshal(data, &in); err != nil {
		return apperr.Validation("invalid sendMessage payload")
	}
	_, err := s.Send(ctx, sender, SendInput{
		RecipientID: in.RecipientID,
		ChatGroupID: in.ChatGroupID,
		Content:     in.Content,
	})
	return err
}
