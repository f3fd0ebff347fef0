package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Strob0t/SpeakerKit/internal/domain/conversation"
)

// Event type constants for WebSocket messages.
const (
	EventTurnAccepted  = "turn.accepted"
	EventTurnCompleted = "turn.completed"
	EventTurnFailed    = "turn.failed"
)

// TurnAcceptedEvent is broadcast when an async turn is dispatched.
type TurnAcceptedEvent struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

// TurnCompletedEvent is broadcast when an async turn resolves. Degraded marks
// turns answered with the fallback message after an agent failure.
type TurnCompletedEvent struct {
	ConversationID   string                `json:"conversation_id"`
	AssistantMessage *conversation.Message `json:"assistant_message"`
	Degraded         bool                  `json:"degraded,omitempty"`
}

// TurnFailedEvent is broadcast when an async turn could not be persisted at all.
type TurnFailedEvent struct {
	ConversationID string `json:"conversation_id"`
	Error          string `json:"error"`
}

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
