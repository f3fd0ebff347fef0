package http

import (
	"net/http"

	"github.com/Strob0t/SpeakerKit/internal/adapter/ws"
	"github.com/Strob0t/SpeakerKit/internal/domain/conversation"
	"github.com/Strob0t/SpeakerKit/internal/resilience"
	"github.com/Strob0t/SpeakerKit/internal/service"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Conversations *service.ChatService
	Hub           *ws.Hub
	Breaker       *resilience.Breaker
}

// Health handles GET /health. Reports the websocket fanout and the state of
// the circuit breaker guarding agent submissions.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	type healthStatus struct {
		Status        string `json:"status"`
		WSConnections int    `json:"ws_connections"`
		AgentBreaker  string `json:"agent_breaker,omitempty"`
	}

	status := healthStatus{Status: "ok"}
	if h.Hub != nil {
		status.WSConnections = h.Hub.ConnectionCount()
	}
	if h.Breaker != nil {
		status.AgentBreaker = string(h.Breaker.State())
	}
	writeJSON(w, http.StatusOK, status)
}

// ListConversations handles GET /api/v1/conversations
func (h *Handlers) ListConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.Conversations.List(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if conversations == nil {
		conversations = []conversation.Conversation{}
	}
	writeJSON(w, http.StatusOK, conversations)
}

// CreateConversation handles POST /api/v1/conversations
func (h *Handlers) CreateConversation(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[conversation.CreateRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	conv, err := h.Conversations.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "create conversation")
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

// GetConversation handles GET /api/v1/conversations/{id}
func (h *Handlers) GetConversation(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	conv, err := h.Conversations.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// UpdateConversation handles PATCH /api/v1/conversations/{id}
func (h *Handlers) UpdateConversation(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	req, ok := readJSON[conversation.UpdateRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	conv, err := h.Conversations.Rename(r.Context(), id, req)
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// DeleteConversation handles DELETE /api/v1/conversations/{id}
func (h *Handlers) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if err := h.Conversations.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListConversationMessages handles GET /api/v1/conversations/{id}/messages.
// An unknown (but valid) conversation id creates the conversation and opens
// the agent session, so the response already carries the opening message.
func (h *Handlers) ListConversationMessages(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	messages, err := h.Conversations.Messages(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	if messages == nil {
		messages = []conversation.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

// SendConversationMessage handles POST /api/v1/conversations/{id}/messages.
// With async in the body the agent call resolves in the background and the
// result streams via WebSocket; otherwise the handler blocks for the turn.
func (h *Handlers) SendConversationMessage(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	req, ok := readJSON[conversation.SendMessageRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}

	if req.Async {
		userMsg, err := h.Conversations.SendMessageAsync(r.Context(), id, req)
		if err != nil {
			writeDomainError(w, err, "send message")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"status":          "accepted",
			"conversation_id": id,
			"user_message":    userMsg,
		})
		return
	}

	result, err := h.Conversations.SendMessage(r.Context(), id, req)
	if err != nil {
		writeDomainError(w, err, "send message")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"conversation_id":   id,
		"user_message":      result.UserMessage,
		"assistant_message": result.AssistantMessage,
		"degraded":          result.Degraded,
	})
}

// GetConversationStarters handles GET /api/v1/starters.
// Conversations auto-initialize with the interview prompt, so the payload
// just points the client at starting one.
func (h *Handlers) GetConversationStarters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"topic":            "speaker_kit",
		"starters":         "Your Speaker Kit Assistant is ready! Start a new conversation and the assistant will automatically begin with the cover page questions.",
		"available_topics": []string{"speaker_kit"},
	})
}
