// Package service implements the chat session lifecycle policy on top of the
// store and agent ports.
package service

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	otelad "github.com/Strob0t/SpeakerKit/internal/adapter/otel"
	"github.com/Strob0t/SpeakerKit/internal/adapter/ws"
	"github.com/Strob0t/SpeakerKit/internal/domain"
	"github.com/Strob0t/SpeakerKit/internal/domain/conversation"
	agentport "github.com/Strob0t/SpeakerKit/internal/port/agent"
	"github.com/Strob0t/SpeakerKit/internal/port/broadcast"
	"github.com/Strob0t/SpeakerKit/internal/port/cache"
	"github.com/Strob0t/SpeakerKit/internal/port/database"
)

//go:embed templates/system_prompt.txt
var systemPrompt string

// fallbackGreeting is persisted as the first assistant message when the agent
// cannot be initialized; the conversation proceeds without a live session.
const fallbackGreeting = "Hi there! I'm here to help you build your speaker kit. " +
	"Let's start with the cover page — this will make a bold first impression, " +
	"so we want it to reflect your brand at its best. Ready? Let's go."

// fallbackReply is persisted as the assistant turn when the agent fails
// mid-conversation. The turn still succeeds from the caller's point of view.
const fallbackReply = "Something went wrong. Please try again."

// TurnResult is the outcome of one user turn. Degraded marks turns answered
// with the fallback message because the agent call failed.
type TurnResult struct {
	UserMessage      *conversation.Message `json:"user_message"`
	AssistantMessage *conversation.Message `json:"assistant_message"`
	Degraded         bool                  `json:"degraded"`
}

// ChatService manages conversations and proxies turns to the agent provider.
// Turns within one conversation must be serialized by the caller; the service
// only deduplicates concurrent initializations of the same conversation.
type ChatService struct {
	db       database.Store
	agent    agentport.Runner
	hub      broadcast.Broadcaster
	cache    cache.Cache
	cacheTTL time.Duration
	metrics  *otelad.Metrics

	initGroup singleflight.Group
}

// NewChatService creates a ChatService. hub, cache, and metrics are optional.
func NewChatService(db database.Store, runner agentport.Runner, hub broadcast.Broadcaster, c cache.Cache, cacheTTL time.Duration, metrics *otelad.Metrics) *ChatService {
	return &ChatService{
		db:       db,
		agent:    runner,
		hub:      hub,
		cache:    c,
		cacheTTL: cacheTTL,
		metrics:  metrics,
	}
}

// List returns all conversations, most recently updated first.
func (s *ChatService) List(ctx context.Context) ([]conversation.Conversation, error) {
	return s.db.ListConversations(ctx)
}

// Create creates a conversation explicitly and initializes its remote session
// so the scripted greeting is already there on the first read.
func (s *ChatService) Create(ctx context.Context, req conversation.CreateRequest) (*conversation.Conversation, error) {
	id := req.ID
	if id == "" {
		id = conversation.NewID()
	} else if err := conversation.ValidateID(id); err != nil {
		return nil, err
	}
	title := req.Title
	if title == "" {
		title = conversation.DefaultTitle
	}
	return s.ensureConversation(ctx, id, title)
}

// Get returns a conversation by id, serving repeated reads from the cache.
func (s *ChatService) Get(ctx context.Context, id string) (*conversation.Conversation, error) {
	if err := conversation.ValidateID(id); err != nil {
		return nil, err
	}
	if s.cache != nil {
		if data, ok, _ := s.cache.Get(ctx, cacheKey(id)); ok {
			var c conversation.Conversation
			if err := json.Unmarshal(data, &c); err == nil {
				return &c, nil
			}
		}
	}
	c, err := s.db.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cachePut(ctx, c)
	return c, nil
}

// Rename updates a conversation title.
func (s *ChatService) Rename(ctx context.Context, id string, req conversation.UpdateRequest) (*conversation.Conversation, error) {
	if err := conversation.ValidateID(id); err != nil {
		return nil, err
	}
	if req.Title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if err := s.db.UpdateConversationTitle(ctx, id, req.Title); err != nil {
		return nil, err
	}
	s.cacheDrop(ctx, id)
	return s.db.GetConversation(ctx, id)
}

// Delete removes a conversation and, via cascade, its messages.
func (s *ChatService) Delete(ctx context.Context, id string) error {
	if err := conversation.ValidateID(id); err != nil {
		return err
	}
	if err := s.db.DeleteConversation(ctx, id); err != nil {
		return err
	}
	s.cacheDrop(ctx, id)
	return nil
}

// Messages returns the ordered turns of a conversation, lazily creating and
// initializing it when the id is new.
func (s *ChatService) Messages(ctx context.Context, id string) ([]conversation.Message, error) {
	if err := conversation.ValidateID(id); err != nil {
		return nil, err
	}
	if _, err := s.ensureConversation(ctx, id, conversation.DefaultTitle); err != nil {
		return nil, err
	}
	return s.db.ListMessages(ctx, id)
}

// SendMessage persists the user turn, runs the agent, and persists the reply.
// Agent failures degrade to the fallback message rather than erroring the turn.
func (s *ChatService) SendMessage(ctx context.Context, id string, req conversation.SendMessageRequest) (*TurnResult, error) {
	if err := conversation.ValidateID(id); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	conv, err := s.ensureConversation(ctx, id, conversation.DefaultTitle)
	if err != nil {
		return nil, err
	}

	userMsg, err := s.db.CreateMessage(ctx, &conversation.Message{
		ConversationID: id,
		Role:           conversation.RoleUser,
		Content:        req.Content,
		Attachment:     req.Attachment,
	})
	if err != nil {
		return nil, fmt.Errorf("store user message: %w", err)
	}
	s.cacheDrop(ctx, id)

	assistantMsg, degraded, err := s.answerTurn(ctx, conv, queryText(req))
	if err != nil {
		return nil, err
	}

	return &TurnResult{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		Degraded:         degraded,
	}, nil
}

// SendMessageAsync persists the user turn and resolves the agent call in the
// background; the outcome is broadcast through the hub. The detached context
// deliberately outlives the request: a caller who gives up does not stop the
// poll loop.
func (s *ChatService) SendMessageAsync(ctx context.Context, id string, req conversation.SendMessageRequest) (*conversation.Message, error) {
	if err := conversation.ValidateID(id); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	conv, err := s.ensureConversation(ctx, id, conversation.DefaultTitle)
	if err != nil {
		return nil, err
	}

	userMsg, err := s.db.CreateMessage(ctx, &conversation.Message{
		ConversationID: id,
		Role:           conversation.RoleUser,
		Content:        req.Content,
		Attachment:     req.Attachment,
	})
	if err != nil {
		return nil, fmt.Errorf("store user message: %w", err)
	}
	s.cacheDrop(ctx, id)

	s.broadcast(ctx, ws.EventTurnAccepted, ws.TurnAcceptedEvent{
		ConversationID: id,
		MessageID:      userMsg.ID,
	})

	bg := context.WithoutCancel(ctx)
	go func() {
		assistantMsg, degraded, err := s.answerTurn(bg, conv, queryText(req))
		if err != nil {
			s.broadcast(bg, ws.EventTurnFailed, ws.TurnFailedEvent{
				ConversationID: id,
				Error:          err.Error(),
			})
			return
		}
		s.broadcast(bg, ws.EventTurnCompleted, ws.TurnCompletedEvent{
			ConversationID:   id,
			AssistantMessage: assistantMsg,
			Degraded:         degraded,
		})
	}()

	return userMsg, nil
}

// answerTurn runs the session lifecycle policy for one user turn: continue
// under the stored token, re-initialize once when the token is missing or the
// provider rejects it, and fall back to the canned reply on terminal failure.
func (s *ChatService) answerTurn(ctx context.Context, conv *conversation.Conversation, query string) (*conversation.Message, bool, error) {
	start := time.Now()
	if s.metrics != nil {
		s.metrics.TurnsStarted.Add(ctx, 1)
	}

	token := conv.RemoteSessionID
	var reply *agentport.Reply
	var err error

	if token == "" {
		token, err = s.reinitialize(ctx, conv.ID)
	}
	if err == nil {
		reply, err = s.agent.Continue(ctx, token, query)
	}
	if err != nil && staleSession(err) {
		// One recovery attempt: open a fresh session, then answer the
		// pending turn under it. The replayed greeting is suppressed.
		slog.Warn("agent session rejected, re-initializing",
			"conversation_id", conv.ID, "error", err)
		if token, err = s.reinitialize(ctx, conv.ID); err == nil {
			reply, err = s.agent.Continue(ctx, token, query)
		}
	}

	if err != nil {
		slog.Error("agent turn failed", "conversation_id", conv.ID, "error", err)
		if s.metrics != nil {
			s.metrics.TurnsDegraded.Add(ctx, 1)
		}
		msg, serr := s.db.CreateMessage(ctx, &conversation.Message{
			ConversationID: conv.ID,
			Role:           conversation.RoleAssistant,
			Content:        fallbackReply,
		})
		if serr != nil {
			return nil, false, fmt.Errorf("store fallback message: %w", serr)
		}
		s.cacheDrop(ctx, conv.ID)
		return msg, true, nil
	}

	// The provider may rotate the token transparently; the returned value
	// always wins and must be persisted before the next turn is accepted.
	if reply.SessionID != "" && reply.SessionID != token {
		if uerr := s.db.UpdateRemoteSessionID(ctx, conv.ID, reply.SessionID); uerr != nil {
			slog.Error("persist rotated session id", "conversation_id", conv.ID, "error", uerr)
		}
		s.cacheDrop(ctx, conv.ID)
	}

	msg, err := s.db.CreateMessage(ctx, &conversation.Message{
		ConversationID: conv.ID,
		Role:           conversation.RoleAssistant,
		Content:        reply.Text,
	})
	if err != nil {
		return nil, false, fmt.Errorf("store assistant message: %w", err)
	}
	s.cacheDrop(ctx, conv.ID)

	if s.metrics != nil {
		s.metrics.TurnsCompleted.Add(ctx, 1)
		s.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds())
	}
	return msg, false, nil
}

// reinitialize opens a fresh remote session mid-conversation and persists the
// token. The greeting reply is dropped, not persisted: replaying it between
// turns would be visible to the end user.
func (s *ChatService) reinitialize(ctx context.Context, id string) (string, error) {
	reply, err := s.agent.Initialize(ctx, systemPrompt)
	if err != nil {
		return "", err
	}
	if s.metrics != nil {
		s.metrics.SessionsOpened.Add(ctx, 1)
	}
	if err := s.db.UpdateRemoteSessionID(ctx, id, reply.SessionID); err != nil {
		return "", fmt.Errorf("persist session id: %w", err)
	}
	s.cacheDrop(ctx, id)
	return reply.SessionID, nil
}

// ensureConversation returns the conversation, creating and initializing it
// when the id is unknown. Concurrent calls for the same id share one
// initialization via singleflight.
func (s *ChatService) ensureConversation(ctx context.Context, id, title string) (*conversation.Conversation, error) {
	conv, err := s.db.GetConversation(ctx, id)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	v, err, _ := s.initGroup.Do(id, func() (any, error) {
		// Re-check inside the flight: the loser of a race sees the row.
		if conv, err := s.db.GetConversation(ctx, id); err == nil {
			return conv, nil
		}
		return s.createAndInitialize(ctx, id, title)
	})
	if err != nil {
		return nil, err
	}
	return v.(*conversation.Conversation), nil
}

// createAndInitialize creates the row, opens the remote session, and persists
// the opening assistant message. Agent failure here is not fatal: the
// conversation starts degraded with the scripted greeting and no token.
func (s *ChatService) createAndInitialize(ctx context.Context, id, title string) (*conversation.Conversation, error) {
	conv, err := s.db.CreateConversation(ctx, &conversation.Conversation{ID: id, Title: title})
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	opening := fallbackGreeting
	reply, err := s.agent.Initialize(ctx, systemPrompt)
	if err != nil {
		slog.Error("agent initialization failed, starting degraded",
			"conversation_id", id, "error", err)
	} else {
		opening = reply.Text
		if s.metrics != nil {
			s.metrics.SessionsOpened.Add(ctx, 1)
		}
		if reply.SessionID != "" {
			if uerr := s.db.UpdateRemoteSessionID(ctx, id, reply.SessionID); uerr != nil {
				slog.Error("persist initial session id", "conversation_id", id, "error", uerr)
			} else {
				conv.RemoteSessionID = reply.SessionID
			}
		}
	}

	if _, merr := s.db.CreateMessage(ctx, &conversation.Message{
		ConversationID: id,
		Role:           conversation.RoleAssistant,
		Content:        opening,
	}); merr != nil {
		return nil, fmt.Errorf("store opening message: %w", merr)
	}

	s.cacheDrop(ctx, id)
	return conv, nil
}

// staleSession reports whether an agent failure indicates the stored token is
// no longer honored server-side: a missing token or a 4xx rejection of the
// submission. Timeouts and transport failures are not recoverable by
// re-initializing and do not trigger the recovery path.
func staleSession(err error) bool {
	if errors.Is(err, agentport.ErrMissingSession) {
		return true
	}
	var se *agentport.SubmitError
	if errors.As(err, &se) {
		return se.StatusCode >= 400 && se.StatusCode < 500
	}
	return false
}

func queryText(req conversation.SendMessageRequest) string {
	if req.Attachment != "" {
		return req.Content + " [I've uploaded an image]"
	}
	return req.Content
}

func (s *ChatService) broadcast(ctx context.Context, eventType string, payload any) {
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, eventType, payload)
	}
}

func cacheKey(id string) string { return "conversation:" + id }

func (s *ChatService) cachePut(ctx context.Context, c *conversation.Conversation) {
	if s.cache == nil {
		return
	}
	if data, err := json.Marshal(c); err == nil {
		_ = s.cache.Set(ctx, cacheKey(c.ID), data, s.cacheTTL)
	}
}

func (s *ChatService) cacheDrop(ctx context.Context, id string) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, cacheKey(id))
	}
}
