// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/Strob0t/SpeakerKit/internal/domain/conversation"
)

// Store is the port interface for conversation persistence.
type Store interface {
	// Conversations
	ListConversations(ctx context.Context) ([]conversation.Conversation, error)
	GetConversation(ctx context.Context, id string) (*conversation.Conversation, error)
	CreateConversation(ctx context.Context, c *conversation.Conversation) (*conversation.Conversation, error)
	UpdateConversationTitle(ctx context.Context, id, title string) error
	UpdateRemoteSessionID(ctx context.Context, id, sessionID string) error
	DeleteConversation(ctx context.Context, id string) error

	// Messages (ascending creation order; deleted with their conversation)
	CreateMessage(ctx context.Context, m *conversation.Message) (*conversation.Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]conversation.Message, error)
}
