// Package conversation holds the chat thread entities persisted by the store.
package conversation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/SpeakerKit/internal/domain"
)

// DefaultTitle is assigned to conversations created without an explicit title.
const DefaultTitle = "Speaker Kit Assistant"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Conversation represents a chat thread. RemoteSessionID is the continuity
// token issued by the agent provider; it is empty until the first successful
// initialization and is replaced whenever the provider rotates it.
type Conversation struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	RemoteSessionID string    `json:"remote_session_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Message represents a single turn in a conversation. Messages are immutable
// once created and are deleted only when their conversation is deleted.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"` // "user", "assistant", "system"
	Content        string    `json:"content"`
	Attachment     string    `json:"attachment,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateRequest is the request body for creating a conversation explicitly.
// ID is optional; when empty a new UUID is generated.
type CreateRequest struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
}

// UpdateRequest is the request body for renaming a conversation.
type UpdateRequest struct {
	Title string `json:"title"`
}

// SendMessageRequest is the request body for sending a turn.
type SendMessageRequest struct {
	Content    string `json:"content"`
	Attachment string `json:"attachment,omitempty"`
	Async      bool   `json:"async,omitempty"`
}

// Validate checks that a turn carries something to say.
func (r SendMessageRequest) Validate() error {
	if r.Content == "" && r.Attachment == "" {
		return fmt.Errorf("%w: message content or attachment is required", domain.ErrValidation)
	}
	return nil
}

// ValidateID rejects conversation identifiers that are not UUID-shaped,
// before any store or agent interaction is attempted.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: invalid conversation id %q", domain.ErrValidation, id)
	}
	return nil
}

// NewID generates a conversation or message identifier.
func NewID() string {
	return uuid.NewString()
}
