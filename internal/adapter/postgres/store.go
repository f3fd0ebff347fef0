package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/SpeakerKit/internal/domain"
	"github.com/Strob0t/SpeakerKit/internal/domain/conversation"
	"github.com/Strob0t/SpeakerKit/internal/port/database"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// Compile-time check against the port.
var _ database.Store = (*Store)(nil)

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Conversations ---

func (s *Store) ListConversations(ctx context.Context) ([]conversation.Conversation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, COALESCE(remote_session_id, ''), created_at, updated_at
		 FROM conversations ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var result []conversation.Conversation
	for rows.Next() {
		var c conversation.Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.RemoteSessionID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (s *Store) GetConversation(ctx context.Context, id string) (*conversation.Conversation, error) {
	var c conversation.Conversation
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, COALESCE(remote_session_id, ''), created_at, updated_at
		 FROM conversations WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Title, &c.RemoteSessionID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get conversation %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	return &c, nil
}

func (s *Store) CreateConversation(ctx context.Context, c *conversation.Conversation) (*conversation.Conversation, error) {
	var created conversation.Conversation
	err := s.pool.QueryRow(ctx,
		`INSERT INTO conversations (id, title)
		 VALUES ($1, $2)
		 RETURNING id, title, COALESCE(remote_session_id, ''), created_at, updated_at`,
		c.ID, c.Title,
	).Scan(&created.ID, &created.Title, &created.RemoteSessionID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return &created, nil
}

func (s *Store) UpdateConversationTitle(ctx context.Context, id, title string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET title = $2, updated_at = now() WHERE id = $1`, id, title)
	if err != nil {
		return fmt.Errorf("update conversation title %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update conversation title %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// UpdateRemoteSessionID persists the continuity token with last-writer-wins
// semantics; an empty token clears the column.
func (s *Store) UpdateRemoteSessionID(ctx context.Context, id, sessionID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET remote_session_id = NULLIF($2, ''), updated_at = now() WHERE id = $1`,
		id, sessionID)
	if err != nil {
		return fmt.Errorf("update remote session id %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update remote session id %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteConversation removes the conversation; messages cascade via FK.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete conversation %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// --- Messages ---

// CreateMessage inserts a turn and bumps the conversation's updated_at in the
// same statement; the conversation list ordering depends on that column, so
// the bump must not be lost when the insert lands.
func (s *Store) CreateMessage(ctx context.Context, m *conversation.Message) (*conversation.Message, error) {
	var created conversation.Message
	err := s.pool.QueryRow(ctx,
		`WITH inserted AS (
		     INSERT INTO messages (conversation_id, role, content, attachment)
		     VALUES ($1, $2, $3, NULLIF($4, ''))
		     RETURNING id, conversation_id, role, content, COALESCE(attachment, '') AS attachment, created_at
		 ), bumped AS (
		     UPDATE conversations SET updated_at = now() WHERE id = $1
		 )
		 SELECT id, conversation_id, role, content, attachment, created_at FROM inserted`,
		m.ConversationID, m.Role, m.Content, m.Attachment,
	).Scan(&created.ID, &created.ConversationID, &created.Role, &created.Content,
		&created.Attachment, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return &created, nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]conversation.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, role, content, COALESCE(attachment, ''), created_at
		 FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var result []conversation.Message
	for rows.Next() {
		var m conversation.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content,
			&m.Attachment, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}
