//go:build integration

// Integration tests against a real PostgreSQL database.
// Requires: docker compose services (postgres) running.
// Run with: go test -tags=integration ./internal/adapter/postgres/...
package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/Strob0t/SpeakerKit/internal/config"
	"github.com/Strob0t/SpeakerKit/internal/domain/conversation"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	cfg := config.Defaults()
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Postgres.DSN = dsn
	}

	pool, err := NewPool(ctx, cfg.Postgres)
	if err != nil {
		t.Fatalf("cannot connect to postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		t.Fatalf("migrations failed: %v", err)
	}

	return NewStore(pool)
}

func TestCreateMessageBumpsConversationTimestamp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id := conversation.NewID()
	created, err := store.CreateConversation(ctx, &conversation.Conversation{
		ID:    id,
		Title: conversation.DefaultTitle,
	})
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}
	t.Cleanup(func() { _ = store.DeleteConversation(ctx, id) })

	msg, err := store.CreateMessage(ctx, &conversation.Message{
		ConversationID: id,
		Role:           conversation.RoleUser,
		Content:        "hello",
	})
	if err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}

	after, err := store.GetConversation(ctx, id)
	if err != nil {
		t.Fatalf("GetConversation() error = %v", err)
	}
	if !after.UpdatedAt.After(created.UpdatedAt) {
		t.Errorf("updated_at not bumped: before=%v after=%v", created.UpdatedAt, after.UpdatedAt)
	}
	if msg.CreatedAt.After(after.UpdatedAt) {
		t.Errorf("message created_at %v is newer than conversation updated_at %v",
			msg.CreatedAt, after.UpdatedAt)
	}
}

func TestCreateMessageUnknownConversationErrors(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateMessage(context.Background(), &conversation.Message{
		ConversationID: conversation.NewID(),
		Role:           conversation.RoleUser,
		Content:        "orphan",
	})
	if err == nil {
		t.Fatal("expected foreign key error for unknown conversation, got nil")
	}
}
