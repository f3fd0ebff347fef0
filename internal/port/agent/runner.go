// Package agent defines the port for the hosted agent provider that executes
// conversational turns asynchronously.
package agent

import "context"

// Reply is the normalized outcome of a successful agent run.
type Reply struct {
	// Text is the extracted, whitespace-trimmed reply.
	Text string
	// SessionID is the continuity token in effect after the run. It always
	// reflects the provider's bookkeeping: callers must persist it if it
	// differs from the token they passed in.
	SessionID string
	// RequestID is the provider-side job identifier, kept for diagnostics.
	RequestID string
}

// Runner submits turns to the agent provider and resolves them to normalized
// text or a classified failure. Both operations block for the duration of the
// submit-and-poll protocol (up to the configured poll ceiling).
type Runner interface {
	// Initialize submits the fixed system instructions as the first turn with
	// no continuity token and returns the opening reply plus a fresh token.
	Initialize(ctx context.Context, instructions string) (*Reply, error)

	// Continue submits a user message under an existing continuity token.
	// Fails with ErrMissingSession before any HTTP call when sessionID is empty.
	Continue(ctx context.Context, sessionID, message string) (*Reply, error)
}
