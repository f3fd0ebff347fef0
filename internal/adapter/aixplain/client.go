// Package aixplain implements the agent port against the aiXplain hosted
// agent HTTP API. The provider executes turns out-of-band: a run is submitted,
// a request id comes back, and the result is polled until completion.
package aixplain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Strob0t/SpeakerKit/internal/port/agent"
	"github.com/Strob0t/SpeakerKit/internal/resilience"
)

// Poll bounds: 24 attempts at 5-second spacing gives a ~120s wall-clock
// ceiling per turn, matching the provider's own job expiry.
const (
	DefaultPollInterval    = 5 * time.Second
	DefaultPollMaxAttempts = 24
)

// Config holds the provider endpoint and polling parameters.
type Config struct {
	BaseURL         string
	APIKey          string
	AgentID         string
	HTTPTimeout     time.Duration
	PollInterval    time.Duration
	PollMaxAttempts int
}

// Client talks to the aiXplain agent run/result API.
type Client struct {
	http            *resty.Client
	agentID         string
	pollInterval    time.Duration
	pollMaxAttempts int
	breaker         *resilience.Breaker
}

// Compile-time check that Client satisfies the agent port.
var _ agent.Runner = (*Client)(nil)

// NewClient creates an agent client for the given provider config.
func NewClient(cfg Config) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.PollMaxAttempts <= 0 {
		cfg.PollMaxAttempts = DefaultPollMaxAttempts
	}

	hc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json")
	if cfg.HTTPTimeout > 0 {
		hc.SetTimeout(cfg.HTTPTimeout)
	}
	if cfg.APIKey != "" {
		hc.SetHeader("x-api-key", cfg.APIKey)
	}

	return &Client{
		http:            hc,
		agentID:         cfg.AgentID,
		pollInterval:    cfg.PollInterval,
		pollMaxAttempts: cfg.PollMaxAttempts,
	}
}

// SetBreaker attaches a circuit breaker to run submissions.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// Initialize submits the fixed system instructions as the first turn with no
// continuity token and returns the opening reply plus a fresh token.
func (c *Client) Initialize(ctx context.Context, instructions string) (*agent.Reply, error) {
	return c.run(ctx, instructions, "")
}

// Continue submits a user message under an existing continuity token.
func (c *Client) Continue(ctx context.Context, sessionID, message string) (*agent.Reply, error) {
	if sessionID == "" {
		return nil, agent.ErrMissingSession
	}
	return c.run(ctx, message, sessionID)
}

// submission is the decoded submit response.
type submission struct {
	RequestID string `json:"requestId"`
	SessionID string `json:"sessionId"`
}

// run is the shared submit-then-poll protocol behind Initialize and Continue.
func (c *Client) run(ctx context.Context, query, sessionID string) (*agent.Reply, error) {
	sub, err := c.submit(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}

	payload, err := c.poll(ctx, sub.RequestID)
	if err != nil {
		return nil, err
	}

	// The provider's token always wins over the caller's: the result payload
	// is most recent, then the submit response, then what was passed in.
	sid := sessionID
	if sub.SessionID != "" {
		sid = sub.SessionID
	}
	if v := sessionIDFrom(payload); v != "" {
		sid = v
	}

	text, ok := extractText(payload)
	if !ok {
		return nil, fmt.Errorf("request %s completed: %w", sub.RequestID, agent.ErrEmptyResponse)
	}

	return &agent.Reply{Text: text, SessionID: sid, RequestID: sub.RequestID}, nil
}

// submit enqueues a run and returns the provider's job identifiers.
func (c *Client) submit(ctx context.Context, query, sessionID string) (*submission, error) {
	body := map[string]string{"query": query}
	if sessionID != "" {
		body["sessionId"] = sessionID
	}

	var raw []byte
	call := func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(body).
			Post("/agents/" + c.agentID + "/run")
		if err != nil {
			return fmt.Errorf("%w: %v", agent.ErrUnavailable, err)
		}
		if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
			return &agent.SubmitError{StatusCode: resp.StatusCode(), Body: errorBody(resp.Body())}
		}
		raw = resp.Body()
		return nil
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(call)
	} else {
		err = call()
	}
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return nil, fmt.Errorf("%w: %v", agent.ErrUnavailable, err)
		}
		return nil, err
	}

	var sub submission
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("%w: %v", agent.ErrProtocol, err)
	}
	if sub.RequestID == "" {
		return nil, fmt.Errorf("%w: submit response carries no request id", agent.ErrProtocol)
	}
	return &sub, nil
}

// poll fetches the run result until the provider reports completion or the
// attempt ceiling is reached. Non-200 responses and transport errors during
// polling are logged and retried within the bound; only exhaustion is terminal.
func (c *Client) poll(ctx context.Context, requestID string) (map[string]any, error) {
	for attempt := 1; attempt <= c.pollMaxAttempts; attempt++ {
		resp, err := c.http.R().
			SetContext(ctx).
			Get("/agents/" + requestID + "/result")
		switch {
		case err != nil:
			slog.Warn("agent poll failed", "request_id", requestID, "attempt", attempt, "error", err)
		case resp.StatusCode() != http.StatusOK:
			slog.Warn("agent poll returned error status",
				"request_id", requestID, "attempt", attempt, "status", resp.StatusCode())
		default:
			var payload map[string]any
			if uerr := json.Unmarshal(resp.Body(), &payload); uerr != nil {
				slog.Warn("agent poll returned undecodable body",
					"request_id", requestID, "attempt", attempt, "error", uerr)
			} else if done, _ := payload["completed"].(bool); done {
				return payload, nil
			}
		}

		if attempt == c.pollMaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}

	return nil, fmt.Errorf("request %s: no completion after %d attempts: %w",
		requestID, c.pollMaxAttempts, agent.ErrTimeout)
}

// errorBody normalizes a rejected submission's body: compact JSON when the
// body parses, raw trimmed text otherwise.
func errorBody(body []byte) string {
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		if compact, merr := json.Marshal(v); merr == nil {
			return string(compact)
		}
	}
	return strings.TrimSpace(string(body))
}
