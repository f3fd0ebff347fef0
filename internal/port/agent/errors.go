package agent

import (
	"errors"
	"fmt"
)

// Failure taxonomy for a single agent call. Every terminal outcome matches
// exactly one of these via errors.Is; the client never retries across
// categories, only within the poll loop's own bounded attempts.
var (
	// ErrSubmission: the submit request was rejected (non-2xx).
	ErrSubmission = errors.New("agent submission rejected")
	// ErrProtocol: a 2xx submit response without a request id.
	ErrProtocol = errors.New("malformed agent submit response")
	// ErrTimeout: the poll ceiling was exhausted without completion.
	ErrTimeout = errors.New("agent run timed out")
	// ErrEmptyResponse: the run completed but no candidate field held text.
	ErrEmptyResponse = errors.New("agent returned no content")
	// ErrMissingSession: Continue was called without a continuity token.
	ErrMissingSession = errors.New("missing agent session id")
	// ErrUnavailable: transport-level failure (connection refused, DNS, ...).
	ErrUnavailable = errors.New("agent unreachable")
)

// SubmitError carries the status code and error body of a rejected submission.
type SubmitError struct {
	StatusCode int
	Body       string
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("agent submission rejected: status %d: %s", e.StatusCode, e.Body)
}

// Is reports ErrSubmission so callers can classify with errors.Is.
func (e *SubmitError) Is(target error) bool {
	return target == ErrSubmission
}
