// Package session stores and retrieves per-conversation message
// history. Only user/assistant turns are persisted; tool call and
// tool result traces are per-request scratch state the orchestrator
// never hands to a Store.
package session

import (
	"context"
	"errors"

	"github.com/kadirpekel/sentinel/pkg/message"
)

// ErrNotFound signals a session ID that does not exist; pkg/httpapi
// maps it to 404. Neither built-in Store returns it: an unknown
// session ID reads as empty history.
var ErrNotFound = errors.New("session: not found")

// StorageError wraps a failure from a Store implementation with the
// name of the operation that failed. The orchestrator reports any
// Store error as a storage-category error event.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "session: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

// Store is the session persistence contract. Implementations must
// serialize writes per session ID while allowing concurrent access
// across distinct session IDs.
type Store interface {
	// GetMessages returns the full message history for sessionID, in
	// chronological order. An unknown sessionID returns an empty
	// slice and a nil error: session IDs come into existence on first
	// Append, not on first read.
	GetMessages(ctx context.Context, sessionID string) ([]message.Message, error)

	// Append atomically records one (user question, assistant answer)
	// turn. It must not partially apply: either both messages land or
	// neither does.
	Append(ctx context.Context, sessionID string, user, assistant message.Message) error

	// Clear removes all history for sessionID but leaves the session
	// ID valid for future Append calls.
	Clear(ctx context.Context, sessionID string) error

	// Delete removes sessionID entirely.
	Delete(ctx context.Context, sessionID string) error

	// ListSessions returns all known session IDs.
	ListSessions(ctx context.Context) ([]string, error)

	// MessageCount returns the number of messages stored for
	// sessionID (0 for an unknown session).
	MessageCount(ctx context.Context, sessionID string) (int, error)
}
