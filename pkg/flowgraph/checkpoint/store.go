// Package checkpoint stores paused runs so a later request can resume them.
//
// A store holds at most one checkpoint per session: saving again for the
// same session overwrites the previous pause.
package checkpoint

import (
	"errors"
	"time"
)

// Store persists checkpoints keyed by session.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores the checkpoint for a session, replacing any previous one.
	Save(sessionID string, data []byte) error

	// Load retrieves the checkpoint for a session.
	// Returns ErrNotFound if the session has no checkpoint.
	Load(sessionID string) ([]byte, error)

	// Delete removes the checkpoint for a session.
	// Returns nil if the session has no checkpoint.
	Delete(sessionID string) error

	// List returns metadata for every stored session, ordered by session ID.
	List() ([]Info, error)

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides metadata without loading full state.
type Info struct {
	SessionID string
	// Saves counts how many times the session's checkpoint was written.
	Saves     int
	Timestamp time.Time
	Size      int64
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates a checkpoint doesn't exist.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")
)
