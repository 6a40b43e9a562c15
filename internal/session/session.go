// Package session holds per-client dashboard state: the uploaded payload and
// the trend parameters applied to it.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/theirongolddev/snapdash/internal/model"
)

var (
	// ErrNotFound is returned when no session exists for an ID.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidID is returned for IDs that are not UUIDs.
	ErrInvalidID = errors.New("invalid session id")
)

// Session is the state of one dashboard client.
type Session struct {
	ID         string            `json:"id"`
	Params     model.TrendParams `json:"params"`
	Payload    []byte            `json:"payload,omitempty"` // decoded JSON document
	Source     string            `json:"source,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	UploadedAt time.Time         `json:"uploaded_at,omitempty"`
}

// New returns a session with a fresh random ID.
func New(params model.TrendParams) Session {
	now := time.Now().UTC()
	return Session{
		ID:        uuid.NewString(),
		Params:    params.Normalize(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HasPayload reports whether a payload has been uploaded.
func (s Session) HasPayload() bool {
	return len(s.Payload) > 0
}

// ValidateID checks that id is a UUID.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	return nil
}

// UpdateFunc mutates a session in place. Returning an error aborts the update.
type UpdateFunc func(*Session) error

// ErrConflict is returned when an update kept losing to concurrent writers.
var ErrConflict = errors.New("session updated concurrently")

// Store persists sessions. Implementations are safe for concurrent use.
// Update applies fn atomically: concurrent updates of one session never
// overwrite each other's fields.
type Store interface {
	Get(ctx context.Context, id string) (Session, error)
	Put(ctx context.Context, s Session) error
	Update(ctx context.Context, id string, fn UpdateFunc) (Session, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
