package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgallion1/bookmarkd/internal/outline"
)

// ErrNotFound is returned when no document is stored under an ID.
var ErrNotFound = errors.New("document not found")

// Record is the persisted form of a loaded document. The page index is not
// stored; it is rebuilt from the outline when the document is loaded.
type Record struct {
	ID          string              `json:"id"`
	Filename    string              `json:"filename,omitempty"`
	ContentHash string              `json:"content_hash,omitempty"`
	Outline     *outline.Outline    `json:"outline"`
	Annotations []outline.Placement `json:"annotations,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// Store persists document records.
type Store interface {
	Put(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Record, error)
	Close() error
}

// UnavailableError wraps a backend failure that may succeed on retry.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}
