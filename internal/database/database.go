package database

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/leca/cardvault/internal/model"
)

var (
	// ErrNotFound is returned when no document has the requested id.
	ErrNotFound = errors.New("document not found")
	// ErrTooLarge is returned when a document body exceeds the store's size limit.
	ErrTooLarge = errors.New("document too large")
	// ErrInvalidDocument is returned for bodies that are not JSON objects.
	ErrInvalidDocument = errors.New("document must be a JSON object")
)

// Database defines the persistence interface for the shared document collection.
// Users and cards live side by side, distinguished by their "type" field.
type Database interface {
	List(ctx context.Context) ([]model.Document, error)
	Create(ctx context.Context, body json.RawMessage) (string, error)
	Replace(ctx context.Context, id string, body json.RawMessage) error
	Delete(ctx context.Context, id string) error
}

// validBody reports whether body is a JSON object.
func validBody(body json.RawMessage) bool {
	var obj map[string]json.RawMessage
	return json.Unmarshal(body, &obj) == nil && obj != nil
}
