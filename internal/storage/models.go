package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Attempt is one journaled review update, successful or not.
type Attempt struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	DocumentID     string    `json:"document_id"`
	IdentifierJSON string    `json:"identifier"` // JSON object stored as text
	ReviewJSON     string    `json:"review"`     // review as submitted
	Source         string    `json:"source"`     // "http", "mcp" or "cli"
	OK             bool      `json:"ok"`
	Stage          string    `json:"stage,omitempty"`
	Message        string    `json:"message,omitempty"`
}
