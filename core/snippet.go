package core

import (
	"context"
	"time"
)

type (
	// Snippet represents a named piece of code a user saved from the editor.
	Snippet struct {
		ID        string    `json:"id"`
		UserID    string    `json:"-"` // Not exposed in JSON responses, used internally.
		Title     string    `json:"title"`
		Code      string    `json:"code,omitempty"` // The full source text, not included in list views.
		Language  string    `json:"language"`
		Folder    string    `json:"folder"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// SnippetStore defines the persistence layer for user-owned snippets.
	// All operations are scoped to a specific user.
	SnippetStore interface {
		// List returns metadata for all snippets owned by a user, newest first.
		// When folder is non-empty only snippets in that folder are returned.
		// The returned Snippet objects should not contain the `Code` field to keep the response light.
		List(ctx context.Context, userID, folder string) ([]*Snippet, error)

		// Get returns a single snippet by its ID, ensuring it belongs to the user.
		Get(ctx context.Context, userID, id string) (*Snippet, error)

		// Save creates or updates a snippet for a user.
		Save(ctx context.Context, snippet *Snippet) error

		// Delete removes a snippet, ensuring it belongs to the user.
		Delete(ctx context.Context, userID, id string) error
	}
)
