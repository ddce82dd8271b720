package memory

import (
	"codecollab/core"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// memStore implements both SnippetStore and UserStore for in-memory storage.
// Each instance owns its own maps so tests can run against isolated stores.
type memStore struct {
	mu sync.RWMutex
	// snippets is keyed by userID, then snippetID.
	snippets map[string]map[string]*core.Snippet
	// users is keyed by email.
	users map[string]*core.User
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{
		snippets: make(map[string]map[string]*core.Snippet),
		users:    make(map[string]*core.User),
	}
}

// FindEmail retrieves a user by email. Part of the UserStore interface.
func (s *memStore) FindEmail(ctx context.Context, email string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if user, ok := s.users[email]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, fmt.Errorf("user with email %s not found", email)
}

// Create stores a new user. Part of the UserStore interface.
func (s *memStore) Create(ctx context.Context, user *core.User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Email == "" {
		return "", fmt.Errorf("email cannot be empty")
	}
	if _, exists := s.users[user.Email]; exists {
		return "", fmt.Errorf("email already exists")
	}

	user.ID = ulid.Make().String()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	copied := *user
	s.users[user.Email] = &copied

	logrus.WithField("user_id", user.ID).Info("User created successfully")
	return user.ID, nil
}

// List returns metadata for all snippets owned by a user, newest first.
// Part of the SnippetStore interface.
func (s *memStore) List(ctx context.Context, userID, folder string) ([]*core.Snippet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userSnippets, ok := s.snippets[userID]
	if !ok {
		return []*core.Snippet{}, nil
	}

	snippets := make([]*core.Snippet, 0, len(userSnippets))
	for _, snippet := range userSnippets {
		if folder != "" && snippet.Folder != folder {
			continue
		}
		// Copy without the large `Code` field for the list view.
		listSnippet := &core.Snippet{
			ID:        snippet.ID,
			UserID:    snippet.UserID,
			Title:     snippet.Title,
			Language:  snippet.Language,
			Folder:    snippet.Folder,
			CreatedAt: snippet.CreatedAt,
			UpdatedAt: snippet.UpdatedAt,
		}
		snippets = append(snippets, listSnippet)
	}
	sort.Slice(snippets, func(i, j int) bool {
		return snippets[i].CreatedAt.After(snippets[j].CreatedAt)
	})

	logrus.WithField("user_id", userID).Infof("Listed %d snippets", len(snippets))
	return snippets, nil
}

// Get returns a single snippet by its ID, ensuring it belongs to the user.
// Part of the SnippetStore interface.
func (s *memStore) Get(ctx context.Context, userID, id string) (*core.Snippet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := logrus.WithFields(logrus.Fields{"user_id": userID, "snippet_id": id})

	userSnippets, ok := s.snippets[userID]
	if !ok {
		log.Warn("User has no snippets")
		return nil, fmt.Errorf("snippet with id %s not found for user %s", id, userID)
	}

	snippet, ok := userSnippets[id]
	if !ok {
		log.Warn("Snippet not found for user")
		return nil, fmt.Errorf("snippet with id %s not found for user %s", id, userID)
	}

	copied := *snippet
	return &copied, nil
}

// Save creates or updates a snippet for a user. Part of the SnippetStore interface.
func (s *memStore) Save(ctx context.Context, snippet *core.Snippet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snippet.UserID == "" {
		return fmt.Errorf("UserID cannot be empty")
	}
	if snippet.ID == "" {
		snippet.ID = ulid.Make().String()
	}

	userSnippets, ok := s.snippets[snippet.UserID]
	if !ok {
		userSnippets = make(map[string]*core.Snippet)
		s.snippets[snippet.UserID] = userSnippets
	}

	now := time.Now()
	if existing, exists := userSnippets[snippet.ID]; exists {
		snippet.CreatedAt = existing.CreatedAt
		snippet.UpdatedAt = now
	} else {
		snippet.CreatedAt = now
		snippet.UpdatedAt = now
	}

	copied := *snippet
	userSnippets[snippet.ID] = &copied
	logrus.WithFields(logrus.Fields{
		"user_id":    snippet.UserID,
		"snippet_id": snippet.ID,
	}).Info("Snippet saved successfully")
	return nil
}

// Delete removes a snippet, ensuring it belongs to the user. Part of the SnippetStore interface.
func (s *memStore) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{"user_id": userID, "snippet_id": id})

	userSnippets, ok := s.snippets[userID]
	if !ok {
		log.Warn("User has no snippets to delete from")
		return fmt.Errorf("user %s has no snippets", userID)
	}
	if _, ok := userSnippets[id]; !ok {
		log.Warn("Snippet not found for deletion")
		return fmt.Errorf("snippet with id %s not found for user %s", id, userID)
	}

	delete(userSnippets, id)
	log.Info("Snippet deleted successfully")
	return nil
}
