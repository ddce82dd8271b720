package filesystem

import (
	"codecollab/core"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

type fsStore struct {
	basePath string
}

// NewStore creates a new filesystem-based store. Users live under
// basePath/users, snippets under basePath/snippets/<userID>.
func NewStore(basePath string) *fsStore {
	for _, dir := range []string{basePath, filepath.Join(basePath, "users"), filepath.Join(basePath, "snippets")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("failed to create storage directory: %v", err)
		}
	}
	return &fsStore{basePath: basePath}
}

func (s *fsStore) userFilePath(email string) (string, error) {
	path := filepath.Join(s.basePath, "users", email)
	base, err := filepath.Abs(filepath.Join(s.basePath, "users"))
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(abs, base) {
		return "", fmt.Errorf("invalid path: access denied")
	}
	return abs, nil
}

// UserStore implementation
func (s *fsStore) FindEmail(ctx context.Context, email string) (*core.User, error) {
	path, err := s.userFilePath(email)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("user with email %s not found", email)
		}
		return nil, err
	}

	var stored storedUser
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	return stored.toUser(), nil
}

func (s *fsStore) Create(ctx context.Context, user *core.User) (string, error) {
	path, err := s.userFilePath(user.Email)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("email already exists")
	}

	user.ID = ulid.Make().String()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	data, err := json.Marshal(newStoredUser(user))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		logrus.WithError(err).Error("Failed to write user file")
		return "", err
	}

	logrus.WithField("user_id", user.ID).Info("User created successfully")
	return user.ID, nil
}

// storedUser exists because core.User hides PasswordHash from JSON, but the
// filesystem backend needs it round-tripped.
type storedUser struct {
	core.User
	PasswordHash string `json:"passwordHash"`
}

func newStoredUser(user *core.User) *storedUser {
	return &storedUser{User: *user, PasswordHash: user.PasswordHash}
}

func (s *storedUser) toUser() *core.User {
	user := s.User
	user.PasswordHash = s.PasswordHash
	return &user
}

// SnippetStore implementation
func (s *fsStore) userSnippetPath(userID string) string {
	return filepath.Join(s.basePath, "snippets", userID)
}

func (s *fsStore) List(ctx context.Context, userID, folder string) ([]*core.Snippet, error) {
	userPath := s.userSnippetPath(userID)
	log := logrus.WithField("user_id", userID).WithField("path", userPath)

	files, err := os.ReadDir(userPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("User directory does not exist, returning empty list.")
			return []*core.Snippet{}, nil
		}
		log.WithError(err).Error("Failed to read user directory")
		return nil, err
	}

	snippets := make([]*core.Snippet, 0, len(files))
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(userPath, file.Name()))
		if err != nil {
			log.WithError(err).Warnf("Failed to read snippet file %s, skipping", file.Name())
			continue
		}

		var snippet core.Snippet
		if err := json.Unmarshal(data, &snippet); err != nil {
			log.WithError(err).Warnf("Failed to unmarshal snippet file %s, skipping", file.Name())
			continue
		}
		if folder != "" && snippet.Folder != folder {
			continue
		}

		// For list view, we don't need the full source text.
		snippet.Code = ""
		snippet.UserID = userID
		snippets = append(snippets, &snippet)
	}
	sort.Slice(snippets, func(i, j int) bool {
		return snippets[i].CreatedAt.After(snippets[j].CreatedAt)
	})

	log.Infof("Listed %d snippets", len(snippets))
	return snippets, nil
}

func (s *fsStore) Get(ctx context.Context, userID, id string) (*core.Snippet, error) {
	userPath := s.userSnippetPath(userID)
	filePath := filepath.Join(userPath, id)
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "snippet_id": id, "path": filePath})

	absUserPath, err := filepath.Abs(userPath)
	if err != nil {
		return nil, err
	}
	absFilePath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(absFilePath, absUserPath) {
		return nil, fmt.Errorf("invalid path: access denied")
	}

	data, err := os.ReadFile(absFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Snippet file not found")
			return nil, fmt.Errorf("snippet %s not found", id)
		}
		log.WithError(err).Error("Failed to read snippet file")
		return nil, err
	}

	var snippet core.Snippet
	if err := json.Unmarshal(data, &snippet); err != nil {
		log.WithError(err).Error("Failed to unmarshal snippet data")
		return nil, err
	}
	snippet.UserID = userID
	return &snippet, nil
}

func (s *fsStore) Save(ctx context.Context, snippet *core.Snippet) error {
	if snippet.ID == "" {
		snippet.ID = ulid.Make().String()
	}
	userPath := s.userSnippetPath(snippet.UserID)
	filePath := filepath.Join(userPath, snippet.ID)
	log := logrus.WithFields(logrus.Fields{"user_id": snippet.UserID, "snippet_id": snippet.ID, "path": filePath})

	if err := os.MkdirAll(userPath, 0755); err != nil {
		log.WithError(err).Error("Failed to create user directory")
		return err
	}

	now := time.Now()
	if existing, err := s.Get(ctx, snippet.UserID, snippet.ID); err == nil {
		snippet.CreatedAt = existing.CreatedAt
	} else {
		snippet.CreatedAt = now
	}
	snippet.UpdatedAt = now

	data, err := json.Marshal(snippet)
	if err != nil {
		log.WithError(err).Error("Failed to marshal snippet for saving")
		return err
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		log.WithError(err).Error("Failed to write snippet file")
		return err
	}
	return nil
}

func (s *fsStore) Delete(ctx context.Context, userID, id string) error {
	filePath := filepath.Join(s.userSnippetPath(userID), id)
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "snippet_id": id, "path": filePath})

	err := os.Remove(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Snippet file not found for deletion")
			return fmt.Errorf("snippet with id %s not found for user %s", id, userID)
		}
		log.WithError(err).Error("Failed to delete snippet file")
		return err
	}

	log.Info("Snippet deleted successfully")
	return nil
}
