package sqlite

import (
	"codecollab/core"
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore creates a new SQLite-based store.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}

	userTableStmt := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`
	if _, err = db.Exec(userTableStmt); err != nil {
		log.Fatalf("failed to create users table: %v", err)
	}

	snippetTableStmt := `
	CREATE TABLE IF NOT EXISTS snippets (
		id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		title TEXT,
		code TEXT,
		language TEXT,
		folder TEXT,
		created_at DATETIME,
		updated_at DATETIME,
		PRIMARY KEY (user_id, id)
	);`
	if _, err = db.Exec(snippetTableStmt); err != nil {
		log.Fatalf("failed to create snippets table: %v", err)
	}

	return &sqliteStore{db}
}

// UserStore implementation
func (s *sqliteStore) FindEmail(ctx context.Context, email string) (*core.User, error) {
	var user core.User
	user.Email = email
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, password_hash, created_at, updated_at FROM users WHERE email = ?", email).
		Scan(&user.ID, &user.Name, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user with email %s not found", email)
		}
		return nil, err
	}
	return &user, nil
}

func (s *sqliteStore) Create(ctx context.Context, user *core.User) (string, error) {
	id := ulid.Make().String()
	now := time.Now()
	log := logrus.WithFields(logrus.Fields{
		"user_id": id,
		"email":   user.Email,
	})

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, name, email, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		id, user.Name, user.Email, user.PasswordHash, now, now)
	if err != nil {
		log.WithError(err).Error("Failed to create user")
		return "", err
	}

	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	log.Info("User created successfully")
	return id, nil
}

// SnippetStore implementation
func (s *sqliteStore) List(ctx context.Context, userID, folder string) ([]*core.Snippet, error) {
	query := "SELECT id, title, language, folder, created_at, updated_at FROM snippets WHERE user_id = ?"
	args := []any{userID}
	if folder != "" {
		query += " AND folder = ?"
		args = append(args, folder)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snippets []*core.Snippet
	for rows.Next() {
		var snippet core.Snippet
		snippet.UserID = userID
		if err := rows.Scan(&snippet.ID, &snippet.Title, &snippet.Language, &snippet.Folder, &snippet.CreatedAt, &snippet.UpdatedAt); err != nil {
			return nil, err
		}
		snippets = append(snippets, &snippet)
	}
	return snippets, rows.Err()
}

func (s *sqliteStore) Get(ctx context.Context, userID, id string) (*core.Snippet, error) {
	var snippet core.Snippet
	snippet.UserID = userID
	snippet.ID = id
	err := s.db.QueryRowContext(ctx,
		"SELECT title, code, language, folder, created_at, updated_at FROM snippets WHERE user_id = ? AND id = ?", userID, id).
		Scan(&snippet.Title, &snippet.Code, &snippet.Language, &snippet.Folder, &snippet.CreatedAt, &snippet.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("snippet not found")
		}
		return nil, err
	}
	return &snippet, nil
}

func (s *sqliteStore) Save(ctx context.Context, snippet *core.Snippet) error {
	if snippet.ID == "" {
		snippet.ID = ulid.Make().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // Rollback on any error

	var exists bool
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM snippets WHERE user_id = ? AND id = ?", snippet.UserID, snippet.ID).Scan(&exists)

	now := time.Now()
	if err != nil && err != sql.ErrNoRows {
		return err
	}

	if exists {
		_, err = tx.ExecContext(ctx,
			"UPDATE snippets SET title = ?, code = ?, language = ?, folder = ?, updated_at = ? WHERE user_id = ? AND id = ?",
			snippet.Title, snippet.Code, snippet.Language, snippet.Folder, now, snippet.UserID, snippet.ID)
	} else {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO snippets (id, user_id, title, code, language, folder, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			snippet.ID, snippet.UserID, snippet.Title, snippet.Code, snippet.Language, snippet.Folder, now, now)
	}
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *sqliteStore) Delete(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM snippets WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("snippet with id %s not found for user %s", id, userID)
	}
	return nil
}
