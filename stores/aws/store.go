package aws

import (
	"bytes"
	"codecollab/core"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"path"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"
)

type s3Store struct {
	s3Client *s3.Client
	bucket   string
}

// NewStore creates a new S3-based store. Users are stored as JSON objects
// under users/, snippets under snippets/<userID>/.
func NewStore(bucketName string) *s3Store {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	return &s3Store{
		s3Client: s3.NewFromConfig(cfg),
		bucket:   bucketName,
	}
}

func userKey(email string) string {
	return path.Join("users", email)
}

func snippetKey(userID, id string) string {
	return path.Join("snippets", userID, id)
}

func (s *s3Store) getJSON(ctx context.Context, key string, out any) error {
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read object data: %v", err)
	}
	return json.Unmarshal(data, out)
}

func (s *s3Store) putJSON(ctx context.Context, key string, in any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	return err
}

// storedUser round-trips the password hash that core.User hides from JSON.
type storedUser struct {
	core.User
	PasswordHash string `json:"passwordHash"`
}

// storedSnippet round-trips the owner id that core.Snippet hides from JSON.
type storedSnippet struct {
	core.Snippet
	UserID string `json:"userId"`
}

// UserStore implementation
func (s *s3Store) FindEmail(ctx context.Context, email string) (*core.User, error) {
	var stored storedUser
	if err := s.getJSON(ctx, userKey(email), &stored); err != nil {
		return nil, fmt.Errorf("user with email %s not found: %v", email, err)
	}
	user := stored.User
	user.PasswordHash = stored.PasswordHash
	return &user, nil
}

func (s *s3Store) Create(ctx context.Context, user *core.User) (string, error) {
	if _, err := s.FindEmail(ctx, user.Email); err == nil {
		return "", fmt.Errorf("email already exists")
	}

	user.ID = ulid.Make().String()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := storedUser{User: *user, PasswordHash: user.PasswordHash}
	if err := s.putJSON(ctx, userKey(user.Email), &stored); err != nil {
		return "", fmt.Errorf("failed to upload user: %v", err)
	}
	return user.ID, nil
}

// SnippetStore implementation
func (s *s3Store) List(ctx context.Context, userID, folder string) ([]*core.Snippet, error) {
	prefix := path.Join("snippets", userID) + "/"
	var snippets []*core.Snippet

	paginator := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list snippets: %v", err)
		}
		for _, obj := range page.Contents {
			var stored storedSnippet
			if err := s.getJSON(ctx, *obj.Key, &stored); err != nil {
				continue
			}
			if folder != "" && stored.Folder != folder {
				continue
			}
			snippet := stored.Snippet
			snippet.UserID = userID
			snippet.Code = "" // keep list responses light
			snippets = append(snippets, &snippet)
		}
	}

	sort.Slice(snippets, func(i, j int) bool {
		return snippets[i].CreatedAt.After(snippets[j].CreatedAt)
	})
	return snippets, nil
}

func (s *s3Store) Get(ctx context.Context, userID, id string) (*core.Snippet, error) {
	var stored storedSnippet
	if err := s.getJSON(ctx, snippetKey(userID, id), &stored); err != nil {
		return nil, fmt.Errorf("snippet with id %s not found: %v", id, err)
	}
	snippet := stored.Snippet
	snippet.UserID = userID
	return &snippet, nil
}

func (s *s3Store) Save(ctx context.Context, snippet *core.Snippet) error {
	if snippet.ID == "" {
		snippet.ID = ulid.Make().String()
	}

	now := time.Now()
	if existing, err := s.Get(ctx, snippet.UserID, snippet.ID); err == nil {
		snippet.CreatedAt = existing.CreatedAt
	} else {
		snippet.CreatedAt = now
	}
	snippet.UpdatedAt = now

	stored := storedSnippet{Snippet: *snippet, UserID: snippet.UserID}
	if err := s.putJSON(ctx, snippetKey(snippet.UserID, snippet.ID), &stored); err != nil {
		return fmt.Errorf("failed to upload snippet: %v", err)
	}
	return nil
}

func (s *s3Store) Delete(ctx context.Context, userID, id string) error {
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(snippetKey(userID, id)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete snippet %s: %v", id, err)
	}
	return nil
}
