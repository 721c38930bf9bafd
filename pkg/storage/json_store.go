package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"xhsdl/pkg/models"
)

// JSONStore keeps all posts in one JSON array file
type JSONStore struct {
	path string
	mu   sync.Mutex
}

// NewJSONStore opens the store at path. The file is created on first write.
func NewJSONStore(path string) (*JSONStore, error) {
	if path == "" {
		return nil, fmt.Errorf("json store path is empty")
	}
	return &JSONStore{path: path}, nil
}

func (s *JSONStore) read() ([]models.Post, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []models.Post{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []models.Post{}, nil
	}

	var posts []models.Post
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, fmt.Errorf("failed to decode store: %w", err)
	}
	return posts, nil
}

func (s *JSONStore) write(posts []models.Post) error {
	data, err := json.MarshalIndent(posts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}
	return writeAtomic(s.path, bytes.NewReader(data), 0644)
}

// LoadAll implements Store
func (s *JSONStore) LoadAll(context.Context) ([]models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Upsert implements Store
func (s *JSONStore) Upsert(_ context.Context, post models.Post) (models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := s.read()
	if err != nil {
		return models.Post{}, err
	}

	merged := post
	found := false
	for i := range posts {
		if posts[i].ID == post.ID {
			merged = Merge(posts[i], post)
			posts[i] = merged
			found = true
			break
		}
	}
	if !found {
		posts = append(posts, merged)
	}

	if err := s.write(posts); err != nil {
		return models.Post{}, err
	}
	return merged, nil
}

// Clear implements Store
func (s *JSONStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write([]models.Post{})
}

// Close implements Store
func (s *JSONStore) Close() error { return nil }
