// Package store loads and saves the flashcard document as a whole.
// There are no partial writes: every caller loads the full Deck, changes it in
// memory and saves it back, so concurrent writers are last-writer-wins.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conorfennell/flashcard-mcp/internal/domain"
	"github.com/conorfennell/flashcard-mcp/internal/storage"
)

// DefaultKey is the KV key the document is stored under.
const DefaultKey = "flashcards"

// Store persists the Deck.
type Store interface {
	Load(ctx context.Context) (*domain.Deck, error)
	Save(ctx context.Context, deck *domain.Deck) error
}

// KVStore keeps the JSON document under a single key of a storage.KV.
type KVStore struct {
	kv  storage.KV
	key string
}

// NewKVStore returns a KVStore writing to key. An empty key means DefaultKey.
func NewKVStore(kv storage.KV, key string) *KVStore {
	if key == "" {
		key = DefaultKey
	}
	return &KVStore{kv: kv, key: key}
}

// Load reads the document. A missing key yields an empty deck.
func (s *KVStore) Load(ctx context.Context) (*domain.Deck, error) {
	data, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return normalize(&domain.Deck{}), nil
		}
		return nil, fmt.Errorf("failed to load deck: %w", err)
	}
	return decode(data)
}

// Save writes the whole document back.
func (s *KVStore) Save(ctx context.Context, deck *domain.Deck) error {
	data, err := json.Marshal(normalize(deck))
	if err != nil {
		return fmt.Errorf("failed to encode deck: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, data, 0); err != nil {
		return fmt.Errorf("failed to save deck: %w", err)
	}
	return nil
}

// FileStore keeps the document as an indented JSON file.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore for path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the file. A missing file yields an empty deck.
func (s *FileStore) Load(_ context.Context) (*domain.Deck, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return normalize(&domain.Deck{}), nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	return decode(data)
}

// Save replaces the file through a temporary file and rename.
func (s *FileStore) Save(_ context.Context, deck *domain.Deck) error {
	data, err := json.MarshalIndent(normalize(deck), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode deck: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".flashcards-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}

func decode(data []byte) (*domain.Deck, error) {
	var deck domain.Deck
	if err := json.Unmarshal(data, &deck); err != nil {
		return nil, fmt.Errorf("failed to decode deck: %w", err)
	}
	return normalize(&deck), nil
}

// normalize fills in fields that older documents may lack. A project without
// a memory field decodes to the empty string already; nil slices become empty
// so they encode as [] rather than null.
func normalize(deck *domain.Deck) *domain.Deck {
	if deck.Projects == nil {
		deck.Projects = []domain.Project{}
	}
	if deck.Flashcards == nil {
		deck.Flashcards = []domain.Flashcard{}
	}
	for i := range deck.Flashcards {
		if deck.Flashcards[i].Tags == nil {
			deck.Flashcards[i].Tags = []string{}
		}
	}
	return deck
}
