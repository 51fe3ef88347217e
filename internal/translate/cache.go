package translate

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Entry is a cached translation.
type Entry struct {
	Translation string    `json:"translation"`
	Timestamp   time.Time `json:"timestamp"`
	// Original holds the first 100 characters of the source text.
	Original string `json:"original_text"`
}

// StoreStats describes the contents of a Store.
type StoreStats struct {
	Backend string  `json:"backend"`
	Entries int     `json:"cache_entries"`
	SizeKB  float64 `json:"cache_size_kb"`
}

// Store persists translations keyed by Key(text).
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, e Entry) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (StoreStats, error)
}

// Key is the MD5 hex digest of text.
func Key(text string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(text)))
}

func newEntry(text, translation string) Entry {
	r := []rune(text)
	if len(r) > 100 {
		r = r[:100]
	}
	return Entry{Translation: translation, Timestamp: time.Now(), Original: string(r)}
}

// FileStore keeps one JSON file per entry under a directory.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "cache/translation"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *FileStore) Get(_ context.Context, key string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		// corrupt entries read as misses and are overwritten on Set
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (s *FileStore) Set(_ context.Context, key string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(key))
}

// Clear removes every entry but keeps the directory.
func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (s *FileStore) Stats(_ context.Context) (StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := StoreStats{Backend: "file"}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return st, err
	}
	var size int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		st.Entries++
		size += info.Size()
	}
	st.SizeKB = float64(size) / 1024
	return st, nil
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*RedisStore)(nil)
)
