// Package cache provides the fetch cache (a dumb persistent key to
// candidate-list store) and the recently-used exclusion window.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/calmstack/mantra/internal/domain"
)

// Store is the fetch-cache contract. Implementations are dumb stores:
// exclusion filtering against recently-used entries is the caller's job.
type Store interface {
	Get(ctx context.Context, key string) ([]domain.Candidate, error)
	Put(ctx context.Context, key string, cand domain.Candidate) error
}

// FileCache persists the cache as a single JSON file. A corrupt or missing
// file is treated as an empty cache, never a failure.
type FileCache struct {
	path string

	mu      sync.Mutex
	entries map[string][]domain.Candidate
}

// NewFileCache loads the cache at path, creating parent directories as
// needed on first save.
func NewFileCache(path string) *FileCache {
	c := &FileCache{
		path:    path,
		entries: map[string][]domain.Candidate{},
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("fetch cache: failed to read %s, starting empty: %v", path, err)
		}
		return c
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		log.Printf("fetch cache: %s is corrupt, starting empty: %v", path, err)
		c.entries = map[string][]domain.Candidate{}
	}
	return c
}

// Get returns the cached candidates for key, or an empty list.
func (c *FileCache) Get(ctx context.Context, key string) ([]domain.Candidate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Candidate(nil), c.entries[key]...), nil
}

// Put appends cand to the list for key and persists. Entries are
// append-only; duplicates by reference are dropped.
func (c *FileCache) Put(ctx context.Context, key string, cand domain.Candidate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.entries[key] {
		if existing.Reference == cand.Reference {
			return nil
		}
	}
	c.entries[key] = append(c.entries[key], cand)
	return c.saveLocked()
}

// Keys returns the cache keys in sorted order.
func (c *FileCache) Keys(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear invalidates the list for key. An empty key clears everything.
func (c *FileCache) Clear(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if key == "" {
		c.entries = map[string][]domain.Candidate{}
	} else {
		delete(c.entries, key)
	}
	return c.saveLocked()
}

func (c *FileCache) saveLocked() error {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return os.Rename(tmp, c.path)
}
