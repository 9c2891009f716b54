package feedback

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/calmstack/mantra/internal/domain"
)

// FileStore persists the feedback log as a JSON file. Like the fetch
// cache, a corrupt file starts an empty log instead of failing.
type FileStore struct {
	mem  *MemoryStore
	path string
}

func NewFileStore(path string) *FileStore {
	s := &FileStore{mem: NewMemoryStore(), path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("feedback: failed to read %s, starting empty: %v", path, err)
		}
		return s
	}
	var entries []domain.FeedbackEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Printf("feedback: %s is corrupt, starting empty: %v", path, err)
		return s
	}
	for _, e := range entries {
		if err := s.mem.Append(context.Background(), e); err != nil {
			log.Printf("feedback: skipping invalid stored entry: %v", err)
		}
	}
	return s
}

func (s *FileStore) Append(ctx context.Context, entry domain.FeedbackEntry) error {
	if err := s.mem.Append(ctx, entry); err != nil {
		return err
	}
	if err := s.save(); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodePersistenceUnavailable,
			"failed to persist feedback", err)
	}
	return nil
}

func (s *FileStore) TopPreferences(ctx context.Context, n int) (domain.PreferenceSummary, error) {
	return s.mem.TopPreferences(ctx, n)
}

func (s *FileStore) LastFeedbackAt(ctx context.Context, userID string) (time.Time, error) {
	return s.mem.LastFeedbackAt(ctx, userID)
}

func (s *FileStore) save() error {
	data, err := json.MarshalIndent(s.mem.Entries(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
