package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ErrStoreUnreadable indicates the persisted document exists but could not
// be parsed. Load recovers from it (journal replay, then defaults); it is
// exported so callers can detect the recovery path in logs/tests.
var ErrStoreUnreadable = errors.New("store document unreadable")

// FileStore persists a MemoryStore as a single JSON document on disk.
// Saves are all-or-nothing: the document is written to a temporary file in
// the same directory and atomically renamed over the previous one, so an
// interrupted save leaves the last valid document intact.
type FileStore struct {
	path    string
	journal *Journal
	logger  *zap.Logger
}

// NewFileStore creates a file store rooted at path. The parent directory is
// created if missing. journal may be nil to disable the audit journal.
func NewFileStore(path string, journal *Journal, logger *zap.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("store path is required")
	}
	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("store path contains directory traversal: %s", path)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(cleanPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	return &FileStore{
		path:    cleanPath,
		journal: journal,
		logger:  logger,
	}, nil
}

// Path returns the location of the persisted document.
func (s *FileStore) Path() string {
	return s.path
}

// Journal returns the audit journal, or nil when disabled.
func (s *FileStore) Journal() *Journal {
	return s.journal
}

// Load reads the persisted document. When no document exists, a default
// empty store is created, persisted, and returned. When the document exists
// but is unreadable, the store is rebuilt from the journal if one is
// available, otherwise reinitialized to defaults; either way the recovered
// state is persisted before returning.
func (s *FileStore) Load() (*MemoryStore, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s.initialize()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store document: %w", err)
	}

	var ms MemoryStore
	if err := json.Unmarshal(data, &ms); err != nil {
		s.logger.Warn("store document unreadable, recovering",
			zap.String("path", s.path),
			zap.Error(err),
		)
		return s.recover(fmt.Errorf("%w: %v", ErrStoreUnreadable, err))
	}

	// Guard against documents hand-edited down to nulls.
	if ms.Failures == nil {
		ms.Failures = []FailureRecord{}
	}
	if ms.Patterns == nil {
		ms.Patterns = []FailurePattern{}
	}
	if ms.Stats.ByCategory == nil {
		ms.Stats.ByCategory = map[string]int{}
	}

	return &ms, nil
}

// Save atomically persists the store document.
func (s *FileStore) Save(ms *MemoryStore) error {
	if ms == nil {
		return errors.New("store is required")
	}

	data, err := json.MarshalIndent(ms, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store document: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".failbank-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write store document: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync store document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set store permissions: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace store document: %w", err)
	}

	return nil
}

// initialize persists and returns a default empty store.
func (s *FileStore) initialize() (*MemoryStore, error) {
	ms := NewMemoryStore()
	if err := s.Save(ms); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	s.logger.Info("initialized empty store", zap.String("path", s.path))
	return ms, nil
}

// recover rebuilds state after an unreadable document: replay the journal
// when available, otherwise fall back to a default empty store.
func (s *FileStore) recover(cause error) (*MemoryStore, error) {
	if s.journal != nil {
		ms, err := s.journal.Replay()
		if err == nil {
			if saveErr := s.Save(ms); saveErr != nil {
				return nil, saveErr
			}
			s.logger.Info("rebuilt store from journal",
				zap.String("path", s.path),
				zap.Int("failures", len(ms.Failures)),
				zap.Int("patterns", len(ms.Patterns)),
			)
			return ms, nil
		}
		s.logger.Warn("journal replay failed", zap.Error(err))
	}

	s.logger.Warn("reinitializing store to defaults", zap.Error(cause))
	return s.initialize()
}
