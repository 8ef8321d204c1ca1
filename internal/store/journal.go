package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventType identifies a journal entry. The set is closed; unknown types
// are skipped on replay.
type EventType string

const (
	// EventFailureRecorded captures a new failure record.
	EventFailureRecorded EventType = "failure_recorded"
	// EventFixOutcomeRecorded captures a fix-outcome update on a record.
	EventFixOutcomeRecorded EventType = "fix_outcome_recorded"
	// EventPatternLearned captures the post-update state of a learned pattern.
	EventPatternLearned EventType = "pattern_learned"
)

// maxJournalLine bounds a single entry to keep replay memory predictable.
const maxJournalLine = 1 * 1024 * 1024

// Event is one append-only journal entry. Payload fields are populated
// according to Type.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	Failure *FailureRecord  `json:"failure,omitempty"`
	Pattern *FailurePattern `json:"pattern,omitempty"`

	// Fix-outcome payload.
	FailureID    string `json:"failure_id,omitempty"`
	AttemptedFix string `json:"attempted_fix,omitempty"`
	Successful   *bool  `json:"successful,omitempty"`
}

// Journal is an append-only JSONL audit log of store mutations. It exists
// for auditability and as the recovery source when the snapshot document is
// unreadable. Entries are never rewritten.
type Journal struct {
	path   string
	logger *zap.Logger
}

// NewJournal creates a journal at path, creating the parent directory if
// needed.
func NewJournal(path string, logger *zap.Logger) (*Journal, error) {
	if path == "" {
		return nil, errors.New("journal path is required")
	}
	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("journal path contains directory traversal: %s", path)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	return &Journal{path: cleanPath, logger: logger}, nil
}

// Path returns the journal file location.
func (j *Journal) Path() string {
	return j.path
}

// Append writes one event to the journal. The event's ID and Timestamp are
// assigned here if unset.
func (j *Journal) Append(ev Event) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode journal event: %w", err)
	}

	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append journal event: %w", err)
	}
	return nil
}

// Replay rebuilds a MemoryStore from the journal. Malformed lines and
// unknown event types are skipped with a warning; replay only fails when
// the journal itself cannot be read.
func (j *Journal) Replay() (*MemoryStore, error) {
	f, err := os.Open(j.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	ms := NewMemoryStore()
	skipped := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxJournalLine)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			skipped++
			continue
		}
		j.apply(ms, &ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan journal: %w", err)
	}

	if skipped > 0 {
		j.logger.Warn("skipped malformed journal entries", zap.Int("count", skipped))
	}
	return ms, nil
}

// apply folds one event into the aggregate.
func (j *Journal) apply(ms *MemoryStore, ev *Event) {
	switch ev.Type {
	case EventFailureRecorded:
		if ev.Failure != nil {
			ms.AddFailure(*ev.Failure)
		}

	case EventFixOutcomeRecorded:
		rec := ms.FindFailure(ev.FailureID)
		if rec != nil && rec.FixSuccessful == nil && ev.Successful != nil {
			rec.AttemptedFix = ev.AttemptedFix
			outcome := *ev.Successful
			rec.FixSuccessful = &outcome
		}

	case EventPatternLearned:
		if ev.Pattern == nil {
			return
		}
		// The event carries the full post-update pattern: upsert by id.
		for i := range ms.Patterns {
			if ms.Patterns[i].PatternID == ev.Pattern.PatternID {
				ms.Patterns[i] = *ev.Pattern
				return
			}
		}
		ms.Patterns = append(ms.Patterns, *ev.Pattern)

	default:
		j.logger.Warn("unknown journal event type", zap.String("type", string(ev.Type)))
	}
}
