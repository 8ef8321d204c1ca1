package store

import (
	"time"
)

// MatcherKind selects how a pattern's ErrorPattern is applied.
type MatcherKind string

const (
	// MatcherRegex applies the pattern as a case-insensitive regular expression.
	MatcherRegex MatcherKind = "regex"
	// MatcherLiteral applies the pattern as a case-insensitive substring match.
	MatcherLiteral MatcherKind = "literal"
)

// FailureRecord represents one captured failure occurrence and its
// resolution state. Immutable once created except for the fix fields,
// which are set exactly once by a fix-outcome update.
type FailureRecord struct {
	// ID is the unique identifier, derived from content and creation time.
	ID string `json:"id"`

	// Timestamp is when the failure was recorded.
	Timestamp time.Time `json:"timestamp"`

	// FailureType is the caller-supplied kind of failure (e.g. "deployment").
	FailureType string `json:"failure_type"`

	// ErrorMessage is the raw error text.
	ErrorMessage string `json:"error_message"`

	// ContentHash links the failure to the artifact that produced it.
	ContentHash string `json:"content_hash,omitempty"`

	// ComponentErrors are optional component-level sub-errors.
	ComponentErrors []string `json:"component_errors,omitempty"`

	// AttemptedFix is the fix that was tried, if any.
	AttemptedFix string `json:"attempted_fix,omitempty"`

	// FixSuccessful records the fix outcome. Nil until an outcome is recorded.
	FixSuccessful *bool `json:"fix_successful,omitempty"`

	// Category is the classification assigned at record time.
	Category string `json:"category"`

	// Severity is the assessed urgency (critical, high, medium, low).
	Severity string `json:"severity"`
}

// Resolved reports whether a successful fix has been recorded.
func (r *FailureRecord) Resolved() bool {
	return r.FixSuccessful != nil && *r.FixSuccessful
}

// FailurePattern is a learned association between an error signature,
// a category, and the fixes proven to resolve it.
type FailurePattern struct {
	// PatternID is the unique identifier for this pattern.
	PatternID string `json:"pattern_id"`

	// ErrorPattern is the matcher specification.
	ErrorPattern string `json:"error_pattern"`

	// MatcherKind is how ErrorPattern is applied, decided at creation time.
	MatcherKind MatcherKind `json:"matcher_kind"`

	// Category is the category this pattern classifies into.
	Category string `json:"category"`

	// Description is a human-readable summary.
	Description string `json:"description"`

	// SuccessfulFixes are fixes confirmed to resolve failures in this category.
	SuccessfulFixes []string `json:"successful_fixes"`

	// Examples are error messages that contributed to this pattern.
	Examples []string `json:"examples"`

	// TotalAttempts counts all fix attempts against this category.
	TotalAttempts int `json:"total_attempts"`

	// SuccessfulAttempts counts attempts that resolved the failure.
	SuccessfulAttempts int `json:"successful_attempts"`

	// SuccessRate is SuccessfulAttempts / TotalAttempts.
	SuccessRate float64 `json:"success_rate"`
}

// Statistics is the rollup kept alongside records and patterns.
type Statistics struct {
	// TotalFailures is the number of failures ever recorded.
	TotalFailures int `json:"total_failures"`

	// ByCategory tallies failures per assigned category.
	ByCategory map[string]int `json:"by_category"`
}

// MemoryStore is the aggregate root persisted as a single document.
// Failures and Patterns preserve insertion order; order is significant
// for pattern matching.
type MemoryStore struct {
	Failures []FailureRecord  `json:"failures"`
	Patterns []FailurePattern `json:"patterns"`
	Stats    Statistics       `json:"statistics"`
}

// NewMemoryStore returns an empty store with zeroed statistics.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Failures: []FailureRecord{},
		Patterns: []FailurePattern{},
		Stats: Statistics{
			ByCategory: map[string]int{},
		},
	}
}

// FindFailure returns the record with the given id, or nil.
func (m *MemoryStore) FindFailure(id string) *FailureRecord {
	for i := range m.Failures {
		if m.Failures[i].ID == id {
			return &m.Failures[i]
		}
	}
	return nil
}

// FindPattern returns the pattern for the given category, or nil.
func (m *MemoryStore) FindPattern(category string) *FailurePattern {
	for i := range m.Patterns {
		if m.Patterns[i].Category == category {
			return &m.Patterns[i]
		}
	}
	return nil
}

// AddFailure appends a record and updates the rollup statistics.
func (m *MemoryStore) AddFailure(rec FailureRecord) {
	m.Failures = append(m.Failures, rec)
	m.Stats.TotalFailures++
	if m.Stats.ByCategory == nil {
		m.Stats.ByCategory = map[string]int{}
	}
	m.Stats.ByCategory[rec.Category]++
}
