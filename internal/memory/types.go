package memory

import (
	"github.com/fyrsmithlabs/failbank/internal/similarity"
	"github.com/fyrsmithlabs/failbank/internal/store"
)

// Request is the closed set of actions the façade accepts. Implementations
// are the *Request types in this package; Dispatch handles them
// exhaustively and reports anything else as an unknown action.
type Request interface {
	isRequest()
}

// RecordFailureRequest captures a new failure occurrence.
type RecordFailureRequest struct {
	// FailureType is the caller's kind of failure (e.g. "deployment").
	FailureType string

	// ErrorMessage is the raw error text.
	ErrorMessage string

	// Content is the associated artifact (e.g. a flow definition). It is
	// hashed for linkage only, never parsed.
	Content string

	// ComponentErrors are optional component-level sub-errors.
	ComponentErrors []string
}

// CategorizeRequest classifies an error message without recording it.
type CategorizeRequest struct {
	ErrorMessage    string
	ComponentErrors []string
}

// FindSimilarRequest looks up historically similar failures.
type FindSimilarRequest struct {
	ErrorMessage string

	// Threshold overrides the configured similarity cutoff when positive.
	Threshold float64
}

// FixOutcomeRequest records the outcome of an attempted fix on a failure.
// The fix fields of a record are set exactly once; a second outcome for
// the same record is a structured failure.
type FixOutcomeRequest struct {
	FailureID    string
	AttemptedFix string
	Successful   bool
}

// SuggestSolutionsRequest asks for proven fixes for an error.
type SuggestSolutionsRequest struct {
	ErrorMessage string

	// Category scopes pattern lookups; when empty it is derived from the
	// error message.
	Category string
}

// AnalyzeRequest asks for the combined view of one recorded failure.
type AnalyzeRequest struct {
	FailureID string
}

// PatternsRequest lists the learned patterns for reporting/auditing.
type PatternsRequest struct{}

// StatsRequest returns the rollup statistics.
type StatsRequest struct{}

func (*RecordFailureRequest) isRequest()    {}
func (*CategorizeRequest) isRequest()       {}
func (*FindSimilarRequest) isRequest()      {}
func (*FixOutcomeRequest) isRequest()       {}
func (*SuggestSolutionsRequest) isRequest() {}
func (*AnalyzeRequest) isRequest()          {}
func (*PatternsRequest) isRequest()         {}
func (*StatsRequest) isRequest()            {}

// PatternSummary is the reporting view of a learned pattern.
type PatternSummary struct {
	PatternID    string  `json:"pattern_id"`
	Category     string  `json:"category"`
	ErrorPattern string  `json:"error_pattern"`
	SuccessRate  float64 `json:"success_rate"`
	FixCount     int     `json:"fix_count"`
	ExampleCount int     `json:"example_count"`
}

// Analysis is the combined view returned for one failure.
type Analysis struct {
	FailureID       string             `json:"failure_id"`
	Category        string             `json:"category"`
	Severity        string             `json:"severity"`
	Suggestions     []string           `json:"suggestions,omitempty"`
	Similar         *similarity.Result `json:"similar,omitempty"`
	MatchedPatterns []PatternSummary   `json:"matched_patterns,omitempty"`
}

// Result is the structured outcome of every façade action. No raw fault
// crosses the façade: failures surface as Success=false with a
// human-readable message. Payload fields are populated per action.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`

	FailureID   string             `json:"failure_id,omitempty"`
	Category    string             `json:"category,omitempty"`
	Severity    string             `json:"severity,omitempty"`
	Suggestions []string           `json:"suggestions,omitempty"`
	Similar     *similarity.Result `json:"similar,omitempty"`
	Patterns    []PatternSummary   `json:"patterns,omitempty"`
	Stats       *store.Statistics  `json:"statistics,omitempty"`
	Analysis    *Analysis          `json:"analysis,omitempty"`
}

func failure(message string) *Result {
	return &Result{Success: false, Message: message}
}

func summarize(p *store.FailurePattern) PatternSummary {
	return PatternSummary{
		PatternID:    p.PatternID,
		Category:     p.Category,
		ErrorPattern: p.ErrorPattern,
		SuccessRate:  p.SuccessRate,
		FixCount:     len(p.SuccessfulFixes),
		ExampleCount: len(p.Examples),
	}
}
